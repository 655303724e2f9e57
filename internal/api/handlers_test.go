package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/b2b-storefront/internal/auth"
	"github.com/example/b2b-storefront/internal/backend"
	"github.com/example/b2b-storefront/internal/catalog"
	"github.com/example/b2b-storefront/internal/domain/cart"
	"github.com/example/b2b-storefront/internal/domain/product"
	"github.com/example/b2b-storefront/internal/infrastructure/store"
	"github.com/example/b2b-storefront/internal/session"
)

const testSecret = "test-secret-key-that-is-at-least-32-chars"

type fakeLoader struct {
	products []product.Product
	err      error
}

func (f *fakeLoader) LoadCompany(ctx context.Context, scope, empresaID string) ([]product.Product, error) {
	return f.products, f.err
}

type fakeCatalog struct {
	mu          sync.Mutex
	products    map[string]product.Product
	err         error
	invalidated []string
}

func (f *fakeCatalog) GetByCode(ctx context.Context, code, empresaID string) (product.Product, error) {
	if f.err != nil {
		return product.Product{}, f.err
	}
	p, ok := f.products[code]
	if !ok {
		return product.Product{}, product.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeCatalog) Invalidate(empresaID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, empresaID)
}

func priced(id string, price, discount float64, stock int) product.Product {
	return product.Product{ID: id, Name: "Producto " + id, Price: &price, Discount: discount, Stock: stock}
}

func tires() []product.Product {
	out := make([]product.Product, 0, 3)
	for i, cat := range []string{"AUTO", "AUTO", "MOTO"} {
		out = append(out, product.Product{
			ID: fmt.Sprintf("t%d", i), Name: fmt.Sprintf("Llanta %d", i),
			LineaNegocio: "LLANTAS", Stock: 10,
			OriginalData: map[string]any{product.FieldCategoria: cat},
		})
	}
	return out
}

type testServer struct {
	handler http.Handler
	jwt     *auth.JWTService
	catalog *fakeCatalog
	loader  *fakeLoader
}

func newTestServer() *testServer {
	loader := &fakeLoader{products: tires()}
	cat := &fakeCatalog{products: map[string]product.Product{
		"a": priced("a", 10, 0, 10),
		"b": priced("b", 20, 50, 10),
	}}
	kv := store.NewMemoryKVStore()
	sessions := session.NewManager(catalog.DefaultConfig(), loader, kv, time.Second)
	carts := cart.NewService(cart.NewSyncer(nil, kv, time.Hour), nil)
	jwtService := auth.NewJWTService(testSecret, time.Hour)

	return &testServer{
		handler: NewRouter(NewHandlers(sessions, carts, cat, 12), jwtService, ""),
		jwt:     jwtService,
		catalog: cat,
		loader:  loader,
	}
}

func (s *testServer) token(t *testing.T, req auth.TokenRequest) string {
	t.Helper()
	tok, _, err := s.jwt.GenerateAccessToken(req)
	require.NoError(t, err)
	return tok
}

func (s *testServer) buyer(t *testing.T) string {
	return s.token(t, auth.TokenRequest{UserID: "user-1", Email: "buyer@example.com", Role: "buyer", Companies: []string{"E1"}, IVA: 15})
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// createSession opens a session and polls until the catalog is loaded.
func (s *testServer) createSession(t *testing.T, token, query string) session.View {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/catalog/E1/sessions"+query, token, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	view := decode[session.View](t, rr)

	require.Eventually(t, func() bool {
		got := s.do(t, http.MethodGet, "/catalog/sessions/"+view.SessionID, token, nil)
		view = decode[session.View](t, got)
		return view.Status != "loading"
	}, time.Second, 10*time.Millisecond)
	return view
}

// ============================================
// Health Tests
// ============================================

func TestHealth(t *testing.T) {
	srv := newTestServer()

	rr := srv.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

// ============================================
// Catalog Session Tests
// ============================================

func TestCatalogSession_Flow(t *testing.T) {
	srv := newTestServer()
	tok := srv.buyer(t)

	view := srv.createSession(t, tok, "")
	assert.Equal(t, "ready", string(view.Status))
	assert.Equal(t, "E1", view.EmpresaID)
	assert.Contains(t, view.Query, "page=1")

	path := "/catalog/sessions/" + view.SessionID
	rr := srv.do(t, http.MethodPost, path+"/line", tok, map[string]any{"line": "LLANTAS"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	view = decode[session.View](t, rr)
	assert.Equal(t, "LLANTAS", view.State.SelectedLine)
	assert.Contains(t, view.Query, "linea=LLANTAS")

	rr = srv.do(t, http.MethodPost, path+"/select", tok, map[string]any{"value": "AUTO"})
	require.Equal(t, http.StatusOK, rr.Code)
	view = decode[session.View](t, rr)
	assert.Equal(t, "AUTO", view.State.SelectedValues["categoria"])
	assert.Equal(t, 2, view.Page.TotalItems)

	rr = srv.do(t, http.MethodPost, path+"/back", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	view = decode[session.View](t, rr)
	assert.Equal(t, 0, view.State.StepIndex)

	rr = srv.do(t, http.MethodPost, path+"/line", tok, map[string]any{"line": nil})
	require.Equal(t, http.StatusOK, rr.Code)
	view = decode[session.View](t, rr)
	assert.Empty(t, view.State.SelectedLine)
}

func TestCatalogSession_GridParamsFromQuery(t *testing.T) {
	srv := newTestServer()
	tok := srv.buyer(t)
	view := srv.createSession(t, tok, "")

	rr := srv.do(t, http.MethodGet, "/catalog/sessions/"+view.SessionID+"?limit=72&page=3&sort=name_asc", tok, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	view = decode[session.View](t, rr)
	assert.Equal(t, 144, view.Grid.ItemsPerPage)
	assert.Equal(t, 1, view.Grid.CurrentPage)
}

func TestCatalogSession_SearchAndViewed(t *testing.T) {
	srv := newTestServer()
	tok := srv.buyer(t)
	view := srv.createSession(t, tok, "")
	path := "/catalog/sessions/" + view.SessionID

	rr := srv.do(t, http.MethodPost, path+"/search", tok, map[string]any{"query": "llanta 1"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "llanta 1", decode[session.View](t, rr).State.SearchQuery)

	rr = srv.do(t, http.MethodPost, path+"/viewed", tok, map[string]any{"productId": "t1"})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = srv.do(t, http.MethodGet, path, tok, nil)
	assert.Equal(t, "t1", decode[session.View](t, rr).ScrollTo)

	rr = srv.do(t, http.MethodPost, path+"/viewed", tok, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCatalogSession_Errors(t *testing.T) {
	srv := newTestServer()
	tok := srv.buyer(t)
	other := srv.token(t, auth.TokenRequest{UserID: "user-2", Role: "buyer", Companies: []string{"E1"}})
	view := srv.createSession(t, tok, "")
	path := "/catalog/sessions/" + view.SessionID

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
	}{
		{"no token", http.MethodGet, path, "", nil, http.StatusUnauthorized},
		{"unknown session", http.MethodGet, "/catalog/sessions/missing", tok, nil, http.StatusNotFound},
		{"other user", http.MethodGet, path, other, nil, http.StatusNotFound},
		{"company not granted", http.MethodPost, "/catalog/E9/sessions", tok, nil, http.StatusForbidden},
		{"bad body", http.MethodPost, path + "/select", tok, "not-an-object", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}
}

func TestCatalogSession_Delete(t *testing.T) {
	srv := newTestServer()
	tok := srv.buyer(t)
	view := srv.createSession(t, tok, "")
	path := "/catalog/sessions/" + view.SessionID

	rr := srv.do(t, http.MethodDelete, path, tok, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = srv.do(t, http.MethodGet, path, tok, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCatalogSession_ReloadAfterError(t *testing.T) {
	srv := newTestServer()
	srv.loader.err = fmt.Errorf("%w: timeout", backend.ErrBackend)
	tok := srv.buyer(t)

	view := srv.createSession(t, tok, "")
	assert.Equal(t, "error", string(view.Status))
	assert.NotEmpty(t, view.Error)

	srv.loader.err = nil
	rr := srv.do(t, http.MethodPost, "/catalog/sessions/"+view.SessionID+"/reload", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	require.Eventually(t, func() bool {
		got := srv.do(t, http.MethodGet, "/catalog/sessions/"+view.SessionID, tok, nil)
		return decode[session.View](t, got).Status == "ready"
	}, time.Second, 10*time.Millisecond)
}

// ============================================
// Cart Tests
// ============================================

func TestCart_AddAndTotals(t *testing.T) {
	srv := newTestServer()
	tok := srv.buyer(t)

	rr := srv.do(t, http.MethodPost, "/cart/items", tok, map[string]any{"productId": "a", "empresaId": "E1", "quantity": 2})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = srv.do(t, http.MethodPost, "/cart/items", tok, map[string]any{"productId": "b", "empresaId": "E1", "quantity": 1})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[CartResponse](t, rr)
	require.Len(t, resp.Lines, 2)
	require.Len(t, resp.Totals, 1)
	assert.True(t, resp.Totals[0].Subtotal.Equal(decimal.NewFromInt(30)), resp.Totals[0].Subtotal.String())
	assert.True(t, resp.Totals[0].IVA.Equal(decimal.RequireFromString("4.5")), resp.Totals[0].IVA.String())
	assert.True(t, resp.Totals[0].Total.Equal(decimal.RequireFromString("34.5")), resp.Totals[0].Total.String())
}

func TestCart_DefaultIVAWhenTokenHasNone(t *testing.T) {
	srv := newTestServer()
	tok := srv.token(t, auth.TokenRequest{UserID: "user-3", Role: "buyer", Companies: []string{"E1"}})

	rr := srv.do(t, http.MethodPost, "/cart/items", tok, map[string]any{"productId": "a", "empresaId": "E1", "quantity": 1})

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[CartResponse](t, rr)
	require.Len(t, resp.Totals, 1)
	assert.True(t, resp.Totals[0].IVA.Equal(decimal.RequireFromString("1.2")), resp.Totals[0].IVA.String())
}

func TestCart_AddErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]any
		err    error
		status int
	}{
		{"zero quantity", map[string]any{"productId": "a", "empresaId": "E1", "quantity": 0}, nil, http.StatusBadRequest},
		{"over stock", map[string]any{"productId": "a", "empresaId": "E1", "quantity": 11}, nil, http.StatusConflict},
		{"unknown product", map[string]any{"productId": "zz", "empresaId": "E1", "quantity": 1}, nil, http.StatusNotFound},
		{"missing company", map[string]any{"productId": "a", "quantity": 1}, nil, http.StatusBadRequest},
		{"company not granted", map[string]any{"productId": "a", "empresaId": "E2", "quantity": 1}, nil, http.StatusForbidden},
		{"backend down", map[string]any{"productId": "a", "empresaId": "E1", "quantity": 1}, fmt.Errorf("%w: 503", backend.ErrBackend), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer()
			srv.catalog.err = tt.err

			rr := srv.do(t, http.MethodPost, "/cart/items", srv.buyer(t), tt.body)

			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), `"error"`)
		})
	}
}

func TestCart_UpdateRemoveClear(t *testing.T) {
	srv := newTestServer()
	tok := srv.buyer(t)
	srv.do(t, http.MethodPost, "/cart/items", tok, map[string]any{"productId": "a", "empresaId": "E1", "quantity": 1})
	srv.do(t, http.MethodPost, "/cart/items", tok, map[string]any{"productId": "b", "empresaId": "E1", "quantity": 1})

	rr := srv.do(t, http.MethodPatch, "/cart/items/a?empresa=E1", tok, map[string]any{"quantity": 4})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[CartResponse](t, rr)
	assert.Equal(t, 4, resp.Lines[0].Quantity)

	rr = srv.do(t, http.MethodPatch, "/cart/items/a?empresa=E2", tok, map[string]any{"quantity": 4})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(t, http.MethodDelete, "/cart/items/b?empresa=E1", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[CartResponse](t, rr).Lines, 1)

	rr = srv.do(t, http.MethodDelete, "/cart", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[CartResponse](t, rr).Lines)
}

func TestCart_Checkout(t *testing.T) {
	srv := newTestServer()
	admin := srv.token(t, auth.TokenRequest{UserID: "admin-1", Role: auth.RoleAdmin, IVA: 15})
	srv.do(t, http.MethodPost, "/cart/items", admin, map[string]any{"productId": "a", "empresaId": "E1", "quantity": 2})
	srv.do(t, http.MethodPost, "/cart/items", admin, map[string]any{"productId": "b", "empresaId": "E2", "quantity": 1})

	rr := srv.do(t, http.MethodPost, "/cart/checkout/E1", admin, nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[CheckoutResponse](t, rr)
	assert.Equal(t, "E1", resp.EmpresaID)
	require.Len(t, resp.Lines, 1)
	assert.True(t, resp.Totals.Total.Equal(decimal.NewFromInt(23)), resp.Totals.Total.String())
	require.Len(t, resp.Cart.Lines, 1)
	assert.Equal(t, "E2", resp.Cart.Lines[0].CompanyID)

	rr = srv.do(t, http.MethodPost, "/cart/checkout/E1", admin, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// ============================================
// Admin Tests
// ============================================

func TestInvalidateCatalog(t *testing.T) {
	srv := newTestServer()
	admin := srv.token(t, auth.TokenRequest{UserID: "admin-1", Role: auth.RoleAdmin})

	rr := srv.do(t, http.MethodPost, "/admin/catalog/E1/invalidate", srv.buyer(t), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = srv.do(t, http.MethodPost, "/admin/catalog/E1/invalidate", admin, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"E1"}, srv.catalog.invalidated)
}

func TestRespondErr_Unexpected(t *testing.T) {
	rr := httptest.NewRecorder()

	respondErr(rr, fmt.Errorf("boom"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "internal error"))
}
