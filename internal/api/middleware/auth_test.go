package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/b2b-storefront/internal/auth"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key", 15*time.Minute)
}

func tokenFor(t *testing.T, svc *auth.JWTService, userID, role string, companies ...string) string {
	t.Helper()
	token, _, err := svc.GenerateAccessToken(auth.TokenRequest{
		UserID:    userID,
		Email:     userID + "@example.com",
		Role:      role,
		Companies: companies,
		IVA:       15,
	})
	require.NoError(t, err)
	return token
}

func withClaims(r *http.Request, claims *auth.Claims) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), UserContextKey, claims))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// ============================================
// Auth Middleware Tests
// ============================================

func TestAuthMiddleware_ValidToken_Header(t *testing.T) {
	jwtService := newTestJWTService()
	middleware := AuthMiddleware(jwtService)
	token := tokenFor(t, jwtService, "user-123", "buyer", "E1")

	var capturedClaims *auth.Claims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedClaims, _ = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, capturedClaims)
	assert.Equal(t, "user-123", capturedClaims.UserID)
	assert.Equal(t, []string{"E1"}, capturedClaims.Companies)
	assert.Equal(t, 15.0, capturedClaims.IVA)
}

func TestAuthMiddleware_ValidToken_Cookie(t *testing.T) {
	jwtService := newTestJWTService()
	middleware := AuthMiddleware(jwtService)
	token := tokenFor(t, jwtService, "user-456", "buyer", "E1")

	var capturedID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	rec := httptest.NewRecorder()

	middleware(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-456", capturedID)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	jwtService := newTestJWTService()
	expired := auth.NewJWTService("test-secret-key", time.Millisecond)
	expiredToken := tokenFor(t, expired, "user-123", "buyer")
	foreignToken := tokenFor(t, auth.NewJWTService("other-secret", time.Minute), "user-123", "buyer")
	time.Sleep(10 * time.Millisecond)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"no token", "", "unauthorized"},
		{"invalid token", "Bearer invalid-token", "invalid token"},
		{"expired token", "Bearer " + expiredToken, "invalid token"},
		{"wrong signature", "Bearer " + foreignToken, "invalid token"},
		{"not bearer", "Basic dXNlcjpwYXNz", "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			AuthMiddleware(jwtService)(okHandler).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}
}

func TestAuthMiddleware_CookieTakesPrecedence(t *testing.T) {
	jwtService := newTestJWTService()
	cookieToken := tokenFor(t, jwtService, "cookie-user", "buyer")
	headerToken := tokenFor(t, jwtService, "header-user", "admin")

	var capturedID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: cookieToken})
	req.Header.Set("Authorization", "Bearer "+headerToken)
	rec := httptest.NewRecorder()

	AuthMiddleware(jwtService)(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cookie-user", capturedID)
}

// ============================================
// Require Role Middleware Tests
// ============================================

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		claims   *auth.Claims
		expected int
	}{
		{"has role", &auth.Claims{UserID: "u", Role: "admin"}, http.StatusOK},
		{"has alternate role", &auth.Claims{UserID: "u", Role: "moderator"}, http.StatusOK},
		{"missing role", &auth.Claims{UserID: "u", Role: "buyer"}, http.StatusForbidden},
		{"no claims", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.claims != nil {
				req = withClaims(req, tt.claims)
			}
			rec := httptest.NewRecorder()

			RequireRole("admin", "moderator")(okHandler).ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

// ============================================
// Require Company Middleware Tests
// ============================================

func TestRequireCompany(t *testing.T) {
	tests := []struct {
		name     string
		claims   *auth.Claims
		path     string
		expected int
	}{
		{"allowed company", &auth.Claims{UserID: "u", Companies: []string{"E1"}}, "/catalog/E1/sessions", http.StatusOK},
		{"other company", &auth.Claims{UserID: "u", Companies: []string{"E1"}}, "/catalog/E2/sessions", http.StatusForbidden},
		{"admin", &auth.Claims{UserID: "u", Role: auth.RoleAdmin}, "/catalog/E7/sessions", http.StatusOK},
		{"no claims", nil, "/catalog/E1/sessions", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.Handle("POST /catalog/{empresa}/sessions", RequireCompany("empresa")(okHandler))

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.claims != nil {
				req = withClaims(req, tt.claims)
			}
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

// ============================================
// Helper Functions Tests
// ============================================

func TestGetUserFromContext_WithClaims(t *testing.T) {
	claims := &auth.Claims{UserID: "user-123", Role: "buyer"}
	ctx := context.WithValue(context.Background(), UserContextKey, claims)

	result, ok := GetUserFromContext(ctx)

	assert.True(t, ok)
	assert.Equal(t, claims, result)
}

func TestGetUserFromContext_NoClaims(t *testing.T) {
	result, ok := GetUserFromContext(context.Background())

	assert.False(t, ok)
	assert.Nil(t, result)
}

func TestGetUserID(t *testing.T) {
	ctx := context.WithValue(context.Background(), UserContextKey, &auth.Claims{UserID: "user-123"})

	assert.Equal(t, "user-123", GetUserID(ctx))
	assert.Empty(t, GetUserID(context.Background()))
}
