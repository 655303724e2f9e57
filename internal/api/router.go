package api

import (
	"log"
	"net/http"
	"time"

	"github.com/example/b2b-storefront/internal/api/middleware"
	"github.com/example/b2b-storefront/internal/auth"
)

func NewRouter(handlers *Handlers, jwtService *auth.JWTService, webDir string) http.Handler {
	mux := http.NewServeMux()
	authed := middleware.AuthMiddleware(jwtService)
	company := middleware.RequireCompany("empresa")
	admin := middleware.RequireRole(auth.RoleAdmin)

	// Static files (web UI)
	if webDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(webDir)))
	}

	mux.HandleFunc("GET /health", handlers.Health)

	// Catalog sessions
	mux.Handle("POST /catalog/{empresa}/sessions", authed(company(http.HandlerFunc(handlers.CreateSession))))
	mux.Handle("GET /catalog/sessions/{id}", authed(http.HandlerFunc(handlers.GetSession)))
	mux.Handle("DELETE /catalog/sessions/{id}", authed(http.HandlerFunc(handlers.DeleteSession)))
	mux.Handle("POST /catalog/sessions/{id}/reload", authed(http.HandlerFunc(handlers.ReloadSession)))
	mux.Handle("POST /catalog/sessions/{id}/line", authed(http.HandlerFunc(handlers.SelectLine)))
	mux.Handle("POST /catalog/sessions/{id}/select", authed(http.HandlerFunc(handlers.SelectFilterValue)))
	mux.Handle("POST /catalog/sessions/{id}/back", authed(http.HandlerFunc(handlers.GoToPreviousStep)))
	mux.Handle("POST /catalog/sessions/{id}/edit", authed(http.HandlerFunc(handlers.GoToFilterStep)))
	mux.Handle("POST /catalog/sessions/{id}/facets", authed(http.HandlerFunc(handlers.ApplyAdditionalFilter)))
	mux.Handle("DELETE /catalog/sessions/{id}/facets/{key}", authed(http.HandlerFunc(handlers.ClearAdditionalFilter)))
	mux.Handle("POST /catalog/sessions/{id}/search", authed(http.HandlerFunc(handlers.Search)))
	mux.Handle("POST /catalog/sessions/{id}/viewed", authed(http.HandlerFunc(handlers.RecordViewed)))

	// Cart
	mux.Handle("GET /cart", authed(http.HandlerFunc(handlers.GetCart)))
	mux.Handle("DELETE /cart", authed(http.HandlerFunc(handlers.ClearCart)))
	mux.Handle("POST /cart/items", authed(http.HandlerFunc(handlers.AddToCart)))
	mux.Handle("PATCH /cart/items/{id}", authed(http.HandlerFunc(handlers.UpdateCartItem)))
	mux.Handle("DELETE /cart/items/{id}", authed(http.HandlerFunc(handlers.RemoveFromCart)))
	mux.Handle("POST /cart/checkout/{empresa}", authed(company(http.HandlerFunc(handlers.Checkout))))

	// Admin
	mux.Handle("POST /admin/catalog/{empresa}/invalidate", authed(admin(http.HandlerFunc(handlers.InvalidateCatalog))))

	return withLogging(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[API] %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}
