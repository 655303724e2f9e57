package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/example/b2b-storefront/internal/api/middleware"
	"github.com/example/b2b-storefront/internal/backend"
	"github.com/example/b2b-storefront/internal/domain/cart"
	"github.com/example/b2b-storefront/internal/domain/product"
	"github.com/example/b2b-storefront/internal/session"
)

// Catalog is the part of the product repository the handlers use.
type Catalog interface {
	GetByCode(ctx context.Context, code, empresaID string) (product.Product, error)
	Invalidate(empresaID string)
}

type Handlers struct {
	sessions   *session.Manager
	carts      *cart.Service
	catalog    Catalog
	defaultIVA decimal.Decimal
}

func NewHandlers(sessions *session.Manager, carts *cart.Service, catalog Catalog, defaultIVA float64) *Handlers {
	return &Handlers{
		sessions:   sessions,
		carts:      carts,
		catalog:    catalog,
		defaultIVA: decimal.NewFromFloat(defaultIVA),
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	})
}

// Admin Handlers

func (h *Handlers) InvalidateCatalog(w http.ResponseWriter, r *http.Request) {
	empresa := r.PathValue("empresa")
	h.catalog.Invalidate(empresa)
	log.Printf("[API] Catalog %s invalidated by %s", empresa, middleware.GetUserID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps domain errors to status codes.
func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, product.ErrProductNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, cart.ErrNothingToCheckout):
		respondJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidProduct),
		errors.Is(err, cart.ErrNoPrice):
		respondJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, cart.ErrInsufficientStock):
		respondJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, backend.ErrBackend):
		respondJSONError(w, err.Error(), http.StatusBadGateway)
	default:
		log.Printf("[API] Unexpected error: %v", err)
		respondJSONError(w, "internal error", http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// ivaFor prefers the buyer's own rate from the token.
func (h *Handlers) ivaFor(r *http.Request) decimal.Decimal {
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok && claims.IVA > 0 {
		return decimal.NewFromFloat(claims.IVA)
	}
	return h.defaultIVA
}
