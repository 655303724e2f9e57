package api

import (
	"net/http"

	"github.com/example/b2b-storefront/internal/api/middleware"
	"github.com/example/b2b-storefront/internal/domain/cart"
)

// CartResponse is the cart with its per-company totals.
type CartResponse struct {
	*cart.Cart
	Totals []cart.CompanyTotals `json:"totals"`
}

// CheckoutResponse holds one company's order lines, ready to be submitted
// upstream, and the cart that remains.
type CheckoutResponse struct {
	EmpresaID string             `json:"empresaId"`
	Lines     []cart.Line        `json:"lines"`
	Totals    cart.CompanyTotals `json:"totals"`
	Cart      CartResponse       `json:"cart"`
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	c := h.carts.Get(r.Context(), middleware.GetUserID(r.Context()))
	respondJSON(w, http.StatusOK, h.cartResponse(r, c))
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
		EmpresaID string `json:"empresaId"`
		Quantity  int    `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" || req.EmpresaID == "" {
		respondErr(w, cart.ErrInvalidProduct)
		return
	}
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok || !claims.CanAccessCompany(req.EmpresaID) {
		respondJSONError(w, "forbidden", http.StatusForbidden)
		return
	}

	p, err := h.catalog.GetByCode(r.Context(), req.ProductID, req.EmpresaID)
	if err != nil {
		respondErr(w, err)
		return
	}
	c, err := h.carts.AddItem(r.Context(), claims.UserID, p, req.EmpresaID, req.Quantity)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(r, c))
}

// UpdateCartItem sets a line's quantity. The company comes from the
// ?empresa query parameter.
func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.carts.UpdateQuantity(r.Context(), middleware.GetUserID(r.Context()),
		r.URL.Query().Get("empresa"), r.PathValue("id"), req.Quantity)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(r, c))
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), middleware.GetUserID(r.Context()),
		r.URL.Query().Get("empresa"), r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(r, c))
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	c := h.carts.Clear(r.Context(), middleware.GetUserID(r.Context()))
	respondJSON(w, http.StatusOK, h.cartResponse(r, c))
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	empresa := r.PathValue("empresa")
	lines, remaining, err := h.carts.Checkout(r.Context(), middleware.GetUserID(r.Context()), empresa)
	if err != nil {
		respondErr(w, err)
		return
	}

	order := &cart.Cart{Lines: lines}
	totals := order.Totals(h.ivaFor(r), h.carts.Tiers())
	resp := CheckoutResponse{
		EmpresaID: empresa,
		Lines:     lines,
		Cart:      h.cartResponse(r, remaining),
	}
	if len(totals) > 0 {
		resp.Totals = totals[0]
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) cartResponse(r *http.Request, c *cart.Cart) CartResponse {
	return CartResponse{Cart: c, Totals: c.Totals(h.ivaFor(r), h.carts.Tiers())}
}
