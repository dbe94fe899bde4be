package handler

import (
	"net/http"

	"storefront-proxy/internal/cart"
	"storefront-proxy/internal/model"
)

type addToCartRequest struct {
	ProductID string `json:"productId"`
}

type updateQuantityRequest struct {
	Count int `json:"count"`
}

type toggleResponse struct {
	ProductID  string `json:"productId"`
	InWishlist bool   `json:"inWishlist"`
}

type wishlistResponse struct {
	Results  int             `json:"results"`
	IDs      []string        `json:"ids"`
	Products []model.Product `json:"products"`
}

// cartView renders an absent cart as an empty one.
func cartView(s *cart.Snapshot) *cart.Snapshot {
	if s == nil {
		return &cart.Snapshot{Items: []cart.LineItem{}}
	}
	return s
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cartView(s.Cart.Snapshot()))
}

func (h *Handler) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req addToCartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.ProductID == "" {
		h.writeError(w, model.NewValidationError("productId", "Product id is required"))
		return
	}

	snap, err := s.Cart.AddItem(r.Context(), req.ProductID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cartView(snap))
}

// handleRefreshCart serves POST /cart/refresh: an explicit re-fetch of the
// server cart. It never fails once the session is known.
func (h *Handler) handleRefreshCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cartView(s.Cart.Refresh(r.Context())))
}

func (h *Handler) handleUpdateCartQuantity(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req updateQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	snap, err := s.Cart.UpdateQuantity(r.Context(), r.PathValue("id"), req.Count)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cartView(snap))
}

func (h *Handler) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := s.Cart.RemoveItem(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cartView(snap))
}

// handleGetWishlist serves GET /wishlist with the member products filled in
// from the catalog. Members the catalog no longer knows are listed by id only.
func (h *Handler) handleGetWishlist(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	ids := s.Wishlist.IDs()
	products := make([]model.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := h.catalog.Product(r.Context(), id); ok {
			products = append(products, *p)
		}
	}
	h.writeJSON(w, http.StatusOK, wishlistResponse{Results: len(ids), IDs: ids, Products: products})
}

func (h *Handler) handleToggleWishlist(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	id := r.PathValue("id")
	in, err := s.Wishlist.Toggle(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toggleResponse{ProductID: id, InWishlist: in})
}
