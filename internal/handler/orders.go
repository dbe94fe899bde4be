package handler

import (
	"net/http"

	"storefront-proxy/internal/model"
)

type cashOrderRequest struct {
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
}

type checkoutSessionRequest struct {
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
	ReturnURL       string                `json:"returnUrl"`
}

func (h *Handler) handleCashOrder(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req cashOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	order, err := h.orders.PlaceCashOrder(r.Context(), s.Token(), s.Cart, req.ShippingAddress)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, itemResponse[model.Order]{Data: order})
}

// handleCheckoutSession serves POST /orders/checkout-session. The client
// redirects the shopper to the returned payment URL.
func (h *Handler) handleCheckoutSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req checkoutSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	cs, err := h.orders.CreateCheckoutSession(r.Context(), s.Token(), s.Cart, req.ShippingAddress, req.ReturnURL)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cs)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newList(h.orders.UserOrders(r.Context(), s.Token(), s.UserID)))
}
