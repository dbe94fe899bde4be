// Package handler provides HTTP handlers for the storefront proxy API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"storefront-proxy/internal/account"
	"storefront-proxy/internal/catalog"
	"storefront-proxy/internal/metrics"
	"storefront-proxy/internal/model"
	"storefront-proxy/internal/orders"
	"storefront-proxy/internal/session"
)

// TokenHeader carries the user's API token, as the commerce API expects it.
const TokenHeader = "token"

// Deps are the services the handlers are built on.
type Deps struct {
	Catalog  *catalog.Catalog
	Sessions *session.Registry
	Accounts *account.Service
	Orders   *orders.Service
	// Health serves /healthz. Nil falls back to the plain /health response.
	Health http.Handler
	// Version is reported by the MCP server.
	Version string
	Logger  *slog.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	catalog  *catalog.Catalog
	sessions *session.Registry
	accounts *account.Service
	orders   *orders.Service
	health   http.Handler
	version  string
	logger   *slog.Logger
}

// New creates a Handler.
func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := d.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		catalog:  d.Catalog,
		sessions: d.Sessions,
		accounts: d.Accounts,
		orders:   d.Orders,
		health:   d.Health,
		version:  version,
		logger:   logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Catalog
	mux.HandleFunc("GET /products", h.handleListProducts)
	mux.HandleFunc("GET /products/{id}", h.handleGetProduct)
	mux.HandleFunc("GET /categories", h.handleListCategories)
	mux.HandleFunc("GET /categories/{id}", h.handleGetCategory)
	mux.HandleFunc("GET /brands", h.handleListBrands)
	mux.HandleFunc("GET /brands/{id}", h.handleGetBrand)

	// Accounts
	mux.HandleFunc("POST /auth/signup", h.handleSignup)
	mux.HandleFunc("POST /auth/signin", h.handleSignin)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("POST /auth/forgot-password", h.handleForgotPassword)
	mux.HandleFunc("POST /auth/verify-reset-code", h.handleVerifyResetCode)
	mux.HandleFunc("PUT /auth/reset-password", h.handleResetPassword)
	mux.HandleFunc("PUT /auth/change-password", h.handleChangePassword)

	// Cart
	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("POST /cart", h.handleAddToCart)
	mux.HandleFunc("POST /cart/refresh", h.handleRefreshCart)
	mux.HandleFunc("PUT /cart/{id}", h.handleUpdateCartQuantity)
	mux.HandleFunc("DELETE /cart/{id}", h.handleRemoveFromCart)

	// Wishlist
	mux.HandleFunc("GET /wishlist", h.handleGetWishlist)
	mux.HandleFunc("POST /wishlist/{id}/toggle", h.handleToggleWishlist)

	// Orders
	mux.HandleFunc("POST /orders/cash", h.handleCashOrder)
	mux.HandleFunc("POST /orders/checkout-session", h.handleCheckoutSession)
	mux.HandleFunc("GET /orders", h.handleListOrders)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health and metrics
	mux.HandleFunc("GET /health", h.handleHealth)
	if h.health != nil {
		mux.Handle("GET /healthz", h.health)
	} else {
		mux.HandleFunc("GET /healthz", h.handleHealth)
	}
	mux.Handle("GET /metrics", metrics.Handler())
}

type healthResponse struct {
	Status string `json:"status"`
}

// handleHealth is the liveness probe. It never touches dependencies.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// session resolves the caller's session from the token header.
func (h *Handler) session(r *http.Request) (*session.Session, error) {
	return h.sessions.Resolve(r.Context(), r.Header.Get(TokenHeader))
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		apiErr = model.NewInternalError(err)
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
