// Package orders places cash and card orders for a user's cart.
package orders

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"storefront-proxy/internal/cart"
	"storefront-proxy/internal/metrics"
	"storefront-proxy/internal/model"
)

// Gateway is the subset of the commerce API orders need.
type Gateway interface {
	CreateCashOrder(ctx context.Context, token, cartID string, addr model.ShippingAddress) (*model.Order, error)
	CreateCheckoutSession(ctx context.Context, token, cartID string, addr model.ShippingAddress, returnURL string) (*model.CheckoutSession, error)
	UserOrders(ctx context.Context, token, userID string) ([]model.Order, error)
}

// Cart is the view of the user's cart an order needs.
type Cart interface {
	Snapshot() *cart.Snapshot
	Refresh(ctx context.Context) *cart.Snapshot
	Reset()
}

type Service struct {
	gw     Gateway
	logger *slog.Logger
}

func NewService(gw Gateway, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gw: gw, logger: logger}
}

// PlaceCashOrder orders the cart for cash on delivery. On success the server
// empties its cart; the local cart is refreshed and cleared if anything remains.
func (s *Service) PlaceCashOrder(ctx context.Context, token string, c Cart, addr model.ShippingAddress) (*model.Order, error) {
	if token == "" {
		return nil, model.NewUnauthenticatedError("You need to login first")
	}
	if err := model.Validate(addr); err != nil {
		return nil, err
	}
	cartID, err := s.cartID(ctx, c)
	if err != nil {
		return nil, err
	}

	order, err := s.gw.CreateCashOrder(ctx, token, cartID, addr)
	if err != nil {
		return nil, err
	}
	s.logger.Info("cash order placed", slog.String("cart_id", cartID))

	if snap := c.Refresh(ctx); snap != nil && len(snap.Items) > 0 {
		c.Reset()
	}
	if order == nil {
		order = &model.Order{PaymentMethodType: "cash"}
	}
	return order, nil
}

// CreateCheckoutSession opens a hosted card payment for the cart. The payment
// page redirects to returnURL when done.
func (s *Service) CreateCheckoutSession(ctx context.Context, token string, c Cart, addr model.ShippingAddress, returnURL string) (*model.CheckoutSession, error) {
	if token == "" {
		return nil, model.NewUnauthenticatedError("You need to login first")
	}
	if err := model.Validate(addr); err != nil {
		return nil, err
	}
	if u, err := url.Parse(returnURL); err != nil || !u.IsAbs() {
		return nil, model.NewValidationError("returnUrl", "Return URL must be an absolute URL")
	}
	cartID, err := s.cartID(ctx, c)
	if err != nil {
		return nil, err
	}

	session, err := s.gw.CreateCheckoutSession(ctx, token, cartID, addr, returnURL)
	if err != nil {
		return nil, err
	}
	if session == nil || session.URL == "" {
		return nil, model.NewUpstreamError(http.StatusBadGateway, "Payment session URL is missing")
	}
	return session, nil
}

// UserOrders lists a user's past orders. Failures degrade to an empty list.
func (s *Service) UserOrders(ctx context.Context, token, userID string) []model.Order {
	if token == "" || userID == "" {
		return []model.Order{}
	}
	orders, err := s.gw.UserOrders(ctx, token, userID)
	if err != nil {
		kind := model.KindOf(err)
		metrics.SwallowedErrors.WithLabelValues("orders", kind).Inc()
		s.logger.Warn("failed to load orders", slog.String("user_id", userID), slog.String("kind", kind), slog.Any("error", err))
		return []model.Order{}
	}
	if orders == nil {
		return []model.Order{}
	}
	return orders
}

// cartID takes the id from the snapshot, refreshing once if it is unknown.
func (s *Service) cartID(ctx context.Context, c Cart) (string, error) {
	snap := c.Snapshot()
	if snap == nil || snap.CartID == "" {
		snap = c.Refresh(ctx)
	}
	if snap == nil || snap.CartID == "" {
		return "", model.NewValidationError("cartId", "Cart id is missing")
	}
	return snap.CartID, nil
}
