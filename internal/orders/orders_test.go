package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-proxy/internal/cart"
	"storefront-proxy/internal/gateway"
	"storefront-proxy/internal/model"
)

type fakeCart struct {
	snap      *cart.Snapshot
	refreshed *cart.Snapshot
	refreshes int
	resets    int
}

func (f *fakeCart) Snapshot() *cart.Snapshot { return f.snap }

func (f *fakeCart) Refresh(ctx context.Context) *cart.Snapshot {
	f.refreshes++
	f.snap = f.refreshed
	return f.snap
}

func (f *fakeCart) Reset() {
	f.resets++
	f.snap = nil
}

var validAddr = model.ShippingAddress{Details: "12 Nile St", Phone: "01012345678", City: "Cairo"}

func TestPlaceCashOrder(t *testing.T) {
	m := &gateway.Mock{}
	var gotCartID string
	m.CreateCashOrderFunc = func(ctx context.Context, token, cartID string, addr model.ShippingAddress) (*model.Order, error) {
		gotCartID = cartID
		assert.Equal(t, "tok", token)
		assert.Equal(t, validAddr, addr)
		return &model.Order{ID: "o-9", PaymentMethodType: "cash"}, nil
	}
	c := &fakeCart{snap: &cart.Snapshot{CartID: "cart-1", Items: []cart.LineItem{{ProductID: "mug", Count: 1}}}}
	svc := NewService(m, nil)

	order, err := svc.PlaceCashOrder(context.Background(), "tok", c, validAddr)

	require.NoError(t, err)
	assert.Equal(t, "o-9", order.ID)
	assert.Equal(t, "cart-1", gotCartID)
	assert.Equal(t, 1, c.refreshes)
	assert.Zero(t, c.resets, "server already emptied the cart")
}

func TestPlaceCashOrder_ResetsLeftovers(t *testing.T) {
	m := &gateway.Mock{}
	leftover := &cart.Snapshot{CartID: "cart-1", Items: []cart.LineItem{{ProductID: "mug", Count: 1}}}
	c := &fakeCart{snap: leftover, refreshed: leftover}
	svc := NewService(m, nil)

	_, err := svc.PlaceCashOrder(context.Background(), "tok", c, validAddr)

	require.NoError(t, err)
	assert.Equal(t, 1, c.resets)
	assert.Nil(t, c.snap)
}

func TestPlaceCashOrder_Rejections(t *testing.T) {
	withCart := func() *fakeCart { return &fakeCart{snap: &cart.Snapshot{CartID: "cart-1"}} }

	tests := []struct {
		name    string
		token   string
		cart    *fakeCart
		addr    model.ShippingAddress
		wantErr error
		wantMsg string
	}{
		{"no token", "", withCart(), validAddr, model.ErrUnauthenticated, "You need to login first"},
		{"bad phone", "tok", withCart(), model.ShippingAddress{Details: "x", Phone: "123", City: "Cairo"}, model.ErrInvalidRequest, "Phone must be a valid Egyptian number"},
		{"missing city", "tok", withCart(), model.ShippingAddress{Details: "x", Phone: "01012345678"}, model.ErrInvalidRequest, "City is required"},
		{"no cart", "tok", &fakeCart{}, validAddr, model.ErrInvalidRequest, "Cart id is missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &gateway.Mock{}
			svc := NewService(m, nil)

			_, err := svc.PlaceCashOrder(context.Background(), tt.token, tt.cart, tt.addr)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			var apiErr *model.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Zero(t, m.Calls("CreateCashOrder"))
		})
	}
}

func TestPlaceCashOrder_RefreshesUnknownCartID(t *testing.T) {
	m := &gateway.Mock{}
	c := &fakeCart{refreshed: &cart.Snapshot{CartID: "cart-7"}}
	var gotCartID string
	m.CreateCashOrderFunc = func(ctx context.Context, token, cartID string, addr model.ShippingAddress) (*model.Order, error) {
		gotCartID = cartID
		return nil, nil
	}
	svc := NewService(m, nil)

	order, err := svc.PlaceCashOrder(context.Background(), "tok", c, validAddr)

	require.NoError(t, err)
	assert.Equal(t, "cart-7", gotCartID)
	assert.Equal(t, "cash", order.PaymentMethodType)
}

func TestPlaceCashOrder_UpstreamError(t *testing.T) {
	m := &gateway.Mock{
		CreateCashOrderFunc: func(ctx context.Context, token, cartID string, addr model.ShippingAddress) (*model.Order, error) {
			return nil, model.NewUpstreamError(400, "Not enough stock")
		},
	}
	c := &fakeCart{snap: &cart.Snapshot{CartID: "cart-1"}}
	svc := NewService(m, nil)

	_, err := svc.PlaceCashOrder(context.Background(), "tok", c, validAddr)

	assert.ErrorIs(t, err, model.ErrUpstreamError)
	assert.Zero(t, c.refreshes)
}

func TestCreateCheckoutSession(t *testing.T) {
	m := &gateway.Mock{}
	var gotReturn string
	m.CheckoutSessionFunc = func(ctx context.Context, token, cartID string, addr model.ShippingAddress, returnURL string) (*model.CheckoutSession, error) {
		gotReturn = returnURL
		return &model.CheckoutSession{URL: "https://pay.example.com/s/1"}, nil
	}
	c := &fakeCart{snap: &cart.Snapshot{CartID: "cart-1"}}
	svc := NewService(m, nil)

	session, err := svc.CreateCheckoutSession(context.Background(), "tok", c, validAddr, "https://shop.example.com")

	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/s/1", session.URL)
	assert.Equal(t, "https://shop.example.com", gotReturn)
}

func TestCreateCheckoutSession_MissingURL(t *testing.T) {
	m := &gateway.Mock{
		CheckoutSessionFunc: func(ctx context.Context, token, cartID string, addr model.ShippingAddress, returnURL string) (*model.CheckoutSession, error) {
			return &model.CheckoutSession{}, nil
		},
	}
	c := &fakeCart{snap: &cart.Snapshot{CartID: "cart-1"}}
	svc := NewService(m, nil)

	_, err := svc.CreateCheckoutSession(context.Background(), "tok", c, validAddr, "https://shop.example.com")

	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Payment session URL is missing", apiErr.Message)
}

func TestCreateCheckoutSession_RelativeReturnURL(t *testing.T) {
	m := &gateway.Mock{}
	c := &fakeCart{snap: &cart.Snapshot{CartID: "cart-1"}}
	svc := NewService(m, nil)

	_, err := svc.CreateCheckoutSession(context.Background(), "tok", c, validAddr, "/orders")

	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	assert.Zero(t, m.Calls("CreateCheckoutSession"))
}

func TestUserOrders(t *testing.T) {
	t.Run("returns orders", func(t *testing.T) {
		m := &gateway.Mock{
			UserOrdersFunc: func(ctx context.Context, token, userID string) ([]model.Order, error) {
				assert.Equal(t, "u1", userID)
				return []model.Order{{ID: "o-1"}, {ID: "o-2"}}, nil
			},
		}
		assert.Len(t, NewService(m, nil).UserOrders(context.Background(), "tok", "u1"), 2)
	})

	t.Run("failure degrades to empty", func(t *testing.T) {
		m := &gateway.Mock{
			UserOrdersFunc: func(ctx context.Context, token, userID string) ([]model.Order, error) {
				return nil, model.NewTimeoutError("list orders")
			},
		}
		orders := NewService(m, nil).UserOrders(context.Background(), "tok", "u1")
		assert.NotNil(t, orders)
		assert.Empty(t, orders)
	})

	t.Run("missing token or user", func(t *testing.T) {
		m := &gateway.Mock{}
		svc := NewService(m, nil)
		assert.Empty(t, svc.UserOrders(context.Background(), "", "u1"))
		assert.Empty(t, svc.UserOrders(context.Background(), "tok", ""))
		assert.Zero(t, m.Calls("UserOrders"))
	})
}
