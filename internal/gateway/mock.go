package gateway

import (
	"context"
	"sync"

	"storefront-proxy/internal/model"
)

// Mock stands in for Client in tests of the packages built on it.
// Each method can be configured via function fields; Calls counts invocations.
type Mock struct {
	ProductsFunc           func(ctx context.Context) ([]model.Product, error)
	ProductFunc            func(ctx context.Context, id string) (*model.Product, error)
	CategoriesFunc         func(ctx context.Context) ([]model.Category, error)
	CategoryFunc           func(ctx context.Context, id string) (*model.Category, error)
	BrandsFunc             func(ctx context.Context) ([]model.Brand, error)
	BrandFunc              func(ctx context.Context, id string) (*model.Brand, error)
	GetCartFunc            func(ctx context.Context, token string) (*model.CartResponse, error)
	AddToCartFunc          func(ctx context.Context, token, productID string) (*model.CartResponse, error)
	RemoveFromCartFunc     func(ctx context.Context, token, productID string) (*model.CartResponse, error)
	UpdateCartQuantityFunc func(ctx context.Context, token, productID string, count int) (*model.CartResponse, error)
	WishlistFunc           func(ctx context.Context, token string) ([]string, error)
	AddToWishlistFunc      func(ctx context.Context, token, productID string) error
	RemoveFromWishlistFunc func(ctx context.Context, token, productID string) error
	CreateCashOrderFunc    func(ctx context.Context, token, cartID string, addr model.ShippingAddress) (*model.Order, error)
	CheckoutSessionFunc    func(ctx context.Context, token, cartID string, addr model.ShippingAddress, returnURL string) (*model.CheckoutSession, error)
	UserOrdersFunc         func(ctx context.Context, token, userID string) ([]model.Order, error)
	SignupFunc             func(ctx context.Context, req SignupRequest) (*model.AuthResponse, error)
	SigninFunc             func(ctx context.Context, email, password string) (*model.AuthResponse, error)
	ForgotPasswordFunc     func(ctx context.Context, email string) (string, error)
	VerifyResetCodeFunc    func(ctx context.Context, code string) (string, error)
	ResetPasswordFunc      func(ctx context.Context, email, newPassword string) (*model.AuthResponse, error)
	ChangePasswordFunc     func(ctx context.Context, token string, req ChangePasswordRequest) (*model.AuthResponse, error)

	mu    sync.Mutex
	calls map[string]int
}

// Calls returns how many times the named method was invoked.
func (m *Mock) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *Mock) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// Products calls the configured ProductsFunc or returns an empty list.
func (m *Mock) Products(ctx context.Context) ([]model.Product, error) {
	m.record("Products")
	if m.ProductsFunc != nil {
		return m.ProductsFunc(ctx)
	}
	return []model.Product{}, nil
}

// Product calls the configured ProductFunc or returns not found.
func (m *Mock) Product(ctx context.Context, id string) (*model.Product, error) {
	m.record("Product")
	if m.ProductFunc != nil {
		return m.ProductFunc(ctx, id)
	}
	return nil, model.NewNotFoundError("product")
}

func (m *Mock) Categories(ctx context.Context) ([]model.Category, error) {
	m.record("Categories")
	if m.CategoriesFunc != nil {
		return m.CategoriesFunc(ctx)
	}
	return []model.Category{}, nil
}

func (m *Mock) Category(ctx context.Context, id string) (*model.Category, error) {
	m.record("Category")
	if m.CategoryFunc != nil {
		return m.CategoryFunc(ctx, id)
	}
	return nil, model.NewNotFoundError("category")
}

func (m *Mock) Brands(ctx context.Context) ([]model.Brand, error) {
	m.record("Brands")
	if m.BrandsFunc != nil {
		return m.BrandsFunc(ctx)
	}
	return []model.Brand{}, nil
}

func (m *Mock) Brand(ctx context.Context, id string) (*model.Brand, error) {
	m.record("Brand")
	if m.BrandFunc != nil {
		return m.BrandFunc(ctx, id)
	}
	return nil, model.NewNotFoundError("brand")
}

// GetCart calls the configured GetCartFunc or reports that no cart exists.
func (m *Mock) GetCart(ctx context.Context, token string) (*model.CartResponse, error) {
	m.record("GetCart")
	if m.GetCartFunc != nil {
		return m.GetCartFunc(ctx, token)
	}
	return nil, model.NewNotFoundError("cart")
}

func (m *Mock) AddToCart(ctx context.Context, token, productID string) (*model.CartResponse, error) {
	m.record("AddToCart")
	if m.AddToCartFunc != nil {
		return m.AddToCartFunc(ctx, token, productID)
	}
	return nil, nil
}

func (m *Mock) RemoveFromCart(ctx context.Context, token, productID string) (*model.CartResponse, error) {
	m.record("RemoveFromCart")
	if m.RemoveFromCartFunc != nil {
		return m.RemoveFromCartFunc(ctx, token, productID)
	}
	return nil, nil
}

func (m *Mock) UpdateCartQuantity(ctx context.Context, token, productID string, count int) (*model.CartResponse, error) {
	m.record("UpdateCartQuantity")
	if m.UpdateCartQuantityFunc != nil {
		return m.UpdateCartQuantityFunc(ctx, token, productID, count)
	}
	return nil, nil
}

func (m *Mock) Wishlist(ctx context.Context, token string) ([]string, error) {
	m.record("Wishlist")
	if m.WishlistFunc != nil {
		return m.WishlistFunc(ctx, token)
	}
	return []string{}, nil
}

func (m *Mock) AddToWishlist(ctx context.Context, token, productID string) error {
	m.record("AddToWishlist")
	if m.AddToWishlistFunc != nil {
		return m.AddToWishlistFunc(ctx, token, productID)
	}
	return nil
}

func (m *Mock) RemoveFromWishlist(ctx context.Context, token, productID string) error {
	m.record("RemoveFromWishlist")
	if m.RemoveFromWishlistFunc != nil {
		return m.RemoveFromWishlistFunc(ctx, token, productID)
	}
	return nil
}

func (m *Mock) CreateCashOrder(ctx context.Context, token, cartID string, addr model.ShippingAddress) (*model.Order, error) {
	m.record("CreateCashOrder")
	if m.CreateCashOrderFunc != nil {
		return m.CreateCashOrderFunc(ctx, token, cartID, addr)
	}
	return &model.Order{ID: "order-1", PaymentMethodType: "cash"}, nil
}

func (m *Mock) CreateCheckoutSession(ctx context.Context, token, cartID string, addr model.ShippingAddress, returnURL string) (*model.CheckoutSession, error) {
	m.record("CreateCheckoutSession")
	if m.CheckoutSessionFunc != nil {
		return m.CheckoutSessionFunc(ctx, token, cartID, addr, returnURL)
	}
	return &model.CheckoutSession{URL: "https://pay.example.com/session"}, nil
}

func (m *Mock) UserOrders(ctx context.Context, token, userID string) ([]model.Order, error) {
	m.record("UserOrders")
	if m.UserOrdersFunc != nil {
		return m.UserOrdersFunc(ctx, token, userID)
	}
	return []model.Order{}, nil
}

// Signup calls the configured SignupFunc or echoes a bare success.
func (m *Mock) Signup(ctx context.Context, req SignupRequest) (*model.AuthResponse, error) {
	m.record("Signup")
	if m.SignupFunc != nil {
		return m.SignupFunc(ctx, req)
	}
	return &model.AuthResponse{Message: "success"}, nil
}

// Signin calls the configured SigninFunc or returns a response without a token.
func (m *Mock) Signin(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	m.record("Signin")
	if m.SigninFunc != nil {
		return m.SigninFunc(ctx, email, password)
	}
	return &model.AuthResponse{}, nil
}

func (m *Mock) ForgotPassword(ctx context.Context, email string) (string, error) {
	m.record("ForgotPassword")
	if m.ForgotPasswordFunc != nil {
		return m.ForgotPasswordFunc(ctx, email)
	}
	return "Reset code sent to your email", nil
}

func (m *Mock) VerifyResetCode(ctx context.Context, code string) (string, error) {
	m.record("VerifyResetCode")
	if m.VerifyResetCodeFunc != nil {
		return m.VerifyResetCodeFunc(ctx, code)
	}
	return "Success", nil
}

func (m *Mock) ResetPassword(ctx context.Context, email, newPassword string) (*model.AuthResponse, error) {
	m.record("ResetPassword")
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, email, newPassword)
	}
	return &model.AuthResponse{}, nil
}

func (m *Mock) ChangePassword(ctx context.Context, token string, req ChangePasswordRequest) (*model.AuthResponse, error) {
	m.record("ChangePassword")
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, token, req)
	}
	return &model.AuthResponse{}, nil
}
