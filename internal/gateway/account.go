package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"storefront-proxy/internal/model"
)

var (
	opCashOrder       = operation{"create cash order", "Failed to create cash order", "Network error while creating order"}
	opCheckoutSession = operation{"create checkout session", "Failed to create online checkout session", "Network error while creating checkout session"}
	opUserOrders      = operation{"list orders", "Failed to load orders", "Network error while loading orders"}
	opSignup          = operation{"signup", "Registration failed", "Network error during registration"}
	opSignin          = operation{"signin", "Login failed", "Network error during login"}
	opForgotPassword  = operation{"forgot password", "Failed to send reset code", "Network error while sending reset code"}
	opVerifyResetCode = operation{"verify reset code", "Invalid reset code", "Network error while verifying code"}
	opResetPassword   = operation{"reset password", "Failed to reset password", "Network error while resetting password"}
	opChangePassword  = operation{"change password", "Failed to change password", "Network error while changing password"}
)

// === Orders ===

type orderRequest struct {
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
}

// CreateCashOrder places a cash-on-delivery order for the given cart.
// The order is nil when the response carried no order body.
func (c *Client) CreateCashOrder(ctx context.Context, token, cartID string, addr model.ShippingAddress) (*model.Order, error) {
	raw, err := c.call(ctx, opCashOrder, http.MethodPost, "/orders/"+url.PathEscape(cartID), orderRequest{addr}, token)
	if err != nil {
		return nil, err
	}
	order, _ := model.DecodeItem[model.Order](raw)
	return order, nil
}

// CreateCheckoutSession opens a hosted payment session. returnURL is where the
// payment page sends the shopper afterwards.
func (c *Client) CreateCheckoutSession(ctx context.Context, token, cartID string, addr model.ShippingAddress, returnURL string) (*model.CheckoutSession, error) {
	path := "/orders/checkout-session/" + url.PathEscape(cartID) + "?url=" + url.QueryEscape(returnURL)
	raw, err := c.call(ctx, opCheckoutSession, http.MethodPost, path, orderRequest{addr}, token)
	if err != nil {
		return nil, err
	}

	var body struct {
		Session *model.CheckoutSession `json:"session"`
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	if body.Session == nil {
		return &model.CheckoutSession{}, nil
	}
	return body.Session, nil
}

// UserOrders lists a user's orders. The API answers with a bare array.
func (c *Client) UserOrders(ctx context.Context, token, userID string) ([]model.Order, error) {
	raw, err := c.call(ctx, opUserOrders, http.MethodGet, "/orders/user/"+url.PathEscape(userID), nil, token)
	if err != nil {
		return nil, err
	}
	orders, ok := model.DecodeList[model.Order](raw)
	if !ok {
		return nil, unexpectedPayload(opUserOrders)
	}
	return orders, nil
}

// === Auth ===

// SignupRequest is the registration payload.
type SignupRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	RePassword string `json:"rePassword"`
	Phone      string `json:"phone"`
}

// ChangePasswordRequest is the payload for PUT /users/changeMyPassword.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	Password        string `json:"password"`
	RePassword      string `json:"rePassword"`
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*model.AuthResponse, error) {
	return c.authCall(ctx, opSignup, http.MethodPost, "/auth/signup", req, "")
}

func (c *Client) Signin(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authCall(ctx, opSignin, http.MethodPost, "/auth/signin", body, "")
}

// ForgotPassword asks the API to email a reset code. Returns the server's message.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	raw, err := c.call(ctx, opForgotPassword, http.MethodPost, "/auth/forgotPasswords", map[string]string{"email": email}, "")
	if err != nil {
		return "", err
	}
	return model.Message(raw), nil
}

// VerifyResetCode checks the emailed code. Returns the server's status text.
func (c *Client) VerifyResetCode(ctx context.Context, code string) (string, error) {
	raw, err := c.call(ctx, opVerifyResetCode, http.MethodPost, "/auth/verifyResetCode", map[string]string{"resetCode": code}, "")
	if err != nil {
		return "", err
	}
	var body struct {
		Status string `json:"status"`
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	return body.Status, nil
}

// ResetPassword sets a new password after a verified code. The API returns a fresh token.
func (c *Client) ResetPassword(ctx context.Context, email, newPassword string) (*model.AuthResponse, error) {
	body := map[string]string{"email": email, "newPassword": newPassword}
	return c.authCall(ctx, opResetPassword, http.MethodPut, "/auth/resetPassword", body, "")
}

func (c *Client) ChangePassword(ctx context.Context, token string, req ChangePasswordRequest) (*model.AuthResponse, error) {
	return c.authCall(ctx, opChangePassword, http.MethodPut, "/users/changeMyPassword", req, token)
}

func (c *Client) authCall(ctx context.Context, op operation, method, path string, body any, token string) (*model.AuthResponse, error) {
	raw, err := c.call(ctx, op, method, path, body, token)
	if err != nil {
		return nil, err
	}
	var resp model.AuthResponse
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &resp)
	}
	return &resp, nil
}
