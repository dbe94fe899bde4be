// Package account handles registration, login and password flows.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"

	"storefront-proxy/internal/gateway"
	"storefront-proxy/internal/model"
)

// Gateway is the subset of the commerce API accounts need.
type Gateway interface {
	Signup(ctx context.Context, req gateway.SignupRequest) (*model.AuthResponse, error)
	Signin(ctx context.Context, email, password string) (*model.AuthResponse, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	VerifyResetCode(ctx context.Context, code string) (string, error)
	ResetPassword(ctx context.Context, email, newPassword string) (*model.AuthResponse, error)
	ChangePassword(ctx context.Context, token string, req gateway.ChangePasswordRequest) (*model.AuthResponse, error)
}

type SignupInput struct {
	Name       string `json:"name" validate:"required,min=3"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	RePassword string `json:"rePassword" validate:"required,eqfield=Password"`
}

type SigninInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordInput struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	RePassword      string `json:"rePassword" validate:"required,eqfield=Password"`
}

type emailInput struct {
	Email string `json:"email" validate:"required,email"`
}

type codeInput struct {
	ResetCode string `json:"resetCode" validate:"required"`
}

type Service struct {
	gw     Gateway
	logger *slog.Logger
	phone  func() string
}

func NewService(gw Gateway, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gw: gw, logger: logger, phone: generatePhone}
}

// generatePhone makes a placeholder mobile number; the API requires one at
// signup but the storefront never asks for it.
func generatePhone() string {
	return fmt.Sprintf("010%08d", rand.IntN(100000000))
}

// Signup registers a user. Upstream outages are reported as a temporary
// unavailability rather than the raw server error.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.AuthResponse, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}
	resp, err := s.gw.Signup(ctx, gateway.SignupRequest{
		Name:       in.Name,
		Email:      in.Email,
		Password:   in.Password,
		RePassword: in.RePassword,
		Phone:      s.phone(),
	})
	if err != nil {
		return nil, authServiceError(err)
	}
	s.logger.Info("user registered", slog.String("email", in.Email))
	return resp, nil
}

// Signin returns the user record and token.
func (s *Service) Signin(ctx context.Context, in SigninInput) (*model.User, string, error) {
	if err := model.Validate(in); err != nil {
		return nil, "", err
	}
	resp, err := s.gw.Signin(ctx, in.Email, in.Password)
	if err != nil {
		return nil, "", authServiceError(err)
	}
	if resp.Token == "" {
		return nil, "", model.NewUpstreamError(http.StatusBadGateway, "Login failed")
	}
	return resp.User, resp.Token, nil
}

// ForgotPassword emails a reset code and returns the server's message.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	if err := model.Validate(emailInput{Email: email}); err != nil {
		return "", err
	}
	return s.gw.ForgotPassword(ctx, email)
}

func (s *Service) VerifyResetCode(ctx context.Context, code string) (string, error) {
	if err := model.Validate(codeInput{ResetCode: code}); err != nil {
		return "", err
	}
	return s.gw.VerifyResetCode(ctx, code)
}

// ResetPassword sets a new password. The response carries a fresh token.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) (*model.AuthResponse, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}
	return s.gw.ResetPassword(ctx, in.Email, in.NewPassword)
}

// ChangePassword changes the logged-in user's password. The response carries
// a fresh token that replaces the old one.
func (s *Service) ChangePassword(ctx context.Context, token string, in ChangePasswordInput) (*model.AuthResponse, error) {
	if token == "" {
		return nil, model.NewUnauthenticatedError("You need to login first")
	}
	if err := model.Validate(in); err != nil {
		return nil, err
	}
	return s.gw.ChangePassword(ctx, token, gateway.ChangePasswordRequest{
		CurrentPassword: in.CurrentPassword,
		Password:        in.Password,
		RePassword:      in.RePassword,
	})
}

func authServiceError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && errors.Is(err, model.ErrUpstreamError) && apiErr.StatusCode >= http.StatusInternalServerError {
		return model.NewUpstreamError(http.StatusBadGateway, "Auth service is temporarily unavailable. Please try again.")
	}
	if errors.Is(err, model.ErrNetwork) {
		return model.NewNetworkError("Unable to reach auth service", err)
	}
	return err
}
