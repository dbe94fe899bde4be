package handler

import (
	"log/slog"
	"net/http"

	"storefront-proxy/internal/account"
	"storefront-proxy/internal/model"
)

type messageResponse struct {
	Message string `json:"message"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetCodeRequest struct {
	ResetCode string `json:"resetCode"`
}

// handleSignup serves POST /auth/signup. When the API hands back a token the
// shopper is signed in straight away.
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in account.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, err)
		return
	}

	resp, err := h.accounts.Signup(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if resp.Token != "" {
		if _, err := h.sessions.Login(r.Context(), resp.User, resp.Token); err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// handleSignin serves POST /auth/signin and starts the shopper's session.
func (h *Handler) handleSignin(w http.ResponseWriter, r *http.Request) {
	var in account.SigninInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, err)
		return
	}

	user, token, err := h.accounts.Signin(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.sessions.Login(r.Context(), user, token); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.AuthResponse{Message: "success", User: user, Token: token})
}

// handleLogout serves POST /auth/logout. Logging out an unknown token is not
// an error.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(TokenHeader)
	if token == "" {
		h.writeError(w, model.NewUnauthenticatedError("You need to login first"))
		return
	}
	if err := h.sessions.Logout(r.Context(), token); err != nil {
		h.logger.Warn("failed to clear persisted session", slog.Any("error", err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	msg, err := h.accounts.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (h *Handler) handleVerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req resetCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	status, err := h.accounts.VerifyResetCode(r.Context(), req.ResetCode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{Message: status})
}

// handleResetPassword serves PUT /auth/reset-password. The fresh token in
// the response signs the shopper in.
func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in account.ResetPasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	resp, err := h.accounts.ResetPassword(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if resp.Token != "" {
		if _, err := h.sessions.Login(r.Context(), resp.User, resp.Token); err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// handleChangePassword serves PUT /auth/change-password. The API rotates the
// token, so the session moves to the new token and the old one is dropped.
func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in account.ChangePasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, err)
		return
	}

	oldToken := s.Token()
	resp, err := h.accounts.ChangePassword(r.Context(), oldToken, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if resp.Token != "" && resp.Token != oldToken {
		user := resp.User
		if user == nil {
			user = s.User()
		}
		if _, err := h.sessions.Login(r.Context(), user, resp.Token); err != nil {
			h.writeError(w, err)
			return
		}
		if err := h.sessions.Logout(r.Context(), oldToken); err != nil {
			h.logger.Warn("failed to clear rotated session", slog.Any("error", err))
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}
