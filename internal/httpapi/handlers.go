// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KeyGate Contributors

// Package httpapi exposes the auth services over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/keygate/keygate/internal/auth"
	"github.com/keygate/keygate/internal/observability"
	"github.com/keygate/keygate/pkg/errutil"
)

// AuthService is the surface the handlers need from the auth core.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (auth.PublicUser, string, error)
	Login(ctx context.Context, email, password string) (auth.PublicUser, string, error)
	Profile(ctx context.Context, token string) (auth.PublicUser, error)
	UpdateProfile(ctx context.Context, token string, update auth.ProfileUpdate) (auth.PublicUser, error)
}

// ResetService is the surface the handlers need from the password reset flow.
type ResetService interface {
	RequestReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// resetRequestedMessage is returned for every forgot-password call,
// whether or not the email exists. Clients must not be able to tell.
const resetRequestedMessage = "If the email is registered, a password reset link will be sent."

// Handler holds the HTTP handlers for the auth API.
type Handler struct {
	authSvc  AuthService
	resetSvc ResetService
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewHandler creates a Handler. metrics may be nil when the observability
// server is disabled.
func NewHandler(authSvc AuthService, resetSvc ResetService, logger *slog.Logger, metrics *observability.Metrics) (*Handler, error) {
	if authSvc == nil {
		return nil, oops.Code("HTTP_INIT_FAILED").Errorf("auth service is required")
	}
	if resetSvc == nil {
		return nil, oops.Code("HTTP_INIT_FAILED").Errorf("reset service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		authSvc:  authSvc,
		resetSvc: resetSvc,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Routes registers all API routes on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /register", h.instrument("register", h.handleRegister))
	mux.Handle("POST /login", h.instrument("login", h.handleLogin))
	mux.Handle("GET /profile", h.instrument("profile_get", h.handleProfileGet))
	mux.Handle("PATCH /profile", h.instrument("profile_update", h.handleProfileUpdate))
	mux.Handle("POST /forgot-password", h.instrument("forgot_password", h.handleForgotPassword))
	mux.Handle("POST /reset-password", h.instrument("reset_password", h.handleResetPassword))
	return mux
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type authResponse struct {
	User  auth.PublicUser `json:"user"`
	Token string          `json:"token"`
}

type userResponse struct {
	User auth.PublicUser `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.recordRegistration("invalid")
		h.writeError(w, err)
		return
	}

	user, token, err := h.authSvc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.recordRegistration(registrationOutcome(err))
		h.writeError(w, err)
		return
	}

	h.recordRegistration("success")
	h.writeJSON(w, http.StatusCreated, authResponse{User: user, Token: token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.recordLogin("error")
		h.writeError(w, err)
		return
	}

	user, token, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recordLogin(loginOutcome(err))
		h.writeError(w, err)
		return
	}

	h.recordLogin("success")
	h.writeJSON(w, http.StatusOK, authResponse{User: user, Token: token})
}

func (h *Handler) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	user, err := h.authSvc.Profile(r.Context(), token)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (h *Handler) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	user, err := h.authSvc.UpdateProfile(r.Context(), token, auth.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Email == "" {
		h.writeError(w, oops.Code("AUTH_VALIDATION").Errorf("email cannot be empty"))
		return
	}

	// Token delivery (email) is an external collaborator's job. The
	// response is identical whether or not the account exists.
	if _, err := h.resetSvc.RequestReset(r.Context(), req.Email); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, messageResponse{Message: resetRequestedMessage})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.resetSvc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, messageResponse{Message: "Password has been reset."})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", oops.Code("AUTH_UNAUTHORIZED").Errorf("authorization required")
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", oops.Code("AUTH_UNAUTHORIZED").Errorf("authorization header must be 'Bearer <token>'")
	}
	return token, nil
}

// decodeJSON decodes a request body, rejecting unknown garbage as a
// validation error rather than a 500.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return oops.Code("AUTH_VALIDATION").Errorf("request body must be valid JSON")
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

// writeError maps a domain error to its HTTP status. Client-facing errors
// keep their stable message; everything else is logged server-side and
// reported as a generic internal error.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := errutil.HTTPStatus(err)
	if !errutil.ClientFacing(err) {
		errutil.LogError(h.logger, "request failed", err)
		h.writeJSON(w, status, errorResponse{Error: "internal server error"})
		return
	}
	h.writeJSON(w, status, errorResponse{Error: clientMessage(err)})
}

// clientMessage returns the stable message for a client-facing error.
// Token failures collapse to one message: a client cannot need to know
// why its token was rejected.
func clientMessage(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return err.Error()
	}
	switch oopsErr.Code() {
	case "AUTH_TOKEN_INVALID", "AUTH_TOKEN_EXPIRED", "AUTH_UNAUTHORIZED":
		if msg := oopsErr.Error(); strings.HasPrefix(msg, "authorization") {
			return msg
		}
		return "invalid or expired token"
	case "RESET_TOKEN_INVALID", "RESET_TOKEN_EXPIRED":
		return "invalid or expired reset token"
	}
	return oopsErr.Error()
}

func (h *Handler) recordLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) recordRegistration(outcome string) {
	if h.metrics != nil {
		h.metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
	}
}

func loginOutcome(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case "AUTH_INVALID_CREDENTIALS":
			return "invalid_credentials"
		case "AUTH_ACCOUNT_LOCKED":
			return "locked"
		case "AUTH_VALIDATION":
			return "invalid"
		}
	}
	return "error"
}

func registrationOutcome(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case "AUTH_DUPLICATE_EMAIL", "AUTH_DUPLICATE_USERNAME":
			return "duplicate"
		case "AUTH_VALIDATION":
			return "invalid"
		}
	}
	return "error"
}
