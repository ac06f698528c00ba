package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/parley/internal/otp"
)

// OTPService issues and verifies one-time codes.
type OTPService interface {
	Issue(ctx context.Context, email string) (time.Time, error)
	Verify(ctx context.Context, email, code string) error
}

// AuthHandler serves the email OTP endpoints.
type AuthHandler struct {
	otp    OTPService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc OTPService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{otp: svc, logger: logger}
}

// RegisterRoutes registers auth routes. Issuing sends mail, so limit wraps it.
func (h *AuthHandler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Post("/auth/otp", h.Issue)
		r.Post("/auth/otp/verify", h.Verify)
	})
}

type issueRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Issue sends a fresh code to the given address.
func (h *AuthHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	expiresAt, err := h.otp.Issue(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, otp.ErrInvalidEmail) {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("OTP issue failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to issue code")
		return
	}

	JSON(w, http.StatusAccepted, map[string]any{"expiresAt": expiresAt.UTC()})
}

// Verify checks a submitted code.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.otp.Verify(r.Context(), req.Email, req.Code)
	switch {
	case err == nil:
		JSON(w, http.StatusOK, map[string]any{"verified": true})
	case errors.Is(err, otp.ErrInvalidEmail):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, otp.ErrTooManyAttempts):
		Error(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, otp.ErrInvalidCode), errors.Is(err, otp.ErrCodeExpired), errors.Is(err, otp.ErrCodeNotFound):
		Error(w, http.StatusUnauthorized, err.Error())
	default:
		h.logger.Error("OTP verify failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to verify code")
	}
}
