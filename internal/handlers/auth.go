package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/devlink/apiserver/internal/logger"
	"github.com/devlink/apiserver/internal/metrics"
	"github.com/devlink/apiserver/internal/services"
)

// TokenHeader carries the session token on protected requests.
const TokenHeader = "x-auth-token"

const (
	noTokenMessage      = "No token, authorization denied"
	invalidTokenMessage = "Token is not valid"
)

// TokenVerifier resolves a token to the user id it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// RejectionRecorder counts requests turned away by the auth gate.
type RejectionRecorder interface {
	RecordAuthRejection(reason string)
}

// RequireAuth rejects requests without a valid token and injects the
// token's user id into the request context. It never reads persistence.
// recorder may be nil.
func RequireAuth(verifier TokenVerifier, recorder RejectionRecorder) func(http.Handler) http.Handler {
	reject := func(w http.ResponseWriter, reason, message string) {
		if recorder != nil {
			recorder.RecordAuthRejection(reason)
		}
		writeError(w, http.StatusUnauthorized, message)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(TokenHeader))
			if token == "" {
				reject(w, metrics.ReasonMissingToken, noTokenMessage)
				return
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				reject(w, metrics.ReasonInvalidToken, invalidTokenMessage)
				return
			}

			logger.SetUserID(r.Context(), subject)
			ctx := context.WithValue(r.Context(), contextSubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthHandler provides login and current-user endpoints.
type AuthHandler struct {
	userService *services.UserService
	logger      *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, authMiddleware func(http.Handler) http.Handler, logger *slog.Logger) {
	handler := NewAuthHandler(userService, logger)

	r.Post("/", handler.Login)
	r.With(authMiddleware).Get("/", handler.Me)
}

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if err := decodeRequest(r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	token, err := h.userService.Login(r.Context(), req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// Me returns the authenticated user without the password hash.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	user, err := h.userService.Me(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type TokenResponse struct {
	Token string `json:"token"`
}
