package handlers

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/devlink/apiserver/internal/apperr"
	"github.com/devlink/apiserver/internal/services"
)

const (
	formFieldAvatar    = "avatar"
	maxMultipartMemory = services.AvatarMaxBytes + 1<<20
)

// UserHandler provides registration and avatar endpoints.
type UserHandler struct {
	userService *services.UserService
	logger      *slog.Logger
}

func NewUserHandler(userService *services.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// UserRouter registers user routes on the given router. Avatar routes are
// only registered when avatar storage is available.
func UserRouter(r chi.Router, userService *services.UserService, authMiddleware func(http.Handler) http.Handler, avatars bool, logger *slog.Logger) {
	handler := NewUserHandler(userService, logger)

	r.Post("/", handler.Register)
	if avatars {
		r.With(authMiddleware).Put("/avatar", handler.UploadAvatar)
		r.Get("/{userID}/avatar", handler.Avatar)
	}
}

// Register creates a new user account and returns a token.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeRequest(r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	token, err := h.userService.Register(r.Context(), req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// UploadAvatar stores the multipart "avatar" image as the principal's avatar.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidTokenMessage)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeAppError(w, r, h.logger, avatarError("Avatar must be at most 2 MiB"))
		return
	}

	file, _, err := r.FormFile(formFieldAvatar)
	if err != nil {
		writeAppError(w, r, h.logger, avatarError("Avatar is required"))
		return
	}
	data, err := readFileLimited(file, services.AvatarMaxBytes)
	_ = file.Close()
	if err != nil {
		writeAppError(w, r, h.logger, avatarError("Avatar must be at most 2 MiB"))
		return
	}

	user, err := h.userService.UploadAvatar(r.Context(), userID, bytes.NewReader(data), int64(len(data)), http.DetectContentType(data))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Avatar streams a previously uploaded avatar image.
func (h *UserHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	rc, err := h.userService.Avatar(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	defer rc.Close()

	data, err := readFileLimited(rc, services.AvatarMaxBytes)
	if err != nil {
		writeAppError(w, r, h.logger, apperr.Internal(errors.Join(errors.New("read avatar"), err)))
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, bytes.NewReader(data))
}

func avatarError(message string) error {
	return apperr.Validation(apperr.FieldError{Field: formFieldAvatar, Message: message})
}
