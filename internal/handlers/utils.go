package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/devlink/apiserver/internal/apperr"
	"github.com/devlink/apiserver/internal/validate"
)

const maxJSONBodyBytes = 1 << 20

type contextKey string

const contextSubjectKey contextKey = "sub"

// ErrorResponse is the error payload. Errors lists every violated field
// rule when the request failed validation.
type ErrorResponse struct {
	Error  string              `json:"error"`
	Errors []apperr.FieldError `json:"errors,omitempty"`
}

// MessageResponse confirms an operation that returns no document.
type MessageResponse struct {
	Message string `json:"msg"`
}

func userIDFromContext(ctx context.Context) (string, error) {
	subject, ok := ctx.Value(contextSubjectKey).(string)
	if !ok || strings.TrimSpace(subject) == "" {
		return "", errors.New("missing subject")
	}
	return subject, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthorized, apperr.KindForbidden:
		return http.StatusUnauthorized
	case apperr.KindValidation, apperr.KindConflict:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError writes err using its kind's status. Internal causes are
// logged and never sent to the client.
func writeAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	writeAppErrorStatus(w, r, logger, err, 0)
}

// writeAppErrorStatus is writeAppError with NotFound reported as notFound
// when notFound is non-zero.
func writeAppErrorStatus(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, notFound int) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal(err)
	}

	status := statusFor(appErr.Kind)
	if appErr.Kind == apperr.KindNotFound && notFound != 0 {
		status = notFound
	}
	if appErr.Kind == apperr.KindInternal {
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", appErr.Err)
	}

	writeJSON(w, status, ErrorResponse{Error: appErr.Message, Errors: appErr.Fields})
}

// decodeRequest reads a JSON body into dst and runs its field rules.
func decodeRequest(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Invalid("invalid request body")
	}
	return validate.Struct(dst)
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
