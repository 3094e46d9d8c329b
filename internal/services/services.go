package services

import (
	"context"
	"errors"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/devlink/apiserver/internal/apperr"
)

// EventPublisher emits domain events after a change has been stored.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, subject string, data any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, string, any) {}

// textPolicy strips every HTML element from user-written text.
var textPolicy = bluemonday.StrictPolicy()

func cleanText(value string) string {
	return strings.TrimSpace(textPolicy.Sanitize(value))
}

// asAppError passes *apperr.Error values through and wraps anything else
// as an internal failure.
func asAppError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Internal(err)
}
