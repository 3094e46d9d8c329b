// Package events publishes domain events after state changes commit.
//
// Publishing is best effort: a failed publish is logged and never changes
// the outcome of the request that caused it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/devlink/apiserver/internal/mq"
)

const (
	UserRegistered = "user.registered"
	PostCreated    = "post.created"
	PostDeleted    = "post.deleted"
	AccountDeleted = "account.deleted"
)

const publishTimeout = 5 * time.Second

// Event is the envelope written to the queue.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Subject    string          `json:"subject"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Sender is the queue operation the publisher needs. *mq.MQ satisfies it.
type Sender interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Publisher sends events to one channel. With no sender it only logs them.
type Publisher struct {
	sender  Sender
	channel string
	logger  *slog.Logger
	now     func() time.Time
}

func NewPublisher(sender Sender, channel string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		sender:  sender,
		channel: channel,
		logger:  logger.With("component", "events"),
		now:     time.Now,
	}
}

// Publish emits an event of the given type about subject. data may be nil.
func (p *Publisher) Publish(ctx context.Context, eventType, subject string, data any) {
	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Subject:    subject,
		OccurredAt: p.now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			p.logger.Error("encode event data", "type", eventType, "subject", subject, "error", err)
			return
		}
		event.Data = raw
	}

	if p.sender == nil {
		p.logger.Info("event", "id", event.ID, "type", event.Type, "subject", event.Subject)
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("encode event", "type", eventType, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	attrs := map[string]string{
		"type":                  event.Type,
		mq.ContentTypeAttribute: "application/json",
	}
	if _, err := p.sender.Publish(ctx, p.channel, body, attrs); err != nil {
		p.logger.Error("publish event", "id", event.ID, "type", event.Type, "subject", event.Subject, "error", err)
		return
	}
	p.logger.Debug("published event", "id", event.ID, "type", event.Type, "subject", event.Subject)
}

// Decode parses a message body written by Publish.
func Decode(body []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if event.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}
	return event, nil
}
