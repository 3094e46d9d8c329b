package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/devlink/apiserver/config"
)

const defaultSubscriptionSuffix = "-sub"

// PubSubClient publishes and consumes domain events over Google Cloud
// Pub/Sub. Each channel maps to a topic with one subscription per suffix.
type PubSubClient struct {
	client *pubsub.Client
	suffix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubClient dials Pub/Sub for cfg.ProjectID.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(cfg.CredentialsFile); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, err
	}

	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = defaultSubscriptionSuffix
	}
	return &PubSubClient{
		client: client,
		suffix: suffix,
		topics: make(map[string]*pubsub.Topic),
	}, nil
}

// Publish sends data to the channel's topic and waits for the server id.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	return topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: outgoingAttributes(attrs),
	}).Get(ctx)
}

// Subscribe receives from the channel's subscription until ctx ends.
// A handler error nacks the message for redelivery.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}
	sub, err := p.subscription(ctx, channel+p.suffix, topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := handler(ctx, Message{
			ID:         msg.ID,
			Data:       msg.Data,
			Attributes: incomingAttributes(msg.Attributes),
		}); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close flushes pending publishes and releases the client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for name, topic := range p.topics {
		topic.Stop()
		delete(p.topics, name)
	}
	p.mu.Unlock()
	return p.client.Close()
}

// topic returns the cached handle for channel, creating the topic on first
// use. Handles are reused so publish batching is shared across calls.
func (p *PubSubClient) topic(ctx context.Context, channel string) (*pubsub.Topic, error) {
	if strings.TrimSpace(channel) == "" {
		return nil, errors.New("pubsub channel is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if topic, ok := p.topics[channel]; ok {
		return topic, nil
	}

	topic := p.client.Topic(channel)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		if topic, err = p.client.CreateTopic(ctx, channel); err != nil {
			return nil, err
		}
	}
	p.topics[channel] = topic
	return topic, nil
}

func (p *PubSubClient) subscription(ctx context.Context, name string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return sub, nil
	}
	return p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{Topic: topic})
}

// outgoingAttributes copies attrs for the wire. Pub/Sub has no content type
// property, so the content type always travels as an attribute and falls
// back to DefaultContentType the way the AMQP backend does.
func outgoingAttributes(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs)+1)
	for key, value := range attrs {
		if key == "" {
			continue
		}
		out[key] = value
	}
	if out[ContentTypeAttribute] == "" {
		out[ContentTypeAttribute] = DefaultContentType
	}
	return out
}

// incomingAttributes copies attrs off a received message so handlers never
// share the SDK's map, and fills the content type for messages published
// by other producers.
func incomingAttributes(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs)+1)
	for key, value := range attrs {
		out[key] = value
	}
	if out[ContentTypeAttribute] == "" {
		out[ContentTypeAttribute] = DefaultContentType
	}
	return out
}
