package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix prefixes the pub/sub channel of every side-effect kind.
const DefaultChannelPrefix = "concierge:effects:"

// Message is the JSON envelope published for each side effect.
type Message struct {
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publisher forwards side effects to Redis pub/sub, one channel per kind,
// so hand-off queues and notification workers can subscribe to what they serve.
type Publisher struct {
	client *backend.Client
	prefix string
}

// NewPublisher creates a publisher. An empty prefix selects DefaultChannelPrefix.
func NewPublisher(client *backend.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Publisher{client: client, prefix: prefix}
}

// Channel returns the channel a kind is published on.
func (p *Publisher) Channel(kind string) string {
	return p.prefix + kind
}

// Handle publishes one side effect. It matches registry.HandlerFunc.
func (p *Publisher) Handle(ctx context.Context, kind string, payload map[string]any) error {
	data, err := json.Marshal(Message{Kind: kind, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal side effect: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(kind), data).Err(); err != nil {
		return fmt.Errorf("failed to publish side effect: %w", err)
	}
	return nil
}
