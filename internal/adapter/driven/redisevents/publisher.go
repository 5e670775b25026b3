// Package redisevents fans gateway lifecycle events out over Redis pub/sub.
package redisevents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/ericfisherdev/ingestgate/internal/domain/model"
	"github.com/ericfisherdev/ingestgate/internal/domain/port/driven"
)

// DefaultChannel is used when Config.Channel is empty.
const DefaultChannel = "ingestgate:events"

// Compile-time interface satisfaction check.
var _ driven.EventPublisher = (*Publisher)(nil)

// Config configures the Redis connection.
type Config struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	Channel      string
	WriteTimeout time.Duration
}

// Publisher implements driven.EventPublisher with PUBLISH.
type Publisher struct {
	client  *redis.Client
	channel string
	timeout time.Duration
}

// Message is the JSON payload published for each event.
type Message struct {
	Event      string            `json:"event"`
	SessionID  string            `json:"sessionId"`
	StreamPath string            `json:"streamPath,omitempty"`
	Args       map[string]string `json:"args,omitempty"`
	ReceivedAt time.Time         `json:"receivedAt"`
}

// New creates a Publisher. The connection is established lazily.
func New(cfg Config) (*Publisher, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     strings.TrimSpace(cfg.Username),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		MaxRetries:   1,
	})

	return &Publisher{client: client, channel: channel, timeout: timeout}, nil
}

// Channel returns the pub/sub channel events are published on.
func (p *Publisher) Channel() string {
	return p.channel
}

// Publish sends ev to the channel. It is bounded by the write timeout so a slow
// Redis never holds up a hook response.
func (p *Publisher) Publish(ctx context.Context, ev model.SessionEvent) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Event, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// Encode renders ev as the published JSON payload.
func Encode(ev model.SessionEvent) ([]byte, error) {
	if ev.Event == "" {
		return nil, fmt.Errorf("event type is required")
	}
	payload, err := json.Marshal(Message{
		Event:      string(ev.Event),
		SessionID:  ev.SessionID,
		StreamPath: ev.StreamPath,
		Args:       ev.Args,
		ReceivedAt: ev.ReceivedAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return payload, nil
}
