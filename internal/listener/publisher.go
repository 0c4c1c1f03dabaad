package listener

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/syntrixbase/searchsync/internal/listener/config"
)

// Publisher publishes record change events.
type Publisher struct {
	js  jetstream.JetStream
	cfg config.Config
}

// NewPublisher creates a Publisher on a NATS connection and makes sure the
// event stream exists.
func NewPublisher(ctx context.Context, nc *nats.Conn, cfg config.Config) (*Publisher, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection cannot be nil")
	}
	js, err := jetStreamNew(nc)
	if err != nil {
		return nil, err
	}
	p := NewPublisherFromJS(js, cfg)
	if err := EnsureStream(ctx, js, p.cfg); err != nil {
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}
	return p, nil
}

// NewPublisherFromJS creates a Publisher using an existing JetStream context.
func NewPublisherFromJS(js jetstream.JetStream, cfg config.Config) *Publisher {
	cfg.ApplyDefaults()
	return &Publisher{js: js, cfg: cfg}
}

// Publish validates ev and publishes it to <subject>.<table>.<kind>.
func (p *Publisher) Publish(ctx context.Context, ev *Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ctx, ev.Subject(p.cfg.Subject), data,
		jetstream.WithExpectStream(p.cfg.Stream), jetstream.WithRetryAttempts(3))
	if err != nil {
		return fmt.Errorf("failed to publish %s event for %s: %w", ev.Kind, ev.Key(), err)
	}
	return nil
}
