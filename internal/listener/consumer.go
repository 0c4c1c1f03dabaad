// Package listener keeps the search index in step with the record store by
// consuming record change events from NATS JetStream.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/syntrixbase/searchsync/internal/listener/config"
	"github.com/syntrixbase/searchsync/internal/metrics"
)

// SessionFactory creates the indexing session of one worker.
type SessionFactory func() Session

// delivery is a decoded message waiting for its worker.
type delivery struct {
	msg      jetstream.Msg
	event    *Event
	received time.Time
}

// Consumer consumes change events and applies them on a pool of workers.
// Events of one record always go to the same worker, so they are applied in
// the order they were published.
type Consumer struct {
	js          jetstream.JetStream
	cfg         config.Config
	handler     *Handler
	newSession  SessionFactory
	logger      *slog.Logger
	workerChans []chan delivery
	wg          sync.WaitGroup

	// Shutdown coordination
	closing       atomic.Bool
	inFlightCount atomic.Int32
}

// NewConsumer creates a Consumer on a NATS connection.
func NewConsumer(nc *nats.Conn, handler *Handler, newSession SessionFactory, cfg config.Config, logger *slog.Logger) (*Consumer, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection cannot be nil")
	}
	js, err := jetStreamNew(nc)
	if err != nil {
		return nil, err
	}
	return NewConsumerFromJS(js, handler, newSession, cfg, logger), nil
}

// NewConsumerFromJS creates a Consumer using an existing JetStream context.
func NewConsumerFromJS(js jetstream.JetStream, handler *Handler, newSession SessionFactory, cfg config.Config, logger *slog.Logger) *Consumer {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		js:         js,
		cfg:        cfg,
		handler:    handler,
		newSession: newSession,
		logger:     logger.With("component", "listener"),
	}
}

// Start begins consuming events. It blocks until the context is cancelled,
// then drains in-flight events and stops the workers.
func (c *Consumer) Start(ctx context.Context) error {
	if err := EnsureStream(ctx, c.js, c.cfg); err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}

	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       c.cfg.Durable,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       2 * c.cfg.ProcessTimeout,
		FilterSubject: c.cfg.Subject + ".>",
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	c.workerChans = make([]chan delivery, c.cfg.Workers)
	for i := range c.workerChans {
		c.workerChans[i] = make(chan delivery, c.cfg.ChannelBufferSize)
		c.wg.Add(1)
		go c.workerLoop(ctx, i, c.newSession())
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		c.dispatch(msg)
	})
	if err != nil {
		for _, ch := range c.workerChans {
			close(ch)
		}
		c.wg.Wait()
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	defer cc.Stop()

	c.logger.Info("Listener started, waiting for events", "workers", c.cfg.Workers, "stream", c.cfg.Stream)

	<-ctx.Done()

	// Stop accepting new messages
	c.logger.Info("Stopping listener")
	c.closing.Store(true)
	cc.Stop()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), c.cfg.DrainTimeout)
	defer drainCancel()
	c.waitForDrain(drainCtx)

	for _, ch := range c.workerChans {
		close(ch)
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("All workers stopped gracefully")
	case <-time.After(c.cfg.ShutdownTimeout):
		c.logger.Warn("Shutdown timeout exceeded, some workers may still be running")
	}
	return nil
}

// waitForDrain waits for all in-flight dispatch() calls to complete.
func (c *Consumer) waitForDrain(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.inFlightCount.Load() == 0 {
			return
		}
		select {
		case <-ctx.Done():
			c.logger.Warn("Drain timeout", "inFlight", c.inFlightCount.Load())
			return
		case <-ticker.C:
		}
	}
}

func (c *Consumer) dispatch(msg jetstream.Msg) {
	c.inFlightCount.Add(1)
	defer c.inFlightCount.Add(-1)

	if c.closing.Load() {
		c.logger.Warn("Listener is closing, NAK message for redelivery")
		_ = msg.Nak()
		return
	}

	var ev Event
	if err := json.Unmarshal(msg.Data(), &ev); err != nil {
		c.logger.Error("Invalid event payload", "error", err)
		metrics.EventsProcessed.WithLabelValues("unknown", "invalid").Inc()
		_ = msg.Term()
		return
	}

	c.workerChans[c.partition(&ev)] <- delivery{msg: msg, event: &ev, received: time.Now()}
}

func (c *Consumer) partition(ev *Event) int {
	return int(xxhash.Sum64String(ev.Key().String()) % uint64(len(c.workerChans)))
}

func (c *Consumer) workerLoop(ctx context.Context, id int, s Session) {
	defer c.wg.Done()
	logger := c.logger.With("worker", id)

	for d := range c.workerChans[id] {
		err := c.process(ctx, s, d)
		metrics.EventLatency.Observe(time.Since(d.received).Seconds())
		if err == nil {
			metrics.EventsProcessed.WithLabelValues(string(d.event.Kind), "ok").Inc()
			_ = d.msg.Ack()
			continue
		}

		if IsFatal(err) {
			logger.Error("Dropping event", "row", d.event.Key(), "kind", d.event.Kind, "error", err)
			metrics.EventsProcessed.WithLabelValues(string(d.event.Kind), "dropped").Inc()
			_ = d.msg.Term()
			continue
		}
		metrics.EventsProcessed.WithLabelValues(string(d.event.Kind), "retry").Inc()
		c.retry(logger, d, err)
	}
	s.Discard()
}

func (c *Consumer) process(ctx context.Context, s Session, d delivery) error {
	procCtx, cancel := context.WithTimeout(ctx, c.cfg.ProcessTimeout)
	defer cancel()
	return c.handler.Apply(procCtx, s, d.event)
}

// retry asks for redelivery with exponential backoff, or terminates the
// message once it has been delivered MaxDeliver times.
func (c *Consumer) retry(logger *slog.Logger, d delivery, err error) {
	logger.Error("Failed to apply event", "row", d.event.Key(), "kind", d.event.Kind, "error", err)

	md, metaErr := d.msg.Metadata()
	if metaErr != nil {
		logger.Error("Failed to get message metadata", "error", metaErr)
		_ = d.msg.Nak()
		return
	}

	attempt := int(md.NumDelivered)
	if attempt >= c.cfg.MaxDeliver {
		logger.Error("Max attempts reached, terminating", "row", d.event.Key(), "attempts", attempt)
		_ = d.msg.Term()
		return
	}

	backoff := c.backoff(attempt)
	logger.Info("Retrying event", "row", d.event.Key(), "delay", backoff, "attempt", attempt+1, "maxAttempts", c.cfg.MaxDeliver)
	_ = d.msg.NakWithDelay(backoff)
}

func (c *Consumer) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := c.cfg.InitialBackoff
	for i := 1; i < attempt && backoff < c.cfg.MaxBackoff; i++ {
		backoff *= 2
	}
	if backoff > c.cfg.MaxBackoff {
		backoff = c.cfg.MaxBackoff
	}
	return backoff
}

// EnsureStream creates or updates the change event stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg config.Config) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject + ".>"},
		Storage:  jetstream.FileStorage,
	})
	return err
}
