// Package nats publishes engagement events to a NATS JetStream stream.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jsamuelsen/quote-feed/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quote-feed/internal/domain"
	"github.com/jsamuelsen/quote-feed/internal/ports"
)

// Message headers set on every event.
const (
	HeaderEventKey      = "Event-Key"
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// Config holds connection and stream settings.
type Config struct {
	URL            string
	Stream         string
	Subjects       []string
	PublishTimeout time.Duration
}

// Publisher implements ports.EventPublisher.
type Publisher struct {
	cfg    Config
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Publisher {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "events.nats")),
	}
}

// Open connects and creates or updates the stream. Reconnects are handled by
// the client for the lifetime of the connection.
func (p *Publisher) Open(ctx context.Context) error {
	conn, err := nats.Connect(p.cfg.URL,
		nats.Name("quote-feed"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.logger.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			p.logger.Info("nats reconnected", slog.String("url", c.ConnectedUrlRedacted()))
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", domain.NewUnavailableError("nats", err.Error()))
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating jetstream context: %w", err)
	}

	if err := ensureStream(ctx, js, &nats.StreamConfig{
		Name:     p.cfg.Stream,
		Subjects: p.cfg.Subjects,
		Storage:  nats.FileStorage,
		Replicas: 1,
	}); err != nil {
		conn.Close()
		return err
	}

	p.conn, p.js = conn, js

	return nil
}

func ensureStream(ctx context.Context, js nats.JetStreamContext, cfg *nats.StreamConfig) error {
	_, err := js.StreamInfo(cfg.Name, nats.Context(ctx))

	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, err := js.AddStream(cfg, nats.Context(ctx)); err != nil {
			return fmt.Errorf("creating stream %s: %w", cfg.Name, err)
		}
	case err != nil:
		return fmt.Errorf("looking up stream %s: %w", cfg.Name, err)
	default:
		if _, err := js.UpdateStream(cfg, nats.Context(ctx)); err != nil {
			return fmt.Errorf("updating stream %s: %w", cfg.Name, err)
		}
	}

	return nil
}

// Close flushes pending publishes.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}

	return p.conn.Drain()
}

// Name implements ports.HealthChecker.
func (p *Publisher) Name() string { return "events" }

// Optional marks event delivery as non-critical for readiness.
func (p *Publisher) Optional() bool { return true }

func (p *Publisher) Check(context.Context) error {
	if p.conn == nil || !p.conn.IsConnected() {
		return domain.NewUnavailableError("nats", "not connected")
	}

	return nil
}

// Publish waits for the stream's ack, bounded by PublishTimeout.
func (p *Publisher) Publish(ctx context.Context, event ports.Event) error {
	if p.js == nil {
		return domain.NewUnavailableError("nats", "not connected")
	}

	msg, err := newMsg(ctx, event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()

	ack, err := p.js.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("publishing %s: %w", msg.Subject, unavailable(err))
	}

	p.logger.DebugContext(ctx, "event published",
		slog.String("subject", msg.Subject),
		slog.String("stream", ack.Stream),
		slog.Uint64("seq", ack.Sequence))

	return nil
}

// newMsg serializes the payload and carries the event key, request ids and
// trace context as headers.
func newMsg(ctx context.Context, event ports.Event) (*nats.Msg, error) {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", event.EventType(), err)
	}

	msg := nats.NewMsg(event.EventType())
	msg.Data = data
	msg.Header.Set(HeaderEventKey, event.Key())

	if id := middleware.RequestIDFromContext(ctx); id != "" {
		msg.Header.Set(HeaderRequestID, id)
	}

	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		msg.Header.Set(HeaderCorrelationID, id)
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(http.Header(msg.Header)))

	return msg, nil
}

// unavailable classifies connection-level failures as domain.ErrUnavailable.
func unavailable(err error) error {
	switch {
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrNoResponders),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return domain.NewUnavailableError("nats", err.Error())
	default:
		return err
	}
}
