package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "addrfmt.dataset.refreshed"

// RefreshEvent announces that the stored dataset changed.
type RefreshEvent struct {
	Source    string    `json:"source"`
	Countries int       `json:"countries"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Publisher announces dataset refreshes.
type Publisher interface {
	PublishRefresh(ctx context.Context, ev RefreshEvent) error
	Close()
}

// DecodeRefresh parses an event payload.
func DecodeRefresh(data []byte) (RefreshEvent, error) {
	var ev RefreshEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return RefreshEvent{}, fmt.Errorf("failed to decode refresh event: %w", err)
	}
	return ev, nil
}

// Bus publishes and subscribes to refresh events over NATS.
type Bus struct {
	nc      *nats.Conn
	subject string
	logger  *slog.Logger
}

// Connect dials the NATS server at url. Reconnects are retried forever.
func Connect(url, subject string, logger *slog.Logger) (*Bus, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	logger = logger.With(slog.String("component", "events"))

	nc, err := nats.Connect(url,
		nats.Name("addrfmt"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &Bus{nc: nc, subject: subject, logger: logger}, nil
}

// PublishRefresh sends ev and waits for the server to acknowledge the flush.
func (b *Bus) PublishRefresh(ctx context.Context, ev RefreshEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode refresh event: %w", err)
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		return fmt.Errorf("failed to publish refresh event: %w", err)
	}
	if err := b.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush refresh event: %w", err)
	}
	return nil
}

// SubscribeRefresh calls fn for every refresh event received.
func (b *Bus) SubscribeRefresh(fn func(RefreshEvent)) (*nats.Subscription, error) {
	sub, err := b.nc.Subscribe(b.subject, RefreshHandler(b.logger, fn))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.subject, err)
	}
	return sub, nil
}

// Close drains pending messages and closes the connection.
func (b *Bus) Close() {
	if err := b.nc.Drain(); err != nil {
		b.logger.Warn("nats drain failed", slog.String("error", err.Error()))
	}
}

// RefreshHandler decodes messages and passes valid events to fn.
// Malformed payloads are logged and dropped.
func RefreshHandler(logger *slog.Logger, fn func(RefreshEvent)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		ev, err := DecodeRefresh(msg.Data)
		if err != nil {
			logger.Warn("dropping refresh event", slog.String("subject", msg.Subject), slog.String("error", err.Error()))
			return
		}
		fn(ev)
	}
}

// NopPublisher discards events. It is used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishRefresh(ctx context.Context, ev RefreshEvent) error { return nil }
func (NopPublisher) Close()                                                   {}
