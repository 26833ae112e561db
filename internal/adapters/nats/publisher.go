package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/pkg/metrics"
)

const (
	// StreamName is the JetStream stream carrying pin and ledger events.
	StreamName = "PIN_EVENTS"
	// SubjectPrefix prefixes every event subject, e.g. "pins.confirmation.created".
	SubjectPrefix = "pins."
	// ConfirmationSubjects matches ledger events only.
	ConfirmationSubjects = SubjectPrefix + "confirmation.>"
)

// Subject returns the subject an event of type t is published on.
func Subject(t domain.PinEventType) string {
	return SubjectPrefix + string(t)
}

func connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the event stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStream(js); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

func ensureStream(js nats.JetStreamContext) error {
	cfg := &nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectPrefix + ">"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     24 * time.Hour,
		Storage:    nats.FileStorage,
		Duplicates: 2 * time.Minute,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist; update it instead
		if _, err := js.UpdateStream(cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// PublishPinEvent publishes event on its type subject.
func (p *Publisher) PublishPinEvent(ctx context.Context, event domain.PinEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msgID := fmt.Sprintf("%s:%s:%s:%d", event.Type, event.PinID, event.UserID, event.At.UnixNano())
	if _, err := p.js.Publish(Subject(event.Type), data, nats.Context(ctx), nats.MsgId(msgID)); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()
	return nil
}

// Connected reports whether the connection is currently up.
func (p *Publisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}
