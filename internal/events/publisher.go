// Package events publishes exchange telemetry to NATS JetStream. The
// publisher is optional: a nil *Publisher is valid and drops everything.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/vtuberlab/voicebot/internal/config"
)

type Publisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Connect dials NATS and ensures the events stream exists. Returns (nil, nil)
// when no URL is configured.
func Connect(ctx context.Context, cfg config.NATSConfig) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	nc, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"voicebot.events.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensuring events stream: %w", err)
	}

	slog.Info("connected to NATS", "url", cfg.URL)
	return &Publisher{conn: nc, js: js}, nil
}

// ExchangeCompleted publishes an exchange event. Publish failures are logged,
// never returned: telemetry must not affect the exchange.
func (p *Publisher) ExchangeCompleted(ctx context.Context, ev ExchangeCompleted) {
	p.publish(ctx, SubjectExchange, ev)
}

// EmotionInteractionSent publishes a proactive-interaction event.
func (p *Publisher) EmotionInteractionSent(ctx context.Context, ev EmotionInteractionSent) {
	p.publish(ctx, SubjectEmotion, ev)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("marshaling event", "subject", subject, "error", err)
		return
	}
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		slog.Warn("publishing event", "subject", subject, "error", err)
	}
}

// Healthy reports whether the NATS connection is up. A nil publisher is
// healthy: publishing is simply disabled.
func (p *Publisher) Healthy() bool {
	if p == nil {
		return true
	}
	return p.conn.IsConnected()
}

// Close drains and closes the NATS connection. Safe on nil.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		slog.Warn("draining NATS connection", "error", err)
	}
}
