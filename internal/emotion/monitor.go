package emotion

import (
	"context"
	"log/slog"
	"time"

	"github.com/vtuberlab/voicebot/internal/protocol"
)

// Conn is one live connection the monitor can push to. The transport owns
// delivery; a send to a closed connection returns an error the monitor only
// logs.
type Conn interface {
	ID() string
	SendEmotionInteraction(msg protocol.EmotionInteraction) error
}

// Registry enumerates live connections. Snapshot returns a point-in-time
// copy; connections may close while the monitor iterates it.
type Registry interface {
	Snapshot() []Conn
}

// Interactor is the piece of the pipeline the monitor drives: emotion state
// per connection plus the transition-gated interaction builder.
type Interactor interface {
	LastEmotion(ctx context.Context, connID string) string
	RecordEmotion(ctx context.Context, connID, emotion string)
	EmotionInteraction(ctx context.Context, connID, emotion string) *protocol.EmotionInteraction
}

// Monitor polls the detector for every live connection and pushes an
// interaction on each transition into a distress emotion. State is kept in
// the session store, so the monitor and the client's own emotion_update
// frames gate against the same transitions.
type Monitor struct {
	detector   Detector
	registry   Registry
	interactor Interactor
	interval   time.Duration
}

func NewMonitor(detector Detector, registry Registry, interactor Interactor, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		detector:   detector,
		registry:   registry,
		interactor: interactor,
		interval:   interval,
	}
}

// Run polls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	slog.Info("emotion monitor started", "interval", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("emotion monitor stopped")
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	for _, conn := range m.registry.Snapshot() {
		if ctx.Err() != nil {
			return
		}
		m.pollConn(ctx, conn)
	}
}

func (m *Monitor) pollConn(ctx context.Context, conn Conn) {
	emotion, err := m.detector.Detect(ctx, conn.ID())
	if err != nil {
		slog.Warn("emotion detection failed", "conn", conn.ID(), "error", err)
		return
	}
	if emotion == "" {
		return
	}

	previous := m.interactor.LastEmotion(ctx, conn.ID())
	m.interactor.RecordEmotion(ctx, conn.ID(), emotion)
	if previous == emotion {
		return
	}

	interaction := m.interactor.EmotionInteraction(ctx, conn.ID(), emotion)
	if interaction == nil {
		return
	}
	if err := conn.SendEmotionInteraction(*interaction); err != nil {
		// The connection likely closed between the snapshot and the send.
		slog.Debug("proactive send failed", "conn", conn.ID(), "error", err)
	}
}
