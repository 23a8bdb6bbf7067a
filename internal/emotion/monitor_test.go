package emotion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtuberlab/voicebot/internal/protocol"
)

type fakeDetector struct {
	mu       sync.Mutex
	readings map[string]string
	err      error
}

func (d *fakeDetector) Detect(_ context.Context, connID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	return d.readings[connID], nil
}

func (d *fakeDetector) set(connID, emotion string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readings[connID] = emotion
}

type fakeConn struct {
	id      string
	mu      sync.Mutex
	sent    []protocol.EmotionInteraction
	sendErr error
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) SendEmotionInteraction(msg protocol.EmotionInteraction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type fakeRegistry struct {
	conns []Conn
}

func (r *fakeRegistry) Snapshot() []Conn { return append([]Conn(nil), r.conns...) }

type fakeInteractor struct {
	mu    sync.Mutex
	state map[string]string
	built []string
}

func newFakeInteractor() *fakeInteractor {
	return &fakeInteractor{state: make(map[string]string)}
}

func (f *fakeInteractor) LastEmotion(_ context.Context, connID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[connID]
}

func (f *fakeInteractor) RecordEmotion(_ context.Context, connID, emotion string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[connID] = emotion
}

func (f *fakeInteractor) EmotionInteraction(_ context.Context, connID, emotion string) *protocol.EmotionInteraction {
	f.mu.Lock()
	f.built = append(f.built, connID+":"+emotion)
	f.mu.Unlock()
	if emotion != "sad" && emotion != "angry" {
		return nil
	}
	out := protocol.NewEmotionInteraction(emotion, "checking in", nil)
	return &out
}

func TestPollSendsOnTransitionOnly(t *testing.T) {
	detector := &fakeDetector{readings: map[string]string{"c1": "sad"}}
	conn := &fakeConn{id: "c1"}
	interactor := newFakeInteractor()
	m := NewMonitor(detector, &fakeRegistry{conns: []Conn{conn}}, interactor, time.Second)

	m.poll(context.Background())
	require.Equal(t, 1, conn.sentCount())
	assert.Equal(t, "sad", conn.sent[0].Emotion)

	// Same reading again: no transition, no second send.
	m.poll(context.Background())
	assert.Equal(t, 1, conn.sentCount())

	// Recovery then relapse triggers again.
	detector.set("c1", "happy")
	m.poll(context.Background())
	assert.Equal(t, 1, conn.sentCount())
	detector.set("c1", "sad")
	m.poll(context.Background())
	assert.Equal(t, 2, conn.sentCount())
}

func TestPollIgnoresNonDistressAndEmptyReadings(t *testing.T) {
	detector := &fakeDetector{readings: map[string]string{"c1": "happy", "c2": ""}}
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}
	interactor := newFakeInteractor()
	m := NewMonitor(detector, &fakeRegistry{conns: []Conn{c1, c2}}, interactor, time.Second)

	m.poll(context.Background())
	assert.Zero(t, c1.sentCount())
	assert.Zero(t, c2.sentCount())
	// The empty reading never reaches the interactor at all.
	assert.Equal(t, []string{"c1:happy"}, interactor.built)
	assert.Equal(t, "happy", interactor.state["c1"])
	assert.Empty(t, interactor.state["c2"])
}

func TestPollSurvivesDetectorAndSendFailures(t *testing.T) {
	detector := &fakeDetector{readings: map[string]string{"c1": "sad", "c2": "sad"}}
	c1 := &fakeConn{id: "c1", sendErr: errors.New("connection closed")}
	c2 := &fakeConn{id: "c2"}
	interactor := newFakeInteractor()
	m := NewMonitor(detector, &fakeRegistry{conns: []Conn{c1, c2}}, interactor, time.Second)

	m.poll(context.Background())
	// The failed send on c1 does not stop delivery to c2.
	assert.Equal(t, 1, c2.sentCount())

	detector.err = errors.New("sidecar down")
	assert.NotPanics(t, func() { m.poll(context.Background()) })
}

func TestRunStopsOnCancel(t *testing.T) {
	detector := &fakeDetector{readings: map[string]string{}}
	m := NewMonitor(detector, &fakeRegistry{}, newFakeInteractor(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
}
