// Package ws is the WebSocket transport: one goroutine per connection, a
// registry of live connections, and thread-safe frame writes so the
// background monitor can push alongside the reply path.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vtuberlab/voicebot/internal/metrics"
	"github.com/vtuberlab/voicebot/internal/protocol"
)

const writeTimeout = 10 * time.Second

// Connection wraps one upgraded socket. The reply path and the proactive
// path write concurrently, so every write goes through writeMu.
type Connection struct {
	id string

	writeMu sync.Mutex
	ws      *websocket.Conn
}

func newConnection(id string, ws *websocket.Conn) *Connection {
	return &Connection{id: id, ws: ws}
}

func (c *Connection) ID() string { return c.id }

// SendEmotionInteraction pushes an unsolicited frame. Safe to call from any
// goroutine.
func (c *Connection) SendEmotionInteraction(msg protocol.EmotionInteraction) error {
	return c.writeJSON(msg)
}

func (c *Connection) sendResponse(msg protocol.Response) error {
	return c.writeJSON(msg)
}

func (c *Connection) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

// Registry tracks live connections for the emotion monitor. Connections add
// themselves after the upgrade and remove themselves on disconnect.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

func (r *Registry) add(c *Connection) {
	r.mu.Lock()
	r.conns[c.id] = c
	r.mu.Unlock()
	metrics.ConnectionsActive.Inc()
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	_, ok := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()
	if ok {
		metrics.ConnectionsActive.Dec()
	}
}

// Snapshot returns the live connections at this instant. Callers may hold
// the slice while connections close; sends to closed connections fail and
// are the caller's to ignore.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
