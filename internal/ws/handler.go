package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vtuberlab/voicebot/internal/protocol"
)

const maxFrameBytes = 64 * 1024

// MessageHandler turns one inbound frame into at most one reply and at most
// one out-of-band frame.
type MessageHandler interface {
	Handle(ctx context.Context, connID string, raw []byte) (*protocol.Response, *protocol.EmotionInteraction)
}

// Handler upgrades /ws requests and runs the per-connection loop. Frames on
// one connection are processed strictly in order: the next read does not
// start until the previous reply is written.
type Handler struct {
	handler  MessageHandler
	registry *Registry
	upgrader websocket.Upgrader
}

func NewHandler(handler MessageHandler, registry *Registry, allowedOrigins []string) *Handler {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return &Handler{
		handler:  handler,
		registry: registry,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					// Non-browser clients send no Origin header.
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.Debug("websocket upgrade rejected", "remote", r.RemoteAddr, "error", err)
		return
	}
	sock.SetReadLimit(maxFrameBytes)

	conn := newConnection(uuid.NewString(), sock)
	h.registry.add(conn)
	slog.Info("connection opened", "conn", conn.id, "remote", r.RemoteAddr)

	defer func() {
		h.registry.remove(conn.id)
		_ = sock.Close()
		slog.Info("connection closed", "conn", conn.id)
	}()

	h.readLoop(r.Context(), conn)
}

func (h *Handler) readLoop(ctx context.Context, conn *Connection) {
	for {
		messageType, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("connection read failed", "conn", conn.id, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		reply, proactive := h.handler.Handle(ctx, conn.id, raw)
		if reply != nil {
			if err := conn.sendResponse(*reply); err != nil {
				// The client went away mid-exchange. The session survives;
				// the reply does not.
				slog.Warn("dropping reply, write failed", "conn", conn.id, "error", err)
				return
			}
		}
		if proactive != nil {
			if err := conn.SendEmotionInteraction(*proactive); err != nil {
				slog.Warn("dropping emotion interaction, write failed", "conn", conn.id, "error", err)
				return
			}
		}
	}
}
