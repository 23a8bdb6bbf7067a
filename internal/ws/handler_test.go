package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtuberlab/voicebot/internal/protocol"
)

type echoHandler struct {
	proactiveOnce bool
	sentProactive bool
}

func (h *echoHandler) Handle(_ context.Context, _ string, raw []byte) (*protocol.Response, *protocol.EmotionInteraction) {
	var msg struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "text_input" {
		return nil, nil
	}

	reply := protocol.NewResponse("echo: "+msg.Content, []byte("audio"))
	if h.proactiveOnce && !h.sentProactive {
		h.sentProactive = true
		proactive := protocol.NewEmotionInteraction("sad", "are you okay?", nil)
		return &reply, &proactive
	}
	return &reply, nil
}

func dial(t *testing.T, h *Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestHandlerRoundtrip(t *testing.T) {
	registry := NewRegistry()
	conn := dial(t, NewHandler(&echoHandler{}, registry, nil))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "text_input", "content": "hello"}))

	frame := readFrame(t, conn)
	assert.Equal(t, "response", frame["type"])
	assert.Equal(t, "echo: hello", frame["text"])
	assert.NotEmpty(t, frame["audio"])
}

func TestHandlerRegistersAndUnregisters(t *testing.T) {
	registry := NewRegistry()
	conn := dial(t, NewHandler(&echoHandler{}, registry, nil))

	require.Eventually(t, func() bool { return registry.Len() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return registry.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHandlerSurvivesUnhandledFrames(t *testing.T) {
	registry := NewRegistry()
	conn := dial(t, NewHandler(&echoHandler{}, registry, nil))

	// Neither frame produces a reply, and neither closes the connection.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "text_input", "content": "still here"}))
	frame := readFrame(t, conn)
	assert.Equal(t, "echo: still here", frame["text"])
}

func TestHandlerDeliversProactiveAfterReply(t *testing.T) {
	registry := NewRegistry()
	conn := dial(t, NewHandler(&echoHandler{proactiveOnce: true}, registry, nil))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "text_input", "content": "hi"}))

	frame := readFrame(t, conn)
	assert.Equal(t, "response", frame["type"])
	frame = readFrame(t, conn)
	assert.Equal(t, "emotion_interaction", frame["type"])
	assert.Equal(t, "sad", frame["emotion"])
}

func TestHandlerRejectsDisallowedOrigin(t *testing.T) {
	registry := NewRegistry()
	srv := httptest.NewServer(NewHandler(&echoHandler{}, registry, []string{"https://app.example.com"}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)

	header = map[string][]string{"Origin": {"https://app.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestRegistrySnapshotIsCopy(t *testing.T) {
	registry := NewRegistry()
	registry.add(newConnection("a", nil))
	registry.add(newConnection("b", nil))

	snap := registry.Snapshot()
	require.Len(t, snap, 2)

	registry.remove("a")
	// The earlier snapshot is unaffected.
	assert.Len(t, snap, 2)
	assert.Equal(t, 1, registry.Len())
}
