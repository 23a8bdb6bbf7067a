// Package session holds per-connection conversational state: an ordered,
// bounded message history and the latest reported emotion.
package session

import (
	"context"
	"time"
)

// Roles of history entries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Entry is a single message in a conversation history.
type Entry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store maps a connection identity to its session. Sessions are created
// lazily and are NOT removed on disconnect, so a client reconnecting under
// the same identity resumes its conversation. Histories are trimmed to the
// most recent MaxHistory entries on every append, oldest first.
type Store interface {
	// GetOrCreate ensures a session exists for id and marks it active.
	GetOrCreate(ctx context.Context, id string) error
	// History returns the session's entries in insertion order.
	History(ctx context.Context, id string) ([]Entry, error)
	// Append adds entries and trims the history to the configured bound.
	Append(ctx context.Context, id string, entries ...Entry) error
	// Emotion returns the latest recorded emotion, or "" if none.
	Emotion(ctx context.Context, id string) (string, error)
	// SetEmotion overwrites the session's emotion state.
	SetEmotion(ctx context.Context, id, emotion string) error
}
