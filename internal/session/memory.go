package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vtuberlab/voicebot/internal/metrics"
)

type memorySession struct {
	history    []Entry
	emotion    string
	lastActive time.Time
}

// MemoryStore is the default in-process Store. Each connection mutates only
// its own entry, so a single RWMutex around the map is enough.
type MemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]*memorySession
	maxHistory int
	ttl        time.Duration
	now        func() time.Time
}

// NewMemoryStore creates an in-memory store trimming histories to maxHistory
// entries. Sessions idle longer than ttl are removed by the sweeper; ttl 0
// disables eviction entirely.
func NewMemoryStore(maxHistory int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]*memorySession),
		maxHistory: maxHistory,
		ttl:        ttl,
		now:        time.Now,
	}
}

func (s *MemoryStore) GetOrCreate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(id)
	return nil
}

// touch must be called with the write lock held.
func (s *MemoryStore) touch(id string) *memorySession {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &memorySession{}
		s.sessions[id] = sess
		metrics.SessionsActive.Set(float64(len(s.sessions)))
	}
	sess.lastActive = s.now()
	return sess
}

func (s *MemoryStore) History(_ context.Context, id string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	out := make([]Entry, len(sess.history))
	copy(out, sess.history)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, id string, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.touch(id)
	sess.history = append(sess.history, entries...)
	if n := len(sess.history); n > s.maxHistory {
		sess.history = append(sess.history[:0:0], sess.history[n-s.maxHistory:]...)
	}
	return nil
}

func (s *MemoryStore) Emotion(_ context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return "", nil
	}
	return sess.emotion, nil
}

func (s *MemoryStore) SetEmotion(_ context.Context, id, emotion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(id).emotion = emotion
	return nil
}

// StartSweeper evicts idle sessions every interval until ctx is cancelled.
// It is a no-op when the store has no TTL.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.sweep(); n > 0 {
					slog.Debug("evicted idle sessions", "count", n)
				}
			}
		}
	}()
}

func (s *MemoryStore) sweep() int {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastActive.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		metrics.SessionsActive.Set(float64(len(s.sessions)))
	}
	return removed
}
