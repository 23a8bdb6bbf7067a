package tts

import "sync"

// audioCache is a bounded text→audio cache. Eviction is by insertion order:
// once full, the oldest-inserted entries go first, regardless of how often
// they were read.
type audioCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string][]byte
	order    []string
}

func newAudioCache(capacity int) *audioCache {
	return &audioCache{
		capacity: capacity,
		entries:  make(map[string][]byte, capacity),
	}
}

func (c *audioCache) Get(text string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	audio, ok := c.entries[text]
	return audio, ok
}

func (c *audioCache) Put(text string, audio []byte) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[text]; exists {
		// Refresh the value but keep the original insertion position.
		c.entries[text] = audio
		return
	}

	c.entries[text] = audio
	c.order = append(c.order, text)

	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *audioCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
