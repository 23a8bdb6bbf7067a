package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis so conversations survive server
// restarts. Histories live in lists trimmed server-side; the emotion state is
// a plain key. Both expire together after the configured TTL of inactivity.
type RedisStore struct {
	client     *redis.Client
	maxHistory int
	ttl        time.Duration
}

func NewRedisStore(client *redis.Client, maxHistory int, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, maxHistory: maxHistory, ttl: ttl}
}

func convKey(id string) string    { return "conv:" + id }
func emotionKey(id string) string { return "emotion:" + id }

func (s *RedisStore) GetOrCreate(ctx context.Context, id string) error {
	// Sessions are materialized by the first Append/SetEmotion; refreshing
	// the TTL here keeps an active but quiet connection alive.
	if s.ttl > 0 {
		pipe := s.client.Pipeline()
		pipe.Expire(ctx, convKey(id), s.ttl)
		pipe.Expire(ctx, emotionKey(id), s.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("refreshing session %s: %w", id, err)
		}
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, id string) ([]Entry, error) {
	vals, err := s.client.LRange(ctx, convKey(id), int64(-s.maxHistory), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", convKey(id), err)
	}

	entries := make([]Entry, 0, len(vals))
	for _, v := range vals {
		var entry Entry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			continue // skip malformed entries
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, entries ...Entry) error {
	key := convKey(id)

	pipe := s.client.Pipeline()
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling entry: %w", err)
		}
		pipe.RPush(ctx, key, string(data))
	}
	pipe.LTrim(ctx, key, int64(-s.maxHistory), -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec for %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Emotion(ctx context.Context, id string) (string, error) {
	val, err := s.client.Get(ctx, emotionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", emotionKey(id), err)
	}
	return val, nil
}

func (s *RedisStore) SetEmotion(ctx context.Context, id, emotion string) error {
	if err := s.client.Set(ctx, emotionKey(id), emotion, s.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", emotionKey(id), err)
	}
	return nil
}
