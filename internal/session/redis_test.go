package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T, maxHistory int, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, maxHistory, ttl), mr
}

func TestRedisStore_AppendAndHistory(t *testing.T) {
	store, _ := setupRedisStore(t, 20, time.Hour)
	ctx := context.Background()

	err := store.Append(ctx, "c1",
		Entry{Role: RoleUser, Content: "hello", Timestamp: time.Now()},
		Entry{Role: RoleAssistant, Content: "hi there!", Timestamp: time.Now()},
	)
	require.NoError(t, err)

	hist, err := store.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, RoleUser, hist[0].Role)
	assert.Equal(t, "hello", hist[0].Content)
	assert.Equal(t, RoleAssistant, hist[1].Role)
	assert.Equal(t, "hi there!", hist[1].Content)
}

func TestRedisStore_TrimsToBound(t *testing.T) {
	store, _ := setupRedisStore(t, 3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := store.Append(ctx, "c1", Entry{Role: RoleUser, Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	hist, err := store.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "m2", hist[0].Content)
	assert.Equal(t, "m4", hist[2].Content)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	store, mr := setupRedisStore(t, 20, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "c1", Entry{Role: RoleUser, Content: "hello"}))
	require.NoError(t, store.SetEmotion(ctx, "c1", "sad"))

	mr.FastForward(61 * time.Second)

	hist, err := store.History(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, hist)

	emo, err := store.Emotion(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, emo)
}

func TestRedisStore_EmotionOverwrites(t *testing.T) {
	store, _ := setupRedisStore(t, 20, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.SetEmotion(ctx, "c1", "sad"))
	require.NoError(t, store.SetEmotion(ctx, "c1", "angry"))

	emo, err := store.Emotion(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "angry", emo)
}

func TestRedisStore_EmptyHistoryForUnknownID(t *testing.T) {
	store, _ := setupRedisStore(t, 20, time.Hour)
	ctx := context.Background()

	hist, err := store.History(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestRedisStore_SkipsMalformedEntries(t *testing.T) {
	store, mr := setupRedisStore(t, 20, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "c1", Entry{Role: RoleUser, Content: "good"}))
	mr.Lpush(convKey("c1"), "not json")

	hist, err := store.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "good", hist[0].Content)
}

func TestRedisStore_GetOrCreateRefreshesTTL(t *testing.T) {
	store, mr := setupRedisStore(t, 20, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "c1", Entry{Role: RoleUser, Content: "hello"}))

	mr.FastForward(45 * time.Second)
	require.NoError(t, store.GetOrCreate(ctx, "c1"))
	mr.FastForward(45 * time.Second)

	hist, err := store.History(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}
