//go:build integration

package integration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vtuberlab/voicebot/internal/api"
	"github.com/vtuberlab/voicebot/internal/config"
	"github.com/vtuberlab/voicebot/internal/llm"
	"github.com/vtuberlab/voicebot/internal/orchestrator"
	"github.com/vtuberlab/voicebot/internal/retrieval"
	"github.com/vtuberlab/voicebot/internal/session"
	"github.com/vtuberlab/voicebot/internal/tts"
	"github.com/vtuberlab/voicebot/internal/ws"
)

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	Store       session.Store
	Passages    *retrieval.PassageStore
	Embedder    retrieval.Embedder
}

var testEnv *TestEnv

const embedDim = 384

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:0.8.1-pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "voicebot_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/voicebot_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	m, err := migrate.New(
		fmt.Sprintf("file://%s", getMigrationsPath()),
		dsn,
	)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Stub providers: deterministic LLM, TTS and embedding backends.
	llmStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		last := ""
		if n := len(req.Messages); n > 0 {
			last = req.Messages[n-1].Content
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "reply to: " + last}},
			},
		})
	}))
	t.Cleanup(llmStub.Close)

	ttsStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"audio": base64.StdEncoding.EncodeToString([]byte("stub-audio")),
		})
	}))
	t.Cleanup(ttsStub.Close)

	embedStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]any{"embedding": stubEmbedding(text)}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	t.Cleanup(embedStub.Close)

	// Wire the pipeline the way cmd/server does.
	store := session.NewRedisStore(redisClient, 20, time.Hour)

	embedder := retrieval.NewHTTPEmbedder(config.RetrievalConfig{
		EmbedURL:   embedStub.URL,
		EmbedModel: "stub-model",
		EmbedDim:   embedDim,
		Timeout:    5 * time.Second,
	})
	passages := retrieval.NewPassageStore(pool)
	retriever := retrieval.NewVectorProvider(embedder, passages, 3)

	completer := llm.NewOpenRouterClient(config.LLMConfig{
		BaseURL:   llmStub.URL,
		Model:     "stub-model",
		MaxTokens: 100,
		Timeout:   5 * time.Second,
	})

	synth := tts.NewEngine(config.TTSConfig{
		BaseURL:   ttsStub.URL,
		Voice:     "zh-CN-XiaoxiaoNeural",
		Timeout:   5 * time.Second,
		CacheSize: 100,
	})

	prompts := config.PromptConfig{
		Persona:  config.DefaultPersona,
		Template: config.DefaultTemplate,
		Apology:  config.DefaultApology,
	}

	orch := orchestrator.New(store, retriever, completer, synth, prompts, nil)
	registry := ws.NewRegistry()
	wsHandler := ws.NewHandler(orch, registry, nil)

	router := api.NewRouter(pool, nil, api.RouterConfig{}, wsHandler)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		Store:       store,
		Passages:    passages,
		Embedder:    embedder,
	}

	return testEnv
}

// stubEmbedding maps text to a deterministic unit-ish vector so similarity
// search is reproducible: identical texts land on identical vectors.
func stubEmbedding(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, embedDim)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>33)%1000) / 1000.0
	}
	return vec
}

func getMigrationsPath() string {
	// Tests run from tests/integration; migrations live at the repo root.
	wd, _ := os.Getwd()
	return filepath.Join(wd, "..", "..", "migrations")
}
