package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/vtuberlab/voicebot/internal/api"
	"github.com/vtuberlab/voicebot/internal/config"
	"github.com/vtuberlab/voicebot/internal/database"
	"github.com/vtuberlab/voicebot/internal/emotion"
	"github.com/vtuberlab/voicebot/internal/events"
	"github.com/vtuberlab/voicebot/internal/llm"
	"github.com/vtuberlab/voicebot/internal/middleware"
	"github.com/vtuberlab/voicebot/internal/orchestrator"
	iredis "github.com/vtuberlab/voicebot/internal/redis"
	"github.com/vtuberlab/voicebot/internal/retrieval"
	"github.com/vtuberlab/voicebot/internal/server"
	"github.com/vtuberlab/voicebot/internal/session"
	"github.com/vtuberlab/voicebot/internal/tts"
	"github.com/vtuberlab/voicebot/internal/ws"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis: needed for the redis session backend and the connect limiter.
	var redisClient *goredis.Client
	if cfg.Session.Backend == "redis" || cfg.Server.ConnectRateLimit > 0 {
		redisClient, err = iredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Error("connecting to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
	}

	// Session store
	var store session.Store
	switch cfg.Session.Backend {
	case "redis":
		store = session.NewRedisStore(redisClient, cfg.Session.MaxHistory, cfg.Session.TTL)
	default:
		mem := session.NewMemoryStore(cfg.Session.MaxHistory, cfg.Session.TTL)
		mem.StartSweeper(ctx, cfg.Session.SweepInterval)
		store = mem
	}

	// Retrieval: optional, needs Postgres.
	var pool *pgxpool.Pool
	var retriever retrieval.Provider
	if cfg.Retrieval.Enabled {
		pool, err = database.NewPostgresPool(ctx, cfg.DB)
		if err != nil {
			slog.Error("connecting to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}

		embedder := retrieval.NewHTTPEmbedder(cfg.Retrieval)
		passages := retrieval.NewPassageStore(pool)
		retriever = retrieval.NewVectorProvider(embedder, passages, cfg.Retrieval.MaxPassages)
	} else {
		slog.Info("retrieval disabled, answering without context")
	}

	// Speech synthesis
	var synth tts.Synthesizer
	if cfg.TTS.Enabled {
		synth = tts.NewEngine(cfg.TTS)
	} else {
		slog.Info("speech synthesis disabled, replies are text-only")
	}

	// NATS events (optional)
	publisher, err := events.Connect(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to NATS", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	completer := llm.NewOpenRouterClient(cfg.LLM)
	orch := orchestrator.New(store, retriever, completer, synth, cfg.Prompt, publisher)

	// Transport
	registry := ws.NewRegistry()
	wsHandler := ws.NewHandler(orch, registry, cfg.Server.CORSAllowedOrigins)

	// Background emotion monitor (optional)
	if cfg.Emotion.MonitorEnabled {
		detector := emotion.NewHTTPDetector(cfg.Emotion.DetectorURL, cfg.Emotion.Timeout)
		monitor := emotion.NewMonitor(detector, registryAdapter{registry}, orch, cfg.Emotion.PollInterval)
		go monitor.Run(ctx)
	}

	routerCfg := api.RouterConfig{CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins}
	if cfg.Server.ConnectRateLimit > 0 {
		limiter := middleware.NewRateLimiter(redisClient, cfg.Server.ConnectRateLimit, cfg.Server.ConnectRateWindowSec)
		routerCfg.ConnectRateLimiter = limiter.Middleware
	}
	router := api.NewRouter(pool, publisher, routerCfg, wsHandler)

	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// registryAdapter narrows *ws.Registry to the connection view the emotion
// monitor needs.
type registryAdapter struct {
	registry *ws.Registry
}

func (a registryAdapter) Snapshot() []emotion.Conn {
	conns := a.registry.Snapshot()
	out := make([]emotion.Conn, len(conns))
	for i, c := range conns {
		out[i] = c
	}
	return out
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
