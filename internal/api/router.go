package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vtuberlab/voicebot/internal/database"
	"github.com/vtuberlab/voicebot/internal/events"
	mw "github.com/vtuberlab/voicebot/internal/middleware"
)

// RouterConfig holds configuration for the router. Pool and Publisher are
// optional; a nil value drops the corresponding readiness check.
type RouterConfig struct {
	CORSAllowedOrigins []string
	ConnectRateLimiter func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, publisher *events.Publisher, cfg RouterConfig, wsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	rootHandler := func(w http.ResponseWriter, r *http.Request) {
		JSONMessage(w, http.StatusOK, "voicebot backend is running")
	}
	r.Get("/", rootHandler)
	r.Get("/health", rootHandler)

	// Liveness probe: always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe: checks the optional backends
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}
		status := http.StatusOK

		if pool != nil {
			if err := database.HealthCheck(r.Context(), pool); err != nil {
				health["database"] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		} else {
			health["database"] = "not configured"
		}

		if publisher != nil {
			if !publisher.Healthy() {
				health["nats"] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		} else {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket endpoint
	if cfg.ConnectRateLimiter != nil {
		r.With(cfg.ConnectRateLimiter).Get("/ws", wsHandler.ServeHTTP)
	} else {
		r.Get("/ws", wsHandler.ServeHTTP)
	}

	return r
}
