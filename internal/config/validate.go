package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for problems that would break the pipeline at
// runtime. It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	switch c.Session.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("SESSION_BACKEND must be memory or redis, got %q", c.Session.Backend))
	}
	if c.Session.MaxHistory < 2 {
		errs = append(errs, fmt.Sprintf("SESSION_MAX_HISTORY must be at least 2, got %d", c.Session.MaxHistory))
	}
	if c.Session.TTL < 0 {
		errs = append(errs, "SESSION_TTL must not be negative")
	}

	if !strings.Contains(c.Prompt.Template, "{question}") {
		errs = append(errs, "PROMPT_TEMPLATE must contain the {question} placeholder")
	}
	if !strings.Contains(c.Prompt.Template, "{context}") {
		errs = append(errs, "PROMPT_TEMPLATE must contain the {context} placeholder")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("LLM_TEMPERATURE must be 0–2, got %g", c.LLM.Temperature))
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("LLM_MAX_TOKENS must be positive, got %d", c.LLM.MaxTokens))
	}

	if c.Retrieval.Enabled && c.Retrieval.EmbedDim < 1 {
		errs = append(errs, fmt.Sprintf("RETRIEVAL_EMBED_DIM must be positive, got %d", c.Retrieval.EmbedDim))
	}
	if c.Emotion.MonitorEnabled && c.Emotion.PollInterval <= 0 {
		errs = append(errs, "EMOTION_POLL_INTERVAL must be positive when the monitor is enabled")
	}

	// API key absence degrades every exchange to the apology reply; warn only.
	if c.LLM.APIKey == "" {
		slog.Warn("LLM_API_KEY is empty, completions will fail and clients get the apology reply")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
