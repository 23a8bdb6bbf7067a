package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8000},
		DB: DBConfig{
			Host: "localhost", Port: 5432, User: "voicebot",
			Password: "secret", Name: "voicebot", SSLMode: "disable", MaxConns: 10,
		},
		Redis:   RedisConfig{Host: "localhost", Port: 6379},
		Session: SessionConfig{Backend: "memory", MaxHistory: 20, TTL: 24 * time.Hour, SweepInterval: 10 * time.Minute},
		Retrieval: RetrievalConfig{
			Enabled: true, MaxPassages: 4, EmbedDim: 384,
			EmbedURL: "http://localhost:8090", Timeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL: "https://openrouter.ai/api/v1", APIKey: "key",
			Model: "deepseek/deepseek-chat-v3-0324:free", MaxTokens: 1000,
			Temperature: 0.7, Timeout: 60 * time.Second, MaxRetries: 2,
		},
		Prompt: PromptConfig{
			Persona:  DefaultPersona,
			Template: DefaultTemplate,
			Apology:  DefaultApology,
		},
		TTS: TTSConfig{
			Enabled: true, BaseURL: "http://localhost:8080",
			Voice: "zh-CN-XiaoxiaoNeural", Language: "zh",
			Timeout: 15 * time.Second, CacheSize: 100,
		},
		Emotion: EmotionConfig{PollInterval: 5 * time.Second, Timeout: 5 * time.Second},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_BadServerPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 70000
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Fatalf("expected SERVER_PORT error, got: %v", err)
	}
}

func TestValidate_UnknownSessionBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Session.Backend = "dynamo"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SESSION_BACKEND") {
		t.Fatalf("expected SESSION_BACKEND error, got: %v", err)
	}
}

func TestValidate_HistoryTooSmall(t *testing.T) {
	cfg := validConfig()
	cfg.Session.MaxHistory = 1
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SESSION_MAX_HISTORY") {
		t.Fatalf("expected SESSION_MAX_HISTORY error, got: %v", err)
	}
}

func TestValidate_TemplateMissingQuestion(t *testing.T) {
	cfg := validConfig()
	cfg.Prompt.Template = "answer using {context} only"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "{question}") {
		t.Fatalf("expected template placeholder error, got: %v", err)
	}
}

func TestValidate_TemplateMissingContext(t *testing.T) {
	cfg := validConfig()
	cfg.Prompt.Template = "the question is {question}"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "{context}") {
		t.Fatalf("expected template placeholder error, got: %v", err)
	}
}

func TestValidate_TemperatureOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.Temperature = 3.5
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "LLM_TEMPERATURE") {
		t.Fatalf("expected LLM_TEMPERATURE error, got: %v", err)
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Session.Backend = "flat-file"
	cfg.LLM.MaxTokens = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"SERVER_PORT", "SESSION_BACKEND", "LLM_MAX_TOKENS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in error, got: %v", want, err)
		}
	}
}

func TestValidate_MonitorNeedsInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Emotion.MonitorEnabled = true
	cfg.Emotion.PollInterval = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "EMOTION_POLL_INTERVAL") {
		t.Fatalf("expected EMOTION_POLL_INTERVAL error, got: %v", err)
	}
}
