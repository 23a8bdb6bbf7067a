package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	Session   SessionConfig
	Retrieval RetrievalConfig
	LLM       LLMConfig
	Prompt    PromptConfig
	TTS       TTSConfig
	Emotion   EmotionConfig
	NATS      NATSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string

	// ConnectRateLimit caps /ws connection attempts per IP per
	// ConnectRateWindowSec seconds. Zero disables the limiter.
	ConnectRateLimit     int
	ConnectRateWindowSec int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionConfig controls the per-connection session store.
// Backend "memory" keeps sessions in-process; "redis" persists them so a
// reconnecting client can resume across server restarts.
type SessionConfig struct {
	Backend       string
	MaxHistory    int
	TTL           time.Duration
	SweepInterval time.Duration
}

type RetrievalConfig struct {
	Enabled     bool
	MaxPassages int
	EmbedURL    string
	EmbedModel  string
	EmbedDim    int
	Timeout     time.Duration
}

type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

// PromptConfig carries the fixed strings the orchestrator assembles prompts
// from. Template must contain the {context} and {question} placeholders.
type PromptConfig struct {
	Persona  string
	Template string
	Apology  string
}

type TTSConfig struct {
	Enabled   bool
	BaseURL   string
	Voice     string
	Language  string
	Timeout   time.Duration
	CacheSize int
}

type EmotionConfig struct {
	MonitorEnabled bool
	DetectorURL    string
	PollInterval   time.Duration
	Timeout        time.Duration
}

type NATSConfig struct {
	URL string
}

type LogConfig struct {
	Level  string
	Format string
}

// DefaultPersona is the assistant's conversational character.
const DefaultPersona = "You are Nana, a helpful and friendly NQU AI assistant. " +
	"You are cheerful, supportive, and always ready to help. " +
	"Keep your responses concise and natural, as if speaking in a conversation. " +
	"You can help with information, answer questions, or just chat. " +
	"Give me short answers."

// DefaultTemplate instructs the model to answer from the retrieved context and
// to say so when the context is insufficient.
const DefaultTemplate = "根據下列資料回答問題：\n{context}\n\n使用者的問題是：{question}\n\n" +
	"請根據資料內容回覆，若資料不足請告訴同學可以請教金門大學的老師。"

// DefaultApology is the degraded reply used when the language model fails.
const DefaultApology = "I'm sorry, I encountered an error. Please try again later."

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               k.String("server.host"),
			Port:               k.Int("server.port"),
			CORSAllowedOrigins: k.Strings("server.cors.origins"),

			ConnectRateLimit:     k.Int("server.connect.rate.limit"),
			ConnectRateWindowSec: k.Int("server.connect.rate.window"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		Session: SessionConfig{
			Backend:    k.String("session.backend"),
			MaxHistory: k.Int("session.max.history"),
		},
		Retrieval: RetrievalConfig{
			Enabled:     k.Bool("retrieval.enabled"),
			MaxPassages: k.Int("retrieval.max.passages"),
			EmbedURL:    k.String("retrieval.embed.url"),
			EmbedModel:  k.String("retrieval.embed.model"),
			EmbedDim:    k.Int("retrieval.embed.dim"),
		},
		LLM: LLMConfig{
			BaseURL:     k.String("llm.base.url"),
			APIKey:      k.String("llm.api.key"),
			Model:       k.String("llm.model"),
			MaxTokens:   k.Int("llm.max.tokens"),
			Temperature: k.Float64("llm.temperature"),
			MaxRetries:  k.Int("llm.max.retries"),
		},
		Prompt: PromptConfig{
			Persona:  k.String("prompt.persona"),
			Template: k.String("prompt.template"),
			Apology:  k.String("prompt.apology"),
		},
		TTS: TTSConfig{
			Enabled:   true,
			BaseURL:   k.String("tts.base.url"),
			Voice:     k.String("tts.voice"),
			Language:  k.String("tts.language"),
			CacheSize: k.Int("tts.cache.size"),
		},
		Emotion: EmotionConfig{
			MonitorEnabled: k.Bool("emotion.monitor.enabled"),
			DetectorURL:    k.String("emotion.detector.url"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if k.Exists("tts.enabled") {
		cfg.TTS.Enabled = k.Bool("tts.enabled")
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ConnectRateWindowSec == 0 {
		cfg.Server.ConnectRateWindowSec = 60
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "voicebot"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "voicebot"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 10
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "memory"
	}
	if cfg.Session.MaxHistory == 0 {
		cfg.Session.MaxHistory = 20
	}
	if cfg.Retrieval.MaxPassages == 0 {
		cfg.Retrieval.MaxPassages = 4
	}
	if cfg.Retrieval.EmbedURL == "" {
		cfg.Retrieval.EmbedURL = "http://localhost:8090"
	}
	if cfg.Retrieval.EmbedModel == "" {
		cfg.Retrieval.EmbedModel = "intfloat/multilingual-e5-small"
	}
	if cfg.Retrieval.EmbedDim == 0 {
		cfg.Retrieval.EmbedDim = 384
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "deepseek/deepseek-chat-v3-0324:free"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1000
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}
	if cfg.Prompt.Persona == "" {
		cfg.Prompt.Persona = DefaultPersona
	}
	if cfg.Prompt.Template == "" {
		cfg.Prompt.Template = DefaultTemplate
	}
	if cfg.Prompt.Apology == "" {
		cfg.Prompt.Apology = DefaultApology
	}
	if cfg.TTS.BaseURL == "" {
		cfg.TTS.BaseURL = "http://localhost:8080"
	}
	if cfg.TTS.Voice == "" {
		cfg.TTS.Voice = "zh-CN-XiaoxiaoNeural"
	}
	if cfg.TTS.Language == "" {
		cfg.TTS.Language = "zh"
	}
	if cfg.TTS.CacheSize == 0 {
		cfg.TTS.CacheSize = 100
	}
	if cfg.Emotion.DetectorURL == "" {
		cfg.Emotion.DetectorURL = "http://localhost:8091"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"session.ttl", "24h", &cfg.Session.TTL},
		{"session.sweep.interval", "10m", &cfg.Session.SweepInterval},
		{"retrieval.timeout", "10s", &cfg.Retrieval.Timeout},
		{"llm.timeout", "60s", &cfg.LLM.Timeout},
		{"tts.timeout", "15s", &cfg.TTS.Timeout},
		{"emotion.poll.interval", "5s", &cfg.Emotion.PollInterval},
		{"emotion.timeout", "5s", &cfg.Emotion.Timeout},
	}
	for _, d := range durations {
		raw := k.String(d.key)
		if raw == "" {
			raw = d.def
		}
		*d.dest, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", d.key, err)
		}
	}

	return cfg, nil
}
