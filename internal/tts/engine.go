// Package tts turns reply text into encoded speech audio via an
// edge-tts-compatible synthesis service.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vtuberlab/voicebot/internal/config"
	"github.com/vtuberlab/voicebot/internal/metrics"
)

// Synthesizer produces encoded audio for a piece of text. Implementations
// may return an empty slice on failure; callers forward it as-is so a
// synthesis outage degrades to text-only replies.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// DefaultVoice is used when neither an explicit voice nor a language mapping
// applies.
const DefaultVoice = "zh-CN-XiaoxiaoNeural"

var voiceByLanguage = map[string]string{
	"zh": "zh-CN-XiaoxiaoNeural",
	"en": "en-US-AriaNeural",
	"ja": "ja-JP-NanamiNeural",
	"ko": "ko-KR-SunHiNeural",
	"fr": "fr-FR-DeniseNeural",
	"de": "de-DE-KatjaNeural",
	"es": "es-ES-ElviraNeural",
	"it": "it-IT-ElsaNeural",
	"ru": "ru-RU-SvetlanaNeural",
	"pt": "pt-BR-FranciscaNeural",
}

// Engine synthesizes speech over HTTP and caches recent results by exact
// text match.
type Engine struct {
	baseURL string
	voice   string
	cache   *audioCache
	client  *http.Client
}

func NewEngine(cfg config.TTSConfig) *Engine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	voice := cfg.Voice
	if voice == "" || voice == DefaultVoice {
		if v, ok := voiceByLanguage[cfg.Language]; ok {
			voice = v
		} else {
			voice = DefaultVoice
		}
	}
	return &Engine{
		baseURL: cfg.BaseURL,
		voice:   voice,
		cache:   newAudioCache(cfg.CacheSize),
		client:  &http.Client{Timeout: timeout},
	}
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type synthesizeResponse struct {
	Audio []byte `json:"audio"`
}

func (e *Engine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = Sanitize(text)
	if text == "" {
		return nil, nil
	}

	if audio, ok := e.cache.Get(text); ok {
		metrics.TTSCacheHitsTotal.WithLabelValues("hit").Inc()
		return audio, nil
	}
	metrics.TTSCacheHitsTotal.WithLabelValues("miss").Inc()

	audio, err := e.synthesize(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Put(text, audio)
	return audio, nil
}

func (e *Engine) synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text, Voice: e.voice})
	if err != nil {
		return nil, fmt.Errorf("marshaling synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling synthesis service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("synthesis service returned %d: %s", resp.StatusCode, payload)
	}

	var parsed synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding synthesis response: %w", err)
	}
	return parsed.Audio, nil
}
