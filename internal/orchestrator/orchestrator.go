// Package orchestrator runs the per-message pipeline: retrieval-augmented
// prompt assembly, completion, history update, speech synthesis. Every
// provider fault degrades to a usable reply; only the transport can end an
// exchange without one.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/vtuberlab/voicebot/internal/config"
	"github.com/vtuberlab/voicebot/internal/events"
	"github.com/vtuberlab/voicebot/internal/llm"
	"github.com/vtuberlab/voicebot/internal/metrics"
	"github.com/vtuberlab/voicebot/internal/protocol"
	"github.com/vtuberlab/voicebot/internal/retrieval"
	"github.com/vtuberlab/voicebot/internal/session"
	"github.com/vtuberlab/voicebot/internal/tts"
)

// Orchestrator handles decoded client frames for one process. All
// collaborators are injected; retriever, synth and publisher may be nil,
// which disables the corresponding stage.
type Orchestrator struct {
	store     session.Store
	retriever retrieval.Provider
	completer llm.Client
	synth     tts.Synthesizer
	prompts   config.PromptConfig
	publisher *events.Publisher
	now       func() time.Time
}

func New(
	store session.Store,
	retriever retrieval.Provider,
	completer llm.Client,
	synth tts.Synthesizer,
	prompts config.PromptConfig,
	publisher *events.Publisher,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		retriever: retriever,
		completer: completer,
		synth:     synth,
		prompts:   prompts,
		publisher: publisher,
		now:       time.Now,
	}
}

// Handle turns one raw client frame into at most one reply frame and at most
// one out-of-band frame. The reply (if any) belongs to the strict
// request/reply ordering of the connection; the proactive frame does not.
func (o *Orchestrator) Handle(ctx context.Context, connID string, raw []byte) (reply *protocol.Response, proactive *protocol.EmotionInteraction) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		// Unknown and malformed frames are ignored; the connection stays open.
		slog.Warn("ignoring inbound frame", "conn", connID, "error", err)
		metrics.MessagesTotal.WithLabelValues("invalid").Inc()
		return nil, nil
	}

	metrics.MessagesTotal.WithLabelValues(msg.Type).Inc()

	switch msg.Type {
	case protocol.TypeTextInput:
		r := o.handleText(ctx, connID, msg.Content)
		return &r, nil
	case protocol.TypeEmotionUpdate:
		return nil, o.handleEmotion(ctx, connID, msg.Emotion)
	}
	return nil, nil
}

// handleText runs the full pipeline. It always produces a response: provider
// faults degrade the content, never suppress the reply.
func (o *Orchestrator) handleText(ctx context.Context, connID, content string) protocol.Response {
	start := o.now()
	ev := events.ExchangeCompleted{ConnectionID: connID, QuestionChars: len([]rune(content))}

	if err := o.store.GetOrCreate(ctx, connID); err != nil {
		slog.Warn("session store unavailable", "conn", connID, "error", err)
	}

	// Retrieval fails open: an error or an empty result both mean "no context".
	var passages []string
	if o.retriever != nil {
		var err error
		passages, err = o.retriever.Search(ctx, content)
		if err != nil {
			slog.Warn("retrieval failed, continuing without context", "conn", connID, "error", err)
			metrics.ProviderFaultsTotal.WithLabelValues("retrieval").Inc()
			ev.RetrievalFailed = true
			passages = nil
		}
	}
	ev.Passages = len(passages)

	// The augmented prompt, not the raw question, is what the session keeps
	// and replays on later turns.
	prompt := buildPrompt(o.prompts.Template, passages, content)
	userEntry := session.Entry{Role: session.RoleUser, Content: prompt, Timestamp: o.now()}

	history := o.appendAndLoad(ctx, connID, userEntry)

	reply, err := o.completer.Complete(ctx, o.prompts.Persona, toMessages(history))
	if err != nil {
		slog.Error("completion failed, replying with apology", "conn", connID, "error", err)
		metrics.ProviderFaultsTotal.WithLabelValues("llm").Inc()
		ev.CompletionFailed = true
		// The apology is recorded as the assistant's reply, not an error
		// marker, so the conversation keeps alternating.
		reply = o.prompts.Apology
	}

	assistantEntry := session.Entry{Role: session.RoleAssistant, Content: reply, Timestamp: o.now()}
	if err := o.store.Append(ctx, connID, assistantEntry); err != nil {
		slog.Warn("appending assistant reply", "conn", connID, "error", err)
	}

	audio := o.synthesize(ctx, connID, reply, &ev)

	ev.ReplyChars = len([]rune(reply))
	ev.Duration = o.now().Sub(start)
	ev.Timestamp = o.now()
	metrics.ExchangeDuration.Observe(ev.Duration.Seconds())
	o.publisher.ExchangeCompleted(ctx, ev)

	out := protocol.NewResponse(reply, audio)
	return out
}

// appendAndLoad persists the user entry and returns the trimmed history the
// model should see. When the store is unreachable the turn still proceeds
// with just the current prompt.
func (o *Orchestrator) appendAndLoad(ctx context.Context, connID string, entry session.Entry) []session.Entry {
	if err := o.store.Append(ctx, connID, entry); err != nil {
		slog.Warn("appending user prompt", "conn", connID, "error", err)
		return []session.Entry{entry}
	}
	history, err := o.store.History(ctx, connID)
	if err != nil || len(history) == 0 {
		if err != nil {
			slog.Warn("loading history", "conn", connID, "error", err)
		}
		return []session.Entry{entry}
	}
	return history
}

// handleEmotion overwrites the session's emotion state and, on a transition
// into a distress emotion, produces a proactive interaction. History is never
// touched.
func (o *Orchestrator) handleEmotion(ctx context.Context, connID, emotion string) *protocol.EmotionInteraction {
	previous, err := o.store.Emotion(ctx, connID)
	if err != nil {
		slog.Warn("reading emotion state", "conn", connID, "error", err)
	}
	if err := o.store.SetEmotion(ctx, connID, emotion); err != nil {
		slog.Warn("storing emotion state", "conn", connID, "error", err)
	}

	if previous == emotion {
		return nil
	}
	return o.EmotionInteraction(ctx, connID, emotion)
}

// EmotionInteraction builds the unsolicited frame for a distress emotion, or
// nil for emotions outside the lookup table. The completion runs with an
// empty history so the interaction cannot leak into or corrupt the
// conversation.
func (o *Orchestrator) EmotionInteraction(ctx context.Context, connID, emotion string) *protocol.EmotionInteraction {
	prompt, ok := emotionPrompts[emotion]
	if !ok {
		return nil
	}

	text, err := o.completer.Complete(ctx, o.prompts.Persona, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		slog.Error("emotion interaction completion failed", "conn", connID, "emotion", emotion, "error", err)
		metrics.ProviderFaultsTotal.WithLabelValues("llm").Inc()
		return nil
	}

	audio := o.synthesize(ctx, connID, text, nil)

	metrics.EmotionInteractionsTotal.Inc()
	o.publisher.EmotionInteractionSent(ctx, events.EmotionInteractionSent{
		ConnectionID: connID,
		Emotion:      emotion,
		Timestamp:    o.now(),
	})

	out := protocol.NewEmotionInteraction(emotion, text, audio)
	return &out
}

// LastEmotion exposes the stored emotion state for the background monitor's
// transition gating.
func (o *Orchestrator) LastEmotion(ctx context.Context, connID string) string {
	emotion, err := o.store.Emotion(ctx, connID)
	if err != nil {
		slog.Warn("reading emotion state", "conn", connID, "error", err)
		return ""
	}
	return emotion
}

// RecordEmotion overwrites the stored emotion state.
func (o *Orchestrator) RecordEmotion(ctx context.Context, connID, emotion string) {
	if err := o.store.SetEmotion(ctx, connID, emotion); err != nil {
		slog.Warn("storing emotion state", "conn", connID, "error", err)
	}
}

// synthesize returns encoded audio for text, or nil when synthesis is
// disabled or fails. A failed synthesis never fails the exchange.
func (o *Orchestrator) synthesize(ctx context.Context, connID, text string, ev *events.ExchangeCompleted) []byte {
	if o.synth == nil {
		return nil
	}
	audio, err := o.synth.Synthesize(ctx, text)
	if err != nil {
		slog.Warn("synthesis failed, replying text-only", "conn", connID, "error", err)
		metrics.ProviderFaultsTotal.WithLabelValues("tts").Inc()
		if ev != nil {
			ev.SynthesisFailed = true
		}
		return nil
	}
	return audio
}

func toMessages(history []session.Entry) []llm.Message {
	msgs := make([]llm.Message, len(history))
	for i, e := range history {
		msgs[i] = llm.Message{Role: e.Role, Content: e.Content}
	}
	return msgs
}
