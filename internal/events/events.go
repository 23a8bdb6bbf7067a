package events

import "time"

// Stream and subject names.
const (
	StreamName = "VOICEBOT_EVENTS"

	SubjectExchange = "voicebot.events.exchange"
	SubjectEmotion  = "voicebot.events.emotion"
)

// ExchangeCompleted records one full text_input pipeline run for external
// consumers (analytics, audit). Content is summarized by length only.
type ExchangeCompleted struct {
	ConnectionID     string        `json:"connection_id"`
	QuestionChars    int           `json:"question_chars"`
	ReplyChars       int           `json:"reply_chars"`
	Passages         int           `json:"passages"`
	RetrievalFailed  bool          `json:"retrieval_failed"`
	CompletionFailed bool          `json:"completion_failed"`
	SynthesisFailed  bool          `json:"synthesis_failed"`
	Duration         time.Duration `json:"duration_ns"`
	Timestamp        time.Time     `json:"timestamp"`
}

// EmotionInteractionSent records a proactive interaction.
type EmotionInteractionSent struct {
	ConnectionID string    `json:"connection_id"`
	Emotion      string    `json:"emotion"`
	Timestamp    time.Time `json:"timestamp"`
}
