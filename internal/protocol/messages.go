// Package protocol defines the JSON frames exchanged with clients over the
// WebSocket transport.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Inbound message types.
const (
	TypeTextInput     = "text_input"
	TypeEmotionUpdate = "emotion_update"
)

// Outbound message types.
const (
	TypeResponse           = "response"
	TypeEmotionInteraction = "emotion_interaction"
)

var (
	// ErrMalformed marks frames that are not valid JSON or miss a required field.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownType marks frames with an unrecognized type tag. They are
	// ignored rather than rejected so newer clients keep working.
	ErrUnknownType = errors.New("unknown message type")
)

var validate = validator.New()

// Inbound is a client frame. Which field is meaningful depends on Type.
type Inbound struct {
	Type    string `json:"type" validate:"required"`
	Content string `json:"content,omitempty" validate:"required_if=Type text_input"`
	Emotion string `json:"emotion,omitempty" validate:"required_if=Type emotion_update"`
}

// Decode parses and validates a raw client frame.
func Decode(raw []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch msg.Type {
	case TypeTextInput, TypeEmotionUpdate:
	case "":
		return Inbound{}, fmt.Errorf("%w: missing type tag", ErrMalformed)
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	if err := validate.Struct(msg); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

// Response is the reply to one text_input. Audio is base64-encoded by the
// JSON marshaller; it may be empty when synthesis failed.
type Response struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Audio []byte `json:"audio"`
}

func NewResponse(text string, audio []byte) Response {
	return Response{Type: TypeResponse, Text: text, Audio: audio}
}

// EmotionInteraction is an unsolicited frame sent when a distress emotion is
// detected. It is not part of the request/reply ordering.
type EmotionInteraction struct {
	Type    string `json:"type"`
	Emotion string `json:"emotion"`
	Text    string `json:"text"`
	Audio   []byte `json:"audio"`
}

func NewEmotionInteraction(emotion, text string, audio []byte) EmotionInteraction {
	return EmotionInteraction{Type: TypeEmotionInteraction, Emotion: emotion, Text: text, Audio: audio}
}
