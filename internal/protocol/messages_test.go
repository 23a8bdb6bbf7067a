package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_TextInput(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"text_input","content":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeTextInput, msg.Type)
	assert.Equal(t, "hello", msg.Content)
}

func TestDecode_EmotionUpdate(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"emotion_update","emotion":"sad"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeEmotionUpdate, msg.Type)
	assert.Equal(t, "sad", msg.Emotion)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"invalid json", `{not json`, ErrMalformed},
		{"missing type", `{"content":"hi"}`, ErrMalformed},
		{"unknown type", `{"type":"ping"}`, ErrUnknownType},
		{"text_input without content", `{"type":"text_input"}`, ErrMalformed},
		{"emotion_update without emotion", `{"type":"emotion_update"}`, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestResponse_AudioIsBase64(t *testing.T) {
	data, err := json.Marshal(NewResponse("hi", []byte{0x01, 0x02}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"response","text":"hi","audio":"AQI="}`, string(data))
}

func TestEmotionInteraction_Shape(t *testing.T) {
	data, err := json.Marshal(NewEmotionInteraction("sad", "are you okay?", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"emotion_interaction","emotion":"sad","text":"are you okay?","audio":null}`, string(data))
}
