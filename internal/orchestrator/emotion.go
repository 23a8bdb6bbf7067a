package orchestrator

// emotionPrompts maps distress emotions to the instruction the model receives
// when the assistant reaches out on its own. Emotions outside the table never
// trigger an interaction.
var emotionPrompts = map[string]string{
	"sad":   "The user looks sad. Ask if they're okay in a caring way.",
	"angry": "The user looks upset. Ask if something is bothering them.",
}
