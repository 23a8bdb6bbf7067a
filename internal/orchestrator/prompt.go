package orchestrator

import "strings"

// buildPrompt fills the instruction template with the retrieved passages and
// the literal question. Passages are joined by blank lines; with no passages
// the template still carries its instructions and the question, so the model
// can say the context is insufficient.
func buildPrompt(template string, passages []string, question string) string {
	context := strings.Join(passages, "\n\n")
	prompt := strings.ReplaceAll(template, "{context}", context)
	return strings.ReplaceAll(prompt, "{question}", question)
}
