package tts

import (
	"strings"
	"unicode"
)

// Sanitize strips characters the speech service cannot voice: Unicode
// control/format characters and the emoji blocks.
func Sanitize(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		if r >= 0x1F000 && r <= 0x1FAFF {
			return -1
		}
		return r
	}, text)
}
