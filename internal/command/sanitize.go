package command

import (
	"html"
	"strings"
	"unicode"
)

const maxCommandLength = 500

// Sanitize normalizes raw client text before parsing or storage: HTML is
// escaped, control characters stripped, whitespace collapsed and the result
// capped at maxCommandLength runes.
func Sanitize(text string) string {
	text = html.EscapeString(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")

	runes := []rune(cleaned)
	if len(runes) > maxCommandLength {
		cleaned = string(runes[:maxCommandLength])
	}

	return cleaned
}
