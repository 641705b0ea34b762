package logger

import (
	"fmt"
	"strings"
)

// SanitizeForLog escapes control characters in user-supplied strings (titles,
// filenames, requested paths) before they reach a log line. Newlines could
// forge log entries, NUL truncates, ESC drives terminal escape sequences;
// everything else below 0x20 and DEL is hex-escaped. Unicode text passes
// through untouched.
func SanitizeForLog(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteString(escapeRune(r))
	}
	return b.String()
}

func escapeRune(r rune) string {
	switch r {
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	case '\t':
		return `\t`
	}
	if r < 32 || r == 127 {
		return fmt.Sprintf(`\x%02x`, r)
	}
	return string(r)
}
