package chat

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText prepares message text for persistence and comparison: line
// endings become LF, the string is NFC-normalized so visually identical
// input from different keyboards stores identically, and surrounding
// whitespace is trimmed. An all-whitespace input normalizes to "".
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = norm.NFC.String(s)
	return strings.TrimSpace(s)
}
