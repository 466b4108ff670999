package outbox

import "unicode/utf8"

// truncateError trims an error string to max bytes without splitting a rune,
// so the stored last_error stays valid UTF-8.
func truncateError(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
