package auth

import "strings"

// SanitizeInput trims whitespace and strips angle brackets from
// free-text input before it is sent to the backend. It is not a
// substitute for server side sanitization; it only keeps obviously
// malformed payloads off the wire.
func SanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "<", "")
	s = strings.ReplaceAll(s, ">", "")
	return s
}
