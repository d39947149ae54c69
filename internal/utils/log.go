package utils

import "strings"

// TruncateForLog collapses whitespace runs to single spaces and cuts s to limit runes,
// appending an ellipsis when something was cut. Prompts and model answers stay on one
// log line this way.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
