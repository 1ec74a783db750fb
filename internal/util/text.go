package util

import "strings"

func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// SanitizeLabel prepares a frame or lexical unit name for storage as a node label:
// Postgres-safe, trimmed, with inner whitespace runs collapsed to one space.
func SanitizeLabel(value string) string {
	return strings.Join(strings.Fields(SanitizePostgresText(value)), " ")
}
