package util

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// SanitizePostgresText strips NUL bytes and invalid UTF-8 that Postgres TEXT rejects.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// NormalizeName trims and lowercases a name for identity comparisons.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewID returns a random URL-safe identifier with the given prefix.
func NewID(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return id, nil
	}
	return prefix + "_" + id, nil
}
