package domain

import "github.com/google/uuid"

// NewID returns a short prefixed identifier, e.g. "doc_3f1a9c2e".
func NewID(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8]
}
