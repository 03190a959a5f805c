package database

import (
	"strings"

	"github.com/google/uuid"
)

// newPublicID returns a short, collision-resistant, URL-safe identifier
// (~21 chars) used in the public viewer URL. It is derived
// from a fresh UUIDv4 with dashes stripped rather than a sequential id so
// it never leaks row counts.
func newPublicID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	if len(raw) > 21 {
		raw = raw[:21]
	}
	return raw
}
