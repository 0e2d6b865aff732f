package id

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a random job identifier without dashes, safe to use as an
// object-key path segment.
func New() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")
}
