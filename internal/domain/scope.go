package domain

import (
	"strings"

	"github.com/google/uuid"
)

// StorageScope is one user-granted filesystem root outside the sandbox
// default. The bookmark token is opaque: it is persisted verbatim and
// resolved back into a usable path at every process start, because the
// underlying OS grant can be revoked out-of-band.
type StorageScope struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Bookmark []byte    `json:"-"`
	Allowed  bool      `json:"allowed"`
}

// NormalizePath strips a single trailing separator so that paths granted
// with and without one compare equal.
func NormalizePath(path string) string {
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return path[:len(path)-1]
	}
	return path
}
