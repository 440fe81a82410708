package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
)

// PreferencesStore persists the durable preference document. The bool
// result of Get distinguishes "no document yet" from an error.
type PreferencesStore interface {
	GetPreferences(ctx context.Context) (domain.Preferences, bool, error)
	SetPreferences(ctx context.Context, prefs domain.Preferences) error
}

// ScopeStore persists the storage-scope table.
type ScopeStore interface {
	ListScopes(ctx context.Context) ([]domain.StorageScope, error)
	PutScope(ctx context.Context, scope domain.StorageScope) error
	DeleteScope(ctx context.Context, id uuid.UUID) error
}

// MetadataStore keeps per-torrent metadata derived lazily outside the
// engine, keyed by best info-hash hex. Entries are cleared on removal.
type MetadataStore interface {
	GetDateAdded(ctx context.Context, hash string) (time.Time, bool, error)
	SetDateAdded(ctx context.Context, hash string, at time.Time) error
	DeleteMetadata(ctx context.Context, hash string) error
}

// Bookmarks creates and resolves persisted filesystem access tokens. The
// token is opaque to callers; resolution can fail at any time because the
// OS-level grant may have been revoked out-of-band.
type Bookmarks interface {
	// Create returns a token for path plus an optional localized display
	// name (empty when the OS provides none).
	Create(path string) (token []byte, displayName string, err error)
	Resolve(token []byte) (path string, err error)
}
