package ports

import (
	"github.com/google/uuid"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
)

// Handle is one torrent known to the engine. All protocol work behind it
// (peers, pieces, disk) is the engine's business; the application only
// captures snapshots and issues pause/resume.
type Handle interface {
	Hashes() domain.TorrentHashes
	// Snapshot captures the handle's current engine-side state atomically.
	Snapshot() domain.Snapshot
	Pause()
	Resume()
	// Reload re-attaches the handle to its on-disk data, used after a
	// storage scope backing it has been re-resolved.
	Reload()
}

// Delegate receives asynchronous engine callbacks. Delivery is not
// guaranteed exactly-once or in order relative to application-issued
// commands; implementations must treat every call as an idempotent
// reconciliation step keyed by hash.
type Delegate interface {
	TorrentAdded(h Handle)
	TorrentRemoved(hashes domain.TorrentHashes)
	TorrentUpdated(h Handle)
	SessionError(err error)
}

// Engine is the external native torrent engine. Add and remove are
// fire-and-forget: completion is observed later through the delegate,
// never through a blocking return.
type Engine interface {
	SetDelegate(d Delegate)
	// Torrents enumerates the handles restored from fast-resume data,
	// used for the initial registration pass while the engine is paused.
	Torrents() []Handle
	AddTorrent(src domain.TorrentSource, scope uuid.UUID)
	RemoveTorrent(h Handle, deleteFiles bool)
	// Pause and Resume gate the whole session.
	Pause()
	Resume()
	ApplySettings(settings domain.SessionSettings)
	// SetStorages hands the engine the scope-id to resolved-root map.
	SetStorages(storages map[uuid.UUID]string)
	Close() error
}
