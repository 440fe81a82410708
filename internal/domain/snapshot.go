package domain

import "time"

type TorrentState string

const (
	StateCheckingFiles       TorrentState = "checkingFiles"
	StateDownloadingMetadata TorrentState = "downloadingMetadata"
	StateDownloading         TorrentState = "downloading"
	StateFinished            TorrentState = "finished"
	StateSeeding             TorrentState = "seeding"
)

// Snapshot is an immutable read model captured atomically from an engine
// handle at a point in time. Snapshots are never mutated in place; diffing
// the previous and current snapshot of a handle is how downstream consumers
// detect edge transitions.
type Snapshot struct {
	Hashes         TorrentHashes `json:"hashes"`
	Name           string        `json:"name"`
	State          TorrentState  `json:"state"`
	Paused         bool          `json:"paused"`
	Progress       float64       `json:"progress"`
	ProgressWanted float64       `json:"progressWanted"`
	DownloadRate   int64         `json:"downloadRate"`
	UploadRate     int64         `json:"uploadRate"`
	TotalBytes     int64         `json:"totalBytes"`
	WantedBytes    int64         `json:"wantedBytes"`
	CompletedBytes int64         `json:"completedBytes"`
	Seeds          int           `json:"seeds"`
	Peers          int           `json:"peers"`
	PieceCount     int           `json:"pieceCount"`
	PieceBitfield  string        `json:"pieceBitfield,omitempty"`
	DownloadPath   string        `json:"downloadPath"`
	TakenAt        time.Time     `json:"takenAt"`
}

// IsComplete reports whether every wanted byte is downloaded.
func (s Snapshot) IsComplete() bool {
	return s.ProgressWanted >= 1
}
