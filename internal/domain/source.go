package domain

import "strings"

// TorrentSource describes how a torrent enters the engine: a magnet link or
// the raw contents of a .torrent file. Hashes are parsed up front so the
// registry can reject duplicates before the engine is involved.
type TorrentSource struct {
	Magnet      string
	TorrentFile []byte
	Hashes      TorrentHashes
	DisplayName string
}

func (s TorrentSource) IsEmpty() bool {
	return strings.TrimSpace(s.Magnet) == "" && len(s.TorrentFile) == 0
}
