package domain

// TorrentHashes is the immutable v1/v2 info-hash pair identifying a torrent.
// At least one of the two is always present. Hashes are lowercase hex.
type TorrentHashes struct {
	V1 string `json:"v1,omitempty"`
	V2 string `json:"v2,omitempty"`
}

// Best returns the preferred hash for identifiers: v2 when present, v1 otherwise.
func (h TorrentHashes) Best() string {
	if h.V2 != "" {
		return h.V2
	}
	return h.V1
}

func (h TorrentHashes) IsEmpty() bool {
	return h.V1 == "" && h.V2 == ""
}

// Match reports whether two hash pairs identify the same torrent. A magnet
// may carry only one of the two hashes, so the comparison prefers whichever
// version both sides have.
func (h TorrentHashes) Match(other TorrentHashes) bool {
	if h.V2 != "" && other.V2 != "" {
		return h.V2 == other.V2
	}
	return h.V1 != "" && h.V1 == other.V1
}
