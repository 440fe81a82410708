package anacrolix

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
)

// resumeStore persists enough per-torrent state to re-add everything after
// a restart: the metainfo (or magnet while metadata is still missing), the
// storage scope, and the paused flag. One JSON file per torrent, keyed by
// best info-hash.
type resumeStore struct {
	dir string
}

func newResumeStore(dir string) *resumeStore {
	return &resumeStore{dir: dir}
}

type resumeEntry struct {
	V1       string    `json:"v1,omitempty"`
	V2       string    `json:"v2,omitempty"`
	Magnet   string    `json:"magnet,omitempty"`
	Metainfo []byte    `json:"metainfo,omitempty"`
	Scope    uuid.UUID `json:"scope"`
	Paused   bool      `json:"paused"`
}

func (r resumeEntry) hashes() domain.TorrentHashes {
	return domain.TorrentHashes{V1: r.V1, V2: r.V2}
}

func (s *resumeStore) load() ([]resumeEntry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []resumeEntry
	var firstErr error
	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, dirEntry.Name()))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		var entry resumeEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if entry.hashes().IsEmpty() {
			continue
		}
		out = append(out, entry)
	}
	return out, firstErr
}

func (s *resumeStore) save(h *handle) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	entry := resumeEntry{
		V1:     h.hashes.V1,
		V2:     h.hashes.V2,
		Scope:  h.scope,
		Paused: h.isPaused(),
	}
	if torrentInfoReady(h.t) {
		mi := h.t.Metainfo()
		var buf bytes.Buffer
		if err := mi.Write(&buf); err != nil {
			return err
		}
		entry.Metainfo = buf.Bytes()
	} else {
		entry.Magnet = h.magnet
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	// Write-then-rename keeps the entry intact if the process dies mid-save.
	path := s.path(h.hashes)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *resumeStore) remove(hashes domain.TorrentHashes) error {
	err := os.Remove(s.path(hashes))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *resumeStore) path(hashes domain.TorrentHashes) string {
	return filepath.Join(s.dir, hashes.Best()+".json")
}
