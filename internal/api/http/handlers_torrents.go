package apihttp

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/google/uuid"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
	"github.com/XITRIX/iTorrent-v2/internal/services/torrent"
)

const maxTorrentFileSize = 10 << 20

type torrentView struct {
	domain.Snapshot
	DateAdded time.Time `json:"dateAdded,omitempty"`
}

func newTorrentView(t *torrent.Torrent) torrentView {
	return torrentView{Snapshot: t.Snapshot(), DateAdded: t.DateAdded()}
}

type addTorrentRequest struct {
	Magnet      string `json:"magnet"`
	DisplayName string `json:"displayName"`
	Scope       string `json:"scope"`
}

func (s *Server) handleTorrents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTorrents(w, r)
	case http.MethodPost:
		s.addTorrent(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) listTorrents(w http.ResponseWriter, r *http.Request) {
	torrents := s.registry.Torrents()
	views := make([]torrentView, 0, len(torrents))
	for _, t := range torrents {
		views = append(views, newTorrentView(t))
	}
	writeJSON(w, http.StatusOK, views)
}

// addTorrent accepts either a JSON body with a magnet link or a multipart
// form with a .torrent file. Registration completes asynchronously; the
// response only confirms the engine accepted the source.
func (s *Server) addTorrent(w http.ResponseWriter, r *http.Request) {
	var src domain.TorrentSource
	var scopeRaw string

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxTorrentFileSize); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed multipart form")
			return
		}
		file, _, err := r.FormFile("torrent")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "torrent file is required")
			return
		}
		defer file.Close()

		raw, err := io.ReadAll(io.LimitReader(file, maxTorrentFileSize))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unreadable torrent file")
			return
		}
		mi, err := metainfo.Load(bytes.NewReader(raw))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed torrent file")
			return
		}
		src = domain.TorrentSource{
			TorrentFile: raw,
			Hashes:      domain.TorrentHashes{V1: mi.HashInfoBytes().HexString()},
		}
		if info, err := mi.UnmarshalInfo(); err == nil {
			src.DisplayName = info.Name
		}
		scopeRaw = r.FormValue("scope")
	} else {
		var req addTorrentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
			return
		}
		if strings.TrimSpace(req.Magnet) == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "magnet is required")
			return
		}
		m, err := metainfo.ParseMagnetUri(req.Magnet)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed magnet link")
			return
		}
		src = domain.TorrentSource{
			Magnet:      req.Magnet,
			Hashes:      domain.TorrentHashes{V1: m.InfoHash.HexString()},
			DisplayName: m.DisplayName,
		}
		if req.DisplayName != "" {
			src.DisplayName = req.DisplayName
		}
		scopeRaw = req.Scope
	}

	scope := s.prefs.DefaultStorage()
	if strings.TrimSpace(scopeRaw) != "" {
		parsed, err := uuid.Parse(scopeRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed scope id")
			return
		}
		if s.scopes != nil {
			if _, ok := s.scopes.Get(parsed); !ok {
				writeDomainError(w, domain.ErrNotFound)
				return
			}
		}
		scope = parsed
	}

	if !s.registry.Add(src, scope) {
		writeDomainError(w, domain.ErrDuplicateTorrent)
		return
	}

	s.logger.Info("torrent accepted",
		slog.String("hash", src.Hashes.Best()),
		slog.String("scope", scope.String()))
	writeJSON(w, http.StatusAccepted, map[string]string{"hash": src.Hashes.Best()})
}

func (s *Server) handleTorrentByHash(w http.ResponseWriter, r *http.Request) {
	hash, action := pathSuffix(r.URL.Path, "/torrents/")
	if hash == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "hash is required")
		return
	}

	t := s.registry.FindByBestHash(strings.ToLower(hash))
	if t == nil {
		writeError(w, http.StatusNotFound, "not_found", "torrent not found")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, newTorrentView(t))
	case action == "" && r.Method == http.MethodDelete:
		deleteFiles, err := parseBoolQuery(r.URL.Query().Get("deleteFiles"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid deleteFiles")
			return
		}
		s.registry.Remove(r.Context(), t.Hashes(), deleteFiles)
		w.WriteHeader(http.StatusAccepted)
	case action == "pause" && r.Method == http.MethodPost:
		t.Pause()
		w.WriteHeader(http.StatusNoContent)
	case action == "resume" && r.Method == http.MethodPost:
		t.Resume()
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}
