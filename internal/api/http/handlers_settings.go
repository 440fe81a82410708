package apihttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
)

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.prefs.Get())
	case http.MethodPut:
		var next domain.Preferences
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
			return
		}
		if !next.BackgroundMode.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid background mode")
			return
		}

		prev := s.prefs.Get()
		if err := s.prefs.Update(r.Context(), next); err != nil {
			writeDomainError(w, err)
			return
		}

		// Background mode changes tear down the old strategy and prepare
		// the new one off the request path: preparation may wait on an
		// OS permission prompt.
		if s.controller != nil && next.BackgroundMode != prev.BackgroundMode {
			go func(mode domain.BackgroundMode) {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				s.controller.ApplyMode(ctx, mode)
			}(next.BackgroundMode)
		}

		writeJSON(w, http.StatusOK, s.prefs.Get())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

type backgroundResponse struct {
	State   string                `json:"state"`
	Mode    domain.BackgroundMode `json:"mode"`
	Running bool                  `json:"running"`
}

type backgroundModeRequest struct {
	Mode domain.BackgroundMode `json:"mode"`
}

func (s *Server) backgroundView() backgroundResponse {
	return backgroundResponse{
		State:   s.controller.State().String(),
		Mode:    s.controller.Mode(),
		Running: s.controller.IsRunning(),
	}
}

func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.backgroundView())
	case http.MethodPost:
		var req backgroundModeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
			return
		}
		if !req.Mode.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid background mode")
			return
		}
		if !s.controller.ApplyMode(r.Context(), req.Mode) {
			writeError(w, http.StatusConflict, "permission_denied", "background mode could not be prepared")
			return
		}
		writeJSON(w, http.StatusOK, s.backgroundView())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleBackgroundStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if !s.controller.Start() {
		writeError(w, http.StatusConflict, "not_prepared", "background execution could not be started")
		return
	}
	writeJSON(w, http.StatusOK, s.backgroundView())
}

func (s *Server) handleBackgroundStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	s.controller.Stop()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]int64{"badge": s.monitor.Badge()})
	case http.MethodDelete:
		s.monitor.ResetBadge()
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// handleDeepLink resolves an "iTorrent:hash:<hex>" link, the form embedded
// in completion notifications, to the matching torrent.
func (s *Server) handleDeepLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	link := strings.TrimSpace(r.URL.Query().Get("url"))
	hash, err := domain.ParseDeepLink(link)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	t := s.registry.FindByBestHash(hash)
	if t == nil {
		writeError(w, http.StatusNotFound, "not_found", "torrent not found")
		return
	}
	writeJSON(w, http.StatusOK, newTorrentView(t))
}
