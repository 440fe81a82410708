package apihttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
)

type scopesResponse struct {
	Scopes  []domain.StorageScope `json:"scopes"`
	Default uuid.UUID             `json:"default"`
}

type addScopeRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleScopes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, scopesResponse{
			Scopes:  s.scopes.Scopes(),
			Default: s.prefs.DefaultStorage(),
		})
	case http.MethodPost:
		var req addScopeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
			return
		}
		if strings.TrimSpace(req.Path) == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "path is required")
			return
		}
		scope, err := s.scopes.Add(r.Context(), req.Path)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, scope)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleScopeByID(w http.ResponseWriter, r *http.Request) {
	raw, action := pathSuffix(r.URL.Path, "/scopes/")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed scope id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		scope, ok := s.scopes.Get(id)
		if !ok {
			writeDomainError(w, domain.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, scope)
	case action == "" && r.Method == http.MethodDelete:
		if err := s.scopes.Remove(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case action == "resolve" && r.Method == http.MethodPost:
		if err := s.scopes.Resolve(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		scope, _ := s.scopes.Get(id)
		reloaded := s.registry.ReloadUnder(scope.Path)
		s.logger.Info("scope re-resolved",
			slog.String("scope", id.String()),
			slog.Int("reloaded", reloaded))
		writeJSON(w, http.StatusOK, scope)
	case action == "default" && r.Method == http.MethodPost:
		if err := s.scopes.SetDefault(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}
