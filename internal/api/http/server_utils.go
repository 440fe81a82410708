package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
)

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrDuplicateTorrent):
		writeError(w, http.StatusConflict, "duplicate", "torrent already exists")
	case errors.Is(err, domain.ErrScopeAlreadyExists):
		writeError(w, http.StatusConflict, "scope_exists", "storage scope already exists")
	case errors.Is(err, domain.ErrScopeLimitExceeded):
		writeError(w, http.StatusUnprocessableEntity, "scope_limit", "storage scope limit reached")
	case errors.Is(err, domain.ErrScopeResolutionFailed):
		writeError(w, http.StatusConflict, "scope_unresolved", "storage scope could not be resolved")
	case errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission_denied", "permission denied")
	case errors.Is(err, domain.ErrMalformedDeepLink):
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed deep link")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseBoolQuery(value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	switch strings.ToLower(value) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, errors.New("invalid bool")
	}
}

// pathSuffix returns the path element after prefix plus any trailing
// action element, e.g. "/torrents/<hash>/pause" -> ("<hash>", "pause").
func pathSuffix(path, prefix string) (id, action string) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	parts := strings.SplitN(rest, "/", 2)
	id = parts[0]
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action
}
