package scopes

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileBookmarks implements the bookmark port over the local filesystem.
// The token is a versioned blob carrying the granted path; resolution
// probes the directory so a root that was deleted or had its permissions
// revoked out-of-band surfaces as a failure instead of a broken engine
// write path.
type FileBookmarks struct{}

type bookmarkPayload struct {
	Version   int    `json:"v"`
	Path      string `json:"path"`
	GrantedAt int64  `json:"grantedAt"`
}

const bookmarkVersion = 1

var errBadBookmark = errors.New("malformed bookmark token")

func (FileBookmarks) Create(path string) (token []byte, displayName string, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	if err := probeDir(abs); err != nil {
		return nil, "", err
	}

	payload, err := json.Marshal(bookmarkPayload{
		Version:   bookmarkVersion,
		Path:      abs,
		GrantedAt: time.Now().Unix(),
	})
	if err != nil {
		return nil, "", err
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(payload)))
	base64.StdEncoding.Encode(encoded, payload)
	return encoded, "", nil
}

func (FileBookmarks) Resolve(token []byte) (string, error) {
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(token)))
	n, err := base64.StdEncoding.Decode(decoded, token)
	if err != nil {
		return "", errBadBookmark
	}
	var payload bookmarkPayload
	if err := json.Unmarshal(decoded[:n], &payload); err != nil {
		return "", errBadBookmark
	}
	if payload.Version != bookmarkVersion || payload.Path == "" {
		return "", errBadBookmark
	}
	if err := probeDir(payload.Path); err != nil {
		return "", err
	}
	return payload.Path, nil
}

// probeDir verifies the path is a readable directory right now.
func probeDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
