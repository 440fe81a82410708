package domain

import (
	"errors"
	"strings"
)

const deepLinkScheme = "iTorrent"

var ErrMalformedDeepLink = errors.New("malformed deep link")

// ParseDeepLink extracts the target info-hash from an "iTorrent:hash:<hex>"
// link, the form completion notifications embed. The scheme compares
// case-insensitively; the hash is returned lowercased.
func ParseDeepLink(link string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(link), ":", 3)
	if len(parts) != 3 {
		return "", ErrMalformedDeepLink
	}
	if !strings.EqualFold(parts[0], deepLinkScheme) || parts[1] != "hash" {
		return "", ErrMalformedDeepLink
	}
	hash := strings.ToLower(strings.TrimSpace(parts[2]))
	if hash == "" {
		return "", ErrMalformedDeepLink
	}
	return hash, nil
}
