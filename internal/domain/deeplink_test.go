package domain

import (
	"errors"
	"testing"
)

func TestParseDeepLink(t *testing.T) {
	tests := []struct {
		name     string
		link     string
		wantHash string
		wantErr  bool
	}{
		{"plain", "iTorrent:hash:abc123", "abc123", false},
		{"scheme case insensitive", "itorrent:hash:ABC123", "abc123", false},
		{"surrounding space", "  iTorrent:hash:abc  ", "abc", false},
		{"wrong scheme", "magnet:hash:abc", "", true},
		{"wrong kind", "iTorrent:file:abc", "", true},
		{"missing hash", "iTorrent:hash:", "", true},
		{"too few parts", "iTorrent:abc", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := ParseDeepLink(tt.link)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedDeepLink) {
					t.Fatalf("expected ErrMalformedDeepLink, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if hash != tt.wantHash {
				t.Errorf("hash = %q, want %q", hash, tt.wantHash)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/data/downloads/", "/data/downloads"},
		{"/data/downloads", "/data/downloads"},
		{"/data/downloads//", "/data/downloads/"},
		{"/", "/"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
