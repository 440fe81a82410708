package anacrolix

import (
	"testing"

	"github.com/anacrolix/torrent"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
)

func TestHeaderObfuscationMapping(t *testing.T) {
	tests := []struct {
		policy domain.EncryptionPolicy
		want   torrent.HeaderObfuscationPolicy
	}{
		{domain.EncryptionEnabled, torrent.HeaderObfuscationPolicy{Preferred: true}},
		{domain.EncryptionForced, torrent.HeaderObfuscationPolicy{RequirePreferred: true, Preferred: true}},
		{domain.EncryptionDisabled, torrent.HeaderObfuscationPolicy{RequirePreferred: true, Preferred: false}},
		{"", torrent.HeaderObfuscationPolicy{Preferred: true}},
	}
	for _, tt := range tests {
		if got := headerObfuscation(tt.policy); got != tt.want {
			t.Errorf("headerObfuscation(%q) = %+v, want %+v", tt.policy, got, tt.want)
		}
	}
}

func TestNewRateLimiter(t *testing.T) {
	if got := newRateLimiter(0); got.Limit() != rate.Inf {
		t.Errorf("limit for 0 = %v, want Inf", got.Limit())
	}
	if got := newRateLimiter(-5); got.Limit() != rate.Inf {
		t.Errorf("limit for -5 = %v, want Inf", got.Limit())
	}

	limited := newRateLimiter(1 << 20)
	if limited.Limit() != rate.Limit(1<<20) {
		t.Errorf("limit = %v, want %v", limited.Limit(), rate.Limit(1<<20))
	}
	if limited.Burst() != 1<<20 {
		t.Errorf("burst = %d, want %d", limited.Burst(), 1<<20)
	}
}

func TestCloneStoragesIsIndependent(t *testing.T) {
	id := uuid.New()
	in := map[uuid.UUID]string{id: "/mnt/library"}
	out := cloneStorages(in)

	in[id] = "/mnt/changed"
	if out[id] != "/mnt/library" {
		t.Errorf("clone shares backing map: %q", out[id])
	}

	if got := cloneStorages(nil); len(got) != 0 || got == nil {
		t.Errorf("cloneStorages(nil) = %v, want empty map", got)
	}
}
