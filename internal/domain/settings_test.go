package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestSessionSettingsCombinesLiveState(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.MaxDownloadSpeed = 1 << 20
	prefs.EncryptionPolicy = EncryptionForced

	id := uuid.New()
	interfaces := []string{"en0", "pdp_ip0"}
	storages := map[uuid.UUID]string{id: "/mnt/library"}

	got := prefs.SessionSettings(interfaces, storages)
	if got.MaxDownloadSpeed != 1<<20 || got.EncryptionPolicy != EncryptionForced {
		t.Errorf("settings = %+v", got)
	}
	if len(got.Interfaces) != 2 {
		t.Errorf("interfaces = %v", got.Interfaces)
	}
	if got.Storages[id] != "/mnt/library" {
		t.Errorf("storages = %v", got.Storages)
	}
}

func TestBackgroundModeValid(t *testing.T) {
	tests := []struct {
		mode BackgroundMode
		want bool
	}{
		{BackgroundAudio, true},
		{BackgroundLocation, true},
		{"", false},
		{"hologram", false},
	}
	for _, tt := range tests {
		if got := tt.mode.Valid(); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestPermissionStatusPredicates(t *testing.T) {
	tests := []struct {
		status     PermissionStatus
		determined bool
		usable     bool
	}{
		{PermissionNotDetermined, false, true},
		{PermissionDenied, true, false},
		{PermissionRestricted, true, false},
		{PermissionAllowed, true, true},
	}
	for _, tt := range tests {
		if got := tt.status.Determined(); got != tt.determined {
			t.Errorf("Determined(%q) = %v, want %v", tt.status, got, tt.determined)
		}
		if got := tt.status.Usable(); got != tt.usable {
			t.Errorf("Usable(%q) = %v, want %v", tt.status, got, tt.usable)
		}
	}
}
