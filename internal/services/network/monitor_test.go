package network

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRefreshNotifiesOnChangeOnly(t *testing.T) {
	var notified [][]string
	m := NewMonitor(func(names []string) {
		notified = append(notified, names)
	}, discardLogger())

	names := []string{"en0"}
	m.list = func() ([]string, error) { return append([]string(nil), names...), nil }

	m.refresh()
	if len(notified) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notified))
	}

	// Identical list: no callback.
	m.refresh()
	if len(notified) != 1 {
		t.Fatalf("notifications after no-op refresh = %d, want 1", len(notified))
	}

	names = []string{"en0", "pdp_ip0"}
	m.refresh()
	if len(notified) != 2 {
		t.Fatalf("notifications after change = %d, want 2", len(notified))
	}
	got := m.Interfaces()
	if len(got) != 2 || got[0] != "en0" || got[1] != "pdp_ip0" {
		t.Errorf("interfaces = %v, want sorted pair", got)
	}
}

func TestRefreshIgnoresOrdering(t *testing.T) {
	count := 0
	m := NewMonitor(func([]string) { count++ }, discardLogger())

	lists := [][]string{
		{"pdp_ip0", "en0"},
		{"en0", "pdp_ip0"},
	}
	i := 0
	m.list = func() ([]string, error) {
		names := append([]string(nil), lists[i]...)
		i++
		return names, nil
	}

	m.refresh()
	m.refresh()
	if count != 1 {
		t.Errorf("notifications = %d, want 1 (same set, different order)", count)
	}
}

func TestRefreshKeepsLastListOnError(t *testing.T) {
	count := 0
	m := NewMonitor(func([]string) { count++ }, discardLogger())

	fail := false
	m.list = func() ([]string, error) {
		if fail {
			return nil, errors.New("enumeration failed")
		}
		return []string{"en0"}, nil
	}

	m.refresh()
	fail = true
	m.refresh()

	if count != 1 {
		t.Errorf("notifications = %d, want 1", count)
	}
	if got := m.Interfaces(); len(got) != 1 || got[0] != "en0" {
		t.Errorf("interfaces = %v, want last good list", got)
	}
}
