package network

import (
	"context"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"
)

const defaultInterval = 5 * time.Second

// Monitor watches the set of usable network interfaces. A change triggers
// the settings recompute so the engine is always bound to live interfaces.
type Monitor struct {
	interval time.Duration
	onChange func([]string)
	logger   *slog.Logger

	// list enumerates interface names; replaceable in tests.
	list func() ([]string, error)

	mu      sync.Mutex
	current []string
}

func NewMonitor(onChange func([]string), logger *slog.Logger) *Monitor {
	return &Monitor{
		interval: defaultInterval,
		onChange: onChange,
		logger:   logger,
		list:     usableInterfaces,
	}
}

// Interfaces returns the last observed list.
func (m *Monitor) Interfaces() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.current)
}

// Run polls until ctx is cancelled. The first enumeration happens
// immediately so the settings pipeline starts with a real list.
func (m *Monitor) Run(ctx context.Context) {
	m.refresh()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh()
		}
	}
}

func (m *Monitor) refresh() {
	names, err := m.list()
	if err != nil {
		m.logger.Warn("interface enumeration failed", slog.String("error", err.Error()))
		return
	}
	slices.Sort(names)

	m.mu.Lock()
	changed := !slices.Equal(m.current, names)
	if changed {
		m.current = names
	}
	m.mu.Unlock()

	if changed {
		m.logger.Info("network interfaces changed", slog.Int("count", len(names)))
		if m.onChange != nil {
			m.onChange(names)
		}
	}
}

// usableInterfaces lists up, non-loopback interfaces with at least one
// address.
func usableInterfaces() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		names = append(names, iface.Name)
	}
	return names, nil
}
