package preferences

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
	"github.com/XITRIX/iTorrent-v2/internal/domain/ports"
	"github.com/XITRIX/iTorrent-v2/internal/metrics"
)

const defaultDebounce = 100 * time.Millisecond

// Manager owns the durable preference document and the combined-settings
// apply path: whenever any constituent preference, the network-interface
// list, or the storage-scope map changes, the whole SessionSettings object
// is recomputed and handed to the engine, debounced to absorb
// reconfiguration storms.
type Manager struct {
	store  ports.PreferencesStore
	logger *slog.Logger

	mu    sync.Mutex
	prefs domain.Preferences

	interfaces func() []string
	storages   func() map[uuid.UUID]string
	apply      func(domain.SessionSettings)

	debounce time.Duration
	timerMu  sync.Mutex
	timer    *time.Timer
}

func NewManager(store ports.PreferencesStore, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		logger:   logger,
		prefs:    domain.DefaultPreferences(),
		debounce: defaultDebounce,
	}
}

// BindEngine wires the recompute pipeline. The interface and storage
// providers are consulted on every apply so the combined object always
// reflects live state.
func (m *Manager) BindEngine(apply func(domain.SessionSettings), interfaces func() []string, storages func() map[uuid.UUID]string) {
	m.mu.Lock()
	m.apply = apply
	m.interfaces = interfaces
	m.storages = storages
	m.mu.Unlock()
}

// Load reads the persisted document, falling back to defaults when none
// exists yet.
func (m *Manager) Load(ctx context.Context) error {
	prefs, ok, err := m.store.GetPreferences(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	m.mu.Lock()
	m.prefs = prefs
	m.mu.Unlock()
	return nil
}

func (m *Manager) Get() domain.Preferences {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs
}

// Update persists the new document first and commits it in memory only on
// success, then schedules a settings recompute.
func (m *Manager) Update(ctx context.Context, next domain.Preferences) error {
	if err := m.store.SetPreferences(ctx, next); err != nil {
		return err
	}
	m.mu.Lock()
	m.prefs = next
	m.mu.Unlock()
	m.ScheduleApply()
	return nil
}

func (m *Manager) DefaultStorage() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs.DefaultStorage
}

func (m *Manager) SetDefaultStorage(ctx context.Context, id uuid.UUID) error {
	next := m.Get()
	next.DefaultStorage = id
	return m.Update(ctx, next)
}

func (m *Manager) ClearDefaultStorage(ctx context.Context) error {
	return m.SetDefaultStorage(ctx, uuid.Nil)
}

// NetworkChanged is invoked by the interface monitor; any change to the
// interface list invalidates the combined settings object.
func (m *Manager) NetworkChanged([]string) {
	m.ScheduleApply()
}

// StoragesChanged is invoked by the scope manager on every scope-map
// change.
func (m *Manager) StoragesChanged(map[uuid.UUID]string) {
	m.ScheduleApply()
}

// ScheduleApply recomputes and applies the combined settings after the
// debounce window. Calls inside the window collapse into one apply.
func (m *Manager) ScheduleApply() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, m.applyNow)
}

func (m *Manager) applyNow() {
	m.mu.Lock()
	apply := m.apply
	prefs := m.prefs
	var interfaces []string
	if m.interfaces != nil {
		interfaces = m.interfaces()
	}
	var storages map[uuid.UUID]string
	if m.storages != nil {
		storages = m.storages()
	}
	m.mu.Unlock()

	if apply == nil {
		return
	}
	apply(prefs.SessionSettings(interfaces, storages))
	metrics.SettingsAppliesTotal.Inc()
	m.logger.Debug("session settings applied",
		slog.Int("interfaces", len(interfaces)),
		slog.Int("storages", len(storages)))
}

// Close cancels a pending apply.
func (m *Manager) Close() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
