package scopes

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
	"github.com/XITRIX/iTorrent-v2/internal/domain/ports"
	"github.com/XITRIX/iTorrent-v2/internal/metrics"
)

// customScopeLimit bounds the number of user-granted roots. Together with
// the implicit sandbox default the user sees at most five storages.
const customScopeLimit = 4

// DefaultRef is the owner of the persisted default-scope reference. New
// torrents land in the default scope; it must be cleared when the scope it
// points at disappears or loses its grant.
type DefaultRef interface {
	DefaultStorage() uuid.UUID
	ClearDefaultStorage(ctx context.Context) error
	SetDefaultStorage(ctx context.Context, id uuid.UUID) error
}

// Manager owns the bounded collection of accessible storage roots and their
// persisted access grants. It is the sole writer of scope state.
type Manager struct {
	store     ports.ScopeStore
	bookmarks ports.Bookmarks
	defaults  DefaultRef
	logger    *slog.Logger

	sandboxPath string
	limit       int

	mu     sync.Mutex
	scopes map[uuid.UUID]domain.StorageScope

	// onChange receives the scope-id to resolved-root map of every allowed
	// scope whenever the set changes; wired to the engine configuration.
	onChange func(map[uuid.UUID]string)
}

func NewManager(store ports.ScopeStore, bookmarks ports.Bookmarks, defaults DefaultRef, sandboxPath string, logger *slog.Logger) *Manager {
	return &Manager{
		store:       store,
		bookmarks:   bookmarks,
		defaults:    defaults,
		logger:      logger,
		sandboxPath: domain.NormalizePath(sandboxPath),
		limit:       customScopeLimit,
		scopes:      make(map[uuid.UUID]domain.StorageScope),
	}
}

// OnChange registers the consumer of resolved storage maps. Must be set
// before Load.
func (m *Manager) OnChange(fn func(map[uuid.UUID]string)) {
	m.onChange = fn
}

// Load reads the persisted scope table into memory.
func (m *Manager) Load(ctx context.Context) error {
	scopes, err := m.store.ListScopes(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	for _, scope := range scopes {
		m.scopes[scope.ID] = scope
	}
	m.mu.Unlock()
	return nil
}

// Scopes returns every scope, broken ones included, sorted by name.
func (m *Manager) Scopes() []domain.StorageScope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.StorageScope, 0, len(m.scopes))
	for _, scope := range m.scopes {
		out = append(out, scope)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the scope with the given id.
func (m *Manager) Get(id uuid.UUID) (domain.StorageScope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	scope, ok := m.scopes[id]
	return scope, ok
}

// Add grants access to a new directory. It fails with ErrScopeLimitExceeded
// at capacity and ErrScopeAlreadyExists when the resolved path matches an
// existing scope or the sandbox default.
func (m *Manager) Add(ctx context.Context, path string) (domain.StorageScope, error) {
	normalized := domain.NormalizePath(path)

	// Fail fast before the bookmark grant, which may prompt the user.
	m.mu.Lock()
	err := m.admitLocked(normalized)
	m.mu.Unlock()
	if err != nil {
		return domain.StorageScope{}, err
	}

	token, displayName, err := m.bookmarks.Create(normalized)
	if err != nil {
		return domain.StorageScope{}, err
	}
	name := displayName
	if name == "" {
		name = filepath.Base(normalized)
	}

	scope := domain.StorageScope{
		ID:       uuid.New(),
		Name:     name,
		Path:     normalized,
		Bookmark: token,
		Allowed:  true,
	}

	// Re-validate and insert in one critical section: a concurrent Add may
	// have raced in while the grant was being created.
	m.mu.Lock()
	if err := m.admitLocked(normalized); err != nil {
		m.mu.Unlock()
		return domain.StorageScope{}, err
	}
	m.scopes[scope.ID] = scope
	m.mu.Unlock()

	if err := m.store.PutScope(ctx, scope); err != nil {
		m.mu.Lock()
		delete(m.scopes, scope.ID)
		m.mu.Unlock()
		return domain.StorageScope{}, err
	}

	m.publish()
	m.logger.Info("storage scope added",
		slog.String("id", scope.ID.String()),
		slog.String("path", scope.Path))
	return scope, nil
}

// admitLocked enforces the capacity and unique-path invariants. Caller
// holds m.mu.
func (m *Manager) admitLocked(normalized string) error {
	if len(m.scopes) >= m.limit {
		return domain.ErrScopeLimitExceeded
	}
	if normalized == m.sandboxPath {
		return domain.ErrScopeAlreadyExists
	}
	for _, existing := range m.scopes {
		if domain.NormalizePath(existing.Path) == normalized {
			return domain.ErrScopeAlreadyExists
		}
	}
	return nil
}

// Remove deletes a scope. If it was the default, the default reference is
// cleared. Unknown ids are a no-op.
func (m *Manager) Remove(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	_, ok := m.scopes[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.scopes, id)
	m.mu.Unlock()

	if m.defaults.DefaultStorage() == id {
		if err := m.defaults.ClearDefaultStorage(ctx); err != nil {
			m.logger.Warn("default storage clear failed", slog.String("error", err.Error()))
		}
	}
	if err := m.store.DeleteScope(ctx, id); err != nil {
		return err
	}

	m.publish()
	m.logger.Info("storage scope removed", slog.String("id", id.String()))
	return nil
}

// SetDefault marks which scope new torrents use. uuid.Nil clears the
// reference back to the sandbox default. No validation beyond existence.
func (m *Manager) SetDefault(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return m.defaults.ClearDefaultStorage(ctx)
	}
	m.mu.Lock()
	_, ok := m.scopes[id]
	m.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	return m.defaults.SetDefaultStorage(ctx, id)
}

// ResolveAll re-derives a usable path from every scope's persisted token.
// Failures are per-scope and non-fatal: the scope stays visible with
// Allowed=false, and a broken default clears the default reference so the
// engine is never pointed at a root it cannot write.
func (m *Manager) ResolveAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.scopes))
	for id := range m.scopes {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Resolve(ctx, id); err != nil && !errors.Is(err, domain.ErrScopeResolutionFailed) {
			m.logger.Warn("scope resolve failed",
				slog.String("id", id.String()),
				slog.String("error", err.Error()))
		}
	}
}

// Resolve re-derives the path of a single scope from its token and
// persists the outcome. Returns ErrScopeResolutionFailed when the grant is
// no longer usable.
func (m *Manager) Resolve(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	scope, ok := m.scopes[id]
	m.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	path, err := m.bookmarks.Resolve(scope.Bookmark)
	if err != nil {
		metrics.ScopeResolutionFailuresTotal.Inc()
		m.logger.Warn("storage scope no longer accessible",
			slog.String("id", id.String()),
			slog.String("path", scope.Path),
			slog.String("error", err.Error()))

		scope.Allowed = false
		m.storeResolved(ctx, scope)
		if m.defaults.DefaultStorage() == id {
			if clearErr := m.defaults.ClearDefaultStorage(ctx); clearErr != nil {
				m.logger.Warn("default storage clear failed", slog.String("error", clearErr.Error()))
			}
		}
		m.publish()
		return domain.ErrScopeResolutionFailed
	}

	scope.Allowed = true
	scope.Path = domain.NormalizePath(path)
	m.storeResolved(ctx, scope)
	m.publish()
	return nil
}

func (m *Manager) storeResolved(ctx context.Context, scope domain.StorageScope) {
	m.mu.Lock()
	m.scopes[scope.ID] = scope
	m.mu.Unlock()
	if err := m.store.PutScope(ctx, scope); err != nil {
		m.logger.Warn("scope persist failed",
			slog.String("id", scope.ID.String()),
			slog.String("error", err.Error()))
	}
}

// Resolved returns the scope-id to path map of every allowed scope.
func (m *Manager) Resolved() map[uuid.UUID]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]string, len(m.scopes))
	for id, scope := range m.scopes {
		if scope.Allowed {
			out[id] = scope.Path
		}
	}
	return out
}

func (m *Manager) publish() {
	if m.onChange != nil {
		m.onChange(m.Resolved())
	}
}
