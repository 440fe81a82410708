package torrent

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

const defaultThrottle = 100 * time.Millisecond

// Torrent wraps an engine handle together with its last captured snapshot
// and the throttled update pipeline feeding downstream consumers.
type Torrent struct {
	handle ports.Handle

	mu       sync.Mutex
	snapshot domain.Snapshot

	// metadataLoaded flips only when a date-added is actually derived, so a
	// transient store error is retried on the next capture.
	metadataLoaded bool
	dateAdded      time.Time

	monitor *updateMonitor
}

func (t *Torrent) Hashes() domain.TorrentHashes { return t.handle.Hashes() }

// Snapshot returns the last delivered snapshot. It never goes backwards:
// replacement only happens on the per-handle capture path.
func (t *Torrent) Snapshot() domain.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot
}

func (t *Torrent) DateAdded() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dateAdded
}

func (t *Torrent) Pause()  { t.handle.Pause() }
func (t *Torrent) Resume() { t.handle.Resume() }

// UpdatePair carries the previous and current snapshot of one handle for
// edge-transition diffing.
type UpdatePair struct {
	Previous domain.Snapshot
	Current  domain.Snapshot
	Torrent  *Torrent
}

type event struct {
	pair    *UpdatePair
	removed *domain.TorrentHashes
}

// Service is the torrent registry: the sole writer of the handle list. It
// mediates add/remove against the engine and reconciles the asynchronous
// engine callbacks into a single consistent in-memory model.
type Service struct {
	engine   ports.Engine
	metadata ports.MetadataStore
	logger   *slog.Logger
	throttle time.Duration

	mu          sync.Mutex
	torrents    []*Torrent
	updateSubs  []func(UpdatePair)
	removalSubs []func(domain.TorrentHashes)

	events    chan event
	done      chan struct{}
	closeOnce sync.Once
}

func NewService(engine ports.Engine, metadata ports.MetadataStore, logger *slog.Logger) *Service {
	return &Service{
		engine:   engine,
		metadata: metadata,
		logger:   logger,
		throttle: defaultThrottle,
		events:   make(chan event, 64),
		done:     make(chan struct{}),
	}
}

// SubscribeUpdates registers a consumer of throttled (previous, current)
// snapshot pairs. Delivery is serialized: subscribers observe one logical
// sequence and per-handle snapshots are monotonic.
func (s *Service) SubscribeUpdates(fn func(UpdatePair)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateSubs = append(s.updateSubs, fn)
}

// SubscribeRemovals registers a consumer of removal signals, delivered on
// the same sequence as updates.
func (s *Service) SubscribeRemovals(fn func(domain.TorrentHashes)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removalSubs = append(s.removalSubs, fn)
}

// Start performs the initial registration pass and installs the engine
// delegate. The engine is intentionally held paused while first snapshots
// are captured so registration never races live update callbacks.
func (s *Service) Start(ctx context.Context) {
	s.engine.Pause()
	s.mu.Lock()
	for _, h := range s.engine.Torrents() {
		s.registerLocked(h)
	}
	count := len(s.torrents)
	s.mu.Unlock()
	s.engine.Resume()
	s.engine.SetDelegate(s)

	s.logger.Info("torrent registry started", slog.Int("restored", count))
	go s.dispatch(ctx)
}

func (s *Service) dispatch(ctx context.Context) {
	defer s.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case e := <-s.events:
			s.deliver(e)
		}
	}
}

func (s *Service) deliver(e event) {
	s.mu.Lock()
	updateSubs := s.updateSubs
	removalSubs := s.removalSubs
	s.mu.Unlock()

	if e.pair != nil {
		for _, fn := range updateSubs {
			fn(*e.pair)
		}
	}
	if e.removed != nil {
		for _, fn := range removalSubs {
			fn(*e.removed)
		}
	}
}

// Close stops the dispatch loop and every per-handle monitor.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		for _, t := range s.torrents {
			t.monitor.Close()
		}
		s.mu.Unlock()
	})
}

func (s *Service) findLocked(hashes domain.TorrentHashes) (int, *Torrent) {
	for i, t := range s.torrents {
		if t.Hashes().Match(hashes) {
			return i, t
		}
	}
	return -1, nil
}

// Find returns the registered torrent matching the hash pair, or nil.
func (s *Service) Find(hashes domain.TorrentHashes) *Torrent {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, t := s.findLocked(hashes)
	return t
}

// FindByBestHash resolves a deep-link hash (best-available info-hash hex).
func (s *Service) FindByBestHash(hex string) *Torrent {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.torrents {
		if t.Hashes().Best() == hex {
			return t
		}
	}
	return nil
}

func (s *Service) Exists(hashes domain.TorrentHashes) bool {
	return s.Find(hashes) != nil
}

// Torrents returns the current handle list in registration order.
func (s *Service) Torrents() []*Torrent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Torrent, len(s.torrents))
	copy(out, s.torrents)
	return out
}

// Snapshots returns the last delivered snapshot for every registered handle.
func (s *Service) Snapshots() []domain.Snapshot {
	torrents := s.Torrents()
	out := make([]domain.Snapshot, 0, len(torrents))
	for _, t := range torrents {
		out = append(out, t.Snapshot())
	}
	return out
}

// Add hands a new torrent to the engine. It returns false with no side
// effect when a handle with the same info-hash pair is already registered;
// registration itself completes asynchronously via TorrentAdded.
func (s *Service) Add(src domain.TorrentSource, scope uuid.UUID) bool {
	if src.IsEmpty() {
		return false
	}
	s.mu.Lock()
	_, existing := s.findLocked(src.Hashes)
	s.mu.Unlock()
	if existing != nil {
		s.logger.Info("duplicate torrent rejected", slog.String("hash", src.Hashes.Best()))
		return false
	}
	s.engine.AddTorrent(src, scope)
	return true
}

// Remove instructs the engine to drop the matching handle and clears its
// cached metadata. Unknown hashes are a no-op. List removal happens when
// the engine confirms via TorrentRemoved.
func (s *Service) Remove(ctx context.Context, hashes domain.TorrentHashes, deleteFiles bool) {
	t := s.Find(hashes)
	if t == nil {
		return
	}
	if err := s.metadata.DeleteMetadata(ctx, hashes.Best()); err != nil {
		s.logger.Warn("metadata delete failed",
			slog.String("hash", hashes.Best()),
			slog.String("error", err.Error()))
	}
	s.engine.RemoveTorrent(t.handle, deleteFiles)
}

// ReloadUnder re-attaches every handle whose download path equals the given
// storage root, used after a scope has been re-resolved.
func (s *Service) ReloadUnder(path string) int {
	normalized := domain.NormalizePath(path)
	reloaded := 0
	for _, t := range s.Torrents() {
		if domain.NormalizePath(t.Snapshot().DownloadPath) == normalized {
			t.handle.Reload()
			reloaded++
		}
	}
	return reloaded
}

// ---------------------------------------------------------------------------
// Engine delegate
// ---------------------------------------------------------------------------

// TorrentAdded registers a new engine handle. Idempotent: repeated callbacks
// for the same hash are ignored.
func (s *Service) TorrentAdded(h ports.Handle) {
	s.mu.Lock()
	if _, existing := s.findLocked(h.Hashes()); existing != nil {
		s.mu.Unlock()
		return
	}
	s.registerLocked(h)
	count := len(s.torrents)
	s.mu.Unlock()

	metrics.ActiveTorrents.Set(float64(count))
	s.logger.Info("torrent added", slog.String("hash", h.Hashes().Best()))
}

// TorrentRemoved drops the matching handle and emits a removal signal.
// Idempotent: unknown hashes are ignored, including a remove arriving
// before the corresponding add completed registration.
func (s *Service) TorrentRemoved(hashes domain.TorrentHashes) {
	s.mu.Lock()
	idx, t := s.findLocked(hashes)
	if t == nil {
		s.mu.Unlock()
		return
	}
	s.torrents = append(s.torrents[:idx], s.torrents[idx+1:]...)
	count := len(s.torrents)
	s.mu.Unlock()

	// Discards any pending throttled emission for this handle.
	t.monitor.Close()

	metrics.ActiveTorrents.Set(float64(count))
	s.logger.Info("torrent removed", slog.String("hash", hashes.Best()))
	s.emit(event{removed: &hashes})
}

// TorrentUpdated marks the matching handle dirty. Updates for handles not
// yet registered are dropped.
func (s *Service) TorrentUpdated(h ports.Handle) {
	s.mu.Lock()
	_, t := s.findLocked(h.Hashes())
	s.mu.Unlock()
	if t == nil {
		return
	}
	t.monitor.Signal()
}

// SessionError is observation-only: logged, no retry.
func (s *Service) SessionError(err error) {
	metrics.EngineErrorsTotal.Inc()
	s.logger.Error("engine error", slog.String("error", err.Error()))
}

// ---------------------------------------------------------------------------

// registerLocked captures the first snapshot and attaches the update
// pipeline. Caller holds s.mu.
func (s *Service) registerLocked(h ports.Handle) {
	t := &Torrent{handle: h, snapshot: h.Snapshot()}
	t.monitor = newUpdateMonitor(s.throttle, func() { s.capture(t) })
	s.torrents = append(s.torrents, t)
}

// capture runs on the handle's monitor goroutine: it retains the previous
// snapshot, captures a fresh one off the delivery context, and hands the
// pair to the dispatch loop.
func (s *Service) capture(t *Torrent) {
	t.mu.Lock()
	loaded := t.metadataLoaded
	t.mu.Unlock()
	if !loaded {
		s.loadMetadata(t)
	}

	t.mu.Lock()
	prev := t.snapshot
	cur := t.handle.Snapshot()
	t.snapshot = cur
	t.mu.Unlock()

	metrics.SnapshotEmissionsTotal.Inc()
	s.emit(event{pair: &UpdatePair{Previous: prev, Current: cur, Torrent: t}})
}

func (s *Service) emit(e event) {
	select {
	case s.events <- e:
	case <-s.done:
	}
}

// loadMetadata derives the handle's date-added once and keeps it stable.
func (s *Service) loadMetadata(t *Torrent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hash := t.Hashes().Best()
	at, ok, err := s.metadata.GetDateAdded(ctx, hash)
	if err != nil {
		s.logger.Warn("metadata load failed",
			slog.String("hash", hash),
			slog.String("error", err.Error()))
		return
	}
	if !ok {
		at = time.Now().UTC()
		if err := s.metadata.SetDateAdded(ctx, hash, at); err != nil {
			s.logger.Warn("metadata store failed",
				slog.String("hash", hash),
				slog.String("error", err.Error()))
		}
	}
	t.mu.Lock()
	t.dateAdded = at
	t.metadataLoaded = true
	t.mu.Unlock()
}
