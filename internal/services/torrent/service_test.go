package torrent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
	"github.com/XITRIX/iTorrent-v2/internal/domain/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHandle struct {
	mu       sync.Mutex
	hashes   domain.TorrentHashes
	snapshot domain.Snapshot
	paused   int
	resumed  int
	reloaded int
}

func newFakeHandle(v1 string) *fakeHandle {
	hashes := domain.TorrentHashes{V1: v1}
	return &fakeHandle{
		hashes:   hashes,
		snapshot: domain.Snapshot{Hashes: hashes, State: domain.StateDownloading},
	}
}

func (h *fakeHandle) Hashes() domain.TorrentHashes { return h.hashes }

func (h *fakeHandle) Snapshot() domain.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot
}

func (h *fakeHandle) setSnapshot(s domain.Snapshot) {
	h.mu.Lock()
	h.snapshot = s
	h.mu.Unlock()
}

func (h *fakeHandle) Pause()  { h.mu.Lock(); h.paused++; h.mu.Unlock() }
func (h *fakeHandle) Resume() { h.mu.Lock(); h.resumed++; h.mu.Unlock() }
func (h *fakeHandle) Reload() { h.mu.Lock(); h.reloaded++; h.mu.Unlock() }

type fakeEngine struct {
	mu       sync.Mutex
	handles  []ports.Handle
	delegate ports.Delegate
	calls    []string
	added    []domain.TorrentSource
	removed  []ports.Handle
}

func (e *fakeEngine) record(call string) {
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.mu.Unlock()
}

func (e *fakeEngine) SetDelegate(d ports.Delegate) {
	e.record("setDelegate")
	e.mu.Lock()
	e.delegate = d
	e.mu.Unlock()
}

func (e *fakeEngine) Torrents() []ports.Handle {
	e.record("torrents")
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ports.Handle, len(e.handles))
	copy(out, e.handles)
	return out
}

func (e *fakeEngine) AddTorrent(src domain.TorrentSource, scope uuid.UUID) {
	e.record("add")
	e.mu.Lock()
	e.added = append(e.added, src)
	e.mu.Unlock()
}

func (e *fakeEngine) RemoveTorrent(h ports.Handle, deleteFiles bool) {
	e.record("remove")
	e.mu.Lock()
	e.removed = append(e.removed, h)
	e.mu.Unlock()
}

func (e *fakeEngine) Pause()  { e.record("pause") }
func (e *fakeEngine) Resume() { e.record("resume") }

func (e *fakeEngine) ApplySettings(domain.SessionSettings) { e.record("applySettings") }
func (e *fakeEngine) SetStorages(map[uuid.UUID]string)     { e.record("setStorages") }
func (e *fakeEngine) Close() error                         { return nil }

type fakeMetadataStore struct {
	mu     sync.Mutex
	dates  map[string]time.Time
	getErr error
}

func newFakeMetadataStore() *fakeMetadataStore {
	return &fakeMetadataStore{dates: make(map[string]time.Time)}
}

func (s *fakeMetadataStore) GetDateAdded(_ context.Context, hash string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return time.Time{}, false, s.getErr
	}
	at, ok := s.dates[hash]
	return at, ok, nil
}

func (s *fakeMetadataStore) SetDateAdded(_ context.Context, hash string, at time.Time) error {
	s.mu.Lock()
	s.dates[hash] = at
	s.mu.Unlock()
	return nil
}

func (s *fakeMetadataStore) DeleteMetadata(_ context.Context, hash string) error {
	s.mu.Lock()
	delete(s.dates, hash)
	s.mu.Unlock()
	return nil
}

func newTestService(engine *fakeEngine) *Service {
	s := NewService(engine, newFakeMetadataStore(), discardLogger())
	s.throttle = 5 * time.Millisecond
	return s
}

func TestStartHoldsEngineDuringRegistration(t *testing.T) {
	engine := &fakeEngine{handles: []ports.Handle{newFakeHandle("aaa"), newFakeHandle("bbb")}}
	s := newTestService(engine)
	defer s.Close()

	s.Start(context.Background())

	want := []string{"pause", "torrents", "resume", "setDelegate"}
	engine.mu.Lock()
	got := append([]string(nil), engine.calls...)
	engine.mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("engine calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("engine calls = %v, want %v", got, want)
		}
	}

	if len(s.Torrents()) != 2 {
		t.Errorf("registered = %d, want 2", len(s.Torrents()))
	}
}

func TestAddRejectsDuplicatesAndEmptySources(t *testing.T) {
	engine := &fakeEngine{handles: []ports.Handle{newFakeHandle("aaa")}}
	s := newTestService(engine)
	defer s.Close()
	s.Start(context.Background())

	if s.Add(domain.TorrentSource{}, uuid.Nil) {
		t.Error("empty source should be rejected")
	}
	if s.Add(domain.TorrentSource{Magnet: "magnet:x", Hashes: domain.TorrentHashes{V1: "aaa"}}, uuid.Nil) {
		t.Error("duplicate hash should be rejected")
	}
	if !s.Add(domain.TorrentSource{Magnet: "magnet:y", Hashes: domain.TorrentHashes{V1: "ccc"}}, uuid.Nil) {
		t.Error("new hash should be accepted")
	}

	engine.mu.Lock()
	added := len(engine.added)
	engine.mu.Unlock()
	if added != 1 {
		t.Errorf("engine adds = %d, want 1", added)
	}
}

func TestTorrentAddedIsIdempotent(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestService(engine)
	defer s.Close()
	s.Start(context.Background())

	h := newFakeHandle("aaa")
	s.TorrentAdded(h)
	s.TorrentAdded(h)
	s.TorrentAdded(newFakeHandle("aaa"))

	if got := len(s.Torrents()); got != 1 {
		t.Errorf("registered = %d, want 1", got)
	}
}

func TestTorrentRemovedEmitsRemovalOnce(t *testing.T) {
	engine := &fakeEngine{handles: []ports.Handle{newFakeHandle("aaa")}}
	s := newTestService(engine)
	defer s.Close()

	removals := make(chan domain.TorrentHashes, 4)
	s.SubscribeRemovals(func(h domain.TorrentHashes) { removals <- h })
	s.Start(context.Background())

	s.TorrentRemoved(domain.TorrentHashes{V1: "aaa"})
	s.TorrentRemoved(domain.TorrentHashes{V1: "aaa"})
	s.TorrentRemoved(domain.TorrentHashes{V1: "unknown"})

	select {
	case h := <-removals:
		if h.V1 != "aaa" {
			t.Errorf("removal hash = %q, want %q", h.V1, "aaa")
		}
	case <-time.After(time.Second):
		t.Fatal("removal signal not delivered")
	}

	select {
	case h := <-removals:
		t.Errorf("unexpected second removal: %v", h)
	case <-time.After(50 * time.Millisecond):
	}

	if got := len(s.Torrents()); got != 0 {
		t.Errorf("registered = %d, want 0", got)
	}
}

func TestUpdateBurstCoalescesIntoOneEmission(t *testing.T) {
	h := newFakeHandle("aaa")
	engine := &fakeEngine{handles: []ports.Handle{h}}
	s := newTestService(engine)
	defer s.Close()

	updates := make(chan UpdatePair, 16)
	s.SubscribeUpdates(func(p UpdatePair) { updates <- p })
	s.Start(context.Background())

	next := h.Snapshot()
	next.Progress = 0.5
	h.setSnapshot(next)
	for i := 0; i < 100; i++ {
		s.TorrentUpdated(h)
	}

	select {
	case pair := <-updates:
		if pair.Previous.Progress != 0 {
			t.Errorf("previous progress = %v, want 0", pair.Previous.Progress)
		}
		if pair.Current.Progress != 0.5 {
			t.Errorf("current progress = %v, want 0.5", pair.Current.Progress)
		}
	case <-time.After(time.Second):
		t.Fatal("update not delivered")
	}

	select {
	case pair := <-updates:
		t.Errorf("burst produced extra emission: %+v", pair.Current)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSpacedUpdatesEachEmit(t *testing.T) {
	h := newFakeHandle("aaa")
	engine := &fakeEngine{handles: []ports.Handle{h}}
	s := newTestService(engine)
	defer s.Close()

	updates := make(chan UpdatePair, 16)
	s.SubscribeUpdates(func(p UpdatePair) { updates <- p })
	s.Start(context.Background())

	for i := 0; i < 3; i++ {
		s.TorrentUpdated(h)
		select {
		case <-updates:
		case <-time.After(time.Second):
			t.Fatalf("update %d not delivered", i)
		}
	}
}

func TestUpdatesForUnknownHandlesAreDropped(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestService(engine)
	defer s.Close()

	updates := make(chan UpdatePair, 4)
	s.SubscribeUpdates(func(p UpdatePair) { updates <- p })
	s.Start(context.Background())

	s.TorrentUpdated(newFakeHandle("ghost"))

	select {
	case pair := <-updates:
		t.Errorf("unexpected update for unregistered handle: %+v", pair.Current)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRemovalDiscardsPendingEmission(t *testing.T) {
	h := newFakeHandle("aaa")
	engine := &fakeEngine{handles: []ports.Handle{h}}
	s := newTestService(engine)
	s.throttle = 100 * time.Millisecond
	defer s.Close()

	updates := make(chan UpdatePair, 4)
	removals := make(chan domain.TorrentHashes, 4)
	s.SubscribeUpdates(func(p UpdatePair) { updates <- p })
	s.SubscribeRemovals(func(hs domain.TorrentHashes) { removals <- hs })
	s.Start(context.Background())

	s.TorrentUpdated(h)
	s.TorrentRemoved(h.Hashes())

	select {
	case <-removals:
	case <-time.After(time.Second):
		t.Fatal("removal not delivered")
	}

	select {
	case pair := <-updates:
		t.Errorf("pending emission survived removal: %+v", pair.Current)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRemoveClearsMetadataAndForwardsToEngine(t *testing.T) {
	h := newFakeHandle("aaa")
	engine := &fakeEngine{handles: []ports.Handle{h}}
	store := newFakeMetadataStore()
	_ = store.SetDateAdded(context.Background(), "aaa", time.Now())

	s := NewService(engine, store, discardLogger())
	s.throttle = 5 * time.Millisecond
	defer s.Close()
	s.Start(context.Background())

	s.Remove(context.Background(), domain.TorrentHashes{V1: "aaa"}, true)

	engine.mu.Lock()
	removed := len(engine.removed)
	engine.mu.Unlock()
	if removed != 1 {
		t.Fatalf("engine removes = %d, want 1", removed)
	}
	if _, ok, _ := store.GetDateAdded(context.Background(), "aaa"); ok {
		t.Error("metadata should be cleared on remove")
	}

	// Unknown hashes do nothing.
	s.Remove(context.Background(), domain.TorrentHashes{V1: "nope"}, false)
	engine.mu.Lock()
	removed = len(engine.removed)
	engine.mu.Unlock()
	if removed != 1 {
		t.Errorf("engine removes = %d, want 1", removed)
	}
}

func TestReloadUnderMatchesNormalizedPaths(t *testing.T) {
	a := newFakeHandle("aaa")
	snapA := a.Snapshot()
	snapA.DownloadPath = "/mnt/library"
	a.setSnapshot(snapA)

	b := newFakeHandle("bbb")
	snapB := b.Snapshot()
	snapB.DownloadPath = "/mnt/other"
	b.setSnapshot(snapB)

	engine := &fakeEngine{handles: []ports.Handle{a, b}}
	s := newTestService(engine)
	defer s.Close()
	s.Start(context.Background())

	if got := s.ReloadUnder("/mnt/library/"); got != 1 {
		t.Errorf("reloaded = %d, want 1", got)
	}
	a.mu.Lock()
	reloaded := a.reloaded
	a.mu.Unlock()
	if reloaded != 1 {
		t.Errorf("handle reloads = %d, want 1", reloaded)
	}
}

func TestFindByBestHash(t *testing.T) {
	h := newFakeHandle("aaa")
	engine := &fakeEngine{handles: []ports.Handle{h}}
	s := newTestService(engine)
	defer s.Close()
	s.Start(context.Background())

	if s.FindByBestHash("aaa") == nil {
		t.Error("expected match for registered hash")
	}
	if s.FindByBestHash("zzz") != nil {
		t.Error("expected nil for unknown hash")
	}
}

func TestDateAddedIsLoadedOnce(t *testing.T) {
	h := newFakeHandle("aaa")
	engine := &fakeEngine{handles: []ports.Handle{h}}
	store := newFakeMetadataStore()
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	_ = store.SetDateAdded(context.Background(), "aaa", fixed)

	s := NewService(engine, store, discardLogger())
	s.throttle = 5 * time.Millisecond
	defer s.Close()

	updates := make(chan UpdatePair, 4)
	s.SubscribeUpdates(func(p UpdatePair) { updates <- p })
	s.Start(context.Background())

	s.TorrentUpdated(h)
	var pair UpdatePair
	select {
	case pair = <-updates:
	case <-time.After(time.Second):
		t.Fatal("update not delivered")
	}

	if !pair.Torrent.DateAdded().Equal(fixed) {
		t.Errorf("dateAdded = %v, want %v", pair.Torrent.DateAdded(), fixed)
	}
}

func TestDateAddedRetriesAfterStoreError(t *testing.T) {
	h := newFakeHandle("aaa")
	engine := &fakeEngine{handles: []ports.Handle{h}}
	store := newFakeMetadataStore()
	store.getErr = errors.New("store unavailable")

	s := NewService(engine, store, discardLogger())
	s.throttle = 5 * time.Millisecond
	defer s.Close()

	updates := make(chan UpdatePair, 8)
	s.SubscribeUpdates(func(p UpdatePair) { updates <- p })
	s.Start(context.Background())

	s.TorrentUpdated(h)
	var pair UpdatePair
	select {
	case pair = <-updates:
	case <-time.After(time.Second):
		t.Fatal("update not delivered")
	}
	if !pair.Torrent.DateAdded().IsZero() {
		t.Fatalf("dateAdded = %v, want zero while store is failing", pair.Torrent.DateAdded())
	}

	// Store recovers: the next capture derives and persists the date.
	store.mu.Lock()
	store.getErr = nil
	store.mu.Unlock()

	s.TorrentUpdated(h)
	select {
	case pair = <-updates:
	case <-time.After(time.Second):
		t.Fatal("update after recovery not delivered")
	}
	if pair.Torrent.DateAdded().IsZero() {
		t.Error("dateAdded still zero after store recovered")
	}
	store.mu.Lock()
	_, persisted := store.dates["aaa"]
	store.mu.Unlock()
	if !persisted {
		t.Error("derived date was not persisted")
	}
}
