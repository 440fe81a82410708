package anacrolix

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
	"github.com/XITRIX/iTorrent-v2/internal/domain/ports"
)

// defaultMaxConns is the value restored when resuming a hard-paused torrent.
const defaultMaxConns = 35

// pollInterval drives the update callback cadence. Consumers throttle on
// their side, so this only needs to be fast enough to feel live.
const pollInterval = 500 * time.Millisecond

const addTimeout = 10 * time.Second

type Config struct {
	// DataDir is the sandbox download root, used for torrents whose scope
	// is unknown or unresolved.
	DataDir string
	// Settings seeds the construction-time client knobs. Later changes
	// arrive through ApplySettings; knobs anacrolix only reads at
	// construction keep their initial value.
	Settings domain.SessionSettings
}

// Engine implements the engine port on top of the anacrolix client. Add and
// remove run asynchronously; completion surfaces through the delegate.
type Engine struct {
	client  *torrent.Client
	logger  *slog.Logger
	dataDir string

	resume *resumeStore

	dlLimiter *rate.Limiter
	ulLimiter *rate.Limiter

	mu       sync.Mutex
	delegate ports.Delegate
	handles  []*handle
	storages map[uuid.UUID]string
	paused   bool

	done      chan struct{}
	closeOnce sync.Once
}

func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("data dir not configured")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	dlLimiter := newRateLimiter(cfg.Settings.MaxDownloadSpeed)
	ulLimiter := newRateLimiter(cfg.Settings.MaxUploadSpeed)

	clientConfig := torrent.NewDefaultClientConfig()
	clientConfig.DataDir = cfg.DataDir
	clientConfig.Seed = true
	clientConfig.NoDHT = !cfg.Settings.DHTEnabled
	clientConfig.DisableUTP = !cfg.Settings.UTPEnabled
	clientConfig.NoDefaultPortForwarding = !cfg.Settings.UPnPEnabled
	clientConfig.DownloadRateLimiter = dlLimiter
	clientConfig.UploadRateLimiter = ulLimiter
	clientConfig.HeaderObfuscationPolicy = headerObfuscation(cfg.Settings.EncryptionPolicy)

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		client:    client,
		logger:    logger,
		dataDir:   cfg.DataDir,
		resume:    newResumeStore(filepath.Join(cfg.DataDir, ".resume")),
		dlLimiter: dlLimiter,
		ulLimiter: ulLimiter,
		storages:  cloneStorages(cfg.Settings.Storages),
		done:      make(chan struct{}),
	}

	if err := e.restore(); err != nil {
		logger.Warn("resume restore incomplete", slog.String("error", err.Error()))
	}

	go e.poll()
	return e, nil
}

func headerObfuscation(policy domain.EncryptionPolicy) torrent.HeaderObfuscationPolicy {
	switch policy {
	case domain.EncryptionForced:
		return torrent.HeaderObfuscationPolicy{RequirePreferred: true, Preferred: true}
	case domain.EncryptionDisabled:
		return torrent.HeaderObfuscationPolicy{RequirePreferred: true, Preferred: false}
	default:
		return torrent.HeaderObfuscationPolicy{Preferred: true}
	}
}

func newRateLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec))
}

func cloneStorages(in map[uuid.UUID]string) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// restore re-adds every persisted torrent so the handles are available to
// the startup enumeration before live callbacks begin.
func (e *Engine) restore() error {
	entries, err := e.resume.load()
	if err != nil {
		return err
	}
	var firstErr error
	for _, entry := range entries {
		if err := e.restoreEntry(entry); err != nil {
			e.logger.Warn("restoring torrent failed",
				slog.String("hash", entry.hashes().Best()),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (e *Engine) restoreEntry(entry resumeEntry) error {
	spec, err := e.specFor(domain.TorrentSource{Magnet: entry.Magnet, TorrentFile: entry.Metainfo}, entry.Scope)
	if err != nil {
		return err
	}
	t, _, err := e.client.AddTorrentSpec(spec)
	if err != nil {
		return err
	}

	h := &handle{
		engine: e,
		t:      t,
		hashes: withClientHash(entry.hashes(), t),
		scope:  entry.Scope,
		root:   e.rootFor(entry.Scope),
		magnet: entry.Magnet,
		paused: entry.Paused,
	}
	if entry.Paused {
		hardPauseTorrent(t)
	}

	e.mu.Lock()
	e.handles = append(e.handles, h)
	e.mu.Unlock()

	e.watchInfo(h)
	return nil
}

// specFor builds an anacrolix torrent spec with per-scope file storage.
func (e *Engine) specFor(src domain.TorrentSource, scope uuid.UUID) (*torrent.TorrentSpec, error) {
	var spec *torrent.TorrentSpec
	switch {
	case len(src.TorrentFile) > 0:
		mi, err := metainfo.Load(bytes.NewReader(src.TorrentFile))
		if err != nil {
			return nil, err
		}
		spec = torrent.TorrentSpecFromMetaInfo(mi)
	case src.Magnet != "":
		var err error
		spec, err = torrent.TorrentSpecFromMagnetUri(src.Magnet)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("empty torrent source")
	}
	if src.DisplayName != "" && spec.DisplayName == "" {
		spec.DisplayName = src.DisplayName
	}
	spec.Storage = storage.NewFile(e.rootFor(scope))
	return spec, nil
}

func (e *Engine) rootFor(scope uuid.UUID) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if path, ok := e.storages[scope]; ok && path != "" {
		return path
	}
	return e.dataDir
}

func (e *Engine) sessionPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) currentDelegate() ports.Delegate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.delegate
}

func (e *Engine) notifyUpdated(h *handle) {
	if d := e.currentDelegate(); d != nil {
		d.TorrentUpdated(h)
	}
}

func (e *Engine) reportError(err error) {
	if d := e.currentDelegate(); d != nil {
		d.SessionError(err)
	}
}

// watchInfo persists the metainfo once metadata arrives and pushes an
// update so consumers see the name and size without waiting for a poll.
func (e *Engine) watchInfo(h *handle) {
	go func() {
		select {
		case <-h.t.GotInfo():
		case <-e.done:
			return
		}
		if !h.isPaused() && !e.sessionPaused() {
			h.t.DownloadAll()
		}
		e.persistResume(h)
		e.notifyUpdated(h)
	}()
}

func (e *Engine) persistResume(h *handle) {
	if err := e.resume.save(h); err != nil {
		e.logger.Warn("resume save failed",
			slog.String("hash", h.hashes.Best()),
			slog.String("error", err.Error()))
	}
}

// poll drives periodic update callbacks for every live handle.
func (e *Engine) poll() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.mu.Lock()
			d := e.delegate
			handles := make([]*handle, len(e.handles))
			copy(handles, e.handles)
			e.mu.Unlock()
			if d == nil {
				continue
			}
			for _, h := range handles {
				d.TorrentUpdated(h)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Engine port
// ---------------------------------------------------------------------------

func (e *Engine) SetDelegate(d ports.Delegate) {
	e.mu.Lock()
	e.delegate = d
	e.mu.Unlock()
}

func (e *Engine) Torrents() []ports.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ports.Handle, len(e.handles))
	for i, h := range e.handles {
		out[i] = h
	}
	return out
}

// AddTorrent is fire-and-forget: the handle surfaces later through
// TorrentAdded, failures through SessionError.
func (e *Engine) AddTorrent(src domain.TorrentSource, scope uuid.UUID) {
	go func() {
		spec, err := e.specFor(src, scope)
		if err != nil {
			e.reportError(err)
			return
		}

		// AddTorrentSpec can block on the client's internal mutex while
		// metadata for another torrent resolves; cap the wait and drop
		// any orphan that completes after we gave up.
		type addResult struct {
			t   *torrent.Torrent
			err error
		}
		ch := make(chan addResult, 1)
		go func() {
			t, _, err := e.client.AddTorrentSpec(spec)
			ch <- addResult{t, err}
		}()

		var t *torrent.Torrent
		select {
		case res := <-ch:
			if res.err != nil {
				e.reportError(res.err)
				return
			}
			t = res.t
		case <-time.After(addTimeout):
			go func() {
				if res := <-ch; res.t != nil {
					res.t.Drop()
				}
			}()
			e.reportError(errors.New("torrent client busy, try again later"))
			return
		}

		h := &handle{
			engine: e,
			t:      t,
			hashes: withClientHash(src.Hashes, t),
			scope:  scope,
			root:   e.rootFor(scope),
			magnet: src.Magnet,
		}

		e.mu.Lock()
		for _, existing := range e.handles {
			if existing.hashes.Match(h.hashes) {
				e.mu.Unlock()
				return
			}
		}
		paused := e.paused
		e.handles = append(e.handles, h)
		e.mu.Unlock()

		if paused {
			hardPauseTorrent(t)
		} else {
			resumeTorrent(t)
		}

		e.persistResume(h)
		e.watchInfo(h)

		if d := e.currentDelegate(); d != nil {
			d.TorrentAdded(h)
		}
	}()
}

// RemoveTorrent drops the handle and its persisted resume data, optionally
// deleting downloaded files. Confirmation arrives via TorrentRemoved.
func (e *Engine) RemoveTorrent(ph ports.Handle, deleteFiles bool) {
	h, ok := ph.(*handle)
	if !ok {
		return
	}

	go func() {
		e.mu.Lock()
		for i, existing := range e.handles {
			if existing == h {
				e.handles = append(e.handles[:i], e.handles[i+1:]...)
				break
			}
		}
		e.mu.Unlock()

		var dataPath string
		if deleteFiles && torrentInfoReady(h.t) {
			dataPath = filepath.Join(h.root, h.t.Name())
		}

		h.t.Drop()
		if err := e.resume.remove(h.hashes); err != nil {
			e.logger.Warn("resume cleanup failed",
				slog.String("hash", h.hashes.Best()),
				slog.String("error", err.Error()))
		}
		if dataPath != "" {
			if err := os.RemoveAll(dataPath); err != nil {
				e.logger.Warn("data delete failed",
					slog.String("path", dataPath),
					slog.String("error", err.Error()))
			}
		}

		if d := e.currentDelegate(); d != nil {
			d.TorrentRemoved(h.hashes)
		}
	}()
}

// Pause gates the whole session: every handle is hard-paused regardless of
// its own paused flag, which is preserved for Resume.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = true
	handles := make([]*handle, len(e.handles))
	copy(handles, e.handles)
	e.mu.Unlock()

	for _, h := range handles {
		hardPauseTorrent(h.t)
	}
}

// Resume lifts the session gate; individually paused handles stay paused.
func (e *Engine) Resume() {
	e.mu.Lock()
	if !e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = false
	handles := make([]*handle, len(e.handles))
	copy(handles, e.handles)
	e.mu.Unlock()

	for _, h := range handles {
		if !h.isPaused() {
			resumeTorrent(h.t)
		}
	}
}

// ApplySettings applies what the running client supports (rate limits via
// the shared limiters, storage roots) and logs the rest. Knobs anacrolix
// reads only at construction keep their initial value until restart.
func (e *Engine) ApplySettings(settings domain.SessionSettings) {
	if settings.MaxDownloadSpeed <= 0 {
		e.dlLimiter.SetLimit(rate.Inf)
	} else {
		e.dlLimiter.SetLimit(rate.Limit(settings.MaxDownloadSpeed))
		e.dlLimiter.SetBurst(int(settings.MaxDownloadSpeed))
	}
	if settings.MaxUploadSpeed <= 0 {
		e.ulLimiter.SetLimit(rate.Inf)
	} else {
		e.ulLimiter.SetLimit(rate.Limit(settings.MaxUploadSpeed))
		e.ulLimiter.SetBurst(int(settings.MaxUploadSpeed))
	}

	e.SetStorages(settings.Storages)

	e.logger.Debug("session settings applied",
		slog.Int64("maxDownloadSpeed", settings.MaxDownloadSpeed),
		slog.Int64("maxUploadSpeed", settings.MaxUploadSpeed),
		slog.Int("interfaces", len(settings.Interfaces)),
		slog.Int("storages", len(settings.Storages)))
}

func (e *Engine) SetStorages(storages map[uuid.UUID]string) {
	e.mu.Lock()
	e.storages = cloneStorages(storages)
	e.mu.Unlock()
}

func (e *Engine) Close() error {
	var errList []error
	e.closeOnce.Do(func() {
		close(e.done)
		errList = e.client.Close()
	})
	if len(errList) > 0 {
		return errList[0]
	}
	return nil
}

// withClientHash fills the v1 hash from the client when the source carried
// only a v2 hash or none at all.
func withClientHash(hashes domain.TorrentHashes, t *torrent.Torrent) domain.TorrentHashes {
	if hashes.V1 == "" {
		hashes.V1 = t.InfoHash().HexString()
	}
	return hashes
}
