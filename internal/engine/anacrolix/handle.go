package anacrolix

import (
	"encoding/base64"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/google/uuid"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
)

// handle adapts one anacrolix torrent to the engine port. Snapshot capture
// is lock-free against the engine; the handle's own mutex only guards the
// paused flag, the verify flag and the speed sample.
type handle struct {
	engine *Engine
	t      *torrent.Torrent

	hashes domain.TorrentHashes
	scope  uuid.UUID
	root   string
	magnet string

	mu        sync.Mutex
	paused    bool
	verifying bool
	speed     speedSample
}

type speedSample struct {
	at           time.Time
	bytesRead    int64
	bytesWritten int64
}

func (h *handle) Hashes() domain.TorrentHashes { return h.hashes }

// Snapshot captures the torrent's current state in one pass. Values come
// straight from the anacrolix client; nothing here blocks on the network.
func (h *handle) Snapshot() domain.Snapshot {
	h.mu.Lock()
	paused := h.paused
	verifying := h.verifying
	h.mu.Unlock()

	now := time.Now().UTC()
	snap := domain.Snapshot{
		Hashes:       h.hashes,
		Name:         h.t.Name(),
		Paused:       paused,
		DownloadPath: h.root,
		TakenAt:      now,
	}

	if !torrentInfoReady(h.t) {
		snap.State = domain.StateDownloadingMetadata
		stats := h.t.Stats()
		snap.Peers = stats.ActivePeers
		snap.Seeds = stats.ConnectedSeeders
		return snap
	}

	length := h.t.Length()
	completed := h.t.BytesCompleted()
	missing := h.t.BytesMissing()
	wanted := completed + missing

	snap.TotalBytes = length
	snap.CompletedBytes = completed
	snap.WantedBytes = wanted
	if length > 0 {
		snap.Progress = float64(completed) / float64(length)
	}
	if wanted > 0 {
		snap.ProgressWanted = float64(completed) / float64(wanted)
	} else {
		snap.ProgressWanted = 1
	}

	stats := h.t.Stats()
	snap.Peers = stats.ActivePeers
	snap.Seeds = stats.ConnectedSeeders
	snap.DownloadRate, snap.UploadRate = h.sampleSpeed(stats, now)

	snap.PieceCount, snap.PieceBitfield = pieceBitfield(h.t)

	switch {
	case verifying:
		snap.State = domain.StateCheckingFiles
	case snap.ProgressWanted >= 1 && paused:
		snap.State = domain.StateFinished
	case snap.ProgressWanted >= 1:
		snap.State = domain.StateSeeding
	default:
		snap.State = domain.StateDownloading
	}
	return snap
}

func (h *handle) Pause() {
	h.mu.Lock()
	if h.paused {
		h.mu.Unlock()
		return
	}
	h.paused = true
	h.mu.Unlock()

	hardPauseTorrent(h.t)
	h.engine.persistResume(h)
	h.engine.notifyUpdated(h)
}

func (h *handle) Resume() {
	h.mu.Lock()
	if !h.paused {
		h.mu.Unlock()
		return
	}
	h.paused = false
	h.mu.Unlock()

	if !h.engine.sessionPaused() {
		resumeTorrent(h.t)
	}
	h.engine.persistResume(h)
	h.engine.notifyUpdated(h)
}

func (h *handle) isPaused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// Reload re-verifies the torrent's data against its storage root. Runs in
// the background; the checking state is visible through snapshots until
// verification finishes.
func (h *handle) Reload() {
	h.mu.Lock()
	if h.verifying {
		h.mu.Unlock()
		return
	}
	h.verifying = true
	h.mu.Unlock()

	go func() {
		h.engine.notifyUpdated(h)
		h.t.VerifyData()
		h.mu.Lock()
		h.verifying = false
		h.mu.Unlock()
		h.engine.notifyUpdated(h)
	}()
}

func (h *handle) sampleSpeed(stats torrent.TorrentStats, now time.Time) (int64, int64) {
	currentRead := stats.BytesReadUsefulData.Int64()
	currentWritten := stats.BytesWrittenData.Int64()

	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.speed
	h.speed = speedSample{at: now, bytesRead: currentRead, bytesWritten: currentWritten}

	if prev.at.IsZero() {
		return 0, 0
	}
	dt := now.Sub(prev.at).Seconds()
	if dt <= 0 {
		return 0, 0
	}

	deltaRead := currentRead - prev.bytesRead
	deltaWritten := currentWritten - prev.bytesWritten
	if deltaRead < 0 {
		deltaRead = 0
	}
	if deltaWritten < 0 {
		deltaWritten = 0
	}
	return int64(float64(deltaRead) / dt), int64(float64(deltaWritten) / dt)
}

// hardPauseTorrent prevents all network activity for a torrent by
// disallowing data transfer and setting max connections to 0, which
// disconnects all peers.
func hardPauseTorrent(t *torrent.Torrent) {
	if t == nil {
		return
	}
	t.DisallowDataDownload()
	t.DisallowDataUpload()
	t.SetMaxEstablishedConns(0)
}

// resumeTorrent re-enables data transfer and peer connections, and starts
// downloading all pieces.
func resumeTorrent(t *torrent.Torrent) {
	if t == nil {
		return
	}
	t.SetMaxEstablishedConns(defaultMaxConns)
	t.AllowDataUpload()
	t.AllowDataDownload()
	if torrentInfoReady(t) {
		t.DownloadAll()
	}
}

func torrentInfoReady(t *torrent.Torrent) bool {
	if t == nil {
		return false
	}
	select {
	case <-t.GotInfo():
		return true
	default:
		return false
	}
}

// pieceBitfield returns the total piece count and a base64-encoded bitfield
// where each bit marks a complete piece.
func pieceBitfield(t *torrent.Torrent) (numPieces int, encoded string) {
	if !torrentInfoReady(t) {
		return 0, ""
	}
	n := t.NumPieces()
	if n <= 0 {
		return 0, ""
	}
	buf := make([]byte, (n+7)/8)
	for i := 0; i < n; i++ {
		if t.PieceState(i).Complete {
			buf[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return n, base64.StdEncoding.EncodeToString(buf)
}
