package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
	"github.com/XITRIX/iTorrent-v2/internal/domain/ports"
	"github.com/XITRIX/iTorrent-v2/internal/metrics"
	"github.com/XITRIX/iTorrent-v2/internal/services/torrent"
)

// Service watches the throttled snapshot stream and fires a local
// notification exactly once per completion event. A completion event is a
// strict crossing on consecutive snapshots: a handle already complete at
// subscription time never fires, and updates after completion never
// re-fire.
type Service struct {
	Preferences func() domain.Preferences
	Scheduler   ports.NotificationScheduler
	Logger      *slog.Logger

	badge atomic.Int64
}

// Attach subscribes the service to the registry's update stream.
func (s *Service) Attach(registry *torrent.Service) {
	registry.SubscribeUpdates(s.HandleUpdate)
}

// Badge returns the current badge counter value.
func (s *Service) Badge() int64 { return s.badge.Load() }

// ResetBadge clears the badge counter, as the app shell does when the user
// opens the torrent list.
func (s *Service) ResetBadge() {
	s.badge.Store(0)
	metrics.BadgeCounter.Set(0)
}

func (s *Service) HandleUpdate(pair torrent.UpdatePair) {
	prefs := s.Preferences()
	if !prefs.DownloadNotifications {
		return
	}
	// A checking pass can report transient sub-1.0 progress; crossing out
	// of it is not a completion.
	if pair.Previous.State == domain.StateCheckingFiles {
		return
	}
	if pair.Previous.ProgressWanted >= 1 || pair.Current.ProgressWanted < 1 {
		return
	}

	if prefs.StopSeedingOnFinish {
		pair.Torrent.Pause()
	}

	hash := pair.Current.Hashes.Best()
	notification := ports.Notification{
		Identifier: hash,
		Title:      "Download finished",
		Body:       pair.Current.Name,
		Sound:      true,
		UserInfo:   map[string]string{"hash": hash},
	}

	// Delivery runs off the dispatch sequence: a slow or unreachable
	// gateway must never stall update-pair delivery.
	go s.schedule(notification)

	metrics.CompletionNotificationsTotal.Inc()
	metrics.BadgeCounter.Set(float64(s.badge.Add(1)))
	s.Logger.Info("download complete",
		slog.String("hash", hash),
		slog.String("name", pair.Current.Name))
}

func (s *Service) schedule(n ports.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Scheduler.Schedule(ctx, n); err != nil {
		metrics.NotificationFailuresTotal.Inc()
		s.Logger.Warn("notification scheduling failed",
			slog.String("hash", n.Identifier),
			slog.String("error", err.Error()))
	}
}
