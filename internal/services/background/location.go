package background

import (
	"context"
	"log/slog"
	"sync"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
	"github.com/XITRIX/iTorrent-v2/internal/domain/ports"
)

// LocationStrategy keeps the process alive with continuous low-accuracy
// location updates. It is gated by the location permission: Prepare
// suspends on an undetermined permission until the authorization-changed
// callback fires.
type LocationStrategy struct {
	provider ports.LocationProvider
	logger   *slog.Logger

	mu      sync.Mutex
	allowed bool
	running bool
	// waiting is the single-shot continuation slot for a suspended
	// Prepare. It is cleared before resuming: the OS may deliver the
	// authorization callback more than once, and the slot must resume
	// exactly once.
	waiting chan struct{}
}

func NewLocationStrategy(provider ports.LocationProvider, logger *slog.Logger) *LocationStrategy {
	s := &LocationStrategy{provider: provider, logger: logger}
	s.allowed = provider.AuthorizationStatus().Usable()
	provider.SetAuthorizationHandler(s.authorizationChanged)
	return s
}

func (s *LocationStrategy) authorizationChanged(status domain.PermissionStatus) {
	s.mu.Lock()
	s.allowed = status.Usable()
	if !status.Determined() {
		s.mu.Unlock()
		return
	}
	waiting := s.waiting
	s.waiting = nil
	s.mu.Unlock()

	if waiting != nil {
		close(waiting)
	}
}

// Prepare returns immediately when the permission state is already
// determined; otherwise it issues the request and suspends until the
// authorization-changed callback resumes it.
func (s *LocationStrategy) Prepare(ctx context.Context) bool {
	status := s.provider.AuthorizationStatus()
	if status.Determined() {
		return status.Usable()
	}

	waiting := make(chan struct{})
	s.mu.Lock()
	s.waiting = waiting
	s.mu.Unlock()

	s.provider.RequestAuthorization()

	select {
	case <-waiting:
	case <-ctx.Done():
		// Process shutdown; reclaim the slot if the callback has not.
		s.mu.Lock()
		if s.waiting == waiting {
			s.waiting = nil
		}
		s.mu.Unlock()
		return false
	}

	status = s.provider.AuthorizationStatus()
	return status.Determined() && status.Usable()
}

// Start rechecks the permission before enabling updates: the grant can
// change between Prepare and Start.
func (s *LocationStrategy) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return true
	}
	if !s.provider.AuthorizationStatus().Usable() {
		s.logger.Warn("location keep-alive refused", slog.String("reason", "permission denied"))
		return false
	}
	if err := s.provider.StartUpdates(); err != nil {
		s.logger.Warn("location updates failed to start", slog.String("error", err.Error()))
		return false
	}
	s.running = true
	return true
}

func (s *LocationStrategy) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.provider.StopUpdates()
	s.running = false
}

func (s *LocationStrategy) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
