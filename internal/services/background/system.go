package background

import (
	"log/slog"
	"sync"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
	"github.com/XITRIX/iTorrent-v2/internal/domain/ports"
)

// systemAudioSession is the headless audio port used when no platform
// bridge is injected: activation holds a token goroutine open so the
// process has work pending, matching the silent-player keep-alive shape.
type systemAudioSession struct {
	mu   sync.Mutex
	stop chan struct{}
}

func NewSystemAudioSession() ports.AudioSession { return &systemAudioSession{} }

func (s *systemAudioSession) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	s.stop = make(chan struct{})
	go func(stop chan struct{}) { <-stop }(s.stop)
	return nil
}

func (s *systemAudioSession) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
}

// systemLocationProvider is the headless location port: permission is
// granted by construction and updates are a no-op. Platforms with a real
// location service inject their own provider.
type systemLocationProvider struct {
	mu      sync.Mutex
	handler func(domain.PermissionStatus)
}

func NewSystemLocationProvider() ports.LocationProvider { return &systemLocationProvider{} }

func (p *systemLocationProvider) AuthorizationStatus() domain.PermissionStatus {
	return domain.PermissionAllowed
}

func (p *systemLocationProvider) RequestAuthorization() {
	p.mu.Lock()
	handler := p.handler
	p.mu.Unlock()
	if handler != nil {
		handler(domain.PermissionAllowed)
	}
}

func (p *systemLocationProvider) SetAuthorizationHandler(fn func(domain.PermissionStatus)) {
	p.mu.Lock()
	p.handler = fn
	p.mu.Unlock()
}

func (p *systemLocationProvider) StartUpdates() error { return nil }
func (p *systemLocationProvider) StopUpdates()        {}

// NewStrategyFactory builds the default strategy factory over the given
// ports. Unknown modes fall back to the audio strategy.
func NewStrategyFactory(audio ports.AudioSession, location ports.LocationProvider, logger *slog.Logger) func(domain.BackgroundMode) Strategy {
	return func(mode domain.BackgroundMode) Strategy {
		switch mode {
		case domain.BackgroundLocation:
			return NewLocationStrategy(location, logger)
		default:
			return NewAudioStrategy(audio, logger)
		}
	}
}
