package background

import (
	"context"
	"log/slog"
	"sync"

	"github.com/XITRIX/iTorrent-v2/internal/domain/ports"
)

// AudioStrategy keeps the process alive with a silent audio session. No OS
// permission gates it, so Prepare always succeeds.
type AudioStrategy struct {
	session ports.AudioSession
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

func NewAudioStrategy(session ports.AudioSession, logger *slog.Logger) *AudioStrategy {
	return &AudioStrategy{session: session, logger: logger}
}

func (s *AudioStrategy) Prepare(ctx context.Context) bool { return true }

func (s *AudioStrategy) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return true
	}
	if err := s.session.Activate(); err != nil {
		s.logger.Warn("audio session activation failed", slog.String("error", err.Error()))
		return false
	}
	s.running = true
	return true
}

func (s *AudioStrategy) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.session.Deactivate()
	s.running = false
}

func (s *AudioStrategy) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
