package background

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
	"github.com/XITRIX/iTorrent-v2/internal/metrics"
)

// Strategy is the capability set shared by the keep-alive implementations.
// Prepare may suspend the caller on an asynchronous permission request; its
// result reflects whether the strategy believes it can run under the
// current permission state.
type Strategy interface {
	Prepare(ctx context.Context) bool
	Start() bool
	Stop()
	IsRunning() bool
}

type State int

const (
	StateIdle State = iota
	StatePreparing
	StateRunning
)

var stateNames = [...]string{"idle", "preparing", "running"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Controller keeps the process alive in the background with exactly one of
// two mutually exclusive strategies, selected by configuration and gated by
// live permission state. Inability to start is reported as a boolean, never
// a crash; the controller always stays in a well-defined state.
type Controller struct {
	factory func(domain.BackgroundMode) Strategy
	logger  *slog.Logger

	mu    sync.Mutex
	state State
	mode  domain.BackgroundMode
	impl  Strategy
}

func NewController(factory func(domain.BackgroundMode) Strategy, defaultMode domain.BackgroundMode, logger *slog.Logger) *Controller {
	return &Controller{
		factory: factory,
		logger:  logger,
		state:   StateIdle,
		mode:    defaultMode,
		impl:    factory(defaultMode),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Mode() domain.BackgroundMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRunning && c.impl.IsRunning()
}

// ApplyMode tears down any running strategy, swaps in the new one, and asks
// it to prepare. Preparation may suspend on a permission request; the
// result reports whether the strategy can run.
func (c *Controller) ApplyMode(ctx context.Context, mode domain.BackgroundMode) bool {
	c.mu.Lock()
	if c.impl != nil && c.impl.IsRunning() {
		c.impl.Stop()
	}
	c.transitionLocked(StatePreparing)
	c.mode = mode
	impl := c.factory(mode)
	c.impl = impl
	c.mu.Unlock()

	ok := impl.Prepare(ctx)

	c.mu.Lock()
	// Another ApplyMode may have raced in while we were suspended.
	if c.impl == impl && c.state == StatePreparing && !ok {
		c.transitionLocked(StateIdle)
	}
	c.mu.Unlock()

	c.logger.Info("background mode applied",
		slog.String("mode", string(mode)),
		slog.Bool("canRun", ok))
	return ok
}

// Start asks the active strategy to begin. Meaningful from Idle or
// Preparing; starting while already running reports success.
func (c *Controller) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning {
		return true
	}
	if c.impl == nil {
		return false
	}
	if !c.impl.Start() {
		c.transitionLocked(StateIdle)
		return false
	}
	c.transitionLocked(StateRunning)
	return true
}

// Stop ceases the running strategy. Idempotent: stopping while idle is a
// no-op and never tears a strategy down twice.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return
	}
	c.impl.Stop()
	c.transitionLocked(StateIdle)
}

func (c *Controller) transitionLocked(to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	metrics.BackgroundTransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
	c.logger.Debug("background state transition",
		slog.String("from", from.String()),
		slog.String("to", to.String()))
}
