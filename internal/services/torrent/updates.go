package torrent

import (
	"sync"
	"time"

	"github.com/XITRIX/iTorrent-v2/internal/metrics"
)

// updateMonitor converts an unbounded stream of raw "something changed"
// signals into at most one recomputation per throttle period. It is a
// trailing-edge, keep-latest throttle: the first signal opens a window,
// further signals inside the window coalesce, and a single fire happens at
// the window's end. Closing the monitor while a window is pending discards
// the emission.
type updateMonitor struct {
	period    time.Duration
	signal    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	fire      func()
}

func newUpdateMonitor(period time.Duration, fire func()) *updateMonitor {
	m := &updateMonitor{
		period: period,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		fire:   fire,
	}
	go m.run()
	return m
}

// Signal marks the handle dirty. Never blocks: a signal arriving while one
// is already queued collapses into it.
func (m *updateMonitor) Signal() {
	select {
	case m.signal <- struct{}{}:
	default:
		metrics.CoalescedSignalsTotal.Inc()
	}
}

func (m *updateMonitor) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

func (m *updateMonitor) run() {
	timer := time.NewTimer(m.period)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-m.done:
			return
		case <-m.signal:
		}

		timer.Reset(m.period)
		select {
		case <-m.done:
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}

		// Collapse anything that arrived during the window so the fire
		// below observes the latest state exactly once.
		select {
		case <-m.signal:
		default:
		}

		m.fire()
	}
}
