package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/dispensing-api/pkg/logger"
)

// Reaper ends capture flows left idle by operators who walked away, so their
// cameras and collected documents do not outlive them.
type Reaper interface {
	Reap(idle time.Duration) int
}

type FlowReaper struct {
	flows    Reaper
	idle     time.Duration
	interval time.Duration
	logger   *logger.Logger
}

func NewFlowReaper(flows Reaper, idle, interval time.Duration, log *logger.Logger) *FlowReaper {
	if log == nil {
		log = logger.Nop()
	}
	return &FlowReaper{
		flows:    flows,
		idle:     idle,
		interval: interval,
		logger:   log,
	}
}

// Start reaps on every tick until ctx is done.
func (w *FlowReaper) Start(ctx context.Context) {
	if w.idle <= 0 || w.interval <= 0 {
		w.logger.Warn("capture flow reaper disabled", "idle", w.idle.String(), "interval", w.interval.String())
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reap()
		}
	}
}

func (w *FlowReaper) reap() int {
	n := w.flows.Reap(w.idle)
	if n > 0 {
		w.logger.Debug("capture flows reaped", "count", n, "idle", w.idle.String())
	}
	return n
}
