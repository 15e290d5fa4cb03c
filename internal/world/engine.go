package world

import (
	"context"
	"log/slog"
	"time"

	"github.com/udisondev/realmkeep/internal/charmgr"
	"github.com/udisondev/realmkeep/internal/constants"
)

// Engine drives the instance manager at a fixed rate (spec.md §5): if a
// tick completes early it sleeps the remainder; if late, it logs and
// continues without catching up. Before and After, when set, run inside the
// same watchdog-guarded tick as Instances.Tick — Before ahead of it (draining
// a caller's own event queue, say) and After behind it (flushing composed
// updates out to connections) — so a caller with extra per-tick work to do
// can drive everything through this one loop instead of running a second,
// duplicate ticker alongside it.
type Engine struct {
	Instances *InstanceManager
	Debug     bool

	Before func(cm *charmgr.Manager) error
	After  func(cm *charmgr.Manager) error
}

// NewEngine returns an engine over a fresh, empty instance manager.
func NewEngine(debug bool) *Engine {
	return &Engine{Instances: NewInstanceManager(), Debug: debug}
}

// Run ticks the world at constants.DesiredTimestep until ctx is canceled.
func (e *Engine) Run(ctx context.Context, cm *charmgr.Manager) {
	ticker := time.NewTicker(constants.DesiredTimestep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case start := <-ticker.C:
			e.runOneTick(cm)
			elapsed := time.Since(start)
			if elapsed > constants.DesiredTimestep {
				slog.Warn("world tick overran desired timestep", "elapsed", elapsed)
			}
		}
	}
}

func (e *Engine) runOneTick(cm *charmgr.Manager) {
	e.TickOnce(cm)
}

// TickOnce runs Before, Instances.Tick, and After once, watchdog-guarded in
// debug mode. Exported so a caller driving its own ticker (or a test
// stepping ticks one at a time) can still go through the same hook-wrapped
// sequence Run uses internally.
func (e *Engine) TickOnce(cm *charmgr.Manager) {
	if !e.Debug {
		e.tickOnce(cm)
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.tickOnce(cm)
	}()

	select {
	case <-done:
	case <-time.After(constants.TickWatchdog):
		panic("world: tick watchdog expired, deadlock suspected")
	}
}

func (e *Engine) tickOnce(cm *charmgr.Manager) {
	if e.Before != nil {
		if err := e.Before(cm); err != nil {
			slog.Error("world pre-tick hook failed", "error", err)
		}
	}
	if err := e.Instances.Tick(cm); err != nil {
		slog.Error("world tick failed", "error", err)
	}
	if e.After != nil {
		if err := e.After(cm); err != nil {
			slog.Error("world post-tick hook failed", "error", err)
		}
	}
}
