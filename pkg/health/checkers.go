package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck flags a goroutine leak: unhealthy once the process
// holds more than maxGoroutines goroutines.
func GoroutineCountCheck(maxGoroutines int) CheckFunc {
	return func(_ context.Context) error {
		n := runtime.NumGoroutine()
		if n <= maxGoroutines {
			return nil
		}
		return errors.Errorf("%d goroutines running, limit is %d", n, maxGoroutines)
	}
}

// GCMaxPauseCheck flags memory pressure: unhealthy when any recorded GC
// stop-the-world pause exceeded maxPause.
func GCMaxPauseCheck(maxPause time.Duration) CheckFunc {
	return func(_ context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		for _, p := range stats.Pause {
			if p > maxPause {
				return errors.Errorf("GC pause of %s observed, limit is %s", p, maxPause)
			}
		}
		return nil
	}
}
