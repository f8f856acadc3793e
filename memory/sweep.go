// Periodic sweep goroutine driving global decay and consolidation - the
// "C7 runs ... as a periodic sweep" half of spec.md §3's data flow summary.
package memory

import (
	"context"
	"log/slog"
	"time"
)

const defaultSweepInterval = 15 * time.Minute

// RunSweep blocks, running ApplyGlobalDecay then ConsolidateSimilar every
// interval (0 uses defaultSweepInterval) until ctx is canceled. Intended to
// run in its own goroutine for the process lifetime.
func (e *Engine) RunSweep(ctx context.Context, interval time.Duration, consolidationThreshold float64) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweepOnce(ctx, consolidationThreshold)
		}
	}
}

func (e *Engine) sweepOnce(ctx context.Context, consolidationThreshold float64) {
	decayed, deleted, err := e.ApplyGlobalDecay(ctx)
	if err != nil {
		slog.Error("memory sweep: global decay failed", "error", err)
		return
	}
	slog.Info("memory sweep: decay complete", "decayed", decayed, "deleted", deleted)

	consolidated, err := e.ConsolidateSimilar(ctx, consolidationThreshold)
	if err != nil {
		slog.Error("memory sweep: consolidation failed", "error", err)
		return
	}
	slog.Info("memory sweep: consolidation complete", "clusters_merged", consolidated)
}
