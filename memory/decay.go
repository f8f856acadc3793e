// Periodic decay sweep - spec.md §4.7 "apply_global_decay" and §5's
// no-whole-collection-lock requirement: scrolls in bounded batches and
// applies per-batch updates rather than holding any lock across the
// collection.
package memory

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/chronofact/chronofact/chronoerr"
	"github.com/chronofact/chronofact/vectorstore"
)

const decayBatchSize = 200

// ApplyGlobalDecay scans every memory in the collection, applies
// exponential decay since last_accessed, and deletes any memory that falls
// below tau_delete. It returns the number of memories decayed and deleted.
func (e *Engine) ApplyGlobalDecay(ctx context.Context) (decayed int, deleted int, err error) {
	now := time.Now().UTC()
	cursor := ""

	for {
		page, err := e.store.Scroll(ctx, e.collection, vectorstore.Filter{}, cursor, decayBatchSize)
		if err != nil {
			return decayed, deleted, fmt.Errorf("%w: %v", chronoerr.ErrBackendBusy, err)
		}

		var toDelete []string
		for _, point := range page.Points {
			mem := fromPoint(point)

			elapsedDays := now.Sub(mem.LastAccessed).Hours() / 24
			if elapsedDays < 0 {
				elapsedDays = 0
			}

			next := mem.RelevanceScore * math.Exp(-mem.DecayRate*elapsedDays)
			decayed++

			if next < e.tauDelete {
				toDelete = append(toDelete, point.ID)
				continue
			}

			if next != mem.RelevanceScore {
				if err := e.store.SetPayload(ctx, e.collection, point.ID, map[string]any{
					"relevance_score": next,
				}); err != nil {
					return decayed, deleted, fmt.Errorf("%w: %v", chronoerr.ErrBackendBusy, err)
				}
			}
		}

		if len(toDelete) > 0 {
			if err := e.store.Delete(ctx, e.collection, toDelete); err != nil {
				return decayed, deleted, fmt.Errorf("%w: %v", chronoerr.ErrBackendBusy, err)
			}
			deleted += len(toDelete)
		}

		if len(page.Cursor) == 0 {
			break
		}
		cursor = page.Cursor
	}

	return decayed, deleted, nil
}
