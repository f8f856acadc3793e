// Package memory implements C7: an Ebbinghaus-style per-session memory
// evolution engine layered on the same vector store collection used for
// everything else (session_memory, spec.md §3). Grounded on
// ob-labs-powermem-go's pkg/intelligence/ebbinghaus.go decay model and
// dedup.go consolidation pass, generalized from that package's
// in-process record shape to domain.Memory and vectorstore.Store.
package memory

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/chronofact/chronofact/chronoerr"
	"github.com/chronofact/chronofact/config"
	"github.com/chronofact/chronofact/domain"
	"github.com/chronofact/chronofact/embedder"
	"github.com/chronofact/chronofact/vectorstore"
)

// Engine is C7, built over a vector store collection.
type Engine struct {
	store      vectorstore.Store
	embedder   embedder.Embedder
	collection string
	decayRates config.DecayRates
	tauDelete  float64
	beta       float64

	queue chan reinforceJob
	drops *dropCounter
}

// New builds a memory Engine and starts its bounded fire-and-forget
// reinforcement worker (spec.md §5: "bounded queue; drop oldest on
// overflow, increment a drop metric").
func New(store vectorstore.Store, emb embedder.Embedder, collection string, cfg config.MemoryConfig) *Engine {
	e := &Engine{
		store:      store,
		embedder:   emb,
		collection: collection,
		decayRates: cfg.DecayRates,
		tauDelete:  cfg.TauDelete,
		beta:       cfg.ReinforceBeta,
		queue:      make(chan reinforceJob, 256),
		drops:      &dropCounter{},
	}
	go e.runReinforceWorker()
	return e
}

// DroppedReinforcements reports how many queued reinforcement jobs were
// discarded because the bounded queue was full.
func (e *Engine) DroppedReinforcements() uint64 {
	return e.drops.get()
}

func decayRateFor(rates config.DecayRates, t domain.MemoryType) float64 {
	switch t {
	case domain.MemoryFact:
		return rates.Fact
	case domain.MemoryPreference:
		return rates.Preference
	default:
		return rates.Interaction
	}
}

// Store embeds content, inserts a fresh Memory at full relevance, and
// returns its id (spec.md §4.7 "store").
func (e *Engine) Store(ctx context.Context, sessionID, content string, memType domain.MemoryType) (uuid.UUID, error) {
	vec, err := e.embedder.EmbedText(ctx, content)
	if err != nil {
		return uuid.UUID{}, embedder.Wrap(err)
	}

	id := uuid.New()
	now := time.Now().UTC()

	mem := domain.Memory{
		MemoryID:       id,
		SessionID:      sessionID,
		Content:        content,
		MemoryType:     memType,
		CreatedAt:      now,
		LastAccessed:   now,
		AccessCount:    0,
		RelevanceScore: 1.0,
		DecayRate:      decayRateFor(e.decayRates, memType),
		IsConsolidated: false,
	}

	if err := e.store.Upsert(ctx, e.collection, []vectorstore.Point{toPoint(mem, vec)}); err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: %v", chronoerr.ErrBackendBusy, err)
	}

	return id, nil
}

// RetrieveAndReinforce runs a dense query scoped to sessionID and a
// relevance floor, then applies additive reinforcement to every returned
// memory (spec.md §4.7 "retrieve_and_reinforce"). Writes are queued
// fire-and-forget so the retrieval path itself never blocks on them.
func (e *Engine) RetrieveAndReinforce(ctx context.Context, sessionID string, queryVector []float32, limit int, minRelevance float64) ([]domain.Memory, error) {
	filter := vectorstore.Filter{
		Must: []vectorstore.Condition{
			{Field: "session_id", Op: vectorstore.OpEquals, Value: sessionID},
			{Field: "relevance_score", Op: vectorstore.OpGTE, Value: minRelevance},
		},
	}

	points, err := e.store.Query(ctx, e.collection, domain.VectorText, queryVector, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chronoerr.ErrBackendBusy, err)
	}

	memories := make([]domain.Memory, 0, len(points))
	for _, p := range points {
		mem := fromPoint(p.Point)
		reinforced := e.reinforce(mem)
		memories = append(memories, reinforced)
		e.enqueueReinforce(reinforced)
	}

	return memories, nil
}

// reinforce computes the next relevance_score/last_accessed/access_count
// for mem without persisting it - the formula from spec.md §4.7:
// relevance_score <- min(1, relevance_score + beta*(1-relevance_score)).
func (e *Engine) reinforce(mem domain.Memory) domain.Memory {
	mem.RelevanceScore = math.Min(1.0, mem.RelevanceScore+e.beta*(1.0-mem.RelevanceScore))
	mem.LastAccessed = time.Now().UTC()
	mem.AccessCount++
	return mem
}

type reinforceJob struct {
	mem domain.Memory
}

// enqueueReinforce drops the oldest queued job to make room for mem when
// the bounded queue is full, per spec.md §5 ("drop oldest on overflow"),
// rather than discarding the incoming job.
func (e *Engine) enqueueReinforce(mem domain.Memory) {
	job := reinforceJob{mem: mem}

	select {
	case e.queue <- job:
		return
	default:
	}

	select {
	case <-e.queue:
		e.drops.inc()
	default:
	}

	select {
	case e.queue <- job:
	default:
		e.drops.inc()
	}
}

func (e *Engine) runReinforceWorker() {
	for job := range e.queue {
		_ = e.store.SetPayload(context.Background(), e.collection, job.mem.MemoryID.String(), map[string]any{
			"relevance_score": job.mem.RelevanceScore,
			"last_accessed":   job.mem.LastAccessed.Format(time.RFC3339Nano),
			"access_count":    job.mem.AccessCount,
		})
	}
}

type dropCounter struct {
	n uint64
}

func (d *dropCounter) inc()        { d.n++ }
func (d *dropCounter) get() uint64 { return d.n }
