// Package retriever implements C3: the hybrid dense+sparse(+multimodal)
// retriever, fused by reciprocal rank and narrowed by a diversity pass.
// Sub-queries fan out over a plain sync.WaitGroup rather than errgroup,
// matching the teacher's preference for stdlib concurrency primitives over
// an additional dependency, and because partial failure (spec.md §4.3,
// "Failure semantics") is itself a success case here, not an error to
// short-circuit on.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chronofact/chronofact/chronoerr"
	"github.com/chronofact/chronofact/config"
	"github.com/chronofact/chronofact/domain"
	"github.com/chronofact/chronofact/embedder"
	"github.com/chronofact/chronofact/vectorstore"
)

// Result is the retriever's output: the fused, diversified post list plus
// the partial-failure flag from spec.md's failure semantics.
type Result struct {
	Posts   []Scored
	Partial bool
}

// Retriever is C3, built over a vector store collection and a process-local
// BM25 index kept in sync with it.
type Retriever struct {
	store      vectorstore.Store
	bm25       *BM25Index
	embedder   embedder.Embedder
	collection string
	weights    Weights
	rrfK       int
}

// New builds a Retriever over collection, using store for dense/multimodal
// queries and bm25 for the sparse path.
func New(store vectorstore.Store, bm25 *BM25Index, emb embedder.Embedder, collection string, cfg config.RetrievalConfig) *Retriever {
	return &Retriever{
		store:      store,
		bm25:       bm25,
		embedder:   emb,
		collection: collection,
		weights: Weights{
			Dense:       cfg.Weights.Dense,
			Sparse:      cfg.Weights.Sparse,
			Multimodal:  cfg.Weights.Multimodal,
			Credibility: cfg.Weights.Credibility,
		},
		rrfK: cfg.RRFK,
	}
}

// subResult carries one sub-query's outcome back to the fan-in point.
type subResult struct {
	kind  string
	items []rankedItem
	err   error
}

// Retrieve runs the full C3 algorithm (spec.md §4.3 steps 1-8) for plan and
// returns up to plan.Limit diversified, fused results.
func (r *Retriever) Retrieve(ctx context.Context, plan domain.QueryPlan, diversify bool) (Result, error) {
	if plan.Limit < 1 {
		plan.Limit = 10
	}
	subLimit := 3 * plan.Limit

	filter := buildFilter(plan)

	qDense, err := r.embedder.EmbedText(ctx, plan.RefinedText)
	if err != nil {
		if errors.Is(err, chronoerr.ErrEmbeddingUnavailable) {
			return Result{}, err
		}
		return Result{}, embedder.Wrap(err)
	}

	wantMultimodal := len(plan.ImageVector) > 0
	total := 2
	if wantMultimodal {
		total = 3
	}

	results := make(chan subResult, total)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		points, err := r.store.Query(ctx, r.collection, domain.VectorText, qDense, filter, subLimit)
		results <- subResult{kind: "dense", items: pointsToRanked(points), err: err}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		hits, err := r.bm25.Search(plan.RefinedText, subLimit)
		results <- subResult{kind: "sparse", items: hitsToRanked(hits, plan), err: err}
	}()

	if wantMultimodal {
		wg.Add(1)
		go func() {
			defer wg.Done()
			points, err := r.store.Query(ctx, r.collection, domain.VectorMultimodal, plan.ImageVector, filter, subLimit)
			results <- subResult{kind: "multimodal", items: pointsToRanked(points), err: err}
		}()
	}

	wg.Wait()
	close(results)

	var dense, sparse, multimodal []rankedItem
	failures := 0
	for res := range results {
		if res.err != nil {
			failures++
			continue
		}
		switch res.kind {
		case "dense":
			dense = res.items
		case "sparse":
			sparse = res.items
		case "multimodal":
			multimodal = res.items
		}
	}

	if failures == total {
		return Result{}, fmt.Errorf("%w: all sub-queries failed", chronoerr.ErrRetrievalUnavailable)
	}

	fused := Fuse(dense, sparse, multimodal, r.weights, r.rrfK)

	if diversify {
		fused = Diversify(fused, plan.Limit)
	} else if len(fused) > plan.Limit {
		fused = fused[:plan.Limit]
	}

	return Result{Posts: fused, Partial: failures > 0}, nil
}

// buildFilter assembles spec.md §4.3 step 3's payload filter: credibility
// floor, optional location membership, optional time range.
func buildFilter(plan domain.QueryPlan) vectorstore.Filter {
	must := []vectorstore.Condition{
		{Field: "credibility_score", Op: vectorstore.OpGTE, Value: plan.MinCredibility},
	}

	if len(plan.Locations) > 0 {
		values := make([]string, len(plan.Locations))
		copy(values, plan.Locations)
		must = append(must, vectorstore.Condition{Field: "location", Op: vectorstore.OpIn, Value: values})
	}

	if plan.TimeRange != nil {
		must = append(must,
			vectorstore.Condition{Field: "timestamp", Op: vectorstore.OpGTE, Value: plan.TimeRange.From},
			vectorstore.Condition{Field: "timestamp", Op: vectorstore.OpLTE, Value: plan.TimeRange.To},
		)
	}

	return vectorstore.Filter{Must: must}
}

func pointsToRanked(points []vectorstore.ScoredPoint) []rankedItem {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Score > points[j].Score })
	items := make([]rankedItem, 0, len(points))
	for _, p := range points {
		items = append(items, rankedItem{id: p.ID, post: postFromPayload(p.Point)})
	}
	return items
}

// hitsToRanked applies the same payload filter dense/multimodal queries get
// server-side (credibility floor, location membership, time range) to the
// BM25 leg post-hoc, since the sparse index has no filter support of its
// own (spec.md §4.3 steps 3/4: one payload filter, applied to all three
// sub-queries).
func hitsToRanked(hits []SparseHit, plan domain.QueryPlan) []rankedItem {
	items := make([]rankedItem, 0, len(hits))
	for _, h := range hits {
		if !matchesPlan(h.Post, plan) {
			continue
		}
		items = append(items, rankedItem{id: h.ID, post: h.Post})
	}
	return items
}

// matchesPlan reports whether post satisfies plan's credibility floor,
// location set, and time range.
func matchesPlan(post domain.Post, plan domain.QueryPlan) bool {
	if post.CredibilityScore < plan.MinCredibility {
		return false
	}

	if len(plan.Locations) > 0 {
		matched := false
		for _, l := range plan.Locations {
			if post.Location == l {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if plan.TimeRange != nil {
		if post.Timestamp.Before(plan.TimeRange.From) || post.Timestamp.After(plan.TimeRange.To) {
			return false
		}
	}

	return true
}

// PostFromPoint hydrates a domain.Post from a vectorstore.Point's payload,
// exported so startup code can replay stored posts into a fresh BM25 index
// (bleve holds no state across restarts).
func PostFromPoint(p vectorstore.Point) domain.Post {
	return postFromPayload(p)
}

func postFromPayload(p vectorstore.Point) domain.Post {
	post := domain.Post{}
	if id, err := parsePostID(p.ID); err == nil {
		post.PostID = id
	}
	if v, ok := p.Payload["text"].(string); ok {
		post.Text = v
	}
	if v, ok := p.Payload["author"].(string); ok {
		post.Author = v
	}
	if v, ok := p.Payload["credibility_score"].(float64); ok {
		post.CredibilityScore = v
	}
	if v, ok := p.Payload["location"].(string); ok {
		post.Location = v
	}
	if v, ok := p.Payload["timestamp"].(string); ok {
		if ts, err := parseRFC3339(v); err == nil {
			post.Timestamp = ts
		}
	}
	if raw, ok := p.Payload["media_urls"].([]any); ok {
		urls := make([]string, 0, len(raw))
		for _, u := range raw {
			if s, ok := u.(string); ok {
				urls = append(urls, s)
			}
		}
		post.MediaURLs = urls
	}
	return post
}
