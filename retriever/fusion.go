// Reciprocal-rank fusion, deduplication, and tie-break over dense, sparse,
// and multimodal ranked lists - a pure function from ranked item lists to
// []Scored for testability, per spec.md §4.3 steps 5-6.
package retriever

import (
	"sort"

	"github.com/chronofact/chronofact/domain"
)

// Scored is one fused retrieval result.
type Scored struct {
	Post        domain.Post
	FusedScore  float64
	Dense       float64
	Sparse      float64
	Multimodal  float64
	Credibility float64
}

// Weights are the fusion coefficients w_d, w_s, w_m, w_c from
// config.RetrievalWeights.
type Weights struct {
	Dense       float64
	Sparse      float64
	Multimodal  float64
	Credibility float64
}

// rankedItem is one entry of a single ranked sub-query's result list.
type rankedItem struct {
	id   string
	post domain.Post
}

// reciprocalRank returns 1/(k+rank+1) for a 0-based rank (1/(k+r) for the
// 1-based rank r), the RRF normalization spec.md calls n(·).
func reciprocalRank(k, rank int) float64 {
	return 1.0 / float64(k+rank+1)
}

// Fuse combines up to three ranked lists (dense, sparse, multimodal) into a
// single deduplicated, descending-sorted list, applying the RRF formula
// from spec.md §4.3 step 5 and the tie-break from step 6:
// (score desc, timestamp desc, id asc).
func Fuse(dense, sparse, multimodal []rankedItem, weights Weights, rrfK int) []Scored {
	if rrfK <= 0 {
		rrfK = 60
	}

	byID := map[string]*Scored{}

	accumulate := func(items []rankedItem, weight float64, assign func(s *Scored, v float64)) {
		for rank, item := range items {
			s, ok := byID[item.id]
			if !ok {
				s = &Scored{Post: item.post}
				byID[item.id] = s
			}
			v := reciprocalRank(rrfK, rank)
			assign(s, v)
			s.FusedScore += weight * v
		}
	}

	accumulate(dense, weights.Dense, func(s *Scored, v float64) { s.Dense = v })
	accumulate(sparse, weights.Sparse, func(s *Scored, v float64) { s.Sparse = v })
	accumulate(multimodal, weights.Multimodal, func(s *Scored, v float64) { s.Multimodal = v })

	out := make([]Scored, 0, len(byID))
	for _, s := range byID {
		s.Credibility = s.Post.CredibilityScore
		s.FusedScore += weights.Credibility * s.Credibility
		out = append(out, *s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		if !out[i].Post.Timestamp.Equal(out[j].Post.Timestamp) {
			return out[i].Post.Timestamp.After(out[j].Post.Timestamp)
		}
		return out[i].Post.PostID.String() < out[j].Post.PostID.String()
	})

	return out
}
