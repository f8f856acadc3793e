package retriever

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronofact/chronofact/domain"
)

func samplePost(id string, ts time.Time, credibility float64) domain.Post {
	return domain.Post{
		PostID:           uuid.MustParse(id),
		Author:           "author-" + id[:8],
		Timestamp:        ts,
		CredibilityScore: credibility,
	}
}

func TestFuseDedupesByIDKeepingMaxScore(t *testing.T) {
	now := time.Now()
	a := samplePost("11111111-1111-1111-1111-111111111111", now, 0.9)
	b := samplePost("22222222-2222-2222-2222-222222222222", now.Add(-time.Hour), 0.5)

	dense := []rankedItem{{id: a.PostID.String(), post: a}, {id: b.PostID.String(), post: b}}
	sparse := []rankedItem{{id: a.PostID.String(), post: a}}

	weights := Weights{Dense: 0.55, Sparse: 0.25, Multimodal: 0.15, Credibility: 0.05}
	out := Fuse(dense, sparse, nil, weights, 60)

	require.Len(t, out, 2)
	assert.Equal(t, a.PostID, out[0].Post.PostID, "post present in both dense and sparse should rank first")
	assert.Greater(t, out[0].FusedScore, out[1].FusedScore)
}

func TestFuseTieBreakByTimestampThenID(t *testing.T) {
	now := time.Now()
	a := samplePost("11111111-1111-1111-1111-111111111111", now, 0.5)
	b := samplePost("00000000-0000-0000-0000-000000000000", now, 0.5)
	c := samplePost("22222222-2222-2222-2222-222222222222", now.Add(time.Hour), 0.5)

	// Each post sits at rank 0 of its own list with equal weights, so all
	// three fused scores tie and only the tie-break decides the order.
	dense := []rankedItem{{id: a.PostID.String(), post: a}}
	sparse := []rankedItem{{id: b.PostID.String(), post: b}}
	multimodal := []rankedItem{{id: c.PostID.String(), post: c}}

	weights := Weights{Dense: 1, Sparse: 1, Multimodal: 1}
	out := Fuse(dense, sparse, multimodal, weights, 60)

	require.Len(t, out, 3)
	assert.Equal(t, out[0].FusedScore, out[2].FusedScore)
	assert.Equal(t, c.PostID, out[0].Post.PostID, "later timestamp wins a score tie")
	assert.Equal(t, b.PostID, out[1].Post.PostID, "equal score and timestamp fall back to id ascending")
}

func TestFuseMissingRankContributesZero(t *testing.T) {
	now := time.Now()
	a := samplePost("11111111-1111-1111-1111-111111111111", now, 0)

	dense := []rankedItem{{id: a.PostID.String(), post: a}}
	weights := Weights{Dense: 0.55, Sparse: 0.25, Multimodal: 0.15, Credibility: 0.05}

	out := Fuse(dense, nil, nil, weights, 60)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.55*reciprocalRank(60, 0), out[0].FusedScore, 1e-9)
}

func TestDiversifyCapsAuthorShare(t *testing.T) {
	now := time.Now()
	var ranked []Scored
	for i := 0; i < 10; i++ {
		id := uuid.New()
		ranked = append(ranked, Scored{
			Post: domain.Post{
				PostID:    id,
				Author:    "same-author",
				Timestamp: now.Add(-time.Duration(i) * time.Minute),
			},
			FusedScore: 1.0 - float64(i)*0.01,
		})
	}
	for i := 0; i < 10; i++ {
		id := uuid.New()
		ranked = append(ranked, Scored{
			Post: domain.Post{
				PostID:    id,
				Author:    "other-author",
				Timestamp: now.Add(-time.Duration(i) * time.Minute),
			},
			// Within 0.85x of the same-author scores, so a replacement is
			// always eligible and the author cap applies.
			FusedScore: 0.9 - float64(i)*0.01,
		})
	}

	out := Diversify(ranked, 10)
	require.Len(t, out, 10)

	counts := map[string]int{}
	for _, s := range out {
		counts[s.Post.Author]++
	}
	assert.LessOrEqual(t, counts["same-author"], 3, "same-author should be capped near 30%% of 10")
}
