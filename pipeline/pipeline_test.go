package pipeline_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronofact/chronofact/config"
	"github.com/chronofact/chronofact/domain"
	"github.com/chronofact/chronofact/generator"
	"github.com/chronofact/chronofact/pipeline"
	"github.com/chronofact/chronofact/retriever"
	"github.com/chronofact/chronofact/vectorstore"
	memstore "github.com/chronofact/chronofact/vectorstore/memory"
)

type fakeProvider struct{}

func (fakeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "search query planner"):
		return `{"refined_text":"bridge collapse","entities":["bridge"],"locations":[],"min_credibility":0.3}`, nil
	case strings.Contains(prompt, "chronologically-ordered timeline"):
		return timelineReplyFor(prompt), nil
	case strings.Contains(prompt, "misinformation risk"):
		return `{"is_suspicious":false,"suspicious_patterns":[],"risk_level":"low","recommendation":"none needed"}`, nil
	case strings.Contains(prompt, "suggest follow-up"):
		return `[{"question":"What caused the collapse?","category":"deep_dive","priority":1}]`, nil
	default:
		return `{}`, nil
	}
}

// timelineReplyFor extracts the first context post id embedded in the
// prompt (rendered by generator.renderContext) so the fake's reply cites a
// real, known-good source id and passes GenerateTimeline's groundedness
// validator.
func timelineReplyFor(prompt string) string {
	lines := strings.Split(prompt, "\n")
	for _, line := range lines {
		if strings.Contains(line, " | ") {
			id := strings.SplitN(line, " | ", 2)[0]
			if _, err := uuid.Parse(id); err != nil {
				continue
			}
			return `{"topic":"bridge collapse","events":[{"timestamp":"2024-01-01T00:00:00Z","summary":"Bridge collapsed","sources":["` + id + `"],"location":"Riverside"}],"predictions":[]}`
		}
	}
	return `{"topic":"bridge collapse","events":[],"predictions":[]}`
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func newTestPipeline(t *testing.T, seedPosts []domain.Post) *pipeline.Pipeline {
	t.Helper()

	store := memstore.New()
	require.NoError(t, store.EnsureCollection(context.Background(), "x_posts",
		[]vectorstore.VectorSpec{{Name: domain.VectorText, Dim: 3}}, nil))

	for _, post := range seedPosts {
		require.NoError(t, store.Upsert(context.Background(), "x_posts", []vectorstore.Point{
			{
				ID:      post.PostID.String(),
				Vectors: map[string][]float32{domain.VectorText: {1, 0, 0}},
				Payload: map[string]any{
					"text":              post.Text,
					"author":            post.Author,
					"credibility_score": post.CredibilityScore,
					"timestamp":         post.Timestamp.Format(time.RFC3339),
				},
			},
		}))
	}

	bm25, err := retriever.NewBM25Index()
	require.NoError(t, err)
	for _, post := range seedPosts {
		require.NoError(t, bm25.Index(post))
	}

	emb := fakeEmbedder{}
	retCfg := config.RetrievalConfig{
		Weights: config.RetrievalWeights{Dense: 0.55, Sparse: 0.25, Multimodal: 0.15, Credibility: 0.05},
		RRFK:    60,
	}
	rtr := retriever.New(store, bm25, emb, "x_posts", retCfg)

	gen := generator.New(fakeProvider{}, nil)

	limits := config.LimitsConfig{RequestDeadline: 5 * time.Second, ImageMaxBytes: 8 << 20}

	return pipeline.New(gen, rtr, nil, emb, nil, limits)
}

func TestRunOnEmptyCollectionRespondsGracefully(t *testing.T) {
	p := newTestPipeline(t, nil)

	resp, err := p.Run(context.Background(), domain.TimelineRequest{
		Topic: "anything",
		Limit: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, "anything", resp.Topic)
	assert.Empty(t, resp.Events)
	assert.Equal(t, 0, resp.TotalSources)
	assert.Equal(t, float64(0), resp.AvgCredibility)
	assert.Nil(t, resp.Misinformation)
	assert.Empty(t, resp.FollowUps)
}

func TestRunOnPopulatedCollectionSynthesizesTimeline(t *testing.T) {
	post := domain.Post{
		PostID:           uuid.New(),
		Text:             "The Riverside bridge collapsed this morning",
		Author:           "reporter1",
		Timestamp:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CredibilityScore: 0.9,
	}
	p := newTestPipeline(t, []domain.Post{post})

	resp, err := p.Run(context.Background(), domain.TimelineRequest{
		Topic: "bridge collapse",
		Limit: 10,
	})

	require.NoError(t, err)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, []string{post.PostID.String()}, resp.Events[0].Sources)
	assert.Equal(t, 1, resp.TotalSources)
	assert.InDelta(t, 0.9, resp.AvgCredibility, 1e-9)
	require.NotNil(t, resp.Misinformation)
	assert.Equal(t, domain.RiskLow, resp.Misinformation.RiskLevel)
	require.Len(t, resp.FollowUps, 1)
}

func TestRunWithIncludeMediaOnlyFiltersTextOnlyPosts(t *testing.T) {
	post := domain.Post{
		PostID:           uuid.New(),
		Text:             "The Riverside bridge collapsed this morning",
		Author:           "reporter1",
		Timestamp:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CredibilityScore: 0.9,
	}
	p := newTestPipeline(t, []domain.Post{post})

	resp, err := p.Run(context.Background(), domain.TimelineRequest{
		Topic:            "bridge collapse",
		Limit:            10,
		IncludeMediaOnly: true,
	})

	require.NoError(t, err)
	assert.Empty(t, resp.Events, "the only seeded post has no media_urls")
}
