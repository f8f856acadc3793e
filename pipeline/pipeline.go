// Package pipeline implements C6: the timeline request state machine
// (spec.md §4.6) - ACCEPTED -> [IMAGE_ANALYZED] -> QUERY_INTERPRETED ->
// RETRIEVED -> TIMELINE_SYNTHESIZED -> ANALYZED -> RESPONDED, with soft
// failure fallbacks on non-essential stages and hard failure on essential
// ones. Grounded on the teacher's top-level agent.go/adk.go request-loop
// shape (validate -> plan -> act -> respond, with a single deadline-bound
// context threaded through), generalized into a named-stage state machine
// since the teacher's loop has no equivalent staged recovery policy.
package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chronofact/chronofact/chronoerr"
	"github.com/chronofact/chronofact/config"
	"github.com/chronofact/chronofact/domain"
	"github.com/chronofact/chronofact/embedder"
	"github.com/chronofact/chronofact/generator"
	"github.com/chronofact/chronofact/imageanalyzer"
	"github.com/chronofact/chronofact/memory"
	"github.com/chronofact/chronofact/retriever"
)

// State names the pipeline's stages for logging, matching spec.md §4.6's
// state diagram verbatim.
type State string

const (
	StateAccepted             State = "ACCEPTED"
	StateImageAnalyzed        State = "IMAGE_ANALYZED"
	StateQueryInterpreted     State = "QUERY_INTERPRETED"
	StateRetrieved            State = "RETRIEVED"
	StateTimelineSynthesized  State = "TIMELINE_SYNTHESIZED"
	StateAnalyzed             State = "ANALYZED"
	StateResponded            State = "RESPONDED"
	StateFailed               State = "FAILED"
)

// Pipeline wires C1, C3, C4, C5, and C7 into the request-handling state
// machine C6 defines.
type Pipeline struct {
	generator      *generator.Engine
	retriever      *retriever.Retriever
	memory         *memory.Engine
	textEmbedder   embedder.Embedder
	multimodal     embedder.MultimodalEmbedder
	limits         config.LimitsConfig
}

// New builds a Pipeline. multimodal may be nil if no multimodal embedder is
// configured, in which case image_base64 requests still run C5's visual
// context extraction but skip the multimodal retrieval leg.
func New(gen *generator.Engine, ret *retriever.Retriever, mem *memory.Engine, textEmbedder embedder.Embedder, multimodal embedder.MultimodalEmbedder, limits config.LimitsConfig) *Pipeline {
	return &Pipeline{
		generator:    gen,
		retriever:    ret,
		memory:       mem,
		textEmbedder: textEmbedder,
		multimodal:   multimodal,
		limits:       limits,
	}
}

// Run executes the full state machine for req and returns the assembled
// TimelineResponse, or an error for essential-stage failures (spec.md §7's
// recovery policy: query interpretation and retrieval degrade in-band,
// timeline synthesis failure is terminal).
func (p *Pipeline) Run(ctx context.Context, req domain.TimelineRequest) (domain.TimelineResponse, error) {
	ctx, cancel := generator.WithDeadline(ctx, p.limits.RequestDeadline)
	defer cancel()

	logState(StateAccepted, "topic", req.Topic, "session_id", req.SessionID)

	rawQuery := req.Topic
	var imageVector []float32

	if len(req.ImageBase64) > 0 {
		visualContext, vec, err := p.analyzeImage(ctx, req)
		if err != nil {
			logState(StateFailed, "stage", StateImageAnalyzed, "error", err)
			return domain.TimelineResponse{}, err
		}
		if len(visualContext) > 0 {
			rawQuery = strings.TrimSpace(rawQuery + " " + visualContext)
		}
		imageVector = vec
		logState(StateImageAnalyzed, "visual_context_len", len(visualContext))
	}

	plan := p.interpretQuery(ctx, rawQuery, req, imageVector)
	logState(StateQueryInterpreted, "refined_text", plan.RefinedText)

	result, err := p.retrieveWithRecovery(ctx, plan)
	if err != nil {
		logState(StateFailed, "stage", StateRetrieved, "error", err)
		return domain.TimelineResponse{}, err
	}
	logState(StateRetrieved, "count", len(result.Posts), "partial", result.Partial)

	if req.IncludeMediaOnly {
		result.Posts = filterMediaOnly(result.Posts)
	}

	p.reinforceSessionMemory(ctx, req.SessionID, plan)

	if len(result.Posts) == 0 {
		resp := domain.TimelineResponse{
			Timeline:     domain.Timeline{Topic: req.Topic, Events: []domain.Event{}, Predictions: nil},
			FollowUps:    []domain.FollowUpQuestion{},
			Partial:      result.Partial,
		}
		logState(StateResponded, "empty", true)
		return resp, nil
	}

	posts := make([]domain.Post, 0, len(result.Posts))
	for _, s := range result.Posts {
		posts = append(posts, s.Post)
	}

	timeline, err := generator.GenerateTimeline(ctx, p.generator, plan.RefinedText, posts, req.Limit)
	if err != nil {
		logState(StateFailed, "stage", StateTimelineSynthesized, "error", err)
		return domain.TimelineResponse{}, err
	}
	logState(StateTimelineSynthesized, "events", len(timeline.Events))

	misinfo, followUps := p.analyzeAndFollowUp(ctx, req, timeline)
	logState(StateAnalyzed, "misinfo_ok", misinfo != nil, "follow_ups", len(followUps))

	resp := domain.TimelineResponse{
		Timeline:       timeline,
		TotalSources:   countDistinctSources(timeline.Events),
		AvgCredibility: averageCredibility(timeline.Events),
		Misinformation: misinfo,
		FollowUps:      followUps,
		Partial:        result.Partial,
	}

	p.emitInteractionMemory(req.SessionID, req.Topic, timeline)
	logState(StateResponded, "events", len(timeline.Events))

	return resp, nil
}

func logState(s State, args ...any) {
	slog.Info("pipeline state", append([]any{"state", s}, args...)...)
}

func (p *Pipeline) analyzeImage(ctx context.Context, req domain.TimelineRequest) (string, []float32, error) {
	raw, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return "", nil, fmt.Errorf("%w: image_base64 is not valid base64: %v", chronoerr.ErrInvalidRequest, err)
	}

	result, err := imageanalyzer.Analyze(ctx, p.generator, raw, req.Topic, p.limits.ImageMaxBytes)
	if err != nil {
		return "", nil, err
	}

	var vec []float32
	if p.multimodal != nil {
		vec, err = p.multimodal.EmbedMultimodal(ctx, embedder.MultimodalInput{
			Text:   result.VisualContext,
			Image:  raw,
			Fusion: embedder.FusionMean,
		})
		if err != nil {
			slog.Warn("multimodal embedding unavailable, continuing text-only", "error", err)
			vec = nil
		}
	}

	return result.VisualContext, vec, nil
}

// interpretQuery runs ProcessQuery and falls back to a trivial plan on
// failure - spec.md §4.6's documented soft failure for this stage.
func (p *Pipeline) interpretQuery(ctx context.Context, rawQuery string, req domain.TimelineRequest, imageVector []float32) domain.QueryPlan {
	plan, err := generator.ProcessQuery(ctx, p.generator, rawQuery, req.Limit)
	if err != nil {
		slog.Warn("ProcessQuery failed, falling back to trivial plan", "error", err)
		plan = domain.QueryPlan{RefinedText: rawQuery, Limit: req.Limit}
	}

	if req.MinCredibility > 0 {
		plan.MinCredibility = req.MinCredibility
	}
	if len(req.Location) > 0 {
		plan.Locations = append(plan.Locations, req.Location)
	}
	if plan.Limit < 1 {
		plan.Limit = req.Limit
	}
	plan.ImageVector = imageVector

	return plan
}

// retrieveWithRecovery invokes C3 and applies the zero-min-credibility
// retry spec.md §4.6 mandates when the first pass comes back empty.
func (p *Pipeline) retrieveWithRecovery(ctx context.Context, plan domain.QueryPlan) (retriever.Result, error) {
	result, err := p.retriever.Retrieve(ctx, plan, true)
	if err != nil {
		return retriever.Result{}, err
	}

	if len(result.Posts) == 0 && plan.MinCredibility > 0 {
		relaxed := plan
		relaxed.MinCredibility = 0
		result, err = p.retriever.Retrieve(ctx, relaxed, true)
		if err != nil {
			return retriever.Result{}, err
		}
	}

	return result, nil
}

// reinforceSessionMemory touches session memories related to this query at
// RETRIEVED time. C7 operates over the session_memory collection, which has
// no shared ids with x_posts, so "pass the retrieved point ids to C7 to be
// reinforced" (spec.md §4.6) is read here as: use this query's embedding to
// find and reinforce the session's own related memories, not the retrieved
// posts themselves.
func (p *Pipeline) reinforceSessionMemory(ctx context.Context, sessionID string, plan domain.QueryPlan) {
	if p.memory == nil || len(sessionID) == 0 {
		return
	}
	vec, err := p.textEmbedder.EmbedText(ctx, plan.RefinedText)
	if err != nil {
		return
	}
	if _, err := p.memory.RetrieveAndReinforce(ctx, sessionID, vec, 5, 0); err != nil {
		slog.Warn("session memory reinforcement failed", "error", err)
	}
}

// analyzeAndFollowUp runs the two ANALYZED-stage operations concurrently.
// Either may fail independently without failing the request (spec.md
// §4.6/§7's auxiliary-operation recovery policy).
func (p *Pipeline) analyzeAndFollowUp(ctx context.Context, req domain.TimelineRequest, timeline domain.Timeline) (*domain.MisinformationAnalysis, []domain.FollowUpQuestion) {
	var (
		wg        sync.WaitGroup
		misinfo   *domain.MisinformationAnalysis
		followUps []domain.FollowUpQuestion
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		result, err := generator.DetectMisinformation(ctx, p.generator, req.Topic)
		if err != nil {
			slog.Warn("DetectMisinformation failed", "error", err)
			return
		}
		misinfo = &result
	}()

	go func() {
		defer wg.Done()
		result, err := generator.GenerateFollowUpQuestions(ctx, p.generator, req.Topic, summarize(timeline), nil)
		if err != nil {
			slog.Warn("GenerateFollowUpQuestions failed", "error", err)
			followUps = []domain.FollowUpQuestion{}
			return
		}
		followUps = result
	}()

	wg.Wait()

	if followUps == nil {
		followUps = []domain.FollowUpQuestion{}
	}

	return misinfo, followUps
}

// emitInteractionMemory stores a session memory summarizing this request,
// fire-and-forget: memory writes are an auxiliary operation per spec.md §7
// and must never block or fail the response.
func (p *Pipeline) emitInteractionMemory(sessionID, rawQuery string, timeline domain.Timeline) {
	if p.memory == nil || len(sessionID) == 0 {
		return
	}

	content := fmt.Sprintf("query: %s | %s", rawQuery, topEventSummaries(timeline.Events, 3))

	go func() {
		if _, err := p.memory.Store(context.Background(), sessionID, content, domain.MemoryInteraction); err != nil {
			slog.Warn("interaction memory write failed", "error", err)
		}
	}()
}

// filterMediaOnly narrows an already-fused, already-diversified result to
// posts carrying at least one media URL, honoring the request's
// include_media_only flag (spec.md §6's row for /api/timeline) without
// re-running retrieval.
func filterMediaOnly(posts []retriever.Scored) []retriever.Scored {
	out := make([]retriever.Scored, 0, len(posts))
	for _, s := range posts {
		if len(s.Post.MediaURLs) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func summarize(t domain.Timeline) string {
	return fmt.Sprintf("%s: %s", t.Topic, topEventSummaries(t.Events, 5))
}

func topEventSummaries(events []domain.Event, n int) string {
	if len(events) < n {
		n = len(events)
	}
	summaries := make([]string, 0, n)
	for i := 0; i < n; i++ {
		summaries = append(summaries, events[i].Summary)
	}
	return strings.Join(summaries, "; ")
}

func countDistinctSources(events []domain.Event) int {
	seen := map[string]bool{}
	for _, e := range events {
		for _, s := range e.Sources {
			seen[s] = true
		}
	}
	return len(seen)
}

func averageCredibility(events []domain.Event) float64 {
	if len(events) == 0 {
		return 0
	}
	var sum float64
	for _, e := range events {
		sum += e.CredibilityScore
	}
	return sum / float64(len(events))
}
