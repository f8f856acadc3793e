package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chronofact/chronofact/domain"
)

const generateTimelinePrompt = `You are synthesizing a fact-grounded, chronologically-ordered timeline.
Use ONLY the context posts below - do not invent sources, dates, or facts not present in them.

Topic: %s

Context posts (id | timestamp | credibility | text):
%s

Produce at least %d and at most %d events. Reply with a single JSON object of exactly this shape
and nothing else:
{
  "topic": "string",
  "events": [
    {"timestamp": "RFC3339", "summary": "string", "sources": ["post_id", ...], "location": "string"}
  ],
  "predictions": ["string", ...]
}
Every string in "sources" MUST be one of the context post ids above, exactly as written.`

type timelineReply struct {
	Topic       string          `json:"topic"`
	Events      []timelineEvent `json:"events"`
	Predictions []string        `json:"predictions"`
}

type timelineEvent struct {
	Timestamp string   `json:"timestamp"`
	Summary   string   `json:"summary"`
	Sources   []string `json:"sources"`
	Location  string   `json:"location"`
}

// GenerateTimeline synthesizes a chronologically-ordered, source-cited
// timeline from contextPosts, requesting around n events. The post-hoc
// validator enforces chronology, source groundedness, and derived-mean
// credibility (spec.md §4.4.2) before returning a value to the caller; any
// violation feeds back into the retry loop as a schema error.
func GenerateTimeline(ctx context.Context, e *Engine, topic string, contextPosts []domain.Post, n int) (domain.Timeline, error) {
	if n < 1 {
		n = 1
	}

	byID := make(map[string]domain.Post, len(contextPosts))
	for _, p := range contextPosts {
		byID[p.PostID.String()] = p
	}

	prompt := fmt.Sprintf(generateTimelinePrompt, topic, renderContext(contextPosts), n, maxInt(n, len(contextPosts)))

	parse := func(raw string) (domain.Timeline, error) {
		return parseTimeline(raw, topic, byID, n)
	}

	return Generate(ctx, e, prompt, parse)
}

func renderContext(posts []domain.Post) string {
	var b strings.Builder
	for _, p := range posts {
		fmt.Fprintf(&b, "%s | %s | %.2f | %s\n", p.PostID.String(), p.Timestamp.Format(time.RFC3339), p.CredibilityScore, p.Text)
	}
	return b.String()
}

func parseTimeline(raw string, topic string, byID map[string]domain.Post, n int) (domain.Timeline, error) {
	var reply timelineReply
	if err := json.Unmarshal([]byte(extractJSON(raw)), &reply); err != nil {
		return domain.Timeline{}, fmt.Errorf("invalid timeline JSON: %w", err)
	}

	events := make([]domain.Event, 0, len(reply.Events))
	for _, re := range reply.Events {
		ts, err := time.Parse(time.RFC3339, re.Timestamp)
		if err != nil {
			return domain.Timeline{}, fmt.Errorf("event timestamp %q is not RFC3339: %w", re.Timestamp, err)
		}

		if len(re.Sources) == 0 {
			return domain.Timeline{}, fmt.Errorf("event %q cites no sources", re.Summary)
		}

		var sum float64
		for _, srcID := range re.Sources {
			post, ok := byID[srcID]
			if !ok {
				return domain.Timeline{}, fmt.Errorf("event cites unknown source id %q", srcID)
			}
			sum += post.CredibilityScore
		}
		credibility := clamp01(sum / float64(len(re.Sources)))

		events = append(events, domain.Event{
			Timestamp:        ts,
			Summary:          re.Summary,
			Sources:          re.Sources,
			Location:         re.Location,
			CredibilityScore: credibility,
		})
	}

	if !sort.SliceIsSorted(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) }) {
		return domain.Timeline{}, fmt.Errorf("events are not sorted ascending by timestamp")
	}

	if upper := maxInt(n, len(byID)); len(events) > upper {
		events = events[:upper]
	}

	return domain.Timeline{
		Topic:       firstNonEmpty(reply.Topic, topic),
		Events:      events,
		Predictions: reply.Predictions,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return ""
}
