package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chronofact/chronofact/domain"
)

const followUpPrompt = `Given the original query and a summary of the timeline generated for it, suggest follow-up
questions a curious reader might ask next.

Original query: %q
Timeline summary: %q
Questions already asked (do not repeat these, even rephrased): %s

Reply with a single JSON array of objects, each of exactly this shape, and nothing else:
[{"question": "string", "category": "deep_dive|related_topic|verification|prediction|comparison", "priority": 1}]`

type followUpReply struct {
	Question string `json:"question"`
	Category string `json:"category"`
	Priority int    `json:"priority"`
}

// GenerateFollowUpQuestions suggests next questions after a timeline
// response, excluding (case-insensitively, trimmed) anything in
// priorQuestions.
func GenerateFollowUpQuestions(ctx context.Context, e *Engine, originalQuery, timelineSummary string, priorQuestions []string) ([]domain.FollowUpQuestion, error) {
	prompt := fmt.Sprintf(followUpPrompt, originalQuery, timelineSummary, strings.Join(priorQuestions, "; "))

	seen := make(map[string]struct{}, len(priorQuestions))
	for _, q := range priorQuestions {
		seen[normalizeQuestion(q)] = struct{}{}
	}

	parse := func(raw string) ([]domain.FollowUpQuestion, error) {
		return parseFollowUps(raw, seen)
	}

	return Generate(ctx, e, prompt, parse)
}

func parseFollowUps(raw string, seen map[string]struct{}) ([]domain.FollowUpQuestion, error) {
	var replies []followUpReply
	if err := json.Unmarshal([]byte(extractJSON(raw)), &replies); err != nil {
		return nil, fmt.Errorf("invalid follow-up JSON: %w", err)
	}

	out := make([]domain.FollowUpQuestion, 0, len(replies))
	for _, r := range replies {
		if _, dup := seen[normalizeQuestion(r.Question)]; dup {
			return nil, fmt.Errorf("follow-up question %q repeats a prior question", r.Question)
		}

		category := domain.FollowUpCategory(r.Category)
		switch category {
		case domain.CategoryDeepDive, domain.CategoryRelatedTopic, domain.CategoryVerification,
			domain.CategoryPrediction, domain.CategoryComparison:
		default:
			return nil, fmt.Errorf("invalid follow-up category %q", r.Category)
		}

		if r.Priority < 1 || r.Priority > 5 {
			return nil, fmt.Errorf("follow-up priority %d out of range [1,5]", r.Priority)
		}

		out = append(out, domain.FollowUpQuestion{Question: r.Question, Category: category, Priority: r.Priority})
	}

	return out, nil
}

func normalizeQuestion(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
