package generator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chronofact/chronofact/domain"
)

const credibilityPrompt = `Assess the credibility of this post text, independent of any source's reputation.

Text: %q
Author: %q
Engagement signal: %q

Reply with a single JSON object of exactly this shape and nothing else:
{"score": 0.0, "factors": ["string", ...], "recommendation": "string"}`

type credibilityReply struct {
	Score          float64  `json:"score"`
	Factors        []string `json:"factors"`
	Recommendation string   `json:"recommendation"`
}

// AssessCredibility backs /api/verify: a standalone credibility read on a
// single piece of text, not tied to any retrieved context.
func AssessCredibility(ctx context.Context, e *Engine, text, author, engagement string) (domain.CredibilityAssessment, error) {
	prompt := fmt.Sprintf(credibilityPrompt, text, author, engagement)

	return Generate(ctx, e, prompt, parseCredibility)
}

func parseCredibility(raw string) (domain.CredibilityAssessment, error) {
	var reply credibilityReply
	if err := json.Unmarshal([]byte(extractJSON(raw)), &reply); err != nil {
		return domain.CredibilityAssessment{}, fmt.Errorf("invalid credibility JSON: %w", err)
	}
	if reply.Score < 0 || reply.Score > 1 {
		return domain.CredibilityAssessment{}, fmt.Errorf("credibility score %f out of range [0,1]", reply.Score)
	}
	return domain.CredibilityAssessment{
		Score:          reply.Score,
		Factors:        reply.Factors,
		Recommendation: reply.Recommendation,
	}, nil
}
