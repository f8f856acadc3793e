package generator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chronofact/chronofact/domain"
)

const processQueryPrompt = `You are a search query planner for a fact-grounded timeline service.
Given a raw user topic, extract the named entities, any locations mentioned, a time range if one
is implied, and a refined search string suitable for both dense and keyword retrieval.

Raw topic: %q

Reply with a single JSON object of exactly this shape and nothing else:
{
  "refined_text": "string",
  "entities": ["string", ...],
  "locations": ["string", ...],
  "min_credibility": 0.3
}`

type queryPlanReply struct {
	RefinedText    string   `json:"refined_text"`
	Entities       []string `json:"entities"`
	Locations      []string `json:"locations"`
	MinCredibility float64  `json:"min_credibility"`
}

// ProcessQuery extracts a QueryPlan from a raw free-text topic. It requires
// no retrieved context - only the raw query is grounded.
func ProcessQuery(ctx context.Context, e *Engine, rawQuery string, limit int) (domain.QueryPlan, error) {
	prompt := fmt.Sprintf(processQueryPrompt, rawQuery)

	reply, err := Generate(ctx, e, prompt, parseQueryPlan)
	if err != nil {
		return domain.QueryPlan{}, err
	}

	plan := domain.QueryPlan{
		RefinedText:    reply.RefinedText,
		Entities:       reply.Entities,
		Locations:      reply.Locations,
		MinCredibility: reply.MinCredibility,
		Limit:          limit,
	}
	if len(plan.RefinedText) == 0 {
		plan.RefinedText = rawQuery
	}

	return plan, nil
}

func parseQueryPlan(raw string) (queryPlanReply, error) {
	var out queryPlanReply
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		return queryPlanReply{}, fmt.Errorf("invalid query plan JSON: %w", err)
	}
	if len(out.RefinedText) == 0 {
		return queryPlanReply{}, fmt.Errorf("refined_text must be non-empty")
	}
	return out, nil
}
