package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chronofact/chronofact/generator"
)

// FollowUpHandler backs POST /api/followup: GenerateFollowUpQuestions taken
// standalone, given a timeline's summary shape rather than a live Timeline
// value (spec.md §6's row for this endpoint takes events_summary/
// avg_credibility/total_events/total_sources instead of a Timeline).
type FollowUpHandler struct {
	generator *generator.Engine
}

func NewFollowUpHandler(gen *generator.Engine) *FollowUpHandler {
	return &FollowUpHandler{generator: gen}
}

type followUpRequestBody struct {
	OriginalQuery      string   `json:"original_query"`
	TimelineTopic      string   `json:"timeline_topic"`
	EventsSummary      []string `json:"events_summary"`
	AvgCredibility     float64  `json:"avg_credibility"`
	TotalEvents        int      `json:"total_events"`
	TotalSources       int      `json:"total_sources"`
	PreviousQuestions  []string `json:"previous_questions"`
}

type followUpResponseBody struct {
	Query     string                       `json:"query"`
	Count     int                          `json:"count"`
	Questions []followUpQuestionResponse   `json:"questions"`
}

type followUpQuestionResponse struct {
	Question string `json:"question"`
	Category string `json:"category"`
	Priority int    `json:"priority"`
}

func (h *FollowUpHandler) Suggest(c *gin.Context) {
	var body followUpRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(body.OriginalQuery) == 0 {
		RespondError(c, http.StatusBadRequest, "missing_original_query", errors.New("original_query is required"))
		return
	}

	summary := fmt.Sprintf("%s (%d events, %d sources, avg credibility %.2f): %s",
		body.TimelineTopic, body.TotalEvents, body.TotalSources, body.AvgCredibility,
		strings.Join(body.EventsSummary, "; "))

	questions, err := generator.GenerateFollowUpQuestions(c.Request.Context(), h.generator, body.OriginalQuery, summary, body.PreviousQuestions)
	if err != nil {
		RespondFromErr(c, err)
		return
	}

	out := make([]followUpQuestionResponse, 0, len(questions))
	for _, q := range questions {
		out = append(out, followUpQuestionResponse{Question: q.Question, Category: string(q.Category), Priority: q.Priority})
	}

	RespondOK(c, followUpResponseBody{Query: body.OriginalQuery, Count: len(out), Questions: out})
}
