package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chronofact/chronofact/domain"
	"github.com/chronofact/chronofact/retriever"
)

// RecommendHandler backs POST /api/recommend. spec.md's Open Question notes
// that followup and recommend are "kept as distinct operations" and names
// only four generator operations plus AssessCredibility (§4.4) - there is
// no fifth LLM op for recommendations. Recommend is therefore retrieval-only:
// it runs C3 directly against the raw query and surfaces the fused result's
// post text, with no synthesis step.
type RecommendHandler struct {
	retriever *retriever.Retriever
}

func NewRecommendHandler(r *retriever.Retriever) *RecommendHandler {
	return &RecommendHandler{retriever: r}
}

type recommendRequestBody struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type recommendResponseBody struct {
	Query           string   `json:"query"`
	Count           int      `json:"count"`
	Recommendations []string `json:"recommendations"`
}

func (h *RecommendHandler) Recommend(c *gin.Context) {
	var body recommendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(body.Query) == 0 {
		RespondError(c, http.StatusBadRequest, "missing_query", errors.New("query is required"))
		return
	}
	if body.Limit == 0 {
		body.Limit = 10
	}
	if body.Limit < 1 || body.Limit > 50 {
		RespondError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be between 1 and 50"))
		return
	}

	plan := domain.QueryPlan{RefinedText: body.Query, Limit: body.Limit}

	result, err := h.retriever.Retrieve(c.Request.Context(), plan, true)
	if err != nil {
		RespondFromErr(c, err)
		return
	}

	recs := make([]string, 0, len(result.Posts))
	for _, s := range result.Posts {
		recs = append(recs, s.Post.Text)
	}

	RespondOK(c, recommendResponseBody{Query: body.Query, Count: len(recs), Recommendations: recs})
}
