package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chronofact/chronofact/generator"
)

// VerifyHandler backs POST /api/verify: a standalone AssessCredibility call.
type VerifyHandler struct {
	generator *generator.Engine
}

func NewVerifyHandler(gen *generator.Engine) *VerifyHandler {
	return &VerifyHandler{generator: gen}
}

type verifyRequestBody struct {
	Text       string `json:"text"`
	Author     string `json:"author"`
	Engagement string `json:"engagement"`
}

func (h *VerifyHandler) Assess(c *gin.Context) {
	var body verifyRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(body.Text) == 0 {
		RespondError(c, http.StatusBadRequest, "missing_text", errors.New("text is required"))
		return
	}

	result, err := generator.AssessCredibility(c.Request.Context(), h.generator, body.Text, body.Author, body.Engagement)
	if err != nil {
		RespondFromErr(c, err)
		return
	}

	RespondOK(c, result)
}
