package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chronofact/chronofact/generator"
)

// DetectHandler backs POST /api/detect: a standalone DetectMisinformation call.
type DetectHandler struct {
	generator *generator.Engine
}

func NewDetectHandler(gen *generator.Engine) *DetectHandler {
	return &DetectHandler{generator: gen}
}

type detectRequestBody struct {
	Text string `json:"text"`
}

func (h *DetectHandler) Detect(c *gin.Context) {
	var body detectRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(body.Text) == 0 {
		RespondError(c, http.StatusBadRequest, "missing_text", errors.New("text is required"))
		return
	}

	result, err := generator.DetectMisinformation(c.Request.Context(), h.generator, body.Text)
	if err != nil {
		RespondFromErr(c, err)
		return
	}

	RespondOK(c, result)
}
