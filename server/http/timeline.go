package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chronofact/chronofact/chronoerr"
	"github.com/chronofact/chronofact/domain"
	"github.com/chronofact/chronofact/pipeline"
)

// TimelineHandler backs POST /api/timeline, the entry point to C6's full
// state machine.
type TimelineHandler struct {
	pipeline      *pipeline.Pipeline
	imageMaxBytes int64
}

func NewTimelineHandler(p *pipeline.Pipeline, imageMaxBytes int64) *TimelineHandler {
	return &TimelineHandler{pipeline: p, imageMaxBytes: imageMaxBytes}
}

type timelineRequestBody struct {
	Topic            string  `json:"topic"`
	Limit            int     `json:"limit"`
	Location         string  `json:"location"`
	MinCredibility   float64 `json:"min_credibility"`
	IncludeMediaOnly bool    `json:"include_media_only"`
	ImageBase64      string  `json:"image_base64"`
	SessionID        string  `json:"session_id"`
}

// Create validates the body against spec.md §6's row for /api/timeline and
// runs it through the pipeline.
func (h *TimelineHandler) Create(c *gin.Context) {
	var body timelineRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if len(body.Topic) == 0 && len(body.ImageBase64) == 0 {
		RespondError(c, http.StatusBadRequest, "missing_topic",
			errors.New("topic or image_base64 is required"))
		return
	}

	if body.Limit == 0 {
		body.Limit = 10
	}
	if body.Limit < 1 || body.Limit > 50 {
		RespondError(c, http.StatusBadRequest, "invalid_limit",
			errors.New("limit must be between 1 and 50"))
		return
	}

	if body.MinCredibility == 0 {
		body.MinCredibility = 0.3
	}
	if body.MinCredibility < 0 || body.MinCredibility > 1 {
		RespondError(c, http.StatusBadRequest, "invalid_min_credibility",
			errors.New("min_credibility must be between 0 and 1"))
		return
	}

	if int64(len(body.ImageBase64)) > (h.imageMaxBytes*4)/3+4 {
		RespondError(c, http.StatusRequestEntityTooLarge, "image_too_large",
			chronoerr.ErrPayloadTooLarge)
		return
	}

	req := domain.TimelineRequest{
		Topic:            body.Topic,
		Limit:            body.Limit,
		Location:         body.Location,
		MinCredibility:   body.MinCredibility,
		IncludeMediaOnly: body.IncludeMediaOnly,
		ImageBase64:      body.ImageBase64,
		SessionID:        body.SessionID,
	}

	resp, err := h.pipeline.Run(c.Request.Context(), req)
	if err != nil {
		RespondFromErr(c, err)
		return
	}

	RespondOK(c, resp)
}
