package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chronofact/chronofact/embedder"
	"github.com/chronofact/chronofact/vectorstore"
)

// HealthHandler backs GET /health: a shallow readiness probe over the two
// components a request can't proceed without (C1's text embedder and C2's
// vector store). The generator (C4) is deliberately not probed here - a
// live LLM call on every health check would be expensive and noisy; its
// availability is instead surfaced per-request via 502s.
type HealthHandler struct {
	embedder    embedder.Embedder
	store       vectorstore.Store
	postsColl   string
}

func NewHealthHandler(emb embedder.Embedder, store vectorstore.Store, postsCollection string) *HealthHandler {
	return &HealthHandler{embedder: emb, store: store, postsColl: postsCollection}
}

type healthStatus struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks"`
}

// Check probes the embedder and vector store with a short deadline and
// reports 200 with status "ok" only if both succeed, 503 otherwise.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if _, err := h.embedder.EmbedText(ctx, "health check"); err != nil {
		checks["embedder"] = err.Error()
		healthy = false
	} else {
		checks["embedder"] = "ok"
	}

	if _, err := h.store.Scroll(ctx, h.postsColl, vectorstore.Filter{}, "", 1); err != nil {
		checks["vector_store"] = err.Error()
		healthy = false
	} else {
		checks["vector_store"] = "ok"
	}

	status := healthStatus{Status: "ok", Checks: checks}
	if !healthy {
		status.Status = "degraded"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}

	c.JSON(http.StatusOK, status)
}
