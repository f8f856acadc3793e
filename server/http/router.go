package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/chronofact/chronofact/server"
)

// RouterConfig collects the handler structs NewRouter wires onto routes.
type RouterConfig struct {
	Health    *HealthHandler
	Timeline  *TimelineHandler
	Verify    *VerifyHandler
	Detect    *DetectHandler
	FollowUp  *FollowUpHandler
	Recommend *RecommendHandler
}

// NewRouter builds the gin.Engine spec.md §6 describes: cors, otelgin
// tracing, then the five /api operations plus /health, all under
// opts.Middleware for anything the caller wants layered on top.
func NewRouter(cfg RouterConfig, opts server.Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chronofact"))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))

	for _, mw := range opts.Middleware {
		router.Use(mw)
	}

	router.GET("/health", cfg.Health.Check)

	api := router.Group("/api")
	{
		api.POST("/timeline", cfg.Timeline.Create)
		api.POST("/verify", cfg.Verify.Assess)
		api.POST("/detect", cfg.Detect.Detect)
		api.POST("/followup", cfg.FollowUp.Suggest)
		api.POST("/recommend", cfg.Recommend.Recommend)
	}

	return router
}
