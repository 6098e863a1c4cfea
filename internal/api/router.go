package api

import (
	"github.com/gin-gonic/gin"

	"Minerva/pkg/ratelimiter"
)

// NewRouter wires the HTTP routes. limiter may be nil to disable rate
// limiting.
func NewRouter(s *Server, limiter ratelimiter.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(s.deps.Log))
	if limiter != nil {
		router.Use(RateLimit(limiter))
	}

	router.GET("/health", s.handleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/ingest", s.handleIngest)
		v1.POST("/ingest/upload", s.handleUpload)
		v1.GET("/ingest/history", s.handleHistory)
		v1.GET("/sources", s.handleSources)
		v1.POST("/search", s.handleSearch)
		v1.POST("/chat/reset", s.handleChatReset)
	}

	return router
}
