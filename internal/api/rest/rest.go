package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/shopstr-eng/shopstr-cache/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Entity endpoints (public read access)
		v1.GET("/entities/:class", handler.ListEntities)
		v1.GET("/entities/:class/cached", handler.GetCachedEntities)
		v1.GET("/entities/:class/:id", handler.GetEntity)

		// Manual ingestion (requires authentication)
		v1.POST("/ingest/:class", middleware.Auth(authCfg), handler.TriggerIngest)
	}
}
