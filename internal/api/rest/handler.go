package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopstr-eng/shopstr-cache/internal/api/rest/dto"
	"github.com/shopstr-eng/shopstr-cache/internal/cache"
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/logger"
)

const healthCheckTimeout = 2 * time.Second

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler defines the interface for REST API handlers
// This interface allows for easy mocking and testing
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// ListEntities lists entities of a class straight from the store
	// GET /api/v1/entities/:class?since=<unix>&until=<unix>&merchant=<id>&bbox=<minLon,minLat,maxLon,maxLat>&near=<lat,lon>&radius=<meters>&latest=<bool>&limit=<limit>&offset=<offset>
	ListEntities(c *gin.Context)

	// GetCachedEntities lists the current entities of a class, refreshing it
	// first when it is older than max_age
	// GET /api/v1/entities/:class/cached?max_age=<duration|seconds>
	GetCachedEntities(c *gin.Context)

	// GetEntity returns the latest row of one entity
	// GET /api/v1/entities/:class/:id
	GetEntity(c *gin.Context)

	// TriggerIngest runs an ingestion pass for a class (requires authentication)
	// POST /api/v1/ingest/:class
	TriggerIngest(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	cache cache.Cache
	db    Pinger
}

// NewHandler creates a new REST API handler
func NewHandler(c cache.Cache, db Pinger) Handler {
	return &handler{
		cache: c,
		db:    db,
	}
}

// classParam parses the :class path parameter, answering 404 for unknown classes
func classParam(c *gin.Context) (domain.EntityClass, bool) {
	class, err := domain.ParseClass(c.Param("class"))
	if err != nil {
		respondError(c, err, "Unknown entity class")
		return "", false
	}
	return class, true
}

// ListEntities lists entities of a class matching the query filters
func (h *handler) ListEntities(c *gin.Context) {
	class, ok := classParam(c)
	if !ok {
		return
	}

	queryParams, err := ParseListEntitiesQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	filter, err := queryParams.Filter(class)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	entities, err := h.cache.FetchFiltered(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to list entities")
		return
	}

	c.JSON(http.StatusOK, dto.NewEntityListResponse(class, entities))
}

// GetCachedEntities lists the current entities of a class under a staleness budget
func (h *handler) GetCachedEntities(c *gin.Context) {
	class, ok := classParam(c)
	if !ok {
		return
	}

	maxAge, err := ParseMaxAge(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	entities, err := h.cache.FetchCached(c.Request.Context(), class, maxAge)
	if err != nil {
		respondError(c, err, "Failed to fetch cached entities")
		return
	}

	c.JSON(http.StatusOK, dto.NewEntityListResponse(class, entities))
}

// GetEntity returns the latest row of one entity
func (h *handler) GetEntity(c *gin.Context) {
	class, ok := classParam(c)
	if !ok {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondBadRequest(c, "Entity ID is required")
		return
	}

	entity, err := h.cache.FetchLatest(c.Request.Context(), class, id)
	if err != nil {
		respondError(c, err, "Failed to get entity")
		return
	}

	if entity == nil {
		respondNotFound(c, "Entity not found")
		return
	}

	c.JSON(http.StatusOK, dto.EntityResponse{Class: class, Entity: entity})
}

// TriggerIngest runs an ingestion pass and returns its report
func (h *handler) TriggerIngest(c *gin.Context) {
	class, ok := classParam(c)
	if !ok {
		return
	}

	logger.InfoCtx(c.Request.Context(), "Manual ingestion requested",
		zap.String("class", string(class)),
		zap.String("subject", c.GetString("auth_subject")),
	)

	report, err := h.cache.Refresh(c.Request.Context(), class)
	if err != nil && report == nil {
		respondError(c, err, "Failed to ingest")
		return
	}
	if err != nil {
		// the pass stopped early, what it committed stays committed
		logger.WarnCtx(c.Request.Context(), "Ingestion pass ended with error", zap.Error(err))
		respondError(c, err, "Ingestion pass aborted")
		return
	}

	c.JSON(http.StatusOK, dto.IngestResponse{
		Skipped: report == nil,
		Report:  report,
	})
}

// HealthCheck returns the health status of the API and its database
func (h *handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			logger.WarnCtx(ctx, "Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unavailable",
				"service": "shopstr-cache-api",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "shopstr-cache-api",
	})
}
