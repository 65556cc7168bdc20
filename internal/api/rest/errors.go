package rest

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/shopstr-eng/shopstr-cache/internal/api/shared/errors"
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/logger"
)

func respond(c *gin.Context, apiErr *apierrors.APIError) {
	c.JSON(apiErr.Status(), apiErr)
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	respond(c, apierrors.NewBadRequestError(message, details...))
}

// respondNotFound sends a 404 Not Found response
func respondNotFound(c *gin.Context, message string, details ...string) {
	respond(c, apierrors.NewNotFoundError(message, details...))
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	respond(c, apierrors.NewValidationError(details))
}

// respondError maps a domain error onto its status code and envelope
func respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrUnknownClass):
		respondNotFound(c, "Unknown entity class", err.Error())
	case errors.Is(err, domain.ErrUnsupportedFilter):
		respondValidationError(c, err.Error())
	case errors.Is(err, domain.ErrStore):
		logger.ErrorCtx(c.Request.Context(), err, zap.String("path", c.Request.URL.Path))
		respond(c, apierrors.NewStoreError(message))
	case errors.Is(err, context.DeadlineExceeded):
		respond(c, apierrors.NewTimeoutError(message))
	default:
		logger.ErrorCtx(c.Request.Context(), err, zap.String("path", c.Request.URL.Path))
		respond(c, apierrors.NewInternalError(message))
	}
}
