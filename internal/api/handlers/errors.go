package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"lmp-gridmap/internal/api/models"
	"lmp-gridmap/internal/pricemap"
)

func writeError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeServiceError maps a map-service error onto the API error envelope.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusServiceUnavailable, "REQUEST_CANCELLED", "Request was cancelled before the map was built", nil)
	case errors.Is(err, pricemap.ErrNodeLookup):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("node lookup failed")
		writeError(c, http.StatusBadGateway, "NODE_LOOKUP_ERROR", "Failed to load market nodes", nil)
	case errors.Is(err, pricemap.ErrPriceLookup):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("price lookup failed")
		writeError(c, http.StatusBadGateway, "PRICE_LOOKUP_ERROR", "Failed to load values for the requested hour", nil)
	case errors.Is(err, pricemap.ErrGridCache):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("grid cache failed")
		writeError(c, http.StatusBadGateway, "CACHE_ERROR", "Failed to invalidate the cached grid", nil)
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("unexpected error")
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
