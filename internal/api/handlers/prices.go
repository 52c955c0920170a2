package handlers

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"lmp-gridmap/internal/analysis"
	"lmp-gridmap/internal/api/models"
	"lmp-gridmap/internal/geo"
	"lmp-gridmap/internal/model"
	"lmp-gridmap/internal/pricemap"
)

// SkippedNodesHeader carries the number of nodes left out of a map.
const SkippedNodesHeader = "X-Skipped-Nodes"

// MapService is the part of pricemap.Service the price handlers use.
type MapService interface {
	Build(ctx context.Context, req pricemap.Request) (*pricemap.Result, error)
	Snapshot(ctx context.Context, req pricemap.Request) ([]model.SnapshotRow, time.Time, time.Time, error)
}

// Defaults holds the market used when a request names none.
type Defaults struct {
	MapMarket      string
	SnapshotMarket string
}

// PriceHandler handles the price map endpoints
type PriceHandler struct {
	svc      MapService
	defaults Defaults
}

// NewPriceHandler creates a new price handler
func NewPriceHandler(svc MapService, defaults Defaults) *PriceHandler {
	if defaults.MapMarket == "" {
		defaults.MapMarket = "MDA"
	}
	if defaults.SnapshotMarket == "" {
		defaults.SnapshotMarket = "ERCOT"
	}
	return &PriceHandler{svc: svc, defaults: defaults}
}

// parseMapRequest validates the shared query parameters. It writes the error
// response and returns false on failure.
func (h *PriceHandler) parseMapRequest(c *gin.Context, q models.MapRequest, defaultMarket string) (pricemap.Request, bool) {
	ts, err := parseTimestamp(q.Timestamp)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_TIMESTAMP", err.Error(), map[string]interface{}{"timestamp": q.Timestamp})
		return pricemap.Request{}, false
	}
	field, err := model.ParseDataField(q.DataType)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_DATATYPE", err.Error(), map[string]interface{}{"datatype": q.DataType})
		return pricemap.Request{}, false
	}
	return pricemap.Request{
		Timestamp: ts,
		Market:    orDefault(q.Market, defaultMarket),
		Field:     field,
	}, true
}

// VoronoiMap handles GET /api/v1/prices/voronoi-map
//
// The response is a GeoJSON FeatureCollection with one rectangle per node.
// The route keeps its historical name; the cells are not Voronoi cells.
func (h *PriceHandler) VoronoiMap(c *gin.Context) {
	var q models.MapRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	req, ok := h.parseMapRequest(c, q, h.defaults.MapMarket)
	if !ok {
		return
	}

	res, err := h.svc.Build(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.Header(SkippedNodesHeader, strconv.Itoa(len(res.Skipped)))
	writeWithETag(c, res.Grid().FeatureCollection(), "application/json; charset=utf-8")
}

// MapStats handles GET /api/v1/prices/map-stats
func (h *PriceHandler) MapStats(c *gin.Context) {
	var q models.MapStatsRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	req, ok := h.parseMapRequest(c, q.MapRequest, h.defaults.MapMarket)
	if !ok {
		return
	}
	top := q.Top
	if c.Query("top") == "" {
		top = 5
	}

	res, err := h.svc.Build(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	highest, lowest := analysis.RankByValue(res.Cells, top)
	skipped := res.Skipped
	if skipped == nil {
		skipped = []geo.Skip{}
	}
	c.Header(SkippedNodesHeader, strconv.Itoa(len(res.Skipped)))
	c.JSON(http.StatusOK, models.MapStatsResponse{
		Market:       res.Market,
		DataType:     string(res.Field),
		Unit:         res.Field.Unit(),
		Window:       models.TimeWindow{Start: res.Start, End: res.End},
		MapStats:     res.Stats,
		Skipped:      len(res.Skipped),
		SkippedNodes: skipped,
		Highest:      highest,
		Lowest:       lowest,
	})
}

// HourlySnapshot handles GET /api/v1/prices/hourly-snapshot
func (h *PriceHandler) HourlySnapshot(c *gin.Context) {
	var q models.MapRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	req, ok := h.parseMapRequest(c, q, h.defaults.SnapshotMarket)
	if !ok {
		return
	}

	rows, _, _, err := h.svc.Snapshot(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// writeWithETag marshals v once, answers 304 when the client already holds
// this version and writes the body otherwise.
func writeWithETag(c *gin.Context, v any, contentType string) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response body")
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
		return
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`

	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, contentType, body)
}

// DefaultMapMarket is the market used by the map endpoints when none is given.
func (h *PriceHandler) DefaultMapMarket() string {
	return h.defaults.MapMarket
}
