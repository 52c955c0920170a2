package models

import (
	"time"

	"lmp-gridmap/internal/analysis"
	"lmp-gridmap/internal/geo"
	"lmp-gridmap/internal/model"
)

// TimeWindow represents a time range
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MapStatsResponse is the legend/status summary for one map.
type MapStatsResponse struct {
	Market   string     `json:"market"`
	DataType string     `json:"datatype"`
	Unit     string     `json:"unit"`
	Window   TimeWindow `json:"window"`

	analysis.MapStats

	Skipped      int                   `json:"skipped"`
	SkippedNodes []geo.Skip            `json:"skipped_nodes"`
	Highest      []analysis.RankedNode `json:"highest"`
	Lowest       []analysis.RankedNode `json:"lowest"`
}

// NodesResponse lists active nodes.
type NodesResponse struct {
	Market string       `json:"market,omitempty"`
	Count  int          `json:"count"`
	Nodes  []model.Node `json:"nodes"`
}

// RefreshResponse confirms a grid rebuild.
type RefreshResponse struct {
	Status string `json:"status"`
	Market string `json:"market"`
	Cells  int    `json:"cells"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
