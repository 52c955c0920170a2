package models

// MapRequest is the query string shared by the price map endpoints.
type MapRequest struct {
	Timestamp string `form:"timestamp" binding:"required"` // RFC3339 or 2006-01-02T15:04:05 (UTC)
	Market    string `form:"market"`
	DataType  string `form:"datatype"` // price | solar_capture | wind_capture; default price
}

// MapStatsRequest adds the size of the highest/lowest lists.
type MapStatsRequest struct {
	MapRequest
	Top int `form:"top" binding:"omitempty,min=0,max=100"` // default: 5
}

// NodesRequest filters GET /api/v1/nodes.
type NodesRequest struct {
	Market string `form:"market"`
}

// RefreshRequest selects the cached grid to drop.
type RefreshRequest struct {
	Market string `form:"market"`
}
