package model

import "time"

// PriceRecord is one hourly row for a node. Any of the scalar fields may be
// missing; averages skip missing values.
type PriceRecord struct {
	NodeCode     string    `json:"node_code"`
	Timestamp    time.Time `json:"timestamp"`
	Market       string    `json:"market"`
	Price        *float64  `json:"price"`
	SolarCapture *float64  `json:"solar_capture"`
	WindCapture  *float64  `json:"wind_capture"`
}

// Value returns the scalar selected by f, or nil if the record has none.
func (r PriceRecord) Value(f DataField) *float64 {
	switch f {
	case FieldPrice:
		return r.Price
	case FieldSolarCapture:
		return r.SolarCapture
	case FieldWindCapture:
		return r.WindCapture
	default:
		return nil
	}
}

// SnapshotRow is one node's averaged value for an hour window.
type SnapshotRow struct {
	NodeID    int       `json:"node_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Value     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
