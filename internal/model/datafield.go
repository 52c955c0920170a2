package model

import (
	"fmt"
	"strings"
)

// DataField selects which hourly scalar is averaged onto the map.
// Keep these values stable; they are accepted verbatim from clients.
type DataField string

const (
	FieldPrice        DataField = "price"
	FieldSolarCapture DataField = "solar_capture"
	FieldWindCapture  DataField = "wind_capture"
)

// DataFields lists every supported field in display order.
var DataFields = []DataField{FieldPrice, FieldSolarCapture, FieldWindCapture}

// ParseDataField maps a request value to a DataField. Empty means price.
func ParseDataField(s string) (DataField, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FieldPrice, nil
	}
	for _, f := range DataFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported data type %q (expected one of price, solar_capture, wind_capture)", s)
}

// Unit is the display unit for the field.
func (f DataField) Unit() string {
	switch f {
	case FieldPrice:
		return "$/MWh"
	case FieldSolarCapture, FieldWindCapture:
		return "MW"
	default:
		return ""
	}
}
