// Package store provides the node and price data behind the map: a
// PostgreSQL store for production and an in-memory store loaded from a JSON
// snapshot file for local runs and tests.
package store

import (
	"errors"
	"fmt"

	"lmp-gridmap/internal/model"
)

// ErrUnsupportedField is returned when a store has no column for a data field.
var ErrUnsupportedField = errors.New("unsupported data field")

// fieldColumns maps each data field to its price_records column. The map is
// the only place a column name enters a query.
var fieldColumns = map[model.DataField]string{
	model.FieldPrice:        "price",
	model.FieldSolarCapture: "solar_capture",
	model.FieldWindCapture:  "wind_capture",
}

func columnFor(f model.DataField) (string, error) {
	col, ok := fieldColumns[f]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedField, f)
	}
	return col, nil
}
