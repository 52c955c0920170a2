package pricemap

import (
	"context"
	"time"

	"lmp-gridmap/internal/geo"
	"lmp-gridmap/internal/model"
)

// NodeSource lists the nodes drawn on the map. An empty market means all.
type NodeSource interface {
	ListActiveNodes(ctx context.Context, market string) ([]model.Node, error)
}

// PriceSource averages a data field per node over [start, end).
type PriceSource interface {
	AverageByNode(ctx context.Context, field model.DataField, start, end time.Time, market string) (map[string]float64, error)
	HourlySnapshot(ctx context.Context, field model.DataField, start, end time.Time, market string) ([]model.SnapshotRow, error)
}

// GridCache holds un-annotated grids between requests.
type GridCache interface {
	Get(ctx context.Context, key string) ([]geo.Cell, []geo.Skip, bool, error)
	Set(ctx context.Context, key string, cells []geo.Cell, skipped []geo.Skip) error
	Invalidate(ctx context.Context, key string) error
}
