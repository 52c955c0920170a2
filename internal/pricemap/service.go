// Package pricemap assembles the price map: it fetches or builds the cell
// grid for a market, looks up one hour of values and merges them in.
package pricemap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"lmp-gridmap/internal/analysis"
	"lmp-gridmap/internal/cache"
	"lmp-gridmap/internal/geo"
	"lmp-gridmap/internal/model"
	"lmp-gridmap/internal/observability"
)

var (
	// ErrNodeLookup wraps a failure to list nodes.
	ErrNodeLookup = errors.New("node lookup failed")
	// ErrPriceLookup wraps a failure to fetch values. It is never turned into
	// a map of null prices.
	ErrPriceLookup = errors.New("price lookup failed")
	// ErrGridCache wraps a cache failure that the caller asked to see.
	ErrGridCache = errors.New("grid cache failed")
)

// gridBuildTimeout bounds a shared grid build, which outlives the request
// that started it.
const gridBuildTimeout = time.Minute

// Request selects one hour of one data field for one market.
type Request struct {
	Timestamp time.Time
	Market    string
	Field     model.DataField
}

// Result is an annotated grid plus its summary.
type Result struct {
	Cells   []geo.Cell
	Skipped []geo.Skip
	Stats   analysis.MapStats
	Start   time.Time
	End     time.Time
	Market  string
	Field   model.DataField
}

// Grid returns the result as a geo.Grid for rendering.
func (r *Result) Grid() geo.Grid {
	return geo.Grid{Cells: r.Cells, Skipped: r.Skipped}
}

type Service struct {
	nodes    NodeSource
	prices   PriceSource
	cache    GridCache
	boundary *geo.Boundary
	cells    geo.CellConfig
	group    singleflight.Group
	log      zerolog.Logger
}

// NewService wires the map service. gc may be nil to rebuild the grid on
// every request.
func NewService(nodes NodeSource, prices PriceSource, gc GridCache, boundary *geo.Boundary, cells geo.CellConfig) *Service {
	return &Service{
		nodes:    nodes,
		prices:   prices,
		cache:    gc,
		boundary: boundary,
		cells:    cells,
		log:      log.With().Str("component", "pricemap").Logger(),
	}
}

// HourWindow truncates ts to the start of its wall-clock hour and returns
// [start, start+1h).
func HourWindow(ts time.Time) (time.Time, time.Time) {
	start := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, ts.Location())
	return start, start.Add(time.Hour)
}

// Build returns the grid for req.Market annotated with the hourly average of
// req.Field. If ctx is cancelled no partial result is returned.
func (s *Service) Build(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	field := req.Field
	if field == "" {
		field = model.FieldPrice
	}
	start, end := HourWindow(req.Timestamp)

	cells, skipped, err := s.Grid(ctx, req.Market)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values, err := s.prices.AverageByNode(ctx, field, start, end, req.Market)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s %s: %w", ErrPriceLookup, field, start.Format(time.RFC3339), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	annotated := geo.Annotate(cells, values)
	res := &Result{
		Cells:   annotated,
		Skipped: skipped,
		Stats:   analysis.ComputeMapStats(annotated),
		Start:   start,
		End:     end,
		Market:  req.Market,
		Field:   field,
	}

	s.log.Debug().
		Str("market", req.Market).
		Str("field", string(field)).
		Time("start", start).
		Int("cells", res.Stats.Cells).
		Int("with_value", res.Stats.WithValue).
		Int("skipped", len(skipped)).
		Msg("built price map")
	return res, nil
}

// Snapshot returns the per-node hourly averages for req without geometry.
func (s *Service) Snapshot(ctx context.Context, req Request) ([]model.SnapshotRow, time.Time, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	field := req.Field
	if field == "" {
		field = model.FieldPrice
	}
	start, end := HourWindow(req.Timestamp)

	rows, err := s.prices.HourlySnapshot(ctx, field, start, end, req.Market)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, time.Time{}, time.Time{}, ctxErr
		}
		return nil, time.Time{}, time.Time{}, fmt.Errorf("%w: snapshot %s: %w", ErrPriceLookup, field, err)
	}
	return rows, start, end, nil
}

// Nodes lists active nodes for market.
func (s *Service) Nodes(ctx context.Context, market string) ([]model.Node, error) {
	nodes, err := s.nodes.ListActiveNodes(ctx, market)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrNodeLookup, err)
	}
	return nodes, nil
}

// Grid returns the un-annotated cells for market from the cache, building
// and storing them on a miss. Concurrent misses for one market share a
// single build. Cache failures are logged and otherwise ignored.
//
// The shared build runs detached from the caller that started it; each
// caller stops waiting when its own ctx is done.
func (s *Service) Grid(ctx context.Context, market string) ([]geo.Cell, []geo.Skip, error) {
	key := s.gridKey(market)

	if s.cache != nil {
		cells, skipped, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("grid cache read failed")
		} else if ok {
			return cells, skipped, nil
		}
	}

	ch := s.group.DoChan(key, func() (any, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), gridBuildTimeout)
		defer cancel()
		return s.buildGrid(bctx, key, market)
	})
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, nil, res.Err
		}
		grid := res.Val.(geo.Grid)
		return grid.Cells, grid.Skipped, nil
	}
}

func (s *Service) buildGrid(ctx context.Context, key, market string) (geo.Grid, error) {
	nodes, err := s.Nodes(ctx, market)
	if err != nil {
		return geo.Grid{}, err
	}

	began := time.Now()
	grid := geo.GenerateCells(nodes, s.boundary, s.cells)
	observability.ObserveGridBuild(time.Since(began))
	for _, sk := range grid.Skipped {
		observability.ObserveSkip(string(sk.Reason))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, grid.Cells, grid.Skipped); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("grid cache write failed")
		}
	}
	return grid, nil
}

// Refresh drops the cached grid for market and builds it again. It returns
// the number of cells in the new grid.
func (s *Service) Refresh(ctx context.Context, market string) (int, error) {
	key := s.gridKey(market)
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			return 0, fmt.Errorf("%w: invalidate %s: %w", ErrGridCache, key, err)
		}
	}
	s.group.Forget(key)

	cells, _, err := s.Grid(ctx, market)
	if err != nil {
		return 0, err
	}
	s.log.Info().Str("key", key).Int("cells", len(cells)).Msg("grid rebuilt")
	return len(cells), nil
}

func (s *Service) gridKey(market string) string {
	return cache.GridKey(market, s.boundary, s.cells)
}
