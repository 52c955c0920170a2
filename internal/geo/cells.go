package geo

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"lmp-gridmap/internal/model"
)

// CellConfig sizes the per-node rectangle. SideLatDegrees is the full height;
// HalfSideLonDegrees is the half width. The defaults are not square: the
// longitude half-width was tuned separately to tile the map better.
type CellConfig struct {
	SideLatDegrees     float64 `yaml:"side_lat_degrees"`
	HalfSideLonDegrees float64 `yaml:"half_side_lon_degrees"`

	// Workers > 1 builds cells on a worker pool once the node count reaches
	// ParallelThreshold. Output order is unaffected.
	Workers           int `yaml:"workers"`
	ParallelThreshold int `yaml:"parallel_threshold"`
}

// DefaultCellConfig reproduces the reference map: 0.5834° tall, 0.6828° wide.
func DefaultCellConfig() CellConfig {
	return CellConfig{
		SideLatDegrees:     0.5834,
		HalfSideLonDegrees: 0.3414,
		Workers:            1,
		ParallelThreshold:  500,
	}
}

// SkipReason says why a node produced no cell.
type SkipReason string

const (
	SkipInvalidNode        SkipReason = "invalid_node"
	SkipDegenerateGeometry SkipReason = "degenerate_geometry"
)

// Skip records a node that was left out of the grid.
type Skip struct {
	Index  int        `json:"index"` // 1-based input position
	Code   string     `json:"code"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// Cell is one node's polygon on the map.
type Cell struct {
	NodeIndex int         `json:"node_id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Market    string      `json:"market"`
	Zone      *string     `json:"zone"`
	Geometry  orb.Polygon `json:"geometry"`
	Price     *float64    `json:"price"`
}

// Grid is the generator output: cells in input order plus the skipped nodes.
type Grid struct {
	Cells   []Cell
	Skipped []Skip
}

// cellResult is the per-node outcome; exactly one of cell or skip is set.
type cellResult struct {
	cell *Cell
	skip *Skip
}

// GenerateCells builds one cell per node. Nodes whose rectangle cannot be
// built are skipped and reported in Grid.Skipped; the batch never fails.
func GenerateCells(nodes []model.Node, boundary *Boundary, cfg CellConfig) Grid {
	if len(nodes) == 0 {
		return Grid{Cells: []Cell{}}
	}
	start := time.Now()

	results := make([]cellResult, len(nodes))
	if cfg.Workers > 1 && len(nodes) >= cfg.ParallelThreshold {
		var g errgroup.Group
		g.SetLimit(cfg.Workers)
		for i := range nodes {
			g.Go(func() error {
				results[i] = buildCell(i, nodes[i], boundary, cfg)
				return nil
			})
		}
		g.Wait()
	} else {
		for i := range nodes {
			results[i] = buildCell(i, nodes[i], boundary, cfg)
		}
	}

	grid := Grid{Cells: make([]Cell, 0, len(nodes))}
	for _, r := range results {
		if r.skip != nil {
			log.Warn().
				Str("component", "geo").
				Str("code", r.skip.Code).
				Int("index", r.skip.Index).
				Str("reason", string(r.skip.Reason)).
				Msg(r.skip.Detail)
			grid.Skipped = append(grid.Skipped, *r.skip)
			continue
		}
		grid.Cells = append(grid.Cells, *r.cell)
	}

	log.Debug().
		Str("component", "geo").
		Str("boundary", boundary.Name()).
		Int("nodes", len(nodes)).
		Int("cells", len(grid.Cells)).
		Int("skipped", len(grid.Skipped)).
		Dur("took", time.Since(start)).
		Msg("generated cells")
	return grid
}

func buildCell(i int, n model.Node, boundary *Boundary, cfg CellConfig) cellResult {
	skip := func(reason SkipReason, detail string) cellResult {
		return cellResult{skip: &Skip{Index: i + 1, Code: n.Code, Reason: reason, Detail: detail}}
	}
	if err := n.Validate(); err != nil {
		return skip(SkipInvalidNode, err.Error())
	}

	rect, ok := nodeRect(n, cfg)
	if !ok {
		return skip(SkipDegenerateGeometry, "cell rectangle has zero area")
	}
	ring := rectRing(rect)
	full := polygonArea(orb.Polygon{ring})

	geom := orb.Polygon{ring}
	parts := boundary.Intersect(rect)
	if best, area := largestPart(parts); area > 0 && !sameArea(area, full) {
		geom = orb.Polygon{best[0]}
	}
	// Empty or zero-area intersections keep the full rectangle so edge nodes
	// still get a visible cell.

	return cellResult{cell: &Cell{
		NodeIndex: i + 1,
		Code:      n.Code,
		Name:      n.Name,
		Latitude:  n.Latitude,
		Longitude: n.Longitude,
		Market:    n.Market,
		Zone:      n.Zone,
		Geometry:  geom,
	}}
}

// nodeRect returns the cell rectangle around n. A negative configured size
// yields inverted corners; they are swapped back into a valid bound.
func nodeRect(n model.Node, cfg CellConfig) (orb.Bound, bool) {
	halfLat := cfg.SideLatDegrees / 2
	halfLon := cfg.HalfSideLonDegrees
	a := orb.Point{n.Longitude - halfLon, n.Latitude - halfLat}
	b := orb.Point{n.Longitude + halfLon, n.Latitude + halfLat}
	if !finitePoint(a) || !finitePoint(b) {
		return orb.Bound{}, false
	}
	rect := orb.Bound{Min: a, Max: a}.Extend(b)
	if rect.Max[0]-rect.Min[0] <= 0 || rect.Max[1]-rect.Min[1] <= 0 {
		return orb.Bound{}, false
	}
	return rect, true
}

// rectRing walks the rectangle counter-clockwise from the south-west corner.
func rectRing(b orb.Bound) orb.Ring {
	return orb.Ring{
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
		{b.Min[0], b.Max[1]},
		{b.Min[0], b.Min[1]},
	}
}

func largestPart(parts orb.MultiPolygon) (orb.Polygon, float64) {
	var best orb.Polygon
	bestArea := 0.0
	for _, p := range parts {
		if a := polygonArea(p); a > bestArea {
			best, bestArea = p, a
		}
	}
	return best, bestArea
}

func sameArea(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(a, b)
}
