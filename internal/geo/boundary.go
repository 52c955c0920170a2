// Package geo builds the per-node cell grid drawn on the price map.
//
// Cells are fixed-size rectangles centred on each node and clipped to a
// boundary polygon. They are not a Voronoi tessellation: neighbouring cells
// may overlap or leave gaps.
package geo

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ErrInvalidBoundary is returned for a boundary that cannot be used for clipping.
var ErrInvalidBoundary = errors.New("invalid boundary")

// Bounds is an axis-aligned latitude/longitude box in degrees.
type Bounds struct {
	MinLat float64 `yaml:"min_lat" json:"min_lat"`
	MaxLat float64 `yaml:"max_lat" json:"max_lat"`
	MinLng float64 `yaml:"min_lng" json:"min_lng"`
	MaxLng float64 `yaml:"max_lng" json:"max_lng"`
}

// TexasBounds approximates the ERCOT service territory.
var TexasBounds = Bounds{
	MinLat: 25.8,
	MaxLat: 36.5,
	MinLng: -106.65,
	MaxLng: -93.5,
}

// Bound converts to an orb.Bound (X = longitude, Y = latitude).
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLng, b.MinLat},
		Max: orb.Point{b.MaxLng, b.MaxLat},
	}
}

// Boundary is the clipping region for the grid. It may have several parts,
// e.g. a mainland polygon plus islands.
type Boundary struct {
	name        string
	shape       orb.MultiPolygon
	bound       orb.Bound
	fingerprint string
}

// NewRectBoundary builds a rectangular boundary from b.
func NewRectBoundary(name string, b Bounds) (*Boundary, error) {
	if b.MinLat >= b.MaxLat || b.MinLng >= b.MaxLng {
		return nil, fmt.Errorf("%w: %s: min must be below max (lat %v..%v, lng %v..%v)",
			ErrInvalidBoundary, name, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
	}
	return NewBoundary(name, orb.MultiPolygon{b.Bound().ToPolygon()})
}

// NewBoundary validates shape and wraps it. Each polygon is a single outer
// ring, closed with at least 4 vertices, and the total area must be non-zero.
func NewBoundary(name string, shape orb.MultiPolygon) (*Boundary, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: %s: no polygons", ErrInvalidBoundary, name)
	}
	total := 0.0
	for i, poly := range shape {
		if len(poly) == 0 {
			return nil, fmt.Errorf("%w: %s: polygon %d has no rings", ErrInvalidBoundary, name, i)
		}
		if len(poly) > 1 {
			return nil, fmt.Errorf("%w: %s: polygon %d has %d interior rings, holes are not supported",
				ErrInvalidBoundary, name, i, len(poly)-1)
		}
		for j, ring := range poly {
			if len(ring) < 4 {
				return nil, fmt.Errorf("%w: %s: polygon %d ring %d has %d vertices, need at least 4",
					ErrInvalidBoundary, name, i, j, len(ring))
			}
			if !ring.Closed() {
				return nil, fmt.Errorf("%w: %s: polygon %d ring %d is not closed", ErrInvalidBoundary, name, i, j)
			}
			for _, p := range ring {
				if !finitePoint(p) {
					return nil, fmt.Errorf("%w: %s: polygon %d has non-finite vertex %v", ErrInvalidBoundary, name, i, p)
				}
			}
		}
		total += polygonArea(poly)
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: %s: zero area", ErrInvalidBoundary, name)
	}
	return &Boundary{name: name, shape: shape, bound: shape.Bound(), fingerprint: fingerprint(shape)}, nil
}

// LoadBoundaryGeoJSON reads a boundary from a GeoJSON file holding a Polygon or
// MultiPolygon geometry, a Feature, or a FeatureCollection of those.
func LoadBoundaryGeoJSON(name, path string) (*Boundary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundary file: %w", err)
	}
	var shape orb.MultiPolygon
	if fc, err := geojson.UnmarshalFeatureCollection(raw); err == nil && len(fc.Features) > 0 {
		for _, f := range fc.Features {
			shape = appendPolygons(shape, f.Geometry)
		}
	} else if f, err := geojson.UnmarshalFeature(raw); err == nil && f.Geometry != nil {
		shape = appendPolygons(shape, f.Geometry)
	} else {
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: parse geojson: %v", ErrInvalidBoundary, name, err)
		}
		shape = appendPolygons(shape, g.Geometry())
	}
	return NewBoundary(name, shape)
}

func appendPolygons(dst orb.MultiPolygon, g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		return append(dst, v)
	case orb.MultiPolygon:
		return append(dst, v...)
	case orb.Bound:
		return append(dst, v.ToPolygon())
	}
	return dst
}

// Name identifies the boundary in logs.
func (b *Boundary) Name() string { return b.name }

// Fingerprint is a hex digest of the vertices; equal shapes share it.
func (b *Boundary) Fingerprint() string { return b.fingerprint }

// Polygon returns the clipping geometry.
func (b *Boundary) Polygon() orb.MultiPolygon { return b.shape }

// Bound is the envelope of the boundary.
func (b *Boundary) Bound() orb.Bound { return b.bound }

// Intersect returns the non-empty parts of boundary ∩ rect.
func (b *Boundary) Intersect(rect orb.Bound) orb.MultiPolygon {
	if !b.bound.Intersects(rect) {
		return nil
	}
	var out orb.MultiPolygon
	for _, poly := range b.shape {
		if !poly.Bound().Intersects(rect) {
			continue
		}
		out = append(out, clipPolygon(rect, poly)...)
	}
	return out
}

func polygonArea(p orb.Polygon) float64 {
	return math.Abs(planar.Area(p))
}

func fingerprint(shape orb.MultiPolygon) string {
	h := sha1.New()
	var buf [8]byte
	for _, poly := range shape {
		for _, ring := range poly {
			for _, p := range ring {
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p[0]))
				h.Write(buf[:])
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p[1]))
				h.Write(buf[:])
			}
			h.Write([]byte{'|'})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func finitePoint(p orb.Point) bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
