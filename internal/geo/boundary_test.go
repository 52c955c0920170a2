package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRectBoundary(t *testing.T) {
	t.Parallel()
	b, err := NewRectBoundary("texas", TexasBounds)
	require.NoError(t, err)

	assert.Equal(t, "texas", b.Name())
	require.Len(t, b.Polygon(), 1)
	ring := b.Polygon()[0][0]
	assert.True(t, ring.Closed())
	assert.Len(t, ring, 5)
	assert.Equal(t, orb.Point{-106.65, 25.8}, b.Bound().Min)
	assert.Equal(t, orb.Point{-93.5, 36.5}, b.Bound().Max)
}

func TestNewRectBoundary_Invalid(t *testing.T) {
	t.Parallel()
	_, err := NewRectBoundary("flipped", Bounds{MinLat: 36.5, MaxLat: 25.8, MinLng: -106.65, MaxLng: -93.5})
	assert.ErrorIs(t, err, ErrInvalidBoundary)

	_, err = NewRectBoundary("flat", Bounds{MinLat: 30, MaxLat: 30, MinLng: -100, MaxLng: -90})
	assert.ErrorIs(t, err, ErrInvalidBoundary)
}

func TestNewBoundary_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		shape orb.MultiPolygon
	}{
		{name: "empty", shape: nil},
		{name: "no rings", shape: orb.MultiPolygon{{}}},
		{name: "too few vertices", shape: orb.MultiPolygon{{{{0, 0}, {1, 0}, {0, 0}}}}},
		{name: "open ring", shape: orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}}},
		{name: "zero area", shape: orb.MultiPolygon{{{{0, 0}, {1, 0}, {2, 0}, {0, 0}}}}},
		{name: "hole", shape: orb.MultiPolygon{{
			{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}},
			{{1, 1}, {1, 2}, {2, 2}, {2, 1}, {1, 1}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBoundary(tt.name, tt.shape)
			assert.ErrorIs(t, err, ErrInvalidBoundary)
		})
	}
}

func TestBoundary_Intersect(t *testing.T) {
	t.Parallel()
	b, err := NewRectBoundary("unit", Bounds{MinLat: 0, MaxLat: 1, MinLng: 0, MaxLng: 1})
	require.NoError(t, err)

	assert.Empty(t, b.Intersect(orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{6, 6}}))

	parts := b.Intersect(orb.Bound{Min: orb.Point{0.5, 0.5}, Max: orb.Point{1.5, 1.5}})
	require.Len(t, parts, 1)
	assert.InDelta(t, 0.25, polygonArea(parts[0]), 1e-12)
	assert.True(t, parts[0][0].Closed())
}

func TestBoundary_IntersectConcaveSplitsParts(t *testing.T) {
	t.Parallel()
	// A "C" opening to the east: the rectangle crosses both jaws.
	ring := orb.Ring{{0, 0}, {4, 0}, {4, 1}, {1, 1}, {1, 3}, {4, 3}, {4, 4}, {0, 4}, {0, 0}}
	b, err := NewBoundary("c", orb.MultiPolygon{{ring}})
	require.NoError(t, err)

	parts := b.Intersect(orb.Bound{Min: orb.Point{2, 0.5}, Max: orb.Point{3, 3.5}})
	require.Len(t, parts, 2)
	for _, p := range parts {
		require.Len(t, p, 1)
		assert.True(t, p[0].Closed())
		assert.InDelta(t, 0.5, polygonArea(p), 1e-12)
	}

	// Crossing the spine as well joins everything into one part.
	parts = b.Intersect(orb.Bound{Min: orb.Point{0.5, 0.5}, Max: orb.Point{3, 3.5}})
	require.Len(t, parts, 1)
	assert.InDelta(t, 0.5*3+2*0.5*2, polygonArea(parts[0]), 1e-12)
}

func TestLoadBoundaryGeoJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	tests := []struct {
		name string
		body string
	}{
		{
			name: "geometry",
			body: `{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,1],[0,1],[0,0]]]}`,
		},
		{
			name: "feature",
			body: `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,1],[0,1],[0,0]]]}}`,
		},
		{
			name: "collection",
			body: `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,1],[0,1],[0,0]]]}}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".geojson")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			b, err := LoadBoundaryGeoJSON(tt.name, path)
			require.NoError(t, err)
			require.Len(t, b.Polygon(), 1)
			assert.InDelta(t, 2.0, polygonArea(b.Polygon()[0]), 1e-12)
		})
	}
}

func TestLoadBoundaryGeoJSON_Errors(t *testing.T) {
	t.Parallel()
	_, err := LoadBoundaryGeoJSON("missing", filepath.Join(t.TempDir(), "nope.geojson"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "point.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"Point","coordinates":[1,2]}`), 0o644))
	_, err = LoadBoundaryGeoJSON("point", path)
	assert.ErrorIs(t, err, ErrInvalidBoundary)
}
