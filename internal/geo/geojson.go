package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection renders cells as the map client expects: one Polygon
// feature per cell with node_id, code, name, latitude, longitude, market,
// zone and price properties. Nil zone and price render as JSON null.
func FeatureCollection(cells []Cell) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range cells {
		fc.Append(Feature(c))
	}
	return fc
}

// Feature renders a single cell. A cell without geometry renders an empty
// polygon.
func Feature(c Cell) *geojson.Feature {
	poly := orb.Polygon{}
	if len(c.Geometry) > 0 {
		poly = orb.Polygon{closeRing(c.Geometry[0].Clone())}
	}
	f := geojson.NewFeature(poly)
	f.Properties = geojson.Properties{
		"node_id":   c.NodeIndex,
		"code":      c.Code,
		"name":      c.Name,
		"latitude":  c.Latitude,
		"longitude": c.Longitude,
		"market":    c.Market,
		"zone":      nil,
		"price":     nil,
	}
	if c.Zone != nil {
		f.Properties["zone"] = *c.Zone
	}
	if c.Price != nil {
		f.Properties["price"] = *c.Price
	}
	return f
}

// FeatureCollection renders the grid's cells.
func (g Grid) FeatureCollection() *geojson.FeatureCollection {
	return FeatureCollection(g.Cells)
}
