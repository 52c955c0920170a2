// Package cache stores generated cell grids so they can be annotated for many
// hours without regenerating them.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"lmp-gridmap/internal/geo"
)

// entry is the cached value; it is also the Redis JSON payload.
type entry struct {
	Cells   []geo.Cell `json:"cells"`
	Skipped []geo.Skip `json:"skipped"`
}

// GridKey is the cache key for the grid of a market. An empty market means
// all active nodes. The key carries a short hash of the boundary shape and
// cell size so deployments sharing a Redis never read each other's grids.
func GridKey(market string, boundary *geo.Boundary, cells geo.CellConfig) string {
	if market == "" {
		market = "*"
	}
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%g|%g", boundary.Fingerprint(), cells.SideLatDegrees, cells.HalfSideLonDegrees)))
	return fmt.Sprintf("grid:%s:%s:%s", boundary.Name(), hex.EncodeToString(sum[:4]), market)
}

// validate rejects cached cells that cannot be rendered.
func (e entry) validate() error {
	for _, c := range e.Cells {
		if len(c.Geometry) == 0 || len(c.Geometry[0]) < 4 {
			return fmt.Errorf("cell %d (%s) has no usable geometry", c.NodeIndex, c.Code)
		}
	}
	return nil
}
