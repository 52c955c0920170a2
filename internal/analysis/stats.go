package analysis

import (
	"math"
	"sort"

	"lmp-gridmap/internal/geo"
)

// MapStats summarizes one annotated grid for the map legend.
// The value statistics are nil when no cell carries a value.
type MapStats struct {
	Cells        int `json:"cells"`
	WithValue    int `json:"with_value"`
	WithoutValue int `json:"without_value"`

	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
	Mean *float64 `json:"mean"`
	P05  *float64 `json:"p05"`
	P95  *float64 `json:"p95"`
}

func ComputeMapStats(cells []geo.Cell) MapStats {
	s := MapStats{Cells: len(cells)}

	vals := make([]float64, 0, len(cells))
	sum := 0.0
	for _, c := range cells {
		if c.Price == nil {
			continue
		}
		vals = append(vals, *c.Price)
		sum += *c.Price
	}
	s.WithValue = len(vals)
	s.WithoutValue = s.Cells - s.WithValue
	if len(vals) == 0 {
		return s
	}

	sort.Float64s(vals)
	s.Min = ptr(vals[0])
	s.Max = ptr(vals[len(vals)-1])
	s.Mean = ptr(sum / float64(len(vals)))
	s.P05 = ptr(percentileSorted(vals, 0.05))
	s.P95 = ptr(percentileSorted(vals, 0.95))
	return s
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func ptr(v float64) *float64 { return &v }
