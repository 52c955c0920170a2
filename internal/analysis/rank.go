package analysis

import (
	"sort"

	"lmp-gridmap/internal/geo"
)

// RankedNode is one entry of the highest/lowest value lists.
type RankedNode struct {
	NodeIndex int     `json:"node_id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Value     float64 `json:"price"`
}

// RankByValue returns the n highest and n lowest valued cells. Cells without a
// value are ignored. Ties keep grid order.
func RankByValue(cells []geo.Cell, n int) (highest, lowest []RankedNode) {
	ranked := make([]RankedNode, 0, len(cells))
	for _, c := range cells {
		if c.Price == nil {
			continue
		}
		ranked = append(ranked, RankedNode{NodeIndex: c.NodeIndex, Code: c.Code, Name: c.Name, Value: *c.Price})
	}
	if n <= 0 {
		return []RankedNode{}, []RankedNode{}
	}
	if n > len(ranked) {
		n = len(ranked)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Value > ranked[j].Value
	})
	highest = append([]RankedNode{}, ranked[:n]...)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Value < ranked[j].Value
	})
	lowest = append([]RankedNode{}, ranked[:n]...)
	return highest, lowest
}
