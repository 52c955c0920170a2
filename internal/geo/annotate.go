package geo

// Annotate returns a copy of cells with Price set from priceByCode. Cells
// whose code is absent get a nil price; that means "no data", not an error.
// The input slice is left untouched so a cached grid can be annotated for
// many hours.
func Annotate(cells []Cell, priceByCode map[string]float64) []Cell {
	out := make([]Cell, len(cells))
	copy(out, cells)
	for i := range out {
		if v, ok := priceByCode[out[i].Code]; ok {
			out[i].Price = &v
		} else {
			out[i].Price = nil
		}
	}
	return out
}

// CountPriced returns how many cells carry a value.
func CountPriced(cells []Cell) int {
	n := 0
	for _, c := range cells {
		if c.Price != nil {
			n++
		}
	}
	return n
}
