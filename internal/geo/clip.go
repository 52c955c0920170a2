package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// clipPolygon returns the separate parts of p inside rect. p has a single
// outer ring; boundaries with holes are rejected by NewBoundary.
//
// Convex rings go through orb's Sutherland-Hodgman clipper. A concave ring
// can leave the rectangle and come back, and that clipper would join the
// pieces along the rectangle edge into one ring, so those are walked
// chain by chain instead.
func clipPolygon(rect orb.Bound, p orb.Polygon) orb.MultiPolygon {
	ring := p[0]
	if convex(ring) {
		out := clip.Polygon(rect, orb.Polygon{ring.Clone()})
		if len(out) == 0 {
			return nil
		}
		r := closeRing(out[0])
		if len(r) < 4 {
			return nil
		}
		return orb.MultiPolygon{{r}}
	}
	return clipConcave(rect, ring)
}

// chain is one run of the subject ring inside the rectangle. entry and exit
// are positions on the rectangle perimeter, see perimeterPos.
type chain struct {
	pts         []orb.Point
	entry, exit float64
	used        bool
}

func clipConcave(rect orb.Bound, ring orb.Ring) orb.MultiPolygon {
	if ring.Orientation() == orb.CW {
		ring = ring.Clone()
		ring.Reverse()
	}
	ring = closeRing(ring)
	n := len(ring) - 1

	start := -1
	for i := 0; i < n; i++ {
		if !rect.Contains(ring[i]) {
			start = i
			break
		}
	}
	if start < 0 {
		return orb.MultiPolygon{{ring.Clone()}}
	}

	var chains []*chain
	var cur *chain
	for k := 0; k < n; k++ {
		a, b := ring[(start+k)%n], ring[(start+k+1)%n]
		t0, t1, ok := clipSegment(rect, a, b)
		if !ok {
			continue
		}
		p0, p1 := clampTo(rect, lerp(a, b, t0)), clampTo(rect, lerp(a, b, t1))
		if cur == nil {
			cur = &chain{pts: []orb.Point{p0}, entry: perimeterPos(rect, p0)}
		}
		if !cur.pts[len(cur.pts)-1].Equal(p1) {
			cur.pts = append(cur.pts, p1)
		}
		if t1 < 1 {
			cur.exit = perimeterPos(rect, p1)
			chains = append(chains, cur)
			cur = nil
		}
	}
	if cur != nil {
		last := cur.pts[len(cur.pts)-1]
		cur.exit = perimeterPos(rect, last)
		chains = append(chains, cur)
	}

	if len(chains) == 0 {
		if planar.RingContains(ring, rect.Center()) {
			return orb.MultiPolygon{{rectRing(rect)}}
		}
		return nil
	}

	// Each chain leaves the rectangle at its exit; the part continues
	// counter-clockwise along the rectangle edge to the nearest entry.
	var out orb.MultiPolygon
	for _, first := range chains {
		if first.used {
			continue
		}
		first.used = true
		var r orb.Ring
		c := first
		for range chains {
			r = append(r, c.pts...)
			next, dist := first, ccwDist(c.exit, first.entry)
			for _, o := range chains {
				if o.used {
					continue
				}
				if d := ccwDist(c.exit, o.entry); d < dist {
					next, dist = o, d
				}
			}
			r = appendCorners(r, rect, c.exit, dist)
			if next == first {
				break
			}
			next.used = true
			c = next
		}
		r = closeRing(dedupe(r))
		if len(r) >= 4 && polygonArea(orb.Polygon{r}) > 0 {
			out = append(out, orb.Polygon{r})
		}
	}
	return out
}

// convex reports whether every turn of the ring goes the same way.
func convex(r orb.Ring) bool {
	r = closeRing(r)
	n := len(r) - 1
	sign := 0.0
	for i := 0; i < n; i++ {
		a, b, c := r[i], r[(i+1)%n], r[(i+2)%n]
		cross := (b[0]-a[0])*(c[1]-b[1]) - (b[1]-a[1])*(c[0]-b[0])
		if cross == 0 {
			continue
		}
		if sign == 0 {
			sign = math.Copysign(1, cross)
		} else if math.Copysign(1, cross) != sign {
			return false
		}
	}
	return true
}

// clipSegment is Liang-Barsky: the parameter range of a→b inside rect.
func clipSegment(rect orb.Bound, a, b orb.Point) (float64, float64, bool) {
	t0, t1 := 0.0, 1.0
	dx, dy := b[0]-a[0], b[1]-a[1]
	edges := [4][2]float64{
		{-dx, a[0] - rect.Min[0]},
		{dx, rect.Max[0] - a[0]},
		{-dy, a[1] - rect.Min[1]},
		{dy, rect.Max[1] - a[1]},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return 0, 0, false
			}
			t0 = math.Max(t0, t)
		} else {
			if t < t0 {
				return 0, 0, false
			}
			t1 = math.Min(t1, t)
		}
	}
	return t0, t1, true
}

func lerp(a, b orb.Point, t float64) orb.Point {
	switch t {
	case 0:
		return a
	case 1:
		return b
	}
	return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
}

func clampTo(rect orb.Bound, p orb.Point) orb.Point {
	return orb.Point{
		math.Min(math.Max(p[0], rect.Min[0]), rect.Max[0]),
		math.Min(math.Max(p[1], rect.Min[1]), rect.Max[1]),
	}
}

// perimeterPos maps a point on the rectangle edge to [0, 4): 0..1 along the
// south edge, 1..2 east, 2..3 north, 3..4 west, counter-clockwise from the
// south-west corner.
func perimeterPos(rect orb.Bound, p orb.Point) float64 {
	w, h := rect.Max[0]-rect.Min[0], rect.Max[1]-rect.Min[1]
	south := p[1] - rect.Min[1]
	east := rect.Max[0] - p[0]
	north := rect.Max[1] - p[1]
	west := p[0] - rect.Min[0]
	switch math.Min(math.Min(south, east), math.Min(north, west)) {
	case south:
		return west / w
	case east:
		return 1 + south/h
	case north:
		return 2 + east/w
	default:
		return 3 + north/h
	}
}

func ccwDist(from, to float64) float64 {
	d := to - from
	if d < 0 {
		d += 4
	}
	return d
}

// appendCorners adds the rectangle corners passed when walking dist
// counter-clockwise from perimeter position from.
func appendCorners(r orb.Ring, rect orb.Bound, from, dist float64) orb.Ring {
	corners := [4]orb.Point{
		{rect.Min[0], rect.Min[1]},
		{rect.Max[0], rect.Min[1]},
		{rect.Max[0], rect.Max[1]},
		{rect.Min[0], rect.Max[1]},
	}
	base := math.Floor(from)
	for j := 1; j <= 4; j++ {
		d := base + float64(j) - from
		if d >= dist {
			break
		}
		r = append(r, corners[(int(base)+j)%4])
	}
	return r
}

func dedupe(r orb.Ring) orb.Ring {
	out := r[:0:0]
	for _, p := range r {
		if len(out) > 0 && out[len(out)-1].Equal(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// closeRing repeats the first vertex at the end when missing.
func closeRing(r orb.Ring) orb.Ring {
	if len(r) == 0 || r.Closed() {
		return r
	}
	return append(r, r[0])
}
