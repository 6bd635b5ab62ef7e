// Package region provides the dirty region capability used by tiles.
//
// A Region is a set of integer rectangles in content space. Rectangles held by
// a Region never overlap, so iterating a Region visits every covered pixel
// exactly once. The zero value is an empty Region ready for use.
//
// Thread safety: Region and Tracker are NOT safe for concurrent use.
// Tiles guard them with their own mutex.
package region

import (
	"image"
	"iter"
)

// Region is a set of non-overlapping rectangles.
type Region struct {
	rects []image.Rectangle
}

// FromRect returns a Region covering r. An empty r yields an empty Region.
func FromRect(r image.Rectangle) Region {
	var g Region
	g.UnionRect(r)
	return g
}

// FromRects returns the union of rs.
func FromRects(rs ...image.Rectangle) Region {
	var g Region
	for _, r := range rs {
		g.UnionRect(r)
	}
	return g
}

// IsEmpty reports whether the region covers no pixels.
func (g *Region) IsEmpty() bool {
	return len(g.rects) == 0
}

// SetEmpty removes every rectangle from the region.
func (g *Region) SetEmpty() {
	g.rects = g.rects[:0]
}

// Len returns the number of rectangles currently stored.
func (g *Region) Len() int {
	return len(g.rects)
}

// Clone returns a deep copy of the region.
func (g *Region) Clone() Region {
	if len(g.rects) == 0 {
		return Region{}
	}
	return Region{rects: append([]image.Rectangle(nil), g.rects...)}
}

// Bounds returns the smallest rectangle containing the region.
func (g *Region) Bounds() image.Rectangle {
	var b image.Rectangle
	for _, r := range g.rects {
		b = b.Union(r)
	}
	return b
}

// Area returns the number of pixels covered by the region.
func (g *Region) Area() int {
	n := 0
	for _, r := range g.rects {
		n += r.Dx() * r.Dy()
	}
	return n
}

// Contains reports whether the pixel at p is covered.
func (g *Region) Contains(p image.Point) bool {
	for _, r := range g.rects {
		if p.In(r) {
			return true
		}
	}
	return false
}

// Rects iterates over the rectangles of the region.
func (g *Region) Rects() iter.Seq[image.Rectangle] {
	return func(yield func(image.Rectangle) bool) {
		for _, r := range g.rects {
			if !yield(r) {
				return
			}
		}
	}
}

// UnionRect adds r to the region.
func (g *Region) UnionRect(r image.Rectangle) {
	r = r.Canon()
	if r.Empty() {
		return
	}

	// Drop rectangles swallowed by r so repeated invalidation of the same
	// area does not fragment the region.
	kept := g.rects[:0]
	for _, e := range g.rects {
		if !e.In(r) {
			kept = append(kept, e)
		}
	}
	g.rects = kept

	pieces := []image.Rectangle{r}
	for _, e := range g.rects {
		pieces = subtractAll(pieces, e)
		if len(pieces) == 0 {
			return
		}
	}
	g.rects = append(g.rects, pieces...)
}

// Union adds every rectangle of other to the region.
func (g *Region) Union(other Region) {
	for _, r := range other.rects {
		g.UnionRect(r)
	}
}

// SubtractRect removes r from the region.
func (g *Region) SubtractRect(r image.Rectangle) {
	r = r.Canon()
	if r.Empty() || len(g.rects) == 0 {
		return
	}
	g.rects = subtractAll(g.rects, r)
}

// Subtract removes every rectangle of other from the region.
func (g *Region) Subtract(other Region) {
	for _, r := range other.rects {
		if len(g.rects) == 0 {
			return
		}
		g.SubtractRect(r)
	}
}

// Intersect returns the part of the region inside r.
func (g *Region) Intersect(r image.Rectangle) Region {
	var out Region
	for _, e := range g.rects {
		if x := e.Intersect(r); !x.Empty() {
			out.rects = append(out.rects, x)
		}
	}
	return out
}

// subtractAll removes cut from every rectangle in rs.
// The result reuses no memory of rs.
func subtractAll(rs []image.Rectangle, cut image.Rectangle) []image.Rectangle {
	out := make([]image.Rectangle, 0, len(rs)+4)
	for _, r := range rs {
		out = appendDifference(out, r, cut)
	}
	return out
}

// appendDifference appends r minus cut to dst as at most four rectangles:
// full-width bands above and below cut, then the left and right pieces
// of the middle band.
func appendDifference(dst []image.Rectangle, r, cut image.Rectangle) []image.Rectangle {
	if !r.Overlaps(cut) {
		return append(dst, r)
	}
	if r.Min.Y < cut.Min.Y {
		dst = append(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, cut.Min.Y))
	}
	if cut.Max.Y < r.Max.Y {
		dst = append(dst, image.Rect(r.Min.X, cut.Max.Y, r.Max.X, r.Max.Y))
	}
	top := max(r.Min.Y, cut.Min.Y)
	bottom := min(r.Max.Y, cut.Max.Y)
	if r.Min.X < cut.Min.X {
		dst = append(dst, image.Rect(r.Min.X, top, cut.Min.X, bottom))
	}
	if cut.Max.X < r.Max.X {
		dst = append(dst, image.Rect(cut.Max.X, top, r.Max.X, bottom))
	}
	return dst
}
