// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package tile

import (
	"image"

	"github.com/gogpu/backingstore/geom"
	"github.com/gogpu/backingstore/region"
)

// repaintPlan is the work of one paint pass: either the whole tile or a
// list of slot-local rectangles.
type repaintPlan struct {
	full  bool
	rects []image.Rectangle
}

// planRepaint decides what a paint pass renders.
//
// dirty is in content coordinates; it is scaled into tile pixels and
// clipped to the pixel rectangle of tile (x, y). A clipped rectangle that
// spans the whole tile width or height turns the pass into a full repaint,
// as does forceFull or a mode without partial updates. The decision is
// made before anything renders, so no partial work is ever thrown away.
func planRepaint(dirty region.Region, x, y int, size image.Point, scale float64, forceFull, partial bool) repaintPlan {
	if forceFull || !partial || size.X <= 0 || size.Y <= 0 {
		return repaintPlan{full: true}
	}

	tileRect := geom.NewRect(
		float64(x*size.X), float64(y*size.Y),
		float64(size.X), float64(size.Y),
	)

	var rects []image.Rectangle
	for r := range dirty.Rects() {
		clipped, ok := tileRect.Intersect(geom.FromImage(r).Scale(scale))
		if !ok {
			continue
		}
		px := clipped.RoundOut()
		w, h := px.Dx(), px.Dy()
		if w >= size.X || h >= size.Y {
			return repaintPlan{full: true}
		}
		left := px.Min.X % size.X
		top := px.Min.Y % size.Y
		rects = append(rects, image.Rect(left, top, left+w, top+h))
	}
	return repaintPlan{rects: rects}
}
