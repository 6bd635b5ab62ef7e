// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package tile

import (
	"image"

	"github.com/gogpu/backingstore"
	"github.com/gogpu/backingstore/geom"
	"github.com/gogpu/backingstore/texture"
)

// TextureSource hands out texture slots. *texture.Pool implements it.
type TextureSource interface {
	// AvailableTexture returns a slot claimed for owner, or nil.
	// It may call owner.RemoveTexture on other owners before returning.
	AvailableTexture(owner texture.Owner) *texture.Slot

	// Frame returns the current display frame counter.
	Frame() uint64

	// Mode returns the sharing mode of the slots.
	Mode() texture.SharingMode

	// TileSize returns the slot dimensions in pixels.
	TileSize() (width, height int)
}

// Painter is the content source a tile belongs to. Implementations must be
// comparable; pointer types are the usual choice.
type Painter interface {
	// Transform maps layer space to screen space. Used for layer tiles.
	Transform() geom.Matrix
}

// RenderInfo describes one renderer call.
type RenderInfo struct {
	// X and Y are the tile grid coordinates.
	X, Y int

	// Scale is the rendering resolution multiplier.
	Scale float64

	// TileSize is the tile dimensions in pixels.
	TileSize image.Point

	// Painter is the content source.
	Painter Painter

	// Tile is the tile being painted.
	Tile *Tile

	// Target is the slot storage, valid for the duration of the call.
	Target *texture.Info

	// Inval is the area to repaint, in slot-local pixels.
	Inval image.Rectangle

	// MeasurePerf requests the visual debug indicator. Set on full
	// repaints only.
	MeasurePerf bool
}

// Renderer produces pixels into a locked slot.
//
// RenderTile must be safe to call several times per paint for disjoint
// rectangles. It returns the content version it rendered, or zero when it
// has nothing newer to report. The tile keeps the highest version it has
// seen, so a lower result never takes it backwards. A call that leaves the
// target unsized aborts the paint.
type Renderer interface {
	RenderTile(info *RenderInfo) uint32
}

// DrawSink issues the quads that put tiles on screen.
type DrawSink interface {
	DrawQuad(rect geom.Rect, tex *texture.Info, transparency float64) error
	DrawLayerQuad(m geom.Matrix, rect geom.Rect, tex *texture.Info, transparency float64, isLayer bool) error
}

// nopRenderer sizes the target without drawing and reports version zero.
type nopRenderer struct{}

func (nopRenderer) RenderTile(ri *RenderInfo) uint32 {
	if err := ri.Target.Ensure(ri.TileSize.X, ri.TileSize.Y); err != nil {
		backingstore.Logger().Debug("tile target allocation failed", "err", err)
	}
	return 0
}
