// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"image"
	"image/color"
	"sync/atomic"

	"golang.org/x/image/draw"

	"github.com/gogpu/backingstore"
	"github.com/gogpu/backingstore/tile"
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithBackground sets the color the invalidated area is cleared to before
// content is drawn. The default is transparent.
func WithBackground(c color.Color) Option {
	return func(r *Renderer) {
		r.background = image.NewUniform(c)
	}
}

// WithIndicator enables the repaint indicator on full repaints that ask
// for it through RenderInfo.MeasurePerf.
func WithIndicator(enabled bool) Option {
	return func(r *Renderer) {
		r.indicator = enabled
	}
}

// Stats counts renderer work.
type Stats struct {
	Calls  uint64 // RenderTile invocations
	Pixels uint64 // pixels repainted
	Full   uint64 // calls covering the whole tile
	Failed uint64 // calls that could not size the slot
}

// Renderer paints Content into slot pixels on the CPU.
//
// Thread safety: Renderer is safe for concurrent use. One Renderer may be
// shared by every tile.
type Renderer struct {
	background *image.Uniform
	indicator  bool

	calls  atomic.Uint64
	pixels atomic.Uint64
	full   atomic.Uint64
	failed atomic.Uint64
}

var _ tile.Renderer = (*Renderer)(nil)

// NewRenderer creates a software renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{background: image.NewUniform(color.Transparent)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderTile implements tile.Renderer.
func (r *Renderer) RenderTile(info *tile.RenderInfo) uint32 {
	r.calls.Add(1)
	size := info.TileSize
	if err := info.Target.Ensure(size.X, size.Y); err != nil {
		r.failed.Add(1)
		backingstore.Logger().Warn("raster: cannot size slot",
			"slot", info.Target.SlotID, "width", size.X, "height", size.Y, "err", err)
		return 0
	}

	dst := info.Target.Pixels()
	inval := info.Inval.Intersect(dst.Bounds())
	if inval.Empty() {
		return 0
	}
	if inval == dst.Bounds() {
		r.full.Add(1)
	}
	r.pixels.Add(uint64(inval.Dx() * inval.Dy())) //nolint:gosec // non-negative

	draw.Draw(dst, inval, r.background, image.Point{}, draw.Src)

	var version uint32
	if c, ok := info.Painter.(Content); ok {
		origin := image.Pt(info.X*size.X, info.Y*size.Y)
		sub, _ := dst.SubImage(inval).(*image.RGBA)
		version = c.PaintTile(sub, inval.Add(origin), info.Scale)
	}

	if info.MeasurePerf && r.indicator {
		drawIndicator(dst, version)
	}
	return version
}

// Stats returns the work counters.
func (r *Renderer) Stats() Stats {
	return Stats{
		Calls:  r.calls.Load(),
		Pixels: r.pixels.Load(),
		Full:   r.full.Load(),
		Failed: r.failed.Load(),
	}
}
