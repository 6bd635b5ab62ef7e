// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/backingstore/geom"
	"github.com/gogpu/backingstore/tile"
)

// Content is a painter the software renderer can draw.
//
// PaintTile fills dst, whose bounds are the slot-local rectangle being
// repainted. area is the same rectangle in scaled content pixels, so the
// content point under dst pixel p is (p - dst.Bounds().Min + area.Min) / scale.
// It returns the content version it drew.
type Content interface {
	tile.Painter
	PaintTile(dst draw.Image, area image.Rectangle, scale float64) uint32
}

// Placement positions content on screen. The zero value is the identity.
//
// Thread safety: Placement is safe for concurrent use.
type Placement struct {
	m atomic.Pointer[geom.Matrix]
}

// SetTransform sets the layer-to-screen transform.
func (p *Placement) SetTransform(m geom.Matrix) {
	p.m.Store(&m)
}

// Transform returns the layer-to-screen transform.
func (p *Placement) Transform() geom.Matrix {
	if m := p.m.Load(); m != nil {
		return *m
	}
	return geom.Identity()
}

// ImageContent paints a source image, scaled by the tile scale.
//
// Thread safety: ImageContent is safe for concurrent use. SetImage may run
// while tiles are painting.
type ImageContent struct {
	Placement

	mu      sync.RWMutex
	img     image.Image
	version uint32
	scaler  draw.Transformer
}

// NewImageContent creates content backed by img at version 1.
func NewImageContent(img image.Image) *ImageContent {
	return &ImageContent{img: img, version: 1, scaler: draw.NearestNeighbor}
}

// SetImage replaces the source image and bumps the version. It returns the
// new version.
func (c *ImageContent) SetImage(img image.Image) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.img = img
	c.version++
	return c.version
}

// SetScaler selects the resampling kernel, e.g. draw.ApproxBiLinear.
func (c *ImageContent) SetScaler(s draw.Transformer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scaler = s
}

// Version returns the current content version.
func (c *ImageContent) Version() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Bounds returns the source image bounds in content coordinates.
func (c *ImageContent) Bounds() image.Rectangle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.img == nil {
		return image.Rectangle{}
	}
	return c.img.Bounds()
}

// PaintTile implements Content.
func (c *ImageContent) PaintTile(dst draw.Image, area image.Rectangle, scale float64) uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.img == nil {
		return c.version
	}

	if scale == 1 {
		draw.Draw(dst, dst.Bounds(), c.img, area.Min, draw.Over)
		return c.version
	}
	origin := dst.Bounds().Min
	tx := float64(origin.X - area.Min.X)
	ty := float64(origin.Y - area.Min.Y)
	s2d := f64.Aff3{scale, 0, tx, 0, scale, ty}
	c.scaler.Transform(dst, s2d, c.img, c.img.Bounds(), draw.Over, nil)
	return c.version
}

// Checker is procedural content: a checkerboard of two colors.
//
// Thread safety: Checker is safe for concurrent use.
type Checker struct {
	Placement

	cell    int
	mu      sync.RWMutex
	a, b    color.RGBA
	version uint32
}

// NewChecker creates a checkerboard with square cells of the given size in
// content pixels.
func NewChecker(cell int, a, b color.RGBA) *Checker {
	return &Checker{cell: max(cell, 1), a: a, b: b, version: 1}
}

// SetColors changes the colors and bumps the version.
func (c *Checker) SetColors(a, b color.RGBA) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.a, c.b = a, b
	c.version++
	return c.version
}

// PaintTile implements Content.
func (c *Checker) PaintTile(dst draw.Image, area image.Rectangle, scale float64) uint32 {
	c.mu.RLock()
	a, b, version := c.a, c.b, c.version
	c.mu.RUnlock()

	if scale <= 0 {
		scale = 1
	}
	bounds := dst.Bounds()
	cell := float64(c.cell) * scale
	ua := image.NewUniform(a)
	ub := image.NewUniform(b)

	// Paint whole cells as rectangles clipped to dst.
	first := image.Pt(floorDiv(area.Min.X, cell), floorDiv(area.Min.Y, cell))
	last := image.Pt(floorDiv(area.Max.X-1, cell), floorDiv(area.Max.Y-1, cell))
	for cy := first.Y; cy <= last.Y; cy++ {
		for cx := first.X; cx <= last.X; cx++ {
			r := image.Rect(
				int(float64(cx)*cell), int(float64(cy)*cell),
				int(float64(cx+1)*cell), int(float64(cy+1)*cell),
			).Intersect(area)
			r = r.Sub(area.Min).Add(bounds.Min)
			src := ua
			if (cx+cy)&1 != 0 {
				src = ub
			}
			draw.Draw(dst, r, src, image.Point{}, draw.Src)
		}
	}
	return version
}

func floorDiv(v int, cell float64) int {
	q := float64(v) / cell
	i := int(q)
	if q < 0 && float64(i) != q {
		i--
	}
	return i
}
