// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/backingstore/geom"
	"github.com/gogpu/backingstore/texture"
	"github.com/gogpu/backingstore/tile"
)

var _ tile.DrawSink = (*Framebuffer)(nil)

// Framebuffer is a CPU display target tiles composite into.
//
// Thread safety: Framebuffer is safe for concurrent use.
type Framebuffer struct {
	mu     sync.Mutex
	img    *image.RGBA
	scaler draw.Interpolator
	quads  int
}

// NewFramebuffer creates a transparent framebuffer of the given size.
func NewFramebuffer(width, height int) (*Framebuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidViewport, width, height)
	}
	return &Framebuffer{
		img:    image.NewRGBA(image.Rect(0, 0, width, height)),
		scaler: draw.ApproxBiLinear,
	}, nil
}

// SetInterpolator selects the filter used for scaled and transformed quads.
// The default is draw.ApproxBiLinear.
func (f *Framebuffer) SetInterpolator(i draw.Interpolator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i == nil {
		i = draw.ApproxBiLinear
	}
	f.scaler = i
}

// Bounds returns the framebuffer bounds.
func (f *Framebuffer) Bounds() image.Rectangle {
	return f.img.Bounds()
}

// Clear fills the framebuffer with c.
func (f *Framebuffer) Clear(c color.Color) {
	f.mu.Lock()
	defer f.mu.Unlock()
	draw.Draw(f.img, f.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// DrawQuad composites tex over rect. Quads whose size matches the texture
// are copied directly; others are resampled.
func (f *Framebuffer) DrawQuad(rect geom.Rect, tex *texture.Info, transparency float64) error {
	if transparency <= 0 || rect.IsEmpty() {
		return nil
	}
	src := tex.Pixels()
	if src == nil {
		return ErrNoPixels
	}
	mask, opts := alphaMask(transparency)
	dr := rect.RoundOut()

	f.mu.Lock()
	defer f.mu.Unlock()
	if isIntegral(rect) && dr.Size() == src.Bounds().Size() {
		draw.DrawMask(f.img, dr, src, src.Bounds().Min, mask, image.Point{}, draw.Over)
	} else {
		f.scaler.Scale(f.img, dr, src, src.Bounds(), draw.Over, opts)
	}
	f.quads++
	return nil
}

// DrawLayerQuad composites tex through the transform m. Layer quads are
// resampled through the full affine transform; other quads are placed at
// the transformed bounds of rect.
func (f *Framebuffer) DrawLayerQuad(m geom.Matrix, rect geom.Rect, tex *texture.Info, transparency float64, isLayer bool) error {
	if !isLayer || m.IsIdentity() {
		return f.DrawQuad(m.TransformRect(rect), tex, transparency)
	}
	if transparency <= 0 || rect.IsEmpty() {
		return nil
	}
	src := tex.Pixels()
	if src == nil {
		return ErrNoPixels
	}
	sb := src.Bounds()
	// texture pixels -> rect -> layer transform
	s2d := m.
		Multiply(geom.Translate(rect.X, rect.Y)).
		Multiply(geom.Scale(rect.W/float64(sb.Dx()), rect.H/float64(sb.Dy()))).
		Multiply(geom.Translate(-float64(sb.Min.X), -float64(sb.Min.Y)))
	_, opts := alphaMask(transparency)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.scaler.Transform(f.img, f64.Aff3{s2d.A, s2d.B, s2d.C, s2d.D, s2d.E, s2d.F}, src, sb, draw.Over, opts)
	f.quads++
	return nil
}

// Image returns a copy of the current contents.
func (f *Framebuffer) Image() *image.RGBA {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := image.NewRGBA(f.img.Bounds())
	copy(out.Pix, f.img.Pix)
	return out
}

// Quads returns how many quads have been composited.
func (f *Framebuffer) Quads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quads
}

// alphaMask returns a uniform mask for transparency, or nil when opaque.
func alphaMask(transparency float64) (image.Image, *draw.Options) {
	if transparency >= 1 {
		return nil, nil
	}
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(transparency * 0xff))})
	return mask, &draw.Options{SrcMask: mask}
}

func isIntegral(r geom.Rect) bool {
	return r.X == math.Trunc(r.X) && r.Y == math.Trunc(r.Y) &&
		r.W == math.Trunc(r.W) && r.H == math.Trunc(r.H)
}
