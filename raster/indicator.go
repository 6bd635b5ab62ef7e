// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Indicator colors alternate with the content version so consecutive
// repaints are easy to tell apart.
var indicatorColors = [2]color.RGBA{
	{R: 0xE0, G: 0x20, B: 0x20, A: 0xFF},
	{R: 0x20, G: 0x60, B: 0xE0, A: 0xFF},
}

// drawIndicator outlines dst and prints the content version in its
// top-left corner.
func drawIndicator(dst *image.RGBA, version uint32) {
	b := dst.Bounds()
	if b.Dx() < 2 || b.Dy() < 2 {
		return
	}
	c := image.NewUniform(indicatorColors[version&1])

	draw.Draw(dst, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+1), c, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(b.Min.X, b.Max.Y-1, b.Max.X, b.Max.Y), c, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(b.Min.X, b.Min.Y, b.Min.X+1, b.Max.Y), c, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(b.Max.X-1, b.Min.Y, b.Max.X, b.Max.Y), c, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  c,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(b.Min.X+3, b.Min.Y+13),
	}
	d.DrawString(fmt.Sprintf("v%d", version))
}
