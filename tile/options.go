// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package tile

// Option configures a Tile during creation.
type Option func(*options)

type options struct {
	renderer    Renderer
	layer       bool
	width       int
	height      int
	measurePerf bool
}

// WithRenderer sets the renderer. The default renderer draws nothing.
func WithRenderer(r Renderer) Option {
	return func(o *options) {
		o.renderer = r
	}
}

// WithLayer marks the tile as part of a composited layer. Layer tiles are
// drawn through the painter's transform.
func WithLayer(layer bool) Option {
	return func(o *options) {
		o.layer = layer
	}
}

// WithSize overrides the tile dimensions reported by the texture source.
func WithSize(width, height int) Option {
	return func(o *options) {
		o.width = width
		o.height = height
	}
}

// WithMeasurePerf asks the renderer to draw its debug indicator on every
// full repaint.
func WithMeasurePerf(enabled bool) Option {
	return func(o *options) {
		o.measurePerf = enabled
	}
}
