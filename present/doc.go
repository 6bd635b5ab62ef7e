// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package present composites painted tiles onto a display target.
//
// Three tile.DrawSink implementations are provided:
//
//   - Framebuffer composites slot pixels into a CPU image using
//     golang.org/x/image/draw, honoring transparency and transforms.
//   - TextureSink mirrors slot pixels into gpucontext textures and hands
//     them to a gpucontext.TextureDrawer, the way a windowed host draws.
//   - GPUSink binds each slot's wgpu HAL texture and draws it with the tile
//     quad shader into a GPUTarget, an offscreen texture that can be read
//     back into an image.
//
// CompileTileShader and NewTileShaderModule provide the tile quad shader,
// and NewQuadUniforms computes its uniform block.
package present

import "errors"

// Errors returned by the sinks.
var (
	// ErrNoPixels is returned when a slot has no CPU pixels to composite.
	ErrNoPixels = errors.New("present: texture has no pixels")

	// ErrNilDrawer is returned by NewTextureSink for a nil drawer.
	ErrNilDrawer = errors.New("present: nil texture drawer")

	// ErrNoCreator is returned when the drawer cannot create textures.
	ErrNoCreator = errors.New("present: drawer has no texture creator")

	// ErrInvalidViewport is returned for a non-positive viewport size.
	ErrInvalidViewport = errors.New("present: invalid viewport")

	// ErrNilDevice is returned by the GPU sink and target without a
	// device or queue.
	ErrNilDevice = errors.New("present: nil device or queue")

	// ErrNoTarget is returned by NewGPUSink without a target view.
	ErrNoTarget = errors.New("present: nil render target")

	// ErrNoTexture is returned by GPUSink when a slot has no GPU texture.
	ErrNoTexture = errors.New("present: texture has no GPU backing")

	// ErrSinkClosed is returned by a closed GPU sink or target.
	ErrSinkClosed = errors.New("present: closed")
)
