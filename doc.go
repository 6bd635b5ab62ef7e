// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backingstore implements the per-tile double-buffering contract of a
// tiled, GPU-backed rendering surface.
//
// # Overview
//
// A surface is cut into fixed-size tiles. Each tile tracks which part of its
// content is stale, repaints only that part into an off-screen texture on a
// producer goroutine, and hands the finished texture to a consumer (display)
// goroutine through an atomic swap. The consumer never sees a half-painted or
// wrongly sized texture.
//
// # Quick Start
//
//	pool, _ := texture.NewPool(32, texture.WithTileSize(256, 256))
//	t := tile.New(pool, tile.WithRenderer(raster.NewRenderer()))
//	t.SetContents(content, 2, 3, 1.0)
//
//	// producer goroutine
//	t.ReserveTexture()
//	t.Paint()
//
//	// consumer goroutine
//	t.SwapIfReady()
//	t.Draw(framebuffer, 1.0, rect, 1.0)
//
// # Architecture
//
// The module is organized into:
//   - region: dirty region capability and the per-buffer Region Tracker
//   - texture: Texture Slots, the texture pool and backing allocators
//   - tile: the Tile State Machine and its collaborator interfaces
//   - raster: software Renderer
//   - present: draw sinks (CPU framebuffer, gpucontext) and the tile shader
//   - schedule: producer-side paint scheduler
//   - config: YAML configuration for the demo command
//
// # Locking
//
// Two independent synchronization scopes exist. Each tile has one mutex
// for bookkeeping, held only for short critical sections. Each texture slot
// has its own producer/consumer lock for pixel I/O. The tile mutex is never
// held while rendering or drawing.
//
// # Logging
//
// Nothing is logged by default. See [SetLogger].
package backingstore
