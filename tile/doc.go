// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package tile implements one cell of a tiled, double-buffered surface.
//
// A Tile tracks which parts of its content are stale, repaints only those
// parts into a back texture slot on the producer goroutine, and hands the
// result to the consumer goroutine through an explicit swap. The consumer
// never sees a half-painted or wrongly sized texture.
//
// # Lifecycle
//
//	t := tile.New(pool, tile.WithRenderer(r))
//	t.SetContents(painter, x, y, scale)  // layout
//	t.MarkDirty(version, damage)         // invalidation
//	t.ReserveTexture()                   // producer
//	t.Paint()                            // producer
//	t.SwapIfReady()                      // consumer
//	t.Draw(sink, 1, rect, scale)         // consumer
//
// # Phases
//
// A tile is in exactly one Phase:
//
//	NoTexture    -> BackPending   ReserveTexture
//	FrontOnly    -> BackPending   ReserveTexture
//	BackPending  -> ReadyToSwap   Paint leaves the tile clean
//	ReadyToSwap  -> FrontOnly     SwapIfReady
//	any          -> NoTexture     DiscardTextures
//
// Losing a slot to the pool (RemoveTexture) degrades the phase and marks
// the tile dirty.
//
// # Locking
//
// All bookkeeping sits behind one mutex held only for short sections. The
// renderer and the draw sink are always called without it, under the
// slot's own producer or consumer lock. At most one Paint per tile may run
// at a time; the caller's scheduler enforces that.
package tile
