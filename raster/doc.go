// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package raster is the software tile renderer.
//
// Renderer implements tile.Renderer. It sizes the slot, clears the
// invalidated rectangle and asks the tile's painter to fill it, provided the
// painter implements Content. ImageContent and Checker are ready-made
// contents; anything else implementing Content works the same way.
//
// Pixel work uses golang.org/x/image/draw; the optional repaint indicator
// draws its label with the basicfont bitmap face.
package raster
