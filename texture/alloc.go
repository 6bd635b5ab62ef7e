// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Backing is the storage behind a slot: a CPU pixel buffer the renderer
// paints into, and optionally a GPU texture it is uploaded to.
type Backing struct {
	Pixels *image.RGBA
	GPU    hal.Texture
}

func (b Backing) isZero() bool {
	return b.Pixels == nil && b.GPU == nil
}

// Allocator creates and reclaims slot backings.
type Allocator interface {
	Allocate(width, height int) (Backing, error)
	Free(b Backing)
	Format() gputypes.TextureFormat
}

// Uploader is implemented by allocators whose backing keeps a second copy
// of the pixels. A slot calls Upload with its backing on every publish,
// still under the producer lock.
type Uploader interface {
	Upload(b Backing) error
}

// CPUAllocator hands out RGBA buffers from per-size sync.Pools.
//
// Buffers returned by Allocate are zeroed. Freed buffers are cleared and
// kept for reuse; the garbage collector may reclaim them at any time.
//
// Thread safety: CPUAllocator is safe for concurrent use.
type CPUAllocator struct {
	// pools holds one *sync.Pool per buffer size.
	// Key format: (width << 16) | height
	pools sync.Map
}

// NewCPUAllocator creates an allocator of CPU pixel buffers.
func NewCPUAllocator() *CPUAllocator {
	return &CPUAllocator{}
}

// Allocate returns a zeroed width x height RGBA buffer.
func (a *CPUAllocator) Allocate(width, height int) (Backing, error) {
	if width <= 0 || height <= 0 {
		return Backing{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	img := a.pool(width, height).Get().(*image.RGBA)
	return Backing{Pixels: img}, nil
}

// Free clears the buffer and returns it for reuse. GPU textures are ignored.
func (a *CPUAllocator) Free(b Backing) {
	if b.Pixels == nil {
		return
	}
	clear(b.Pixels.Pix)
	size := b.Pixels.Bounds().Size()
	if p, ok := a.pools.Load(poolKey(size.X, size.Y)); ok {
		p.(*sync.Pool).Put(b.Pixels)
	}
}

// Format returns the pixel format of the buffers.
func (a *CPUAllocator) Format() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// pool gets or creates the sync.Pool for the given dimensions.
func (a *CPUAllocator) pool(width, height int) *sync.Pool {
	key := poolKey(width, height)
	if p, ok := a.pools.Load(key); ok {
		return p.(*sync.Pool)
	}
	p := &sync.Pool{
		New: func() any {
			return image.NewRGBA(image.Rect(0, 0, width, height))
		},
	}
	// Another goroutine may have stored one first; use theirs.
	actual, _ := a.pools.LoadOrStore(key, p)
	return actual.(*sync.Pool)
}

// poolKey packs a buffer size. Dimensions are clamped to 16 bits.
func poolKey(width, height int) uint32 {
	w := min(width, 0xFFFF)
	h := min(height, 0xFFFF)
	return uint32(w)<<16 | uint32(h) //nolint:gosec // values are clamped above
}
