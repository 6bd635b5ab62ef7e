// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// TextureDevice is the part of hal.Device the HAL allocator needs.
type TextureDevice interface {
	CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error)
	DestroyTexture(texture hal.Texture)
}

// TextureQueue is the part of hal.Queue the HAL allocator uploads through.
type TextureQueue interface {
	WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, size *hal.Extent3D) error
}

// HALAllocator backs each slot with a GPU texture plus a CPU staging buffer
// the renderer paints into. The staging buffer is written to the texture
// through the queue each time the slot is published.
//
// Thread safety: HALAllocator is safe for concurrent use if the device and
// queue are.
type HALAllocator struct {
	device  TextureDevice
	queue   TextureQueue
	format  gputypes.TextureFormat
	staging *CPUAllocator

	uploads atomic.Uint64
}

// NewHALAllocator creates an allocator on device that uploads through
// queue. A zero format selects RGBA8Unorm.
func NewHALAllocator(device TextureDevice, queue TextureQueue, format gputypes.TextureFormat) *HALAllocator {
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatRGBA8Unorm
	}
	return &HALAllocator{
		device:  device,
		queue:   queue,
		format:  format,
		staging: NewCPUAllocator(),
	}
}

// Allocate creates a sampled, copy-destination texture and its staging buffer.
func (a *HALAllocator) Allocate(width, height int) (Backing, error) {
	if a.device == nil {
		return Backing{}, ErrNilDevice
	}
	b, err := a.staging.Allocate(width, height)
	if err != nil {
		return Backing{}, err
	}

	tex, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Label: fmt.Sprintf("tile_slot_%dx%d", width, height),
		Size: hal.Extent3D{
			Width:              uint32(width),  //nolint:gosec // validated positive by staging.Allocate
			Height:             uint32(height), //nolint:gosec // validated positive by staging.Allocate
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        a.format,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		a.staging.Free(b)
		return Backing{}, fmt.Errorf("create tile texture: %w", err)
	}
	b.GPU = tex
	return b, nil
}

// Upload copies the staging buffer into the GPU texture. Backings without
// either half are left alone.
func (a *HALAllocator) Upload(b Backing) error {
	if b.GPU == nil || b.Pixels == nil {
		return nil
	}
	if a.queue == nil {
		return ErrNilQueue
	}
	size := b.Pixels.Bounds().Size()
	w := uint32(size.X) //nolint:gosec // allocated sizes are positive
	h := uint32(size.Y) //nolint:gosec // allocated sizes are positive
	err := a.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  b.GPU,
			MipLevel: 0,
		},
		b.Pixels.Pix,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(b.Pixels.Stride), //nolint:gosec // stride of an allocated buffer
			RowsPerImage: h,
		},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("upload tile texture: %w", err)
	}
	a.uploads.Add(1)
	return nil
}

// Uploads returns how many staging buffers were written to the GPU.
func (a *HALAllocator) Uploads() uint64 {
	return a.uploads.Load()
}

// Free destroys the GPU texture and recycles the staging buffer.
func (a *HALAllocator) Free(b Backing) {
	if b.GPU != nil && a.device != nil {
		a.device.DestroyTexture(b.GPU)
	}
	a.staging.Free(b)
}

// Format returns the texture format.
func (a *HALAllocator) Format() gputypes.TextureFormat {
	return a.format
}
