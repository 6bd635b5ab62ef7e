// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"fmt"
	"image"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the row alignment of texture-to-buffer copies.
const copyPitchAlignment = 256

// readbackTimeout bounds the wait for a readback submission.
const readbackTimeout = 5 * time.Second

// GPUTarget is an offscreen RGBA texture a GPUSink draws into.
//
// The texture is padded to a width whose rows meet the copy pitch
// alignment, so readback needs no per-row repacking; Read crops the
// padding away.
type GPUTarget struct {
	device GPUDevice
	queue  GPUQueue
	tex    hal.Texture
	view   hal.TextureView
	width  int
	height int
	padded int
	closed bool
}

// NewGPUTarget creates a width x height render target on device.
func NewGPUTarget(device GPUDevice, queue GPUQueue, width, height int) (*GPUTarget, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidViewport, width, height)
	}
	const pixelsPerRow = copyPitchAlignment / 4
	padded := (width + pixelsPerRow - 1) / pixelsPerRow * pixelsPerRow

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label: "tile_target",
		Size: hal.Extent3D{
			Width:              uint32(padded), //nolint:gosec // validated positive above
			Height:             uint32(height), //nolint:gosec // validated positive above
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("present: create target texture: %w", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "tile_target_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return nil, fmt.Errorf("present: create target view: %w", err)
	}
	return &GPUTarget{
		device: device,
		queue:  queue,
		tex:    tex,
		view:   view,
		width:  width,
		height: height,
		padded: padded,
	}, nil
}

// View returns the render attachment view.
func (t *GPUTarget) View() hal.TextureView { return t.view }

// TextureSize returns the size of the underlying texture, padding
// included. Sinks must use it as their viewport.
func (t *GPUTarget) TextureSize() (width, height int) { return t.padded, t.height }

// Bounds returns the visible area.
func (t *GPUTarget) Bounds() image.Rectangle { return image.Rect(0, 0, t.width, t.height) }

// NewSink creates a GPUSink drawing into the target.
func (t *GPUTarget) NewSink() (*GPUSink, error) {
	return NewGPUSink(t.device, t.queue, t.view, t.padded, t.height, gputypes.TextureFormatRGBA8Unorm)
}

// Read copies the visible area back into a new image. It waits for the
// copy to complete.
func (t *GPUTarget) Read() (*image.RGBA, error) {
	if t.closed {
		return nil, ErrSinkClosed
	}
	bytesPerRow := uint64(t.padded) * 4 //nolint:gosec // positive
	size := bytesPerRow * uint64(t.height)

	staging, err := t.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "tile_target_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("present: create staging buffer: %w", err)
	}
	defer t.device.DestroyBuffer(staging)

	encoder, err := t.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "tile_target_readback"})
	if err != nil {
		return nil, fmt.Errorf("present: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("tile_target_readback"); err != nil {
		return nil, fmt.Errorf("present: begin encoding: %w", err)
	}
	w := uint32(t.padded) //nolint:gosec // positive
	h := uint32(t.height) //nolint:gosec // positive
	encoder.CopyTextureToBuffer(t.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("present: end encoding: %w", err)
	}
	defer t.device.FreeCommandBuffer(cmdBuf)

	index, err := t.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return nil, fmt.Errorf("present: submit readback: %w", err)
	}
	if err := waitCompleted(t.queue, index, readbackTimeout); err != nil {
		return nil, err
	}

	mapping, err := t.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("present: map staging buffer: %w", err)
	}
	data := unsafe.Slice((*byte)(mapping.Ptr), size)

	img := image.NewRGBA(t.Bounds())
	rowBytes := t.width * 4
	for y := range t.height {
		src := data[uint64(y)*bytesPerRow:] //nolint:gosec // y is non-negative
		copy(img.Pix[y*img.Stride:y*img.Stride+rowBytes], src[:rowBytes])
	}
	if err := t.device.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("present: unmap staging buffer: %w", err)
	}
	return img, nil
}

// Close destroys the target texture and view.
func (t *GPUTarget) Close() error {
	if t.closed {
		return ErrSinkClosed
	}
	t.closed = true
	t.device.DestroyTextureView(t.view)
	t.device.DestroyTexture(t.tex)
	return nil
}

// waitCompleted polls queue until submission index has completed.
func waitCompleted(queue GPUQueue, index uint64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for queue.PollCompleted() < index {
		if time.Now().After(deadline) {
			return fmt.Errorf("present: submission %d: %w", index, hal.ErrTimeout)
		}
		time.Sleep(100 * time.Microsecond)
	}
	return nil
}
