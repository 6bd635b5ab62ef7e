// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package texture provides the texture slots tiles paint into and the pool
// that hands them out.
//
// # Slots
//
// A Slot wraps one pixel buffer. Tiles claim slots, the producer writes them
// under ProducerLock / ProducerReleaseAndPublish, and the consumer reads them
// under ConsumerLock / ConsumerRelease. A slot remembers which owner its
// pixels were painted for, so a slot reassigned to another tile never reports
// stale pixels as ready.
//
// # Pool
//
// The Pool owns every slot. When no free slot exists it steals the least
// recently used one from another tile, notifying that tile through
// Owner.RemoveTexture first. Slots being painted are never stolen, and
// neither are slots of tiles used in the current or previous frame.
//
// # Allocators
//
//   - CPUAllocator: RGBA buffers recycled through per-size sync.Pools
//   - HALAllocator: a gogpu/wgpu HAL texture per slot plus a CPU staging buffer,
//     copied to the texture through the queue whenever the slot is published
package texture

import "errors"

// Errors returned by pool construction and allocators.
var (
	// ErrInvalidCount is returned when a pool is created with no slots.
	ErrInvalidCount = errors.New("texture: slot count must be positive")

	// ErrInvalidSize is returned for non-positive buffer dimensions.
	ErrInvalidSize = errors.New("texture: invalid size")

	// ErrNoAllocator is returned by Info.Ensure on a slot without allocator.
	ErrNoAllocator = errors.New("texture: slot has no allocator")

	// ErrNilDevice is returned by HALAllocator when no device is set.
	ErrNilDevice = errors.New("texture: nil device")

	// ErrNilQueue is returned by HALAllocator.Upload when no queue is set.
	ErrNilQueue = errors.New("texture: nil queue")

	// ErrPoolClosed is returned when closing a pool twice.
	ErrPoolClosed = errors.New("texture: pool is closed")

	// ErrUnknownMode is returned by ParseMode.
	ErrUnknownMode = errors.New("texture: unknown sharing mode")
)
