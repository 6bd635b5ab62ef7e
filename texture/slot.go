// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/backingstore"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Owner is a tile that can claim slots.
//
// The pool calls RemoveTexture before handing a slot that owner still
// references to someone else. BackTexture and LastUsedFrame feed the
// pool's selection heuristic. Implementations must not call back into the
// pool from any of these methods.
type Owner interface {
	RemoveTexture(s *Slot)
	BackTexture() *Slot
	LastUsedFrame() uint64
}

// Info is the pixel storage of a slot as seen under its producer or
// consumer lock. It must not be retained after the lock is released.
type Info struct {
	// SlotID identifies the slot this info belongs to.
	SlotID uint64

	// Mode is the sharing mode of the slot.
	Mode SharingMode

	// Format is the pixel format of the backing.
	Format gputypes.TextureFormat

	backing Backing
	alloc   Allocator
	serial  uint64
}

// Serial returns a counter bumped on every successful publish. Consumers
// that mirror the pixels elsewhere compare it to skip redundant uploads.
func (i *Info) Serial() uint64 {
	return i.serial
}

// Pixels returns the CPU pixel buffer, or nil if none is allocated.
func (i *Info) Pixels() *image.RGBA {
	return i.backing.Pixels
}

// GPU returns the GPU texture backing the slot, or nil for CPU-only slots.
func (i *Info) GPU() hal.Texture {
	return i.backing.GPU
}

// Size returns the allocated pixel dimensions. Zero until the first Ensure.
func (i *Info) Size() image.Point {
	if i.backing.Pixels == nil {
		return image.Point{}
	}
	return i.backing.Pixels.Bounds().Size()
}

// Width returns the allocated width in pixels.
func (i *Info) Width() int { return i.Size().X }

// Height returns the allocated height in pixels.
func (i *Info) Height() int { return i.Size().Y }

// Ensure makes the backing exactly width x height, reallocating through the
// slot's allocator if the size differs. Only valid under the producer lock.
func (i *Info) Ensure(width, height int) error {
	if i.Size() == image.Pt(width, height) {
		return nil
	}
	if i.alloc == nil {
		return ErrNoAllocator
	}
	b, err := i.alloc.Allocate(width, height)
	if err != nil {
		return fmt.Errorf("texture: slot %d: %w", i.SlotID, err)
	}
	if !i.backing.isZero() {
		i.alloc.Free(i.backing)
	}
	i.backing = b
	return nil
}

// Slot is a pool-managed handle to a pixel buffer.
//
// Pixel access follows a producer/consumer protocol: the producer brackets
// writes with ProducerLock and ProducerReleaseAndPublish (or ProducerRelease
// to abort), the consumer brackets reads with ConsumerLock and
// ConsumerRelease. Ownership bookkeeping sits behind a separate mutex so that
// Owner and ReadyFor never wait for pixel I/O.
//
// Thread safety: all methods are safe for concurrent use.
type Slot struct {
	id     uint64
	width  int
	height int

	// io is write-locked by the producer and read-locked by consumers.
	io   sync.RWMutex
	info Info // guarded by io

	// busy is set while the producer lock is held.
	busy atomic.Bool

	mu        sync.Mutex
	owner     Owner
	refs      int
	published Owner  // owner the current pixels were painted for
	version   uint32 // content version of the current pixels
}

// NewSlot creates a slot with the given nominal size. Pixel storage is
// allocated lazily through alloc on the first Info.Ensure.
func NewSlot(id uint64, width, height int, mode SharingMode, alloc Allocator) *Slot {
	s := &Slot{id: id, width: width, height: height}
	s.info = Info{SlotID: id, Mode: mode, alloc: alloc}
	if alloc != nil {
		s.info.Format = alloc.Format()
	}
	return s
}

// ID returns the slot identifier.
func (s *Slot) ID() uint64 { return s.id }

// Mode returns the sharing mode.
func (s *Slot) Mode() SharingMode { return s.info.Mode }

// PixelSize returns the nominal dimensions the pool created the slot with.
func (s *Slot) PixelSize() (width, height int) {
	return s.width, s.height
}

// Busy reports whether a producer currently holds the slot.
func (s *Slot) Busy() bool {
	return s.busy.Load()
}

// Owner returns the tile currently claiming the slot, or nil.
func (s *Slot) Owner() Owner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Refs returns how many claims are outstanding.
func (s *Slot) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// Version returns the content version of the last publish.
func (s *Slot) Version() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Claim hands the slot to o. Pixels painted for a previous owner stop
// counting as ready.
func (s *Slot) Claim(o Owner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == o {
		return
	}
	s.owner = o
	s.refs = 1
	s.published = nil
}

// Release drops o's claim. It returns false if o is not the owner.
func (s *Slot) Release(o Owner) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o == nil || s.owner != o {
		return false
	}
	s.owner = nil
	s.refs = 0
	s.published = nil
	return true
}

// ReadyFor reports whether the slot holds published pixels painted for o
// and o still owns it. Only a slot with allocated pixels can be published,
// and freeing the pixels withdraws the publish.
func (s *Slot) ReadyFor(o Owner) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return o != nil && s.owner == o && s.published == o
}

// ProducerLock acquires the slot for writing.
func (s *Slot) ProducerLock() *Info {
	s.io.Lock()
	s.busy.Store(true)
	return &s.info
}

// ProducerRelease releases the write lock without publishing.
func (s *Slot) ProducerRelease() {
	s.busy.Store(false)
	s.io.Unlock()
}

// ProducerReleaseAndPublish releases the write lock and publishes the
// pixels as painted for o at the given content version. Nothing is
// published if o no longer owns the slot, if no pixels were allocated, or
// if the allocator fails to upload them; the result reports which
// happened.
func (s *Slot) ProducerReleaseAndPublish(o Owner, version uint32) bool {
	ok := o != nil && s.info.backing.Pixels != nil && s.Owner() == o
	if ok {
		ok = s.upload()
	}
	if ok {
		s.mu.Lock()
		ok = s.owner == o
		if ok {
			s.published = o
			s.version = version
			s.info.serial++
		}
		s.mu.Unlock()
	}

	s.busy.Store(false)
	s.io.Unlock()
	return ok
}

// upload hands the pixels to the allocator if it keeps a second copy.
// Called under the producer lock.
func (s *Slot) upload() bool {
	up, ok := s.info.alloc.(Uploader)
	if !ok {
		return true
	}
	if err := up.Upload(s.info.backing); err != nil {
		backingstore.Logger().Warn("slot upload failed", "slot", s.id, "err", err)
		return false
	}
	return true
}

// ConsumerLock acquires the slot for reading. It returns nil if no pixels
// were ever allocated; ConsumerRelease must be called either way.
func (s *Slot) ConsumerLock() *Info {
	s.io.RLock()
	if s.info.backing.isZero() {
		return nil
	}
	return &s.info
}

// ConsumerRelease releases the read lock.
func (s *Slot) ConsumerRelease() {
	s.io.RUnlock()
}

// free returns the backing to the allocator. The slot must not be in use.
func (s *Slot) free() {
	s.io.Lock()
	defer s.io.Unlock()
	if !s.info.backing.isZero() && s.info.alloc != nil {
		s.info.alloc.Free(s.info.backing)
	}
	s.info.backing = Backing{}

	s.mu.Lock()
	s.published = nil
	s.mu.Unlock()
}

// String returns a short description for logging.
func (s *Slot) String() string {
	return fmt.Sprintf("slot#%d(%dx%d %s)", s.id, s.width, s.height, s.info.Mode)
}
