// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/backingstore"
)

// DefaultTileSize is the default tile edge length in pixels.
const DefaultTileSize = 256

// PoolOption configures a Pool during creation.
type PoolOption func(*poolOptions)

type poolOptions struct {
	mode       SharingMode
	tileWidth  int
	tileHeight int
	alloc      Allocator
}

func defaultPoolOptions() poolOptions {
	return poolOptions{
		mode:       ModeExclusive,
		tileWidth:  DefaultTileSize,
		tileHeight: DefaultTileSize,
	}
}

// WithMode sets the sharing mode of every slot in the pool.
func WithMode(m SharingMode) PoolOption {
	return func(o *poolOptions) {
		o.mode = m
	}
}

// WithTileSize sets the nominal slot dimensions.
func WithTileSize(width, height int) PoolOption {
	return func(o *poolOptions) {
		o.tileWidth = width
		o.tileHeight = height
	}
}

// WithAllocator sets the backing allocator. The default is a CPUAllocator.
func WithAllocator(a Allocator) PoolOption {
	return func(o *poolOptions) {
		o.alloc = a
	}
}

// Stats is a point-in-time view of pool usage.
type Stats struct {
	Slots  int    // total slots
	Owned  int    // slots claimed by a tile
	Busy   int    // slots currently being painted
	Steals uint64 // slots taken from one tile and given to another
	Frame  uint64 // current frame counter
}

// Pool owns a fixed set of slots and hands them out to tiles.
//
// Thread safety: Pool is safe for concurrent use. Lock order is pool, then
// tile, then slot: the pool may call Owner methods while holding its lock,
// so owners must never call the pool while holding their own lock.
type Pool struct {
	mode       SharingMode
	tileWidth  int
	tileHeight int
	alloc      Allocator

	frame  atomic.Uint64
	steals atomic.Uint64

	mu     sync.Mutex
	slots  []*Slot
	closed bool
}

// NewPool creates a pool of count slots.
func NewPool(count int, opts ...PoolOption) (*Pool, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	o := defaultPoolOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.tileWidth <= 0 || o.tileHeight <= 0 {
		return nil, fmt.Errorf("%w: tile %dx%d", ErrInvalidSize, o.tileWidth, o.tileHeight)
	}
	if o.alloc == nil {
		o.alloc = NewCPUAllocator()
	}

	p := &Pool{
		mode:       o.mode,
		tileWidth:  o.tileWidth,
		tileHeight: o.tileHeight,
		alloc:      o.alloc,
		slots:      make([]*Slot, count),
	}
	for i := range p.slots {
		p.slots[i] = NewSlot(uint64(i+1), o.tileWidth, o.tileHeight, o.mode, o.alloc) //nolint:gosec // i is non-negative
	}

	backingstore.Logger().Info("texture pool created",
		"slots", count, "tile_width", o.tileWidth, "tile_height", o.tileHeight, "mode", o.mode.String())
	return p, nil
}

// Mode returns the sharing mode of the pool's slots.
func (p *Pool) Mode() SharingMode { return p.mode }

// TileSize returns the nominal slot dimensions.
func (p *Pool) TileSize() (width, height int) {
	return p.tileWidth, p.tileHeight
}

// Frame returns the current frame counter.
func (p *Pool) Frame() uint64 {
	return p.frame.Load()
}

// AdvanceFrame increments the frame counter and returns the new value.
// The display side calls it once per presented frame.
func (p *Pool) AdvanceFrame() uint64 {
	return p.frame.Add(1)
}

// Slots returns a copy of the slot list.
func (p *Pool) Slots() []*Slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Slot(nil), p.slots...)
}

// AvailableTexture picks a slot for owner, in order of preference:
//
//  1. the owner's current back slot, if the owner still holds it;
//  2. the first slot nobody owns and nobody is painting;
//  3. the slot whose owner was used longest ago, ignoring busy slots, the
//     requester's own slots and owners used in the current or previous frame.
//
// A slot taken from another owner is first reported to it through
// RemoveTexture. Returns nil if no slot can be handed out.
func (p *Pool) AvailableTexture(owner Owner) *Slot {
	if owner == nil {
		return nil
	}
	if b := owner.BackTexture(); b != nil && b.Owner() == owner {
		return b
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}

	for _, s := range p.slots {
		if !s.Busy() && s.Owner() == nil {
			s.Claim(owner)
			return s
		}
	}

	frame := p.frame.Load()
	if frame == 0 {
		return nil
	}
	oldest := frame - 1
	var victim *Slot
	var victimOwner Owner
	for _, s := range p.slots {
		if s.Busy() {
			continue
		}
		o := s.Owner()
		if o == nil || o == owner {
			continue
		}
		if used := o.LastUsedFrame(); used < oldest {
			oldest = used
			victim = s
			victimOwner = o
		}
	}
	if victim == nil {
		backingstore.Logger().Debug("texture pool exhausted", "frame", frame)
		return nil
	}

	victimOwner.RemoveTexture(victim)
	victim.Claim(owner)
	p.steals.Add(1)
	backingstore.Logger().Debug("texture stolen", "slot", victim.ID(), "last_used", oldest, "frame", frame)
	return victim
}

// Stats returns current usage counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Stats{
		Slots:  len(p.slots),
		Steals: p.steals.Load(),
		Frame:  p.frame.Load(),
	}
	for _, s := range p.slots {
		if s.Owner() != nil {
			st.Owned++
		}
		if s.Busy() {
			st.Busy++
		}
	}
	return st
}

// Close releases every slot backing. Tiles still referencing slots must be
// discarded first. Returns ErrPoolClosed on the second call.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.closed = true
	for _, s := range p.slots {
		s.free()
	}
	backingstore.Logger().Info("texture pool closed", "slots", len(p.slots))
	return nil
}
