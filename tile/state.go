// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package tile

import (
	"fmt"

	"github.com/gogpu/backingstore/texture"
)

// Phase is the buffering state of a tile.
type Phase uint8

const (
	// PhaseNoTexture means the tile holds no slot at all.
	PhaseNoTexture Phase = iota

	// PhaseFrontOnly means the tile holds a displayable front slot and no
	// back slot.
	PhaseFrontOnly

	// PhaseBackPending means a back slot is reserved and awaits a paint
	// that leaves the tile clean. A front slot may or may not exist.
	PhaseBackPending

	// PhaseReadyToSwap means the back slot holds fresh content and the next
	// swap promotes it to front.
	PhaseReadyToSwap
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseNoTexture:
		return "NoTexture"
	case PhaseFrontOnly:
		return "FrontOnly"
	case PhaseBackPending:
		return "BackPending"
	case PhaseReadyToSwap:
		return "ReadyToSwap"
	default:
		return fmt.Sprintf("Phase(%d)", p)
	}
}

// ledger is the buffering state of a tile. Every field is guarded by the
// tile mutex. Each method handles one event and leaves the ledger in a
// fully specified state: phase is never derived after the fact.
//
// Invariants:
//   - front and back are never the same slot
//   - PhaseReadyToSwap implies back != nil
//   - PhaseBackPending implies back != nil
//   - PhaseFrontOnly implies front != nil and back == nil
//   - PhaseNoTexture implies front == nil and back == nil
type ledger struct {
	phase Phase
	front *texture.Slot
	back  *texture.Slot

	// dirty means some content is newer than what the front slot shows.
	dirty bool

	// painted means a paint has completed at least once.
	painted bool
}

func newLedger() ledger {
	return ledger{phase: PhaseNoTexture, dirty: true}
}

// swapNeeded reports whether the back slot is ready to become front.
func (l *ledger) swapNeeded() bool {
	return l.phase == PhaseReadyToSwap
}

// idle returns the phase for a ledger without a back slot.
func (l *ledger) idle() Phase {
	if l.front != nil {
		return PhaseFrontOnly
	}
	return PhaseNoTexture
}

// invalidate marks the content stale.
func (l *ledger) invalidate() {
	l.dirty = true
}

// installBack makes s the back slot. A new back slot cancels a pending
// swap. Reports whether anything changed.
func (l *ledger) installBack(s *texture.Slot) bool {
	if s == nil || s == l.back || s == l.front {
		return false
	}
	l.back = s
	l.phase = PhaseBackPending
	// The front slot may have been taken by the pool since the last
	// paint; without it the tile would stay blank.
	if l.front == nil {
		l.dirty = true
	}
	return true
}

// remove drops every reference to s. Reports which references were held.
func (l *ledger) remove(s *texture.Slot) (wasFront, wasBack bool) {
	if s == nil {
		return false, false
	}
	if s == l.front {
		wasFront = true
		l.front = nil
		l.dirty = true
		if l.back == nil {
			l.phase = PhaseNoTexture
		}
	}
	if s == l.back {
		wasBack = true
		if l.phase == PhaseReadyToSwap {
			// The content about to be shown is gone.
			l.dirty = true
		}
		l.back = nil
		l.phase = l.idle()
	}
	return wasFront, wasBack
}

// paintDone records a committed paint into the back slot.
func (l *ledger) paintDone(stillDirty bool) {
	l.painted = true
	l.dirty = stillDirty
	if !stillDirty && l.back != nil {
		l.phase = PhaseReadyToSwap
	}
}

// swap promotes the back slot. It returns the old front slot, which the
// caller must release, and whether a swap happened.
func (l *ledger) swap() (old *texture.Slot, ok bool) {
	if l.phase != PhaseReadyToSwap {
		return nil, false
	}
	old = l.front
	l.front = l.back
	l.back = nil
	l.phase = PhaseFrontOnly
	return old, true
}

// next returns the slot that would be shown after the next swap.
func (l *ledger) next() *texture.Slot {
	if l.phase == PhaseReadyToSwap {
		return l.back
	}
	return l.front
}

// discard drops both slots, returning them for release.
func (l *ledger) discard() (front, back *texture.Slot) {
	front, back = l.front, l.back
	l.front = nil
	l.back = nil
	l.phase = PhaseNoTexture
	l.dirty = true
	return front, back
}
