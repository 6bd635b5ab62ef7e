// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"fmt"
	"strings"
)

// SharingMode describes how a slot's pixels reach the display.
type SharingMode uint8

const (
	// ModeExclusive hands the display a separate image per buffer.
	// Tiles keep two dirty regions and may repaint partially.
	ModeExclusive SharingMode = iota

	// ModeSharedSurface streams every frame through one shared surface.
	// Tiles keep one dirty region and always repaint fully.
	ModeSharedSurface
)

// String returns a human-readable name for the mode.
func (m SharingMode) String() string {
	switch m {
	case ModeExclusive:
		return "exclusive"
	case ModeSharedSurface:
		return "shared-surface"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// BufferCount returns how many dirty regions a tile needs in this mode.
func (m SharingMode) BufferCount() int {
	if m == ModeExclusive {
		return 2
	}
	return 1
}

// SupportsPartial reports whether a slot in this mode can be updated
// one sub-rectangle at a time.
func (m SharingMode) SupportsPartial() bool {
	return m == ModeExclusive
}

// ParseMode parses the String form of a mode. Case is ignored.
func ParseMode(s string) (SharingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exclusive", "":
		return ModeExclusive, nil
	case "shared-surface", "shared":
		return ModeSharedSurface, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}
