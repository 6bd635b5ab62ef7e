// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package schedule runs tile paints on the producer side.
//
// A Scheduler hands every dirty tile to a work-stealing worker pool, which
// reserves a back slot and paints it. A tile is never painted by two
// workers at once: the scheduler tracks in-flight tiles and flags them
// with Tile.SetRepaintPending while a paint is queued or running.
//
// Basic usage:
//
//	s := schedule.New(schedule.WithWorkers(4))
//	defer s.Close()
//
//	for frame := range frames {
//	    painted := s.PaintDirty(tiles)
//	    ...
//	}
package schedule
