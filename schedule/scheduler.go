// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package schedule

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/backingstore"
	"github.com/gogpu/backingstore/tile"
)

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	workers int
}

// WithWorkers sets the number of paint workers. Zero or negative selects
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// Stats counts scheduler activity since creation.
type Stats struct {
	Passes     uint64 // PaintDirty calls
	Painted    uint64 // paints that committed a result
	Unreserved uint64 // dirty tiles that got no slot
	Discarded  uint64 // paints that rendered nothing usable
	Queued     int    // jobs waiting in worker queues
}

// Scheduler paints dirty tiles on a worker pool.
//
// Thread safety: Scheduler is safe for concurrent use. Concurrent
// PaintDirty calls never paint the same tile twice at once.
type Scheduler struct {
	workers *workerPool

	mu       sync.Mutex
	inFlight map[*tile.Tile]struct{}

	passes     atomic.Uint64
	painted    atomic.Uint64
	unreserved atomic.Uint64
	discarded  atomic.Uint64
}

// New creates a scheduler and starts its workers.
func New(opts ...Option) *Scheduler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	s := &Scheduler{
		workers:  newWorkerPool(o.workers),
		inFlight: make(map[*tile.Tile]struct{}),
	}
	backingstore.Logger().Info("paint scheduler started", "workers", s.workers.workers)
	return s
}

// Workers returns the number of paint workers.
func (s *Scheduler) Workers() int {
	return s.workers.workers
}

// PaintDirty reserves a slot for and paints every tile that is dirty and
// has no paint pending, then waits for those paints. It returns the number
// of paints that committed a result.
func (s *Scheduler) PaintDirty(tiles []*tile.Tile) int {
	s.passes.Add(1)

	var jobs []func()
	var painted atomic.Int64
	for _, t := range tiles {
		if t == nil || !t.IsDirty() || t.IsRepaintPending() || !s.acquire(t) {
			continue
		}
		t.SetRepaintPending(true)
		jobs = append(jobs, func() {
			defer s.release(t)
			if s.paint(t) {
				painted.Add(1)
			}
		})
	}
	s.workers.run(jobs)
	return int(painted.Load())
}

func (s *Scheduler) paint(t *tile.Tile) bool {
	defer t.SetRepaintPending(false)
	if !t.ReserveTexture() {
		s.unreserved.Add(1)
		return false
	}
	if !t.Paint() {
		s.discarded.Add(1)
		return false
	}
	s.painted.Add(1)
	return true
}

func (s *Scheduler) acquire(t *tile.Tile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[t]; busy {
		return false
	}
	s.inFlight[t] = struct{}{}
	return true
}

func (s *Scheduler) release(t *tile.Tile) {
	s.mu.Lock()
	delete(s.inFlight, t)
	s.mu.Unlock()
}

// InFlight returns the number of tiles queued or being painted.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// Stats returns activity counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Passes:     s.passes.Load(),
		Painted:    s.painted.Load(),
		Unreserved: s.unreserved.Load(),
		Discarded:  s.discarded.Load(),
		Queued:     s.workers.queued(),
	}
}

// Running reports whether paints are dispatched to workers.
func (s *Scheduler) Running() bool {
	return s.workers.isRunning()
}

// Close waits for queued paints and stops the workers. PaintDirty after
// Close paints on the calling goroutine.
func (s *Scheduler) Close() {
	if s.workers.close() {
		backingstore.Logger().Info("paint scheduler stopped")
	}
}
