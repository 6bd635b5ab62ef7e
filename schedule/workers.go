// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package schedule

import (
	"runtime"
	"sync"
)

// workerPool runs paint jobs on a fixed set of goroutines.
//
// Each worker owns a queue and steals from the others when its own queue is
// empty, so one slow tile does not hold up the rest of a pass.
//
// Thread safety: workerPool is safe for concurrent use.
type workerPool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup

	// mu is held for reading while jobs are queued and for writing while
	// closing, so no job lands in a queue after the workers exit.
	mu      sync.RWMutex
	running bool
}

// newWorkerPool starts n workers. If n is 0 or negative, GOMAXPROCS is used.
func newWorkerPool(n int) *workerPool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	queueSize := max(n*4, 8)

	p := &workerPool{
		workers: n,
		queues:  make([]chan func(), n),
		done:    make(chan struct{}),
	}
	for i := range n {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running = true

	p.wg.Add(n)
	for i := range n {
		go p.worker(i)
	}
	return p
}

func (p *workerPool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case job := <-own:
			job()
		default:
			if job := p.steal(id); job != nil {
				job()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case job := <-own:
				job()
			}
		}
	}
}

// drain runs whatever is left in queue.
func (p *workerPool) drain(queue chan func()) {
	for {
		select {
		case job := <-queue:
			job()
		default:
			return
		}
	}
}

// steal takes one job from another worker's queue, or returns nil.
func (p *workerPool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case job := <-p.queues[i]:
			return job
		default:
		}
	}
	return nil
}

// run distributes jobs round-robin and waits until every job has finished.
// Once the pool is closed, jobs run on the calling goroutine.
func (p *workerPool) run(jobs []func()) {
	if len(jobs) == 0 {
		return
	}

	p.mu.RLock()
	if !p.running {
		p.mu.RUnlock()
		for _, job := range jobs {
			job()
		}
		return
	}
	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for i, job := range jobs {
		p.queues[i%p.workers] <- func() {
			defer wg.Done()
			job()
		}
	}
	p.mu.RUnlock()
	wg.Wait()
}

// close stops the workers after draining their queues. It reports false
// if the pool was already closed.
func (p *workerPool) close() bool {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return false
	}
	p.running = false
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
	return true
}

// isRunning reports whether jobs are still dispatched to workers.
func (p *workerPool) isRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// queued approximates the number of jobs waiting in all queues.
func (p *workerPool) queued() int {
	total := 0
	for _, q := range p.queues {
		total += len(q)
	}
	return total
}
