package schedule

import (
	"runtime"
	"sync/atomic"
	"testing"
)

// =============================================================================
// Worker Pool Tests
// =============================================================================

func TestWorkerPool_Create(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
	}{
		{"explicit", 3, 3},
		{"zero uses GOMAXPROCS", 0, runtime.GOMAXPROCS(0)},
		{"negative uses GOMAXPROCS", -2, runtime.GOMAXPROCS(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newWorkerPool(tt.n)
			defer p.close()
			if p.workers != tt.want {
				t.Errorf("workers = %d, want %d", p.workers, tt.want)
			}
			if !p.isRunning() {
				t.Error("pool should be running after creation")
			}
		})
	}
}

func TestWorkerPool_Run(t *testing.T) {
	p := newWorkerPool(4)
	defer p.close()

	var counter atomic.Int64
	jobs := make([]func(), 100)
	for i := range jobs {
		jobs[i] = func() { counter.Add(1) }
	}
	p.run(jobs)

	if counter.Load() != 100 {
		t.Errorf("counter = %d, want 100", counter.Load())
	}
	if p.queued() != 0 {
		t.Errorf("queued() = %d, want 0 after run", p.queued())
	}
}

func TestWorkerPool_RunMoreThanQueues(t *testing.T) {
	p := newWorkerPool(1)
	defer p.close()

	var counter atomic.Int64
	jobs := make([]func(), 64)
	for i := range jobs {
		jobs[i] = func() { counter.Add(1) }
	}
	p.run(jobs)

	if counter.Load() != 64 {
		t.Errorf("counter = %d, want 64", counter.Load())
	}
}

func TestWorkerPool_RunEmpty(t *testing.T) {
	p := newWorkerPool(2)
	defer p.close()
	p.run(nil)
}

func TestWorkerPool_RunAfterClose(t *testing.T) {
	p := newWorkerPool(2)
	if !p.close() {
		t.Fatal("first close should report true")
	}
	if p.close() {
		t.Error("second close should report false")
	}

	ran := false
	p.run([]func(){func() { ran = true }})
	if !ran {
		t.Error("run after close should execute jobs inline")
	}
	if p.isRunning() {
		t.Error("pool should not be running after close")
	}
}
