package region

// Tracker accumulates dirty regions for each buffer of a tile.
//
// A tile painting into N rotating buffers needs N dirty regions: an
// invalidation must reach both the buffer about to be repainted and the one
// painted after it. Each buffer also carries a full repaint flag that forces
// the next paint into that buffer to cover the whole tile.
//
// The cursor always points at the buffer the next paint writes into.
type Tracker struct {
	// areas holds exactly one entry per buffer, fixed at construction.
	areas []area

	// current is the index of the buffer the next paint targets.
	current int
}

type area struct {
	dirty       Region
	fullRepaint bool
}

// NewTracker creates a tracker for the given number of buffers.
// Values below 1 are treated as 1. Every buffer starts out requiring a
// full repaint.
func NewTracker(buffers int) *Tracker {
	if buffers < 1 {
		buffers = 1
	}
	t := &Tracker{areas: make([]area, buffers)}
	for i := range t.areas {
		t.areas[i].fullRepaint = true
	}
	return t
}

// Buffers returns the number of buffers tracked.
func (t *Tracker) Buffers() int {
	return len(t.areas)
}

// Index returns the buffer the next paint writes into.
func (t *Tracker) Index() int {
	return t.current
}

// InvalidateAll empties every dirty region and forces a full repaint of
// every buffer. Used when partial tracking can no longer be trusted.
func (t *Tracker) InvalidateAll() {
	for i := range t.areas {
		t.areas[i].dirty.SetEmpty()
		t.areas[i].fullRepaint = true
	}
}

// Add unions r into every buffer's dirty region.
func (t *Tracker) Add(r Region) {
	if r.IsEmpty() {
		return
	}
	for i := range t.areas {
		t.areas[i].dirty.Union(r)
	}
}

// Snapshot returns a copy of the current buffer's dirty region and whether
// that buffer requires a full repaint.
func (t *Tracker) Snapshot() (Region, bool) {
	a := &t.areas[t.current]
	return a.dirty.Clone(), a.fullRepaint
}

// Commit records a finished paint of the current buffer. A full paint
// empties the region; a partial one subtracts painted from it. The full
// repaint flag is cleared either way. Returns true if the current buffer
// is still dirty afterwards.
func (t *Tracker) Commit(painted Region, full bool) bool {
	a := &t.areas[t.current]
	a.fullRepaint = false
	if full {
		a.dirty.SetEmpty()
	} else {
		a.dirty.Subtract(painted)
	}
	return !a.dirty.IsEmpty()
}

// Advance moves the cursor to the next buffer, wrapping around, and reports
// whether that buffer has pending dirty rectangles.
func (t *Tracker) Advance() bool {
	t.current = (t.current + 1) % len(t.areas)
	return !t.areas[t.current].dirty.IsEmpty()
}

// Dirty returns a copy of buffer i's dirty region.
// Returns an empty Region if i is out of range.
func (t *Tracker) Dirty(i int) Region {
	if i < 0 || i >= len(t.areas) {
		return Region{}
	}
	return t.areas[i].dirty.Clone()
}

// FullRepaint reports whether buffer i requires a full repaint.
// Returns false if i is out of range.
func (t *Tracker) FullRepaint(i int) bool {
	if i < 0 || i >= len(t.areas) {
		return false
	}
	return t.areas[i].fullRepaint
}
