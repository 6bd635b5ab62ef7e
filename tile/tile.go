// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package tile

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/backingstore"
	"github.com/gogpu/backingstore/geom"
	"github.com/gogpu/backingstore/region"
	"github.com/gogpu/backingstore/texture"
)

// Tile is one independently paintable cell of a tiled surface.
//
// Thread safety: a Tile is shared by one producer goroutine (ReserveTexture,
// Paint) and one consumer goroutine (SwapIfReady, IsReady, Draw). All other
// methods may be called from anywhere. Paint must not run concurrently with
// itself on the same tile.
type Tile struct {
	source      TextureSource
	mode        texture.SharingMode
	width       int
	height      int
	layer       bool
	measurePerf bool

	lastUsed atomic.Uint64

	mu       sync.Mutex
	painter  Painter
	x, y     int
	scale    float64
	renderer Renderer
	state    ledger
	tracker  *region.Tracker

	// generation increments on every full invalidation, so a paint can
	// tell its snapshot was superseded.
	generation uint64

	repaintPending   bool
	lastDirtyVersion uint32
	paintedVersion   uint32
	closed           bool
}

// New creates a tile drawing its slots from source. The tile starts with
// no identity (coordinates -1), scale 1 and every buffer fully dirty.
func New(source TextureSource, opts ...Option) *Tile {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	mode := source.Mode()
	w, h := source.TileSize()
	if o.width > 0 && o.height > 0 {
		w, h = o.width, o.height
	}
	r := o.renderer
	if r == nil {
		r = nopRenderer{}
	}

	t := &Tile{
		source:      source,
		mode:        mode,
		width:       w,
		height:      h,
		layer:       o.layer,
		measurePerf: o.measurePerf,
		x:           -1,
		y:           -1,
		scale:       1,
		renderer:    r,
		state:       newLedger(),
		tracker:     region.NewTracker(mode.BufferCount()),
	}
	return t
}

// SetContents sets the tile's identity. Any change of painter, position or
// scale discards all accumulated dirty state and forces a full repaint.
// It also stamps the tile as used in the current frame.
func (t *Tile) SetContents(painter Painter, x, y int, scale float64) {
	t.mu.Lock()
	if painter != t.painter || x != t.x || y != t.y || scale != t.scale {
		t.fullInvalidateLocked()
		t.painter = painter
		t.x = x
		t.y = y
		t.scale = scale
	}
	t.mu.Unlock()

	t.lastUsed.Store(t.source.Frame())
}

// FullInvalidate empties every buffer's dirty region, forces a full repaint
// of every buffer and marks the tile dirty.
func (t *Tile) FullInvalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fullInvalidateLocked()
}

func (t *Tile) fullInvalidateLocked() {
	t.tracker.InvalidateAll()
	t.state.invalidate()
	t.generation++
}

// MarkDirty records r, in content coordinates, as stale for content
// version. An empty region is ignored. The region reaches every buffer.
// Versions are recorded as given, even if older than a previous one.
func (t *Tile) MarkDirty(version uint32, r region.Region) {
	if r.IsEmpty() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastDirtyVersion = version
	t.tracker.Add(r)
	t.state.invalidate()
}

// ReserveTexture obtains a back slot from the texture source. The source
// is called without the tile lock. It reports whether the tile holds a
// back slot afterwards.
func (t *Tile) ReserveTexture() bool {
	s := t.source.AvailableTexture(t)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		if s != nil {
			s.Release(t)
		}
		return false
	}
	if t.state.installBack(s) {
		backingstore.Logger().Debug("tile back slot reserved", "tile", t.label(), "slot", s.ID())
	}
	ok := t.state.back != nil
	t.mu.Unlock()
	return ok
}

// RemoveTexture drops the tile's references to s. The texture pool calls it
// before handing s to another tile. Losing the front slot marks the tile
// dirty.
func (t *Tile) RemoveTexture(s *texture.Slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	front, back := t.state.remove(s)
	if front || back {
		backingstore.Logger().Debug("tile lost slot",
			"tile", t.label(), "slot", s.ID(), "front", front, "back", back)
	}
}

// BackTexture returns the back slot, or nil.
func (t *Tile) BackTexture() *texture.Slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.back
}

// FrontTexture returns the front slot, or nil.
func (t *Tile) FrontTexture() *texture.Slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.front
}

// LastUsedFrame returns the frame of the last SetContents call.
func (t *Tile) LastUsedFrame() uint64 {
	return t.lastUsed.Load()
}

// Paint repaints the stale part of the tile into the back slot.
//
// Bookkeeping is snapshotted under the tile lock; rendering happens under
// the slot's producer lock only. The result is committed only if the slot
// is still this tile's back slot once rendering is done. Paint reports
// whether a result was committed.
func (t *Tile) Paint() bool {
	t.mu.Lock()
	if t.closed || !t.state.dirty || t.state.back == nil || t.x < 0 || t.y < 0 {
		t.mu.Unlock()
		return false
	}
	slot := t.state.back
	dirty, fullFlag := t.tracker.Snapshot()
	x, y, scale := t.x, t.y, t.scale
	painter := t.painter
	renderer := t.renderer
	generation := t.generation
	floor := t.paintedVersion
	t.mu.Unlock()

	info := slot.ProducerLock()
	if slot.Owner() != t {
		slot.ProducerRelease()
		backingstore.Logger().Debug("tile paint aborted, slot reassigned", "tile", label(x, y, scale), "slot", slot.ID())
		return false
	}

	// Partial updates need this tile's pixels already in the slot.
	size := image.Pt(t.width, t.height)
	force := fullFlag || info.Size() != size || !slot.ReadyFor(t)
	plan := planRepaint(dirty, x, y, size, scale, force, t.mode.SupportsPartial())

	ri := RenderInfo{
		X:        x,
		Y:        y,
		Scale:    scale,
		TileSize: size,
		Painter:  painter,
		Tile:     t,
		Target:   info,
	}
	// Versions reported by the renderer never take the tile backwards.
	version := floor
	if plan.full {
		ri.Inval = image.Rectangle{Max: size}
		ri.MeasurePerf = t.measurePerf
		version = max(version, renderer.RenderTile(&ri))
	} else {
		for _, r := range plan.rects {
			ri.Inval = r
			version = max(version, renderer.RenderTile(&ri))
		}
	}

	// A renderer that could not size the target left nothing to show.
	if info.Size() != size {
		slot.ProducerRelease()
		backingstore.Logger().Warn("tile paint produced no pixels", "tile", label(x, y, scale), "slot", slot.ID(), "size", info.Size())
		return false
	}

	published := slot.ProducerReleaseAndPublish(t, version)

	t.mu.Lock()
	defer t.mu.Unlock()
	if !published || slot != t.state.back {
		backingstore.Logger().Debug("tile paint discarded", "tile", t.label(), "slot", slot.ID())
		return false
	}
	t.paintedVersion = max(t.paintedVersion, version)
	if generation != t.generation {
		// Invalidated while rendering; the tracker already wants a full
		// repaint.
		t.state.invalidate()
		return false
	}

	stillDirty := t.scale != scale
	if t.tracker.Commit(dirty, plan.full) {
		stillDirty = true
	}
	if t.tracker.Advance() {
		stillDirty = true
	}
	t.state.paintDone(stillDirty)
	return true
}

// SwapIfReady promotes the back slot to front if the last paint left the
// tile clean, releasing the old front slot. It reports whether a swap
// happened.
func (t *Tile) SwapIfReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	old, ok := t.state.swap()
	if !ok {
		return false
	}
	if old != nil {
		old.Release(t)
	}
	return true
}

// IsReady reports whether the slot shown after the next swap holds
// up-to-date content for this tile. A slot that fails the readiness check
// marks the tile dirty.
func (t *Tile) IsReady() bool {
	t.mu.Lock()
	slot := t.state.next()
	if slot == nil || slot.Owner() != t || t.state.dirty {
		t.mu.Unlock()
		return false
	}
	t.mu.Unlock()

	slot.ConsumerLock()
	ready := slot.ReadyFor(t)
	slot.ConsumerRelease()
	if ready {
		return true
	}

	t.mu.Lock()
	t.state.invalidate()
	t.mu.Unlock()
	return false
}

// Draw puts the front slot on screen through sink. It does nothing if the
// tile has no identity, scale differs from the tile's scale, there is no
// front slot or nothing was ever painted. A front slot that is not ready,
// or holds no pixels, marks the tile dirty instead of drawing. The sink is called without the
// tile lock; its errors are logged and otherwise ignored.
func (t *Tile) Draw(sink DrawSink, transparency float64, rect geom.Rect, scale float64) {
	t.mu.Lock()
	x, y := t.x, t.y
	front := t.state.front
	skip := x < 0 || y < 0 || t.scale != scale || front == nil || !t.state.painted
	painter := t.painter
	t.mu.Unlock()
	if skip {
		return
	}

	info := front.ConsumerLock()
	if info == nil {
		front.ConsumerRelease()
		t.mu.Lock()
		t.state.invalidate()
		t.mu.Unlock()
		return
	}

	var err error
	ready := front.ReadyFor(t)
	if ready {
		if t.layer && painter != nil {
			err = sink.DrawLayerQuad(painter.Transform(), rect, info, transparency, true)
		} else {
			err = sink.DrawQuad(rect, info, transparency)
		}
	}
	front.ConsumerRelease()

	if !ready {
		t.mu.Lock()
		t.state.invalidate()
		t.mu.Unlock()
		return
	}
	if err != nil {
		backingstore.Logger().Warn("tile draw failed", "tile", label(x, y, scale), "slot", front.ID(), "err", err)
	}
}

// DiscardTextures releases both slots and marks the tile dirty.
func (t *Tile) DiscardTextures() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.discardLocked()
}

func (t *Tile) discardLocked() {
	front, back := t.state.discard()
	if front != nil {
		front.Release(t)
	}
	if back != nil {
		back.Release(t)
	}
}

// Close releases every slot the tile holds. A closed tile never paints or
// reserves again.
func (t *Tile) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.discardLocked()
}

// SetRenderer replaces the renderer used by subsequent paints. A paint in
// progress keeps the renderer it started with. Nil selects a renderer that
// draws nothing.
func (t *Tile) SetRenderer(r Renderer) {
	if r == nil {
		r = nopRenderer{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.renderer = r
}

// IsDirty reports whether some content is newer than the front slot.
func (t *Tile) IsDirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.dirty
}

// IsRepaintPending reports the scheduler's advisory flag.
func (t *Tile) IsRepaintPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repaintPending
}

// SetRepaintPending sets the scheduler's advisory flag.
func (t *Tile) SetRepaintPending(pending bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.repaintPending = pending
}

// IsTexturePainted reports whether a paint has ever been committed.
func (t *Tile) IsTexturePainted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.painted
}

// IsSwapNeeded reports whether the back slot is ready to become front.
func (t *Tile) IsSwapNeeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.swapNeeded()
}

// Phase returns the buffering phase.
func (t *Tile) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.phase
}

// X returns the grid column, or -1 before SetContents.
func (t *Tile) X() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.x
}

// Y returns the grid row, or -1 before SetContents.
func (t *Tile) Y() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.y
}

// Scale returns the rendering scale.
func (t *Tile) Scale() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scale
}

// Painter returns the content source, or nil before SetContents.
func (t *Tile) Painter() Painter {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.painter
}

// IsLayer reports whether the tile belongs to a composited layer.
func (t *Tile) IsLayer() bool { return t.layer }

// Size returns the tile dimensions in pixels.
func (t *Tile) Size() image.Point { return image.Pt(t.width, t.height) }

// BufferCount returns the number of dirty regions the tile keeps.
func (t *Tile) BufferCount() int { return t.tracker.Buffers() }

// DirtyIndex returns the buffer the next paint writes into.
func (t *Tile) DirtyIndex() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracker.Index()
}

// DirtyArea returns a copy of buffer i's dirty region.
func (t *Tile) DirtyArea(i int) region.Region {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracker.Dirty(i)
}

// FullRepaint reports whether buffer i requires a full repaint.
func (t *Tile) FullRepaint(i int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracker.FullRepaint(i)
}

// LastDirtyVersion returns the version passed to the last MarkDirty.
func (t *Tile) LastDirtyVersion() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastDirtyVersion
}

// PaintedVersion returns the content version of the last committed paint.
func (t *Tile) PaintedVersion() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paintedVersion
}

// String returns a short description for logging.
func (t *Tile) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.label()
}

// label formats the tile identity. Caller holds t.mu.
func (t *Tile) label() string {
	return label(t.x, t.y, t.scale)
}

func label(x, y int, scale float64) string {
	return fmt.Sprintf("(%d,%d)@%g", x, y, scale)
}
