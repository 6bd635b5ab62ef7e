package tile

import (
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/gogpu/backingstore/geom"
	"github.com/gogpu/backingstore/texture"
)

// =============================================================================
// Test Doubles
// =============================================================================

// testPainter is a comparable Painter.
type testPainter struct {
	name string
	m    geom.Matrix
}

func (p *testPainter) Transform() geom.Matrix { return p.m }

// renderCall is a copy of one RenderTile invocation.
type renderCall struct {
	x, y        int
	scale       float64
	inval       image.Rectangle
	measurePerf bool
	painter     Painter
}

// recordingRenderer sizes the target, records each call and returns an
// increasing version. during, if set, runs inside the render call.
type recordingRenderer struct {
	mu      sync.Mutex
	calls   []renderCall
	version uint32
	during  func(info *RenderInfo)
}

func (r *recordingRenderer) RenderTile(info *RenderInfo) uint32 {
	if err := info.Target.Ensure(info.TileSize.X, info.TileSize.Y); err != nil {
		panic(err)
	}
	r.mu.Lock()
	r.calls = append(r.calls, renderCall{
		x:           info.X,
		y:           info.Y,
		scale:       info.Scale,
		inval:       info.Inval,
		measurePerf: info.MeasurePerf,
		painter:     info.Painter,
	})
	r.version++
	v := r.version
	hook := r.during
	r.mu.Unlock()

	if hook != nil {
		hook(info)
	}
	return v
}

func (r *recordingRenderer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recordingRenderer) lastCall() renderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func (r *recordingRenderer) setDuring(fn func(info *RenderInfo)) {
	r.mu.Lock()
	r.during = fn
	r.mu.Unlock()
}

// quadCall records one draw sink call.
type quadCall struct {
	layer        bool
	m            geom.Matrix
	rect         geom.Rect
	transparency float64
	slot         uint64
}

// recordingSink records quads. err, if set, is returned from every call.
type recordingSink struct {
	mu    sync.Mutex
	quads []quadCall
	err   error
}

func (s *recordingSink) DrawQuad(rect geom.Rect, tex *texture.Info, transparency float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quads = append(s.quads, quadCall{rect: rect, transparency: transparency, slot: tex.SlotID})
	return s.err
}

func (s *recordingSink) DrawLayerQuad(m geom.Matrix, rect geom.Rect, tex *texture.Info, transparency float64, isLayer bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quads = append(s.quads, quadCall{layer: isLayer, m: m, rect: rect, transparency: transparency, slot: tex.SlotID})
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.quads)
}

var errSink = errors.New("sink failure")

// otherOwner stands in for a different tile.
type otherOwner struct{}

func (otherOwner) RemoveTexture(*texture.Slot) {}
func (otherOwner) BackTexture() *texture.Slot  { return nil }
func (otherOwner) LastUsedFrame() uint64       { return 0 }

// =============================================================================
// Helpers
// =============================================================================

func newTestPool(t *testing.T, count int, opts ...texture.PoolOption) *texture.Pool {
	t.Helper()
	p, err := texture.NewPool(count, opts...)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// paintedTile returns a tile at (x, y) that completed one full paint and
// one swap, so its front slot holds published content.
func paintedTile(t *testing.T, pool *texture.Pool, x, y int, opts ...Option) (*Tile, *recordingRenderer) {
	t.Helper()
	r := &recordingRenderer{}
	tl := New(pool, append([]Option{WithRenderer(r)}, opts...)...)
	tl.SetContents(&testPainter{name: "page"}, x, y, 1)
	if !tl.ReserveTexture() {
		t.Fatal("ReserveTexture failed")
	}
	if !tl.Paint() {
		t.Fatal("initial Paint failed")
	}
	if !tl.SwapIfReady() {
		t.Fatal("initial SwapIfReady failed")
	}
	return tl, r
}
