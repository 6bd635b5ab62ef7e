package present

import (
	"errors"
	"image/color"
	"sync"
	"testing"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/backingstore/geom"
	"github.com/gogpu/backingstore/texture"
)

// hostTexture is a host-side texture double.
type hostTexture struct {
	w, h          int
	data          []byte
	updates       int
	destroyed     bool
	premultiplied bool
}

func (h *hostTexture) Width() int  { return h.w }
func (h *hostTexture) Height() int { return h.h }

func (h *hostTexture) UpdateData(data []byte) error {
	h.data = append(h.data[:0], data...)
	h.updates++
	return nil
}

func (h *hostTexture) Destroy()                { h.destroyed = true }
func (h *hostTexture) SetPremultiplied(v bool) { h.premultiplied = v }

// hostCreator records created textures.
type hostCreator struct {
	created []*hostTexture
	err     error
}

func (c *hostCreator) NewTextureFromRGBA(width, height int, data []byte) (gpucontext.Texture, error) {
	if c.err != nil {
		return nil, c.err
	}
	tex := &hostTexture{w: width, h: height, data: append([]byte(nil), data...)}
	c.created = append(c.created, tex)
	return tex, nil
}

type drawCall struct {
	tex  gpucontext.Texture
	x, y float32
}

// hostDrawer implements gpucontext.TextureDrawer.
type hostDrawer struct {
	mu      sync.Mutex
	creator *hostCreator
	noCreat bool
	draws   []drawCall
	err     error
}

func (d *hostDrawer) DrawTexture(tex gpucontext.Texture, x, y float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws = append(d.draws, drawCall{tex, x, y})
	return d.err
}

func (d *hostDrawer) TextureCreator() gpucontext.TextureCreator {
	if d.noCreat {
		return nil
	}
	return d.creator
}

func newHostDrawer() *hostDrawer {
	return &hostDrawer{creator: &hostCreator{}}
}

// =============================================================================
// TextureSink Tests
// =============================================================================

func TestNewTextureSink_NilDrawer(t *testing.T) {
	if _, err := NewTextureSink(nil); !errors.Is(err, ErrNilDrawer) {
		t.Errorf("err = %v, want ErrNilDrawer", err)
	}
}

func TestTextureSink_CreatesOnFirstDraw(t *testing.T) {
	d := newHostDrawer()
	sink, _ := NewTextureSink(d)
	s, _ := paintedSlot(t, 3, 4, 4, red)

	withInfo(t, s, func(info *texture.Info) {
		if err := sink.DrawQuad(geom.NewRect(8, 12, 4, 4), info, 1); err != nil {
			t.Fatalf("DrawQuad: %v", err)
		}
	})

	if len(d.creator.created) != 1 {
		t.Fatalf("created %d textures, want 1", len(d.creator.created))
	}
	host := d.creator.created[0]
	if host.w != 4 || host.h != 4 {
		t.Errorf("host size = %dx%d, want 4x4", host.w, host.h)
	}
	if !host.premultiplied {
		t.Error("host texture should be marked premultiplied")
	}
	if host.data[0] != 255 || host.data[3] != 255 {
		t.Errorf("host pixel = %v, want opaque red", host.data[:4])
	}
	if len(d.draws) != 1 || d.draws[0].x != 8 || d.draws[0].y != 12 {
		t.Errorf("draws = %+v, want one at (8,12)", d.draws)
	}
	if sink.Uploads() != 1 {
		t.Errorf("Uploads() = %d, want 1", sink.Uploads())
	}
}

func TestTextureSink_SkipsUnchangedSlot(t *testing.T) {
	d := newHostDrawer()
	sink, _ := NewTextureSink(d)
	s, _ := paintedSlot(t, 3, 4, 4, red)

	for range 3 {
		withInfo(t, s, func(info *texture.Info) {
			if err := sink.DrawQuad(geom.NewRect(0, 0, 4, 4), info, 1); err != nil {
				t.Fatalf("DrawQuad: %v", err)
			}
		})
	}

	if sink.Uploads() != 1 {
		t.Errorf("Uploads() = %d, want 1", sink.Uploads())
	}
	if len(d.draws) != 3 {
		t.Errorf("draws = %d, want 3", len(d.draws))
	}
}

func TestTextureSink_UpdatesRepublishedSlot(t *testing.T) {
	d := newHostDrawer()
	sink, _ := NewTextureSink(d)
	s, o := paintedSlot(t, 3, 4, 4, red)
	draw := func() {
		withInfo(t, s, func(info *texture.Info) {
			if err := sink.DrawQuad(geom.NewRect(0, 0, 4, 4), info, 1); err != nil {
				t.Fatalf("DrawQuad: %v", err)
			}
		})
	}

	draw()
	repaint(t, s, o, color.RGBA{G: 255, A: 255})
	draw()

	if len(d.creator.created) != 1 {
		t.Fatalf("created %d textures, want 1", len(d.creator.created))
	}
	host := d.creator.created[0]
	if host.updates != 1 {
		t.Errorf("updates = %d, want 1", host.updates)
	}
	if host.data[1] != 255 {
		t.Errorf("host pixel = %v, want green", host.data[:4])
	}
	if sink.Uploads() != 2 {
		t.Errorf("Uploads() = %d, want 2", sink.Uploads())
	}
}

func TestTextureSink_Errors(t *testing.T) {
	tests := []struct {
		name   string
		drawer *hostDrawer
		info   func(*texture.Slot) *texture.Info
		want   error
	}{
		{
			name:   "no pixels",
			drawer: newHostDrawer(),
			info:   func(*texture.Slot) *texture.Info { return &texture.Info{SlotID: 1} },
			want:   ErrNoPixels,
		},
		{
			name:   "no creator",
			drawer: &hostDrawer{noCreat: true},
			want:   ErrNoCreator,
		},
		{
			name:   "create fails",
			drawer: &hostDrawer{creator: &hostCreator{err: errors.New("out of memory")}},
		},
		{
			name:   "draw fails",
			drawer: &hostDrawer{creator: &hostCreator{}, err: errors.New("lost device")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, _ := NewTextureSink(tt.drawer)
			s, _ := paintedSlot(t, 1, 4, 4, red)

			var err error
			if tt.info != nil {
				err = sink.DrawQuad(geom.NewRect(0, 0, 4, 4), tt.info(s), 1)
			} else {
				withInfo(t, s, func(info *texture.Info) {
					err = sink.DrawQuad(geom.NewRect(0, 0, 4, 4), info, 1)
				})
			}
			if err == nil {
				t.Fatal("DrawQuad should fail")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTextureSink_DrawLayerQuad(t *testing.T) {
	d := newHostDrawer()
	sink, _ := NewTextureSink(d)
	s, _ := paintedSlot(t, 1, 4, 4, red)

	withInfo(t, s, func(info *texture.Info) {
		err := sink.DrawLayerQuad(geom.Translate(5, 6), geom.NewRect(1, 1, 4, 4), info, 1, true)
		if err != nil {
			t.Fatalf("DrawLayerQuad: %v", err)
		}
	})

	if len(d.draws) != 1 || d.draws[0].x != 6 || d.draws[0].y != 7 {
		t.Errorf("draws = %+v, want one at (6,7)", d.draws)
	}
}

func TestTextureSink_ForgetAndClose(t *testing.T) {
	d := newHostDrawer()
	sink, _ := NewTextureSink(d)
	a, _ := paintedSlot(t, 1, 4, 4, red)
	b, _ := paintedSlot(t, 2, 4, 4, red)
	for _, s := range []*texture.Slot{a, b} {
		withInfo(t, s, func(info *texture.Info) {
			if err := sink.DrawQuad(geom.NewRect(0, 0, 4, 4), info, 1); err != nil {
				t.Fatalf("DrawQuad: %v", err)
			}
		})
	}

	sink.Forget(1)
	if !d.creator.created[0].destroyed {
		t.Error("Forget should destroy the host texture")
	}
	if d.creator.created[1].destroyed {
		t.Error("Forget destroyed the wrong texture")
	}

	sink.Close()
	if !d.creator.created[1].destroyed {
		t.Error("Close should destroy remaining textures")
	}
}
