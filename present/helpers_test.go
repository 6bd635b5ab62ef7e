package present

import (
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/backingstore/texture"
)

// stubOwner is a texture.Owner that never gives slots back.
type stubOwner struct{ _ byte }

func (*stubOwner) RemoveTexture(*texture.Slot) {}
func (*stubOwner) BackTexture() *texture.Slot  { return nil }
func (*stubOwner) LastUsedFrame() uint64       { return 0 }

// paintedSlot returns a published slot filled with c.
func paintedSlot(t *testing.T, id uint64, w, h int, c color.RGBA) (*texture.Slot, *stubOwner) {
	t.Helper()
	return paintedSlotWith(t, texture.NewCPUAllocator(), id, w, h, c)
}

// paintedSlotWith is paintedSlot backed by alloc.
func paintedSlotWith(t *testing.T, alloc texture.Allocator, id uint64, w, h int, c color.RGBA) (*texture.Slot, *stubOwner) {
	t.Helper()
	s := texture.NewSlot(id, w, h, texture.ModeExclusive, alloc)
	o := &stubOwner{}
	s.Claim(o)
	repaint(t, s, o, c)
	return s, o
}

func repaint(t *testing.T, s *texture.Slot, o *stubOwner, c color.RGBA) {
	t.Helper()
	info := s.ProducerLock()
	w, h := s.PixelSize()
	if err := info.Ensure(w, h); err != nil {
		s.ProducerRelease()
		t.Fatalf("Ensure: %v", err)
	}
	px := info.Pixels()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px.SetRGBA(x, y, c)
		}
	}
	if !s.ProducerReleaseAndPublish(o, s.Version()+1) {
		t.Fatal("publish failed")
	}
}

// withInfo runs fn under the slot's consumer lock.
func withInfo(t *testing.T, s *texture.Slot, fn func(*texture.Info)) {
	t.Helper()
	info := s.ConsumerLock()
	defer s.ConsumerRelease()
	if info == nil {
		t.Fatal("slot has no pixels")
	}
	fn(info)
}

func near(a, b uint8) bool {
	d := int(a) - int(b)
	return d >= -1 && d <= 1
}

func rgbaAt(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}
