package texture

import (
	"image"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeOwner records pool notifications.
type fakeOwner struct {
	name     string
	lastUsed atomic.Uint64

	mu      sync.Mutex
	back    *Slot
	removed []*Slot
}

func newFakeOwner(name string, lastUsed uint64) *fakeOwner {
	o := &fakeOwner{name: name}
	o.lastUsed.Store(lastUsed)
	return o
}

func (o *fakeOwner) RemoveTexture(s *Slot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removed = append(o.removed, s)
	if o.back == s {
		o.back = nil
	}
}

func (o *fakeOwner) BackTexture() *Slot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.back
}

func (o *fakeOwner) LastUsedFrame() uint64 { return o.lastUsed.Load() }

func (o *fakeOwner) setBack(s *Slot) {
	o.mu.Lock()
	o.back = s
	o.mu.Unlock()
}

func (o *fakeOwner) removedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.removed)
}

// =============================================================================
// Ownership Tests
// =============================================================================

func TestSlot_New(t *testing.T) {
	s := NewSlot(7, 256, 128, ModeExclusive, NewCPUAllocator())

	if s.ID() != 7 {
		t.Errorf("ID() = %d, want 7", s.ID())
	}
	w, h := s.PixelSize()
	if w != 256 || h != 128 {
		t.Errorf("PixelSize() = %dx%d, want 256x128", w, h)
	}
	if s.Owner() != nil {
		t.Error("new slot should have no owner")
	}
	if s.Busy() {
		t.Error("new slot should not be busy")
	}
	if s.Mode() != ModeExclusive {
		t.Errorf("Mode() = %v, want exclusive", s.Mode())
	}
}

func TestSlot_ClaimRelease(t *testing.T) {
	s := NewSlot(1, 16, 16, ModeExclusive, NewCPUAllocator())
	a := newFakeOwner("a", 0)
	b := newFakeOwner("b", 0)

	s.Claim(a)
	if s.Owner() != a {
		t.Fatal("owner should be a after claim")
	}
	if s.Refs() != 1 {
		t.Errorf("Refs() = %d, want 1", s.Refs())
	}

	if s.Release(b) {
		t.Error("Release by non-owner should fail")
	}
	if s.Owner() != a {
		t.Error("failed release must not change owner")
	}

	if !s.Release(a) {
		t.Error("Release by owner should succeed")
	}
	if s.Owner() != nil || s.Refs() != 0 {
		t.Errorf("after release owner=%v refs=%d, want nil/0", s.Owner(), s.Refs())
	}
	if s.Release(nil) {
		t.Error("Release(nil) should fail")
	}
}

func TestSlot_ReadyFor(t *testing.T) {
	s := NewSlot(1, 16, 16, ModeExclusive, NewCPUAllocator())
	a := newFakeOwner("a", 0)
	b := newFakeOwner("b", 0)

	s.Claim(a)
	if s.ReadyFor(a) {
		t.Error("slot should not be ready before publish")
	}

	info := s.ProducerLock()
	if err := info.Ensure(16, 16); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !s.ProducerReleaseAndPublish(a, 3) {
		t.Fatal("publish by owner should succeed")
	}
	if !s.ReadyFor(a) {
		t.Error("slot should be ready for a after publish")
	}
	if s.Version() != 3 {
		t.Errorf("Version() = %d, want 3", s.Version())
	}
	if s.ReadyFor(b) {
		t.Error("slot must not be ready for a different owner")
	}

	// Reassignment invalidates the published pixels.
	s.Claim(b)
	if s.ReadyFor(b) {
		t.Error("pixels painted for a must not be ready for b")
	}
	if s.ReadyFor(a) {
		t.Error("a no longer owns the slot")
	}
}

func TestSlot_ClaimSameOwnerKeepsPublished(t *testing.T) {
	s := NewSlot(1, 8, 8, ModeExclusive, NewCPUAllocator())
	a := newFakeOwner("a", 0)
	s.Claim(a)
	info := s.ProducerLock()
	if err := info.Ensure(8, 8); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	s.ProducerReleaseAndPublish(a, 1)

	s.Claim(a)
	if !s.ReadyFor(a) {
		t.Error("re-claim by the same owner should keep published pixels")
	}
}

// =============================================================================
// Producer / Consumer Protocol Tests
// =============================================================================

func TestSlot_PublishFailsAfterSteal(t *testing.T) {
	s := NewSlot(1, 16, 16, ModeExclusive, NewCPUAllocator())
	a := newFakeOwner("a", 0)
	b := newFakeOwner("b", 0)
	s.Claim(a)

	info := s.ProducerLock()
	if !s.Busy() {
		t.Error("slot should be busy under producer lock")
	}
	if err := info.Ensure(16, 16); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	// Pool hands the slot to b while a is painting.
	s.Claim(b)

	if s.ProducerReleaseAndPublish(a, 9) {
		t.Error("publish must fail once ownership moved")
	}
	if s.Busy() {
		t.Error("slot should not be busy after release")
	}
	if s.ReadyFor(a) || s.ReadyFor(b) {
		t.Error("no owner should see the aborted paint as ready")
	}
	if s.Version() != 0 {
		t.Errorf("Version() = %d, want 0 after failed publish", s.Version())
	}
}

func TestSlot_ProducerReleaseDoesNotPublish(t *testing.T) {
	s := NewSlot(1, 16, 16, ModeExclusive, NewCPUAllocator())
	a := newFakeOwner("a", 0)
	s.Claim(a)

	s.ProducerLock()
	s.ProducerRelease()

	if s.ReadyFor(a) {
		t.Error("ProducerRelease must not publish")
	}
	if s.Busy() {
		t.Error("slot should not be busy after release")
	}
}

func TestSlot_PublishRequiresPixels(t *testing.T) {
	s := NewSlot(1, 16, 16, ModeExclusive, NewCPUAllocator())
	a := newFakeOwner("a", 0)
	s.Claim(a)

	// The renderer never sized the target.
	s.ProducerLock()
	if s.ProducerReleaseAndPublish(a, 5) {
		t.Error("publish without pixels must fail")
	}
	if s.ReadyFor(a) {
		t.Error("slot without pixels must not be ready")
	}
	if s.Version() != 0 {
		t.Errorf("Version() = %d, want 0", s.Version())
	}
	if s.Busy() {
		t.Error("slot should not be busy after release")
	}
}

func TestSlot_FreeWithdrawsPublish(t *testing.T) {
	s := NewSlot(1, 8, 8, ModeExclusive, NewCPUAllocator())
	a := newFakeOwner("a", 0)
	s.Claim(a)
	info := s.ProducerLock()
	if err := info.Ensure(8, 8); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	s.ProducerReleaseAndPublish(a, 1)

	s.free()
	if s.ReadyFor(a) {
		t.Error("freed slot must not be ready")
	}
	if got := s.ConsumerLock(); got != nil {
		t.Error("freed slot should have no pixels")
	}
	s.ConsumerRelease()
}

func TestSlot_ConsumerLockEmpty(t *testing.T) {
	s := NewSlot(1, 16, 16, ModeExclusive, NewCPUAllocator())

	info := s.ConsumerLock()
	if info != nil {
		t.Error("ConsumerLock should return nil before any allocation")
	}
	s.ConsumerRelease()

	// The read lock must be released: a producer can now proceed.
	s.ProducerLock()
	s.ProducerRelease()
}

func TestSlot_ConsumerSeesPixels(t *testing.T) {
	s := NewSlot(1, 4, 4, ModeExclusive, NewCPUAllocator())
	a := newFakeOwner("a", 0)
	s.Claim(a)

	info := s.ProducerLock()
	if err := info.Ensure(4, 4); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	info.Pixels().Pix[0] = 0xAB
	s.ProducerReleaseAndPublish(a, 1)

	got := s.ConsumerLock()
	defer s.ConsumerRelease()
	if got == nil {
		t.Fatal("ConsumerLock returned nil after paint")
	}
	if got.Pixels().Pix[0] != 0xAB {
		t.Errorf("pixel = %#x, want 0xab", got.Pixels().Pix[0])
	}
	if got.Size() != image.Pt(4, 4) {
		t.Errorf("Size() = %v, want (4,4)", got.Size())
	}
}

func TestInfo_SerialCountsPublishes(t *testing.T) {
	s := NewSlot(1, 4, 4, ModeExclusive, NewCPUAllocator())
	a := newFakeOwner("a", 0)
	b := newFakeOwner("b", 0)
	s.Claim(a)

	info := s.ProducerLock()
	if info.Serial() != 0 {
		t.Errorf("Serial() = %d, want 0 before any publish", info.Serial())
	}
	if err := info.Ensure(4, 4); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	s.ProducerReleaseAndPublish(a, 1)

	info = s.ProducerLock()
	s.ProducerRelease()
	if info.Serial() != 1 {
		t.Errorf("Serial() = %d, want 1 after aborted paint", info.Serial())
	}

	s.Claim(b)
	s.ProducerLock()
	s.ProducerReleaseAndPublish(a, 2)
	if info.Serial() != 1 {
		t.Errorf("Serial() = %d, want 1 after failed publish", info.Serial())
	}

	s.ProducerLock()
	s.ProducerReleaseAndPublish(b, 2)
	if info.Serial() != 2 {
		t.Errorf("Serial() = %d, want 2", info.Serial())
	}
}

func TestSlot_ConcurrentConsumers(t *testing.T) {
	s := NewSlot(1, 4, 4, ModeExclusive, NewCPUAllocator())
	a := newFakeOwner("a", 0)
	s.Claim(a)
	info := s.ProducerLock()
	if err := info.Ensure(4, 4); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	s.ProducerReleaseAndPublish(a, 1)

	var wg sync.WaitGroup
	var seen atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.ConsumerLock() != nil {
				seen.Add(1)
			}
			s.ConsumerRelease()
		}()
	}
	wg.Wait()

	if seen.Load() != 8 {
		t.Errorf("consumers saw pixels %d times, want 8", seen.Load())
	}
}

// =============================================================================
// Info Tests
// =============================================================================

func TestInfo_EnsureReallocates(t *testing.T) {
	s := NewSlot(1, 8, 8, ModeExclusive, NewCPUAllocator())
	info := s.ProducerLock()
	defer s.ProducerRelease()

	if info.Width() != 0 || info.Height() != 0 {
		t.Errorf("size before Ensure = %dx%d, want 0x0", info.Width(), info.Height())
	}
	if err := info.Ensure(8, 8); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	first := info.Pixels()

	if err := info.Ensure(8, 8); err != nil {
		t.Fatalf("Ensure same size: %v", err)
	}
	if info.Pixels() != first {
		t.Error("Ensure with the same size must keep the buffer")
	}

	if err := info.Ensure(16, 4); err != nil {
		t.Fatalf("Ensure resize: %v", err)
	}
	if info.Width() != 16 || info.Height() != 4 {
		t.Errorf("size after resize = %dx%d, want 16x4", info.Width(), info.Height())
	}
}

func TestInfo_EnsureWithoutAllocator(t *testing.T) {
	s := NewSlot(1, 8, 8, ModeExclusive, nil)
	info := s.ProducerLock()
	defer s.ProducerRelease()

	if err := info.Ensure(8, 8); err != ErrNoAllocator {
		t.Errorf("Ensure error = %v, want ErrNoAllocator", err)
	}
}

func TestSlot_String(t *testing.T) {
	s := NewSlot(3, 64, 32, ModeSharedSurface, nil)
	want := "slot#3(64x32 shared-surface)"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
