package rewiring

import "testing"

func newTestPool(t *testing.T, userExtents, initialExtents int) (*RewiredMemory, *Pool) {
	t.Helper()
	r, err := New(1, testPageSize, initialExtents, int64(256)*int64(testPageSize), false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p, err := NewPool(r, userExtents)
	if err != nil {
		r.Close()
		t.Fatalf("NewPool: %v", err)
	}
	return r, p
}

func TestPoolAcquireGrowsWhenEmpty(t *testing.T) {
	r, p := newTestPool(t, 2, 2) // no buffers at all initially
	defer r.Close()

	if p.FreeBuffers() != 0 {
		t.Fatalf("FreeBuffers() = %d, want 0", p.FreeBuffers())
	}

	s, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if s.Addr() == 0 {
		t.Fatal("Acquire returned zero address")
	}
	// Growth policy is max(4, total_buffers/2); total_buffers was 0, so
	// exactly 4 extents should have been added, one of which is now used.
	if p.FreeBuffers() != 3 {
		t.Fatalf("FreeBuffers() = %d, want 3", p.FreeBuffers())
	}
}

func TestSwapAndReleaseRequiresExactlyOneBuffer(t *testing.T) {
	r, p := newTestPool(t, 2, 4)
	defer r.Close()

	userA := r.ExtentAddress(0)
	userB := r.ExtentAddress(1)
	if err := p.SwapAndRelease(userA, userB); err == nil {
		t.Fatal("expected BufferZoneError when neither address is a buffer")
	}

	s, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	bufA := s.Addr()
	bufB, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := p.SwapAndRelease(bufA, bufB.Addr()); err == nil {
		t.Fatal("expected BufferZoneError when both addresses are buffers")
	}
	bufB.Abandon()
	s.Abandon()
}

func TestScratchSwapIntoReleasesBuffer(t *testing.T) {
	r, p := newTestPool(t, 2, 4)
	defer r.Close()

	before := p.FreeBuffers()
	s, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	dest := r.ExtentAddress(0)
	if err := s.SwapInto(dest); err != nil {
		t.Fatalf("SwapInto: %v", err)
	}
	if p.FreeBuffers() != before {
		t.Fatalf("FreeBuffers() = %d, want %d after release", p.FreeBuffers(), before)
	}
}

func TestExtendRejectsWhileBuffersOutstanding(t *testing.T) {
	r, p := newTestPool(t, 2, 4)
	defer r.Close()

	if _, err := p.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := p.Extend(3); err == nil {
		t.Fatal("expected error extending pool with outstanding scratch buffers")
	}
}

func TestShrinkPromotesUserExtentsToBuffers(t *testing.T) {
	r, p := newTestPool(t, 4, 4)
	defer r.Close()

	if err := p.Shrink(2); err != nil {
		t.Fatalf("Shrink: %v", err)
	}
	if p.FreeBuffers() != 2 {
		t.Fatalf("FreeBuffers() = %d, want 2", p.FreeBuffers())
	}
}
