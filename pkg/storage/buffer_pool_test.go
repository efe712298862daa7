package storage

import "testing"

func TestBufferPoolCachesAndEvicts(t *testing.T) {
	backend := NewMemory()
	pool := NewBufferPool(2, backend)

	p0, err := pool.GetPage(0)
	if err != nil {
		t.Fatalf("GetPage(0): %v", err)
	}
	copy(p0.Data(), []byte("page zero"))
	p0.SetDirty(true)
	pool.Unpin(p0)

	p1, err := pool.GetPage(1)
	if err != nil {
		t.Fatalf("GetPage(1): %v", err)
	}
	pool.Unpin(p1)

	if pool.PageCount() != 2 {
		t.Fatalf("PageCount = %d, want 2", pool.PageCount())
	}

	// A third distinct page forces eviction of the capacity-2 pool; the
	// dirty page (0) must be flushed to the backend before being dropped.
	p2, err := pool.GetPage(2)
	if err != nil {
		t.Fatalf("GetPage(2): %v", err)
	}
	pool.Unpin(p2)

	if pool.PageCount() != 2 {
		t.Fatalf("PageCount after eviction = %d, want 2", pool.PageCount())
	}

	reloaded, err := pool.GetPage(0)
	if err != nil {
		t.Fatalf("GetPage(0) after eviction: %v", err)
	}
	defer pool.Unpin(reloaded)
	if string(reloaded.Data()[:9]) != "page zero" {
		t.Fatalf("reloaded page 0 = %q, want dirty write to have been flushed first", reloaded.Data()[:9])
	}
}

func TestBufferPoolPinnedPageSurvivesEviction(t *testing.T) {
	backend := NewMemory()
	pool := NewBufferPool(1, backend)

	pinned, err := pool.GetPage(0) // stays pinned: never Unpin'd
	if err != nil {
		t.Fatalf("GetPage(0): %v", err)
	}
	_ = pinned

	if _, err := pool.GetPage(1); err != ErrBufferFull {
		t.Fatalf("GetPage(1) err = %v, want ErrBufferFull (only page is pinned)", err)
	}
}

func TestBufferPoolReadsZeroFilledBeyondBackend(t *testing.T) {
	backend := NewMemory()
	pool := NewBufferPool(4, backend)

	page, err := pool.GetPage(3)
	if err != nil {
		t.Fatalf("GetPage(3): %v", err)
	}
	defer pool.Unpin(page)

	for i, b := range page.Data() {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0 (page beyond empty backend)", i, b)
		}
	}
}
