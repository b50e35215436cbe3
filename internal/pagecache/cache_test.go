package pagecache

import (
	"os"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data")
	f, err := OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := f.Truncate(1 << 20); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	return f
}

func TestLoadHitAndMiss(t *testing.T) {
	c := New(4, 4096)
	f := openTemp(t)
	defer f.Close()

	h, err := c.Load(f, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	copy(h.Bytes(), []byte("hello"))
	c.Release(h, true)

	if err := c.Flush(f); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	h2, err := c.Load(f, 0)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if string(h2.Bytes()[:5]) != "hello" {
		t.Errorf("got %q", h2.Bytes()[:5])
	}
	c.Release(h2, false)
}

func TestEvictionWhenFull(t *testing.T) {
	c := New(2, 4096)
	f := openTemp(t)
	defer f.Close()

	h0, _ := c.Load(f, 0)
	c.Release(h0, false)
	h1, _ := c.Load(f, 4096)
	c.Release(h1, false)
	// both unpinned: loading a third page should evict page 0 (LRU tail).
	h2, err := c.Load(f, 8192)
	if err != nil {
		t.Fatalf("Load third page: %v", err)
	}
	c.Release(h2, false)
}

func TestCacheFullWhenAllPinned(t *testing.T) {
	c := New(1, 4096)
	f := openTemp(t)
	defer f.Close()

	h0, err := c.Load(f, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := c.Load(f, 4096); err == nil {
		t.Fatal("expected kCacheFull when the only slot is pinned")
	}
	c.Release(h0, false)
}

func TestDoubleUnpinPanics(t *testing.T) {
	c := New(2, 4096)
	f := openTemp(t)
	defer f.Close()

	h, _ := c.Load(f, 0)
	c.Release(h, false)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on double-unpin")
		}
	}()
	c.Release(h, false)
}

func TestSwapExchangesOffsets(t *testing.T) {
	c := New(4, 4096)
	f := openTemp(t)
	defer f.Close()

	ha, _ := c.Load(f, 0)
	copy(ha.Bytes(), []byte("AAAA"))
	c.Release(ha, true)

	hb, _ := c.Load(f, 4096)
	copy(hb.Bytes(), []byte("BBBB"))
	c.Release(hb, true)

	ha2, _ := c.Load(f, 0)
	hb2, _ := c.Load(f, 4096)
	c.Swap(ha2, hb2)
	c.Release(ha2, false)
	c.Release(hb2, false)
	if err := c.Flush(f); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	h0, _ := c.Load(f, 0)
	if string(h0.Bytes()[:4]) != "BBBB" {
		t.Errorf("after swap, page 0 = %q, want BBBB", h0.Bytes()[:4])
	}
	c.Release(h0, false)
}
