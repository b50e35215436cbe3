package pagecache

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"

	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
)

const nilSlot = -1

// slot is one cache-resident page. Slots live in a flat arena; the hash
// table and LRU list both reference slots by index, never by pointer, so
// eviction never has to chase an owning pointer (spec.md §9 design note).
type slot struct {
	fileID uint32
	page   uint32
	data   []byte

	refcount int32
	dirty    bool
	valid    bool

	lruPrev, lruNext int32
	bucketNext       int32
}

// Cache is a page cache shared by every file loaded through it: a fixed
// page count C and page size P (spec.md §4.B), LRU eviction, refcounted
// pinning.
type Cache struct {
	mu sync.Mutex

	pageSize int
	slots    []slot
	buckets  []int32 // bucket head slot index, nilSlot if empty
	free     []int32 // unallocated slot indices

	lruHead, lruTail int32 // most- / least-recently-used slot index

	files map[uint32]*File
}

// New creates a cache with capacity pages of size pageSize bytes.
func New(capacity, pageSize int) *Cache {
	c := &Cache{
		pageSize: pageSize,
		slots:    make([]slot, capacity),
		buckets:  make([]int32, nextPow2(capacity*2)),
		lruHead:  nilSlot,
		lruTail:  nilSlot,
		files:    make(map[uint32]*File),
	}
	for i := range c.buckets {
		c.buckets[i] = nilSlot
	}
	for i := capacity - 1; i >= 0; i-- {
		c.free = append(c.free, int32(i))
	}
	return c
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	if p < 16 {
		p = 16
	}
	return p
}

// Register associates a File with the cache so callers can address
// pages purely by (file, offset) without re-passing the *File.
func (c *Cache) Register(f *File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[f.ID()] = f
}

func (c *Cache) Unregister(fileID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, fileID)
}

func hashKey(fileID, page uint32) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint32(b[0:4], fileID)
	binary.LittleEndian.PutUint32(b[4:8], page)
	return xxhash.Sum64(b[:])
}

func (c *Cache) bucketIndex(fileID, page uint32) int {
	return int(hashKey(fileID, page) & uint64(len(c.buckets)-1))
}

func (c *Cache) findSlot(fileID, page uint32) int32 {
	b := c.bucketIndex(fileID, page)
	i := c.buckets[b]
	for i != nilSlot {
		s := &c.slots[i]
		if s.valid && s.fileID == fileID && s.page == page {
			return i
		}
		i = s.bucketNext
	}
	return nilSlot
}

func (c *Cache) insertBucket(idx int32) {
	s := &c.slots[idx]
	b := c.bucketIndex(s.fileID, s.page)
	s.bucketNext = c.buckets[b]
	c.buckets[b] = idx
}

func (c *Cache) removeBucket(idx int32) {
	s := &c.slots[idx]
	b := c.bucketIndex(s.fileID, s.page)
	cur := c.buckets[b]
	if cur == idx {
		c.buckets[b] = s.bucketNext
		return
	}
	for cur != nilSlot {
		n := &c.slots[cur]
		if n.bucketNext == idx {
			n.bucketNext = s.bucketNext
			return
		}
		cur = n.bucketNext
	}
}

func (c *Cache) lruUnlink(idx int32) {
	s := &c.slots[idx]
	if s.lruPrev != nilSlot {
		c.slots[s.lruPrev].lruNext = s.lruNext
	} else {
		c.lruHead = s.lruNext
	}
	if s.lruNext != nilSlot {
		c.slots[s.lruNext].lruPrev = s.lruPrev
	} else {
		c.lruTail = s.lruPrev
	}
	s.lruPrev, s.lruNext = nilSlot, nilSlot
}

func (c *Cache) lruPushFront(idx int32) {
	s := &c.slots[idx]
	s.lruPrev = nilSlot
	s.lruNext = c.lruHead
	if c.lruHead != nilSlot {
		c.slots[c.lruHead].lruPrev = idx
	}
	c.lruHead = idx
	if c.lruTail == nilSlot {
		c.lruTail = idx
	}
}

func (c *Cache) touchLRU(idx int32) {
	c.lruUnlink(idx)
	c.lruPushFront(idx)
}

// evictOne returns a free slot index, evicting the LRU-tail unpinned slot
// and writing it back first if dirty. Returns kCacheFull if every slot is
// pinned.
func (c *Cache) evictOne() (int32, error) {
	if len(c.free) > 0 {
		idx := c.free[len(c.free)-1]
		c.free = c.free[:len(c.free)-1]
		return idx, nil
	}
	idx := c.lruTail
	for idx != nilSlot && c.slots[idx].refcount > 0 {
		idx = c.slots[idx].lruPrev
	}
	if idx == nilSlot {
		return nilSlot, mrserrors.NewCacheFullError("pagecache.Cache.evictOne")
	}
	s := &c.slots[idx]
	if s.dirty {
		if err := c.writeBack(s); err != nil {
			return nilSlot, err
		}
	}
	c.removeBucket(idx)
	c.lruUnlink(idx)
	s.valid = false
	return idx, nil
}

func (c *Cache) writeBack(s *slot) error {
	f, ok := c.files[s.fileID]
	if !ok {
		return mrserrors.NewCorruptError("pagecache.writeBack", nil).WithContext("fileID", itoa(s.fileID))
	}
	if err := f.WriteAt(s.data, int64(s.page)*int64(c.pageSize)); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Handle is the pinned-page handle returned by Load.
type Handle struct {
	c    *Cache
	slot int32
}

func (h Handle) Bytes() []byte { return h.c.slots[h.slot].data }
func (h Handle) Page() uint32  { return h.c.slots[h.slot].page }

// Load pins and returns the page at offset in file, reading it from
// disk on a cache miss (spec.md §4.B Load). A page that starts at or
// past the file's end is returned zero-filled; it reaches disk when it
// is written back.
func (c *Cache) Load(f *File, offset int64) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	page := uint32(offset / int64(c.pageSize))
	if _, ok := c.files[f.ID()]; !ok {
		c.files[f.ID()] = f
	}

	if idx := c.findSlot(f.ID(), page); idx != nilSlot {
		s := &c.slots[idx]
		s.refcount++
		c.touchLRU(idx)
		return Handle{c: c, slot: idx}, nil
	}

	idx, err := c.evictOne()
	if err != nil {
		return Handle{}, err
	}
	s := &c.slots[idx]
	if cap(s.data) < c.pageSize {
		s.data = make([]byte, c.pageSize)
	} else {
		s.data = s.data[:c.pageSize]
	}
	off := int64(page) * int64(c.pageSize)
	if err := f.ReadAt(s.data, off); err != nil {
		size, serr := f.Size()
		if serr != nil || off < size {
			c.free = append(c.free, idx)
			return Handle{}, err
		}
		clear(s.data)
	}
	s.fileID = f.ID()
	s.page = page
	s.refcount = 1
	s.dirty = false
	s.valid = true
	c.insertBucket(idx)
	c.lruPushFront(idx)
	return Handle{c: c, slot: idx}, nil
}

// Reference increments the pin count without re-reading the page.
func (c *Cache) Reference(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[h.slot].refcount++
}

// Release decrements the pin count; dirty marks the page as modified.
// Double-unpin (refcount already 0) is a programming error and panics,
// per spec.md §4.B "Double-unpin is fatal."
func (c *Cache) Release(h Handle, dirty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &c.slots[h.slot]
	if s.refcount <= 0 {
		panic("pagecache: double-unpin")
	}
	if dirty {
		s.dirty = true
	}
	s.refcount--
}

// Touch marks a pinned page dirty without releasing it.
func (c *Cache) Touch(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[h.slot].dirty = true
}

// Swap exchanges the on-disk offsets of two slots of the same file, used
// by vacuum to make a rewritten tree's pages land at stable page numbers.
func (c *Cache) Swap(a, b Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sa, sb := &c.slots[a.slot], &c.slots[b.slot]
	c.removeBucket(a.slot)
	c.removeBucket(b.slot)
	sa.page, sb.page = sb.page, sa.page
	sa.dirty, sb.dirty = true, true
	c.insertBucket(a.slot)
	c.insertBucket(b.slot)
}

// Flush writes back every dirty slot belonging to file.
func (c *Cache) Flush(f *File) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		s := &c.slots[i]
		if s.valid && s.fileID == f.ID() && s.dirty {
			if err := c.writeBack(s); err != nil {
				return err
			}
		}
	}
	return f.Sync()
}

// Purge evicts every slot belonging to file; all must be unpinned.
func (c *Cache) Purge(f *File) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		s := &c.slots[i]
		if !s.valid || s.fileID != f.ID() {
			continue
		}
		if s.refcount > 0 {
			return mrserrors.NewUnsupportedError("pagecache.Cache.Purge: pinned page")
		}
		if s.dirty {
			if err := c.writeBack(s); err != nil {
				return err
			}
		}
		idx := int32(i)
		c.removeBucket(idx)
		c.lruUnlink(idx)
		s.valid = false
		c.free = append(c.free, idx)
	}
	return nil
}

// Truncate evicts every slot of file at or beyond size.
func (c *Cache) Truncate(f *File, size int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := uint32(size / int64(c.pageSize))
	for i := range c.slots {
		s := &c.slots[i]
		if !s.valid || s.fileID != f.ID() || s.page < cutoff {
			continue
		}
		idx := int32(i)
		c.removeBucket(idx)
		c.lruUnlink(idx)
		s.valid = false
		c.free = append(c.free, idx)
	}
	return f.Truncate(size)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
