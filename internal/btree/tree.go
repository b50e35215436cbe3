// Package btree implements the generic prefix-friendly B+-tree of
// spec.md §4.E, parameterized by a Comparator and a fixed-width value
// payload. The nine index-variant combinations of spec.md §3 collapse to
// this one generic type plus the weighted/IDL specializations layered on
// top in the postings and indexer packages (spec.md §9 design note).
package btree

import (
	"encoding/binary"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/mrsdb/internal/pagecache"

	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
)

const magic = 0x4d365442 // "M6TB"

// Mode records whether the tree backs a unique or a multi index. Insert
// rejects a duplicate key in either mode; a multi index's caller (e.g.
// the indexer) merges all payloads for one key before inserting it once.
type Mode int

const (
	ModeUnique Mode = iota
	ModeMulti
)

// Tree is a B+-tree over byte-string keys with a fixed-size value
// payload of type V.
type Tree[V any] struct {
	cache    *pagecache.Cache
	file     *pagecache.File
	cmp      Comparator
	mode     Mode
	codec    ValueCodec[V]
	pageSize int

	root      uint32
	nextPage  uint32
	batchMode bool

	// batch-mode builder state
	builder *batchState[V]
}

// ValueCodec encodes/decodes the fixed-size leaf payload.
type ValueCodec[V any] interface {
	Size() int
	Encode(v V) []byte
	Decode(b []byte) V
}

// Open loads an existing tree file, or Create initializes a new one.
func Create[V any](cache *pagecache.Cache, file *pagecache.File, cmp Comparator, mode Mode, codec ValueCodec[V], pageSize int) (*Tree[V], error) {
	t := &Tree[V]{cache: cache, file: file, cmp: cmp, mode: mode, codec: codec, pageSize: pageSize, nextPage: 1}
	if err := t.writeHeader(); err != nil {
		return nil, err
	}
	cache.Register(file)
	return t, nil
}

func Open[V any](cache *pagecache.Cache, file *pagecache.File, cmp Comparator, mode Mode, codec ValueCodec[V], pageSize int) (*Tree[V], error) {
	t := &Tree[V]{cache: cache, file: file, cmp: cmp, mode: mode, codec: codec, pageSize: pageSize}
	cache.Register(file)
	h, err := cache.Load(file, 0)
	if err != nil {
		return nil, err
	}
	defer cache.Release(h, false)
	buf := h.Bytes()
	if binary.LittleEndian.Uint32(buf[0:4]) != magic {
		return nil, mrserrors.NewCorruptError("btree.Open", errCorruptPage).WithContext("path", file.Path())
	}
	t.root = binary.LittleEndian.Uint32(buf[4:8])
	t.nextPage = binary.LittleEndian.Uint32(buf[8:12])
	return t, nil
}

func (t *Tree[V]) writeHeader() error {
	h, err := t.cache.Load(t.file, 0)
	if err != nil {
		return err
	}
	buf := h.Bytes()
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], t.root)
	binary.LittleEndian.PutUint32(buf[8:12], t.nextPage)
	t.cache.Release(h, true)
	return nil
}

func (t *Tree[V]) allocPage() uint32 {
	p := t.nextPage
	t.nextPage++
	return p
}

func (t *Tree[V]) loadNode(page uint32) (*node, error) {
	h, err := t.cache.Load(t.file, int64(page)*int64(t.pageSize))
	if err != nil {
		return nil, err
	}
	defer t.cache.Release(h, false)
	return decodeNode(h.Bytes(), page, t.codec.Size()), nil
}

func (t *Tree[V]) storeNode(n *node) error {
	h, err := t.cache.Load(t.file, int64(n.page)*int64(t.pageSize))
	if err != nil {
		return err
	}
	copy(h.Bytes(), encodeNode(n, t.pageSize))
	t.cache.Release(h, true)
	return nil
}

// RootPage exposes the current root page number (for header inspection
// and tests); it is not part of the external query surface.
func (t *Tree[V]) RootPage() uint32 { return t.root }

// entryBudget is the usable byte budget per leaf/branch before a split is
// triggered, leaving headroom below pageSize for the fixed 16-byte header.
func (t *Tree[V]) entryBudget() int { return t.pageSize - 16 }

// Find returns the value stored under key, if any.
func (t *Tree[V]) Find(key []byte) (V, bool, error) {
	var zero V
	if t.root == 0 {
		return zero, false, nil
	}
	n, err := t.descendToLeaf(key)
	if err != nil {
		return zero, false, err
	}
	i := t.search(n, key)
	if i < len(n.keys) && t.cmp.Compare(n.keys[i], key) == 0 {
		return t.codec.Decode(n.values[i]), true, nil
	}
	return zero, false, nil
}

func (t *Tree[V]) Contains(key []byte) (bool, error) {
	_, ok, err := t.Find(key)
	return ok, err
}

// search returns the index of the first key >= target in n (leaf or
// branch separator array).
func (t *Tree[V]) search(n *node, target []byte) int {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if t.cmp.Compare(n.keys[mid], target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (t *Tree[V]) descendToLeaf(key []byte) (*node, error) {
	page := t.root
	for {
		n, err := t.loadNode(page)
		if err != nil {
			return nil, err
		}
		if n.isLeaf {
			return n, nil
		}
		page = t.childFor(n, key)
	}
}

// childFor returns the child page whose key range contains key: the
// rightmost child ci such that keys[i] <= key, or the leftmost child if
// key is below every separator (spec.md §3 B+-tree branch invariant).
func (t *Tree[V]) childFor(n *node, key []byte) uint32 {
	idx := 0
	for idx < len(n.keys) && t.cmp.Compare(n.keys[idx], key) <= 0 {
		idx++
	}
	if idx == 0 {
		return n.left
	}
	return childPage(n.values[idx-1])
}

// Op is a range comparator for single-key range queries.
type Op int

const (
	OpEQ Op = iota
	OpLT
	OpLE
	OpGT
	OpGE
)

// FindOp walks the leaf level to find all docs matching key under op,
// invoking emit for each matching value (spec.md §4.E
// "find(key, op, bitmap, &count)").
func (t *Tree[V]) FindOp(key []byte, op Op, emit func(V)) error {
	switch op {
	case OpEQ:
		v, ok, err := t.Find(key)
		if err != nil {
			return err
		}
		if ok {
			emit(v)
		}
		return nil
	case OpLT, OpLE:
		return t.scanFrom(nil, func(k []byte, v V) bool {
			c := t.cmp.Compare(k, key)
			if c < 0 || (op == OpLE && c == 0) {
				emit(v)
				return true
			}
			return false
		})
	case OpGT, OpGE:
		return t.scanFrom(key, func(k []byte, v V) bool {
			c := t.cmp.Compare(k, key)
			if c > 0 || (op == OpGE && c >= 0) {
				emit(v)
			}
			return true
		})
	}
	return nil
}

// FindRange emits every value with lo <= key <= hi: both bounds are
// inclusive, so the range [2000,2005] includes keys equal to either end.
func (t *Tree[V]) FindRange(lo, hi []byte, emit func(V)) error {
	return t.scanFrom(lo, func(k []byte, v V) bool {
		if t.cmp.Compare(k, lo) < 0 {
			return true
		}
		if t.cmp.Compare(k, hi) > 0 {
			return false
		}
		emit(v)
		return true
	})
}

// FindPattern matches a glob pattern (`*`, `?`) against keys, pruning by
// the literal prefix before the first wildcard and then leaf-scanning the
// remaining candidates through doublestar.Match (spec.md §4.E
// "find_pattern").
func (t *Tree[V]) FindPattern(pattern string, emit func(V)) error {
	prefix := literalPrefix(pattern)
	var start []byte
	if prefix != "" {
		start = []byte(prefix)
	}
	return t.scanFrom(start, func(k []byte, v V) bool {
		if prefix != "" && !hasPrefix(k, prefix) {
			return false
		}
		ok, err := doublestar.Match(pattern, string(k))
		if err == nil && ok {
			emit(v)
		}
		return true
	})
}

func hasPrefix(k []byte, prefix string) bool {
	if len(k) < len(prefix) {
		return false
	}
	return string(k[:len(prefix)]) == prefix
}

func literalPrefix(pattern string) string {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '*' || pattern[i] == '?' || pattern[i] == '[' {
			return pattern[:i]
		}
	}
	return pattern
}

// scanFrom walks the leaf linked list starting at the leaf containing
// from (or the first leaf if from is nil), calling visit(key,value) for
// every entry until it returns false.
func (t *Tree[V]) scanFrom(from []byte, visit func(k []byte, v V) bool) error {
	if t.root == 0 {
		return nil
	}
	var n *node
	var err error
	if from == nil {
		n, err = t.firstLeaf()
	} else {
		n, err = t.descendToLeaf(from)
	}
	if err != nil {
		return err
	}
	for n != nil {
		for i, k := range n.keys {
			if !visit(k, t.codec.Decode(n.values[i])) {
				return nil
			}
		}
		if n.next == 0 {
			return nil
		}
		n, err = t.loadNode(n.next)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree[V]) firstLeaf() (*node, error) {
	page := t.root
	for {
		n, err := t.loadNode(page)
		if err != nil {
			return nil, err
		}
		if n.isLeaf {
			return n, nil
		}
		page = n.left
	}
}

// VisitAll streams every (key, value) pair in key order; fn returning
// false stops the scan early. Used where a caller needs the full
// leaf payload rather than just the per-key entry count VisitKeys
// reports.
func (t *Tree[V]) VisitAll(fn func(key []byte, v V) bool) error {
	return t.scanFrom(nil, fn)
}

// VisitKeys streams every key in order along with the number of entries
// carrying it. Insert rejects duplicate keys, so that number is 1; a
// posting-list count comes from index.Index.VisitKeys.
func (t *Tree[V]) VisitKeys(fn func(key []byte, count int)) error {
	var curKey []byte
	count := 0
	err := t.scanFrom(nil, func(k []byte, _ V) bool {
		if curKey != nil && t.cmp.Compare(curKey, k) == 0 {
			count++
		} else {
			if curKey != nil {
				fn(curKey, count)
			}
			curKey = append([]byte(nil), k...)
			count = 1
		}
		return true
	})
	if err != nil {
		return err
	}
	if curKey != nil {
		fn(curKey, count)
	}
	return nil
}
