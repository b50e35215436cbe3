package btree

import (
	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
)

// batchState accumulates leaves and branch-level separators while the
// tree is fed a sorted key stream (spec.md §4.E "Batch mode"). Leaves
// are appended directly; branch levels are stacked bottom-up and flushed
// when FinishBatch is called.
type batchState[V any] struct {
	curLeaf     *node
	leafLevel   []levelEntry // separator keys/pages produced by finished leaves
	upperLevels [][]levelEntry
}

type levelEntry struct {
	key  []byte // nil for the very first entry at a level (its page is "left")
	page uint32
}

// StartBatch puts the tree into batch-build mode. A batch-mode tree
// rejects random Insert/Erase until FinishBatch (spec.md §4.E).
func (t *Tree[V]) StartBatch() {
	t.batchMode = true
	t.builder = &batchState[V]{}
}

// InBatchMode reports whether the tree currently rejects random ops.
func (t *Tree[V]) InBatchMode() bool { return t.batchMode }

// Append feeds one (key,value) pair to the batch builder. Keys must
// arrive in strictly increasing comparator order.
func (t *Tree[V]) Append(key []byte, value V) error {
	if !t.batchMode {
		return mrserrors.NewUnsupportedError("btree.Append: tree is not in batch mode")
	}
	b := t.builder
	if b.curLeaf == nil {
		b.curLeaf = &node{isLeaf: true, page: t.allocPage()}
	}
	encoded := t.codec.Encode(value)
	candidate := 2 + len(key) + len(encoded)
	if b.curLeaf.byteSize()+candidate > t.entryBudget() && len(b.curLeaf.keys) > 0 {
		if err := t.flushLeaf(); err != nil {
			return err
		}
		b.curLeaf = &node{isLeaf: true, page: t.allocPage()}
	}
	b.curLeaf.keys = append(b.curLeaf.keys, key)
	b.curLeaf.values = append(b.curLeaf.values, encoded)
	return nil
}

func (t *Tree[V]) flushLeaf() error {
	b := t.builder
	n := b.curLeaf
	b.leafLevel = append(b.leafLevel, levelEntry{key: firstOrNil(n, len(b.leafLevel) == 0), page: n.page})
	if err := t.storeNode(n); err != nil {
		return err
	}
	return nil
}

func firstOrNil(n *node, isFirst bool) []byte {
	if isFirst {
		return nil
	}
	return n.keys[0]
}

// FinishBatch flushes the partially filled leaf/branch stacks, records
// the root page, and returns the tree to interactive mode.
func (t *Tree[V]) FinishBatch() error {
	b := t.builder
	if b.curLeaf != nil && len(b.curLeaf.keys) > 0 {
		if err := t.flushLeaf(); err != nil {
			return err
		}
	} else if b.curLeaf != nil {
		// empty trailing leaf: drop it, its page number is simply unused.
	}

	// link leaves: set next pointers now that all leaf pages are known.
	for i := 0; i < len(b.leafLevel)-1; i++ {
		n, err := t.loadNode(b.leafLevel[i].page)
		if err != nil {
			return err
		}
		n.next = b.leafLevel[i+1].page
		if err := t.storeNode(n); err != nil {
			return err
		}
	}

	if len(b.leafLevel) == 0 {
		t.root = 0
		t.batchMode = false
		t.builder = nil
		return t.writeHeader()
	}
	if len(b.leafLevel) == 1 {
		t.root = b.leafLevel[0].page
		t.batchMode = false
		t.builder = nil
		return t.writeHeader()
	}

	level := b.leafLevel
	for len(level) > 1 {
		level = t.buildBranchLevel(level)
	}
	t.root = level[0].page
	t.batchMode = false
	t.builder = nil
	return t.writeHeader()
}

// buildBranchLevel packs one level's worth of (key,page) separators into
// branch nodes sized to the same byte budget as leaves, returning the
// next level up.
func (t *Tree[V]) buildBranchLevel(level []levelEntry) []levelEntry {
	var out []levelEntry
	var cur *node
	for i, e := range level {
		if cur == nil {
			cur = &node{page: t.allocPage(), left: e.page}
			if i == 0 {
				out = append(out, levelEntry{page: cur.page})
				continue
			}
		}
		candidate := 2 + len(e.key) + 4
		if cur.byteSize()+candidate > t.entryBudget() && len(cur.keys) > 0 {
			t.storeNode(cur)
			next := &node{page: t.allocPage(), left: e.page}
			out = append(out, levelEntry{key: e.key, page: next.page})
			cur = next
			continue
		}
		cur.keys = append(cur.keys, e.key)
		cur.values = append(cur.values, encodeChildPage(e.page))
	}
	if cur != nil {
		t.storeNode(cur)
	}
	return out
}
