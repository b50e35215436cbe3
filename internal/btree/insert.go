package btree

import (
	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
)

// Insert adds (key,value) in interactive mode: descend, split on
// overflow, propagate (spec.md §4.E). A unique-mode duplicate key fails
// with kDuplicateKey; a multi-mode duplicate is rejected too — callers
// that want per-key accumulation (the indexer's posting writers) merge
// the payload themselves before calling Insert once per distinct key.
func (t *Tree[V]) Insert(key []byte, value V) error {
	if t.batchMode {
		return mrserrors.NewUnsupportedError("btree.Insert: tree is in batch mode")
	}
	if t.root == 0 {
		root := &node{isLeaf: true, page: t.allocPage()}
		t.root = root.page
		if err := t.storeNode(root); err != nil {
			return err
		}
		if err := t.writeHeader(); err != nil {
			return err
		}
	}

	splitKey, splitPage, err := t.insertInto(t.root, key, value)
	if err != nil {
		return err
	}
	if splitPage != 0 {
		newRoot := &node{page: t.allocPage(), left: t.root}
		newRoot.keys = append(newRoot.keys, splitKey)
		newRoot.values = append(newRoot.values, encodeChildPage(splitPage))
		if err := t.storeNode(newRoot); err != nil {
			return err
		}
		t.root = newRoot.page
		return t.writeHeader()
	}
	return nil
}

// insertInto returns (splitKey, splitPage) != ("", 0) if inserting caused
// page to split; the caller is responsible for inserting a new separator
// into its own parent (or creating a new root).
func (t *Tree[V]) insertInto(page uint32, key []byte, value V) ([]byte, uint32, error) {
	n, err := t.loadNode(page)
	if err != nil {
		return nil, 0, err
	}
	if n.isLeaf {
		return t.insertLeaf(n, key, value)
	}

	childIdx := 0
	for childIdx < len(n.keys) && t.cmp.Compare(n.keys[childIdx], key) <= 0 {
		childIdx++
	}
	var childPg uint32
	if childIdx == 0 {
		childPg = n.left
	} else {
		childPg = childPage(n.values[childIdx-1])
	}

	sepKey, sepPage, err := t.insertInto(childPg, key, value)
	if err != nil {
		return nil, 0, err
	}
	if sepPage == 0 {
		return nil, 0, nil
	}

	// Insert (sepKey -> sepPage) as a new separator at childIdx.
	n.keys = append(n.keys, nil)
	copy(n.keys[childIdx+1:], n.keys[childIdx:])
	n.keys[childIdx] = sepKey
	n.values = append(n.values, nil)
	copy(n.values[childIdx+1:], n.values[childIdx:])
	n.values[childIdx] = encodeChildPage(sepPage)

	if n.byteSize() <= t.entryBudget() {
		return nil, 0, t.storeNode(n)
	}
	return t.splitBranch(n)
}

func (t *Tree[V]) insertLeaf(n *node, key []byte, value V) ([]byte, uint32, error) {
	i := t.search(n, key)
	if i < len(n.keys) && t.cmp.Compare(n.keys[i], key) == 0 {
		return nil, 0, mrserrors.NewDuplicateKeyError("btree.Insert", string(key))
	}
	encoded := t.codec.Encode(value)
	n.keys = append(n.keys, nil)
	copy(n.keys[i+1:], n.keys[i:])
	n.keys[i] = key
	n.values = append(n.values, nil)
	copy(n.values[i+1:], n.values[i:])
	n.values[i] = encoded

	if n.byteSize() <= t.entryBudget() {
		return nil, 0, t.storeNode(n)
	}
	return t.splitLeaf(n)
}

func (t *Tree[V]) splitLeaf(n *node) ([]byte, uint32, error) {
	mid := splitPoint(n)
	right := &node{isLeaf: true, page: t.allocPage(), next: n.next}
	right.keys = append(right.keys, n.keys[mid:]...)
	right.values = append(right.values, n.values[mid:]...)
	n.keys = n.keys[:mid]
	n.values = n.values[:mid]
	n.next = right.page

	if err := t.storeNode(n); err != nil {
		return nil, 0, err
	}
	if err := t.storeNode(right); err != nil {
		return nil, 0, err
	}
	return right.keys[0], right.page, nil
}

func (t *Tree[V]) splitBranch(n *node) ([]byte, uint32, error) {
	mid := splitPoint(n)
	sep := n.keys[mid]
	right := &node{page: t.allocPage(), left: childPage(n.values[mid])}
	right.keys = append(right.keys, n.keys[mid+1:]...)
	right.values = append(right.values, n.values[mid+1:]...)
	n.keys = n.keys[:mid]
	n.values = n.values[:mid]

	if err := t.storeNode(n); err != nil {
		return nil, 0, err
	}
	if err := t.storeNode(right); err != nil {
		return nil, 0, err
	}
	return sep, right.page, nil
}

// splitPoint picks a byte-budget-balanced midpoint rather than a fixed
// count split (spec.md §4.E node layout note).
func splitPoint(n *node) int {
	total := 0
	sizes := make([]int, len(n.keys))
	for i := range n.keys {
		sizes[i] = 2 + len(n.keys[i]) + len(n.values[i])
		total += sizes[i]
	}
	acc := 0
	for i, s := range sizes {
		acc += s
		if acc >= total/2 {
			if i == 0 {
				return 1
			}
			return i
		}
	}
	return len(n.keys) / 2
}

// Erase removes key if present. Underflow is not rebalanced (merge-or-
// redistribute with the right sibling is deferred, spec.md §4.E "core
// need not be production-strength here"); a leaf may fall below a
// minimum occupancy without triggering a merge.
func (t *Tree[V]) Erase(key []byte) error {
	if t.batchMode {
		return mrserrors.NewUnsupportedError("btree.Erase: tree is in batch mode")
	}
	if t.root == 0 {
		return nil
	}
	n, err := t.descendToLeaf(key)
	if err != nil {
		return err
	}
	i := t.search(n, key)
	if i >= len(n.keys) || t.cmp.Compare(n.keys[i], key) != 0 {
		return nil
	}
	n.keys = append(n.keys[:i], n.keys[i+1:]...)
	n.values = append(n.values[:i], n.values[i+1:]...)
	return t.storeNode(n)
}
