package btree

// Vacuum rewrites the tree in key order into a fresh region of the file,
// then swaps the old and new root page numbers via the cache so external
// references to the original root page keep working after this call
// returns (spec.md §4.E "Vacuum", §9 design note on the cache's Swap).
func (t *Tree[V]) Vacuum() error {
	oldRoot := t.root
	oldNextPage := t.nextPage

	t.StartBatch()
	var appendErr error
	err := t.scanFrom(nil, func(k []byte, v V) bool {
		if e := t.Append(append([]byte(nil), k...), v); e != nil {
			appendErr = e
			return false
		}
		return true
	})
	if err == nil {
		err = appendErr
	}
	if err != nil {
		t.batchMode = false
		t.builder = nil
		return err
	}
	if err := t.FinishBatch(); err != nil {
		return err
	}
	newRoot := t.root

	if oldRoot != 0 && newRoot != 0 && oldRoot != newRoot {
		oldH, err := t.cache.Load(t.file, int64(oldRoot)*int64(t.pageSize))
		if err != nil {
			return err
		}
		newH, err := t.cache.Load(t.file, int64(newRoot)*int64(t.pageSize))
		if err != nil {
			t.cache.Release(oldH, false)
			return err
		}
		t.cache.Swap(oldH, newH)
		t.cache.Release(oldH, false)
		t.cache.Release(newH, false)
		t.root = oldRoot
	}

	if oldNextPage > t.nextPage {
		// the rewrite used fewer pages than the original tree; nothing
		// reclaims the old tail here (truncation is the caller's call,
		// since other trees may share this cache but never this file).
	}
	return t.writeHeader()
}
