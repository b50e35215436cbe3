// Package sortrun implements the external-sort run merger used by the
// batch indexer (spec.md §4.G): entries are buffered into fixed-size
// runs, each run is sorted and spilled to a scratch file by a small
// worker pool, and Finish returns an iterator that merges the spilled
// runs back into one globally sorted stream via a k-way heap merge.
package sortrun

import (
	"container/heap"
	"encoding/gob"
	"errors"
	"io"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
)

// DefaultRunSize mirrors the original engine's "a million entries per
// run" default (M6SortedRunArray's N template parameter).
const DefaultRunSize = 1_000_000

// Less reports whether a sorts before b. Each run is sorted with
// sort.SliceStable, so equal entries keep their push order within a
// run; the merge across runs does not define the order of equal
// entries.
type Less[T any] func(a, b T) bool

// Runner accumulates entries across one or more fixed-size runs,
// spilling each full run to a scratch file under a bounded worker pool,
// then merges every spilled run back into sorted order on Finish.
type Runner[T any] struct {
	scratchDir string
	less       Less[T]
	runSize    int

	mu      sync.Mutex
	pending []T

	group   *errgroup.Group
	spillCh chan []T

	scratchFiles []string
	count        int64
}

// New creates a Runner that spills full runs of runSize entries to
// scratch files under scratchDir, using up to workers goroutines to
// sort and write runs concurrently (spec.md §4.G "background sort and
// spill"; workers defaults to the original's fixed pool of 4 if <= 0).
func New[T any](scratchDir string, less Less[T], runSize, workers int) *Runner[T] {
	if runSize <= 0 {
		runSize = DefaultRunSize
	}
	if workers <= 0 {
		workers = 4
	}
	g := &errgroup.Group{}
	r := &Runner[T]{
		scratchDir: scratchDir,
		less:       less,
		runSize:    runSize,
		spillCh:    make(chan []T, workers),
		group:      g,
	}
	var filesMu sync.Mutex
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for run := range r.spillCh {
				path, err := r.spillRun(run)
				if err != nil {
					return err
				}
				filesMu.Lock()
				r.scratchFiles = append(r.scratchFiles, path)
				filesMu.Unlock()
			}
			return nil
		})
	}
	return r
}

// PushBack appends one entry, flushing the current run to the spill
// workers once it reaches runSize (M6SortedRunArray::PushBack).
func (r *Runner[T]) PushBack(v T) {
	r.mu.Lock()
	r.pending = append(r.pending, v)
	r.count++
	full := len(r.pending) >= r.runSize
	var run []T
	if full {
		run, r.pending = r.pending, nil
	}
	r.mu.Unlock()
	if full {
		r.spillCh <- run
	}
}

// Size returns the total number of entries pushed so far.
func (r *Runner[T]) Size() int64 { return r.count }

func (r *Runner[T]) spillRun(run []T) (string, error) {
	sort.SliceStable(run, func(i, j int) bool { return r.less(run[i], run[j]) })
	f, err := os.CreateTemp(r.scratchDir, "mrsdb-run-*.tmp")
	if err != nil {
		return "", mrserrors.NewIOError("sortrun.spillRun", err)
	}
	defer f.Close()
	enc := gob.NewEncoder(f)
	for _, v := range run {
		if err := enc.Encode(v); err != nil {
			return "", mrserrors.NewIOError("sortrun.spillRun: encode", err)
		}
	}
	return f.Name(), nil
}

// Finish flushes any partially-filled trailing run, waits for every
// spilled run to land on disk, and returns an Iterator that k-way
// merges them in sorted order.
func (r *Runner[T]) Finish() (*Iterator[T], error) {
	r.mu.Lock()
	trailing := r.pending
	r.pending = nil
	r.mu.Unlock()
	if len(trailing) > 0 {
		r.spillCh <- trailing
	}
	close(r.spillCh)
	if err := r.group.Wait(); err != nil {
		return nil, err
	}
	return newIterator(r.scratchFiles, r.less)
}

// Iterator yields entries across every spilled run in global sorted
// order via a priority-queue merge (M6SortedRunArray::iterator).
type Iterator[T any] struct {
	files []string
	heads []*runHead[T]
	pq    *runHeap[T]
}

type runHead[T any] struct {
	dec     *gob.Decoder
	file    *os.File
	current T
}

// advance pulls the next entry from this run's stream into current,
// returning false once the run is exhausted (M6RunEntryIterator::Next).
func (h *runHead[T]) advance() (bool, error) {
	var v T
	if err := h.dec.Decode(&v); err != nil {
		return false, err
	}
	h.current = v
	return true, nil
}

func newIterator[T any](files []string, less Less[T]) (*Iterator[T], error) {
	it := &Iterator[T]{files: files}
	pq := &runHeap[T]{less: less}
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, mrserrors.NewIOError("sortrun.newIterator: open", err)
		}
		h := &runHead[T]{dec: gob.NewDecoder(f), file: f}
		ok, err := h.advance()
		if err != nil && !errors.Is(err, io.EOF) {
			f.Close()
			return nil, mrserrors.NewIOError("sortrun.newIterator: decode", err)
		}
		if ok {
			pq.items = append(pq.items, h)
		} else {
			f.Close()
		}
	}
	heap.Init(pq)
	it.pq = pq
	return it, nil
}

// Next advances the iterator, returning false once every run is
// exhausted.
func (it *Iterator[T]) Next() (T, error, bool) {
	var zero T
	if it.pq.Len() == 0 {
		return zero, nil, false
	}
	h := it.pq.items[0]
	v := h.current
	ok, err := h.advance()
	if err != nil && !errors.Is(err, io.EOF) {
		return zero, mrserrors.NewIOError("sortrun.Iterator.Next: decode", err), false
	}
	if ok {
		heap.Fix(it.pq, 0)
	} else {
		h.file.Close()
		heap.Pop(it.pq)
	}
	return v, nil, true
}

// Close releases any scratch files the iterator has not yet fully
// consumed and removes every spilled run from disk.
func (it *Iterator[T]) Close() error {
	for _, h := range it.pq.items {
		h.file.Close()
	}
	var firstErr error
	for _, path := range it.files {
		if err := os.Remove(path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// runHeap is a container/heap min-heap over the current head entry of
// each still-open run.
type runHeap[T any] struct {
	items []*runHead[T]
	less  Less[T]
}

func (h *runHeap[T]) Len() int { return len(h.items) }
func (h *runHeap[T]) Less(i, j int) bool {
	return h.less(h.items[i].current, h.items[j].current)
}
func (h *runHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *runHeap[T]) Push(x any)    { h.items = append(h.items, x.(*runHead[T])) }
func (h *runHeap[T]) Pop() any {
	n := len(h.items)
	v := h.items[n-1]
	h.items = h.items[:n-1]
	return v
}
