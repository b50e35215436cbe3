package spell

import (
	"container/heap"
	"math"
)

// Completion is one candidate returned by Complete, ranked by idf.
type Completion struct {
	Term string
	DF   int
	IDF  float64
}

// completionHeap is a min-heap on IDF so a size-bounded max-heap can
// be implemented by evicting the root once the cap is exceeded.
type completionHeap []Completion

func (h completionHeap) Len() int            { return len(h) }
func (h completionHeap) Less(i, j int) bool  { return h[i].IDF < h[j].IDF }
func (h completionHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *completionHeap) Push(x interface{}) { *h = append(*h, x.(Completion)) }
func (h *completionHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

const maxCompletions = 100

// Complete follows w through the DAFSA exactly, then enumerates every
// terminal descendant of the landing state into a size-100 max-heap
// keyed by idf, returning them in ascending idf order (spec.md §4.J
// "Completion").
func (d *DAFSA) Complete(w []byte, docCount uint32) []Completion {
	state, ok := d.Walk(w)
	if !ok {
		return nil
	}
	h := &completionHeap{}
	prefix := append([]byte(nil), w...)

	var walk func(state uint32, suffix []byte)
	walk = func(state uint32, suffix []byte) {
		for _, t := range d.states[state] {
			next := append(append([]byte(nil), suffix...), t.Char())
			if t.Term() {
				idf := math.Log(1 + float64(docCount)/float64(t.DF()))
				term := append(append([]byte(nil), prefix...), next...)
				heap.Push(h, Completion{Term: string(term), DF: int(t.DF()), IDF: idf})
				if h.Len() > maxCompletions {
					heap.Pop(h)
				}
			}
			walk(t.Dest(), next)
			if t.Last() {
				break
			}
		}
	}
	walk(state, nil)

	out := make([]Completion, 0, h.Len())
	for h.Len() > 0 {
		out = append(out, heap.Pop(h).(Completion))
	}
	return out
}
