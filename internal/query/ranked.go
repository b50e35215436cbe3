package query

import (
	"container/heap"
	"math"
	"sort"

	"github.com/standardbeagle/mrsdb/internal/postings"
)

// RankedOptions configures a ranked search (spec.md §4.I "Ranked
// search").
type RankedOptions struct {
	AllRequired bool
	Limit       int
}

// Hit is one ranked result.
type Hit struct {
	Doc  uint32
	Rank float64
}

const (
	dominanceRatio  = 100 // "if 100*wq < firstWq, stop"
	addFraction     = 0.007
	insertFraction  = 0.12
	maxScoredTerms  = 25
	scoredTermsHigh = 100
)

// DocWeights supplies the precomputed per-document weight vector used
// to normalize a ranked score (spec.md §4.I step 8 "r(d) =
// A[d]/(docWeight[d]*queryWeight)").
type DocWeights interface {
	Weight(doc uint32) float64
}

// Rank runs the ranked-search accumulator scan of spec.md §4.I over
// the full-text weighted index, optionally intersected with a boolean
// filter bitmap.
func (e *Executor) Rank(q *Query, weights DocWeights, opts RankedOptions) ([]Hit, error) {
	fullText, ok := e.Indexes.Index("")
	if !ok {
		return nil, nil
	}

	type scoredTerm struct {
		term string
		idf  float64
		wq   float64
		ps   []postings.Posting
	}
	var scored []scoredTerm
	occurrences := make(map[string]int)
	for _, t := range q.Terms {
		occurrences[t]++
	}
	seen := make(map[string]bool)
	for _, t := range q.Terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		key := termKey(fullText, t)
		ps, _, err := fullText.WeightedPostings(key)
		if err != nil {
			return nil, err
		}
		if len(ps) == 0 {
			if opts.AllRequired {
				return nil, nil
			}
			continue
		}
		df := len(ps)
		idf := math.Log(1 + float64(e.MaxDocNr)/float64(df))
		wq := idf * float64(postings.MaxAggregateWeight) * float64(occurrences[t])
		scored = append(scored, scoredTerm{term: t, idf: idf, wq: wq, ps: ps})
	}
	if len(scored) == 0 {
		return nil, nil
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].wq > scored[j].wq })
	if len(scored) > scoredTermsHigh {
		scored = scored[:maxScoredTerms]
	}

	accumulator := make(map[uint32]float64)
	hitCount := make(map[uint32]int)
	var smax, firstWq, queryWeight float64
	firstWq = scored[0].wq

	for _, st := range scored {
		if dominanceRatio*st.wq < firstWq {
			break
		}
		sAdd := addFraction * smax
		sIns := insertFraction * smax
		wq2 := st.wq * st.wq
		var fAdd, fIns float64
		if wq2 > 0 {
			fAdd = sAdd / wq2
			fIns = sIns / wq2
		}
		queryWeight += wq2
		for _, p := range st.ps {
			w := float64(p.Weight)
			if w < fAdd {
				continue
			}
			cur, exists := accumulator[p.Doc]
			if w >= fIns || exists {
				cur += st.idf * w * st.wq
				accumulator[p.Doc] = cur
				hitCount[p.Doc]++
				if cur > smax {
					smax = cur
				}
			}
		}
	}
	queryWeight = math.Sqrt(queryWeight)

	minHits := 0
	if opts.AllRequired {
		minHits = len(scored)
	}

	var filter *postings.Bitmap
	if q.HasFieldFilter {
		f, err := e.eval(q.Filter)
		if err != nil {
			return nil, err
		}
		filter = f
	}

	var hits []Hit
	for doc, acc := range accumulator {
		if hitCount[doc] < minHits {
			continue
		}
		if filter != nil && !filter.Test(doc) {
			continue
		}
		dw := 1.0
		if weights != nil {
			if v := weights.Weight(doc); v > 0 {
				dw = v
			}
		}
		rank := acc / (dw * queryWeight)
		hits = append(hits, Hit{Doc: doc, Rank: rank})
	}

	limit := opts.Limit
	if limit <= 0 || limit > len(hits) {
		limit = len(hits)
	}
	return topHits(hits, limit), nil
}

// topHits keeps the top n hits by Rank descending using a bounded
// min-heap (spec.md §4.I step 8 "bounded min-heap").
func topHits(hits []Hit, n int) []Hit {
	if n >= len(hits) {
		sort.Slice(hits, func(i, j int) bool { return hits[i].Rank > hits[j].Rank })
		return hits
	}
	h := &hitHeap{}
	for _, hit := range hits {
		if h.Len() < n {
			heap.Push(h, hit)
			continue
		}
		if hit.Rank > (*h)[0].Rank {
			heap.Pop(h)
			heap.Push(h, hit)
		}
	}
	out := make([]Hit, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Hit)
	}
	return out
}

type hitHeap []Hit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return h[i].Rank < h[j].Rank }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)         { *h = append(*h, x.(Hit)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
