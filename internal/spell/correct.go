package spell

import (
	"container/heap"
	"sort"

	"github.com/hbollon/go-edlib"
)

const (
	maxEditOps       = 2
	correctionCap    = 20
	correctionWindow = 12
)

// scoreMatch, scoreDelete, scoreInsert, scoreSubstitute, scoreTranspose
// are the per-operation score deltas of spec.md §4.J's bounded search.
const (
	scoreMatch       = 1
	scoreDelete      = -1
	scoreInsert      = -4
	scoreSubstitute  = -2
	scoreTransposeOp = -2
)

// Correction is one spell-correction candidate, scored by the DFA
// search and re-weighted by its true (transposition-aware) edit
// distance from the query word.
type Correction struct {
	Term     string
	DF       int
	Score    int
	Distance int
	Weight   int
}

type scoreCandidate struct {
	term  string
	df    int
	score int
}

type scoreHeap []scoreCandidate

func (h scoreHeap) Len() int            { return len(h) }
func (h scoreHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h scoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x interface{}) { *h = append(*h, x.(scoreCandidate)) }
func (h *scoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Correct explores the DAFSA around w with a bounded-edit-distance
// search (match/delete/insert/substitute/transpose, penalties
// +1/-1/-4/-2/-2, at most two non-match operations), then narrows the
// size-20 score heap to candidates within 12 points of the best and
// re-weights each by df shifted right by twice its true edit distance
// from w, using go-edlib's transposition-aware Levenshtein distance in
// place of a hand-rolled DP (spec.md §4.J "Correction").
func (d *DAFSA) Correct(w []byte) []Correction {
	h := &scoreHeap{}

	var dfs func(state uint32, wi int, path []byte, score, edits int, incomingTerm bool, incomingDF uint16)
	dfs = func(state uint32, wi int, path []byte, score, edits int, incomingTerm bool, incomingDF uint16) {
		if wi == len(w) && incomingTerm && len(path) > 0 {
			heap.Push(h, scoreCandidate{term: string(path), df: int(incomingDF), score: score})
			if h.Len() > correctionCap {
				heap.Pop(h)
			}
		}
		if edits > maxEditOps {
			return
		}
		edges := d.states[state]

		for _, t := range edges {
			next := append(append([]byte(nil), path...), t.Char())
			if wi < len(w) {
				if t.Char() == w[wi] {
					dfs(t.Dest(), wi+1, next, score+scoreMatch, edits, t.Term(), t.DF())
				} else if edits+1 <= maxEditOps {
					dfs(t.Dest(), wi+1, next, score+scoreSubstitute, edits+1, t.Term(), t.DF())
				}
			}
			if edits+1 <= maxEditOps {
				dfs(t.Dest(), wi, next, score+scoreInsert, edits+1, t.Term(), t.DF())
			}
		}

		if wi < len(w) && edits+1 <= maxEditOps {
			dfs(state, wi+1, path, score+scoreDelete, edits+1, false, 0)
		}

		if wi+1 < len(w) && edits+1 <= maxEditOps {
			for _, t1 := range edges {
				if t1.Char() != w[wi+1] {
					continue
				}
				for _, t2 := range d.states[t1.Dest()] {
					if t2.Char() == w[wi] {
						next := append(append(append([]byte(nil), path...), t1.Char()), t2.Char())
						dfs(t2.Dest(), wi+2, next, score+scoreTransposeOp, edits+1, t2.Term(), t2.DF())
					}
				}
			}
		}
	}

	dfs(0, 0, nil, 0, 0, false, 0)

	raw := make([]scoreCandidate, h.Len())
	for i := len(raw) - 1; i >= 0; i-- {
		raw[i] = heap.Pop(h).(scoreCandidate)
	}
	if len(raw) == 0 {
		return nil
	}

	best := raw[0].score
	for _, c := range raw {
		if c.score > best {
			best = c.score
		}
	}

	query := string(w)
	var out []Correction
	for _, c := range raw {
		if c.score < best-correctionWindow {
			continue
		}
		dist := edlib.LevenshteinDistance(query, c.term)
		out = append(out, Correction{
			Term:     c.term,
			DF:       c.df,
			Score:    c.score,
			Distance: dist,
			Weight:   c.df >> uint(2*dist),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Score > out[j].Score
	})
	return out
}
