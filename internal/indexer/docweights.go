package indexer

import (
	"math"

	"github.com/standardbeagle/mrsdb/internal/index"
	"github.com/standardbeagle/mrsdb/internal/postings"
)

// RecomputeDocWeights implements spec.md §4.I "Document weights": for
// each full-text term t with idf(t) = ln(1 + maxDocNr/df(t)), and each
// posting (d, w), docWeight[d] += (idf·w)²; after all terms,
// docWeight[d] = sqrt(docWeight[d]). Index 0 of the result is unused
// (docNr starts at 1); a document never indexed into the full-text
// field keeps weight 0.
func RecomputeDocWeights(fullText *index.Index, maxDocNr uint32) ([]float64, error) {
	weights := make([]float64, maxDocNr+1)
	err := fullText.VisitWeightedPostings(func(key []byte, ps []postings.Posting, maxWeight uint32) error {
		df := len(ps)
		if df == 0 {
			return nil
		}
		idf := math.Log(1 + float64(maxDocNr)/float64(df))
		for _, p := range ps {
			if int(p.Doc) >= len(weights) {
				continue
			}
			contrib := idf * float64(p.Weight)
			weights[p.Doc] += contrib * contrib
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for d := range weights {
		if weights[d] > 0 {
			weights[d] = math.Sqrt(weights[d])
		}
	}
	return weights, nil
}

// Weights adapts a document-weight vector to internal/query's
// DocWeights interface without importing that package (it's a plain
// structural match: Weight(uint32) float64).
type Weights []float64

func (w Weights) Weight(doc uint32) float64 {
	if int(doc) >= len(w) {
		return 0
	}
	return w[doc]
}
