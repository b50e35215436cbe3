package databank

import (
	"github.com/standardbeagle/mrsdb/internal/index"
	"github.com/standardbeagle/mrsdb/internal/indexer"
	"github.com/standardbeagle/mrsdb/internal/postings"
	"github.com/standardbeagle/mrsdb/internal/query"
)

// Index implements query.IndexProvider: the empty field name addresses
// the synthetic full-text weighted index, everything else is looked
// up by registered field name (spec.md §4.I).
func (db *Databank) Index(field string) (*index.Index, bool) {
	if field == "" {
		return db.fullText, true
	}
	f, ok := db.byName[field]
	if !ok {
		return nil, false
	}
	return f.Index, true
}

func (db *Databank) executor() *query.Executor {
	return &query.Executor{Indexes: db, MaxDocNr: db.store.MaxDocNr()}
}

// Boolean evaluates raw as a pure boolean query (spec.md §4.I
// "Evaluation", the "boolean" entry point), returning the resulting
// doc bitmap without any ranked scoring.
func (db *Databank) Boolean(raw string) (*postings.Bitmap, error) {
	q, err := query.Parse(raw)
	if err != nil {
		return nil, err
	}
	return db.executor().EvalBoolean(q)
}

// Query runs raw through the parser and, if it carries any bare
// free-text terms, the ranked accumulator scan (spec.md §4.I "Ranked
// search"); a query with no terms falls back to plain boolean
// evaluation, returning every matching doc at rank 1.
func (db *Databank) Query(raw string, opts query.RankedOptions) ([]query.Hit, error) {
	q, err := query.Parse(raw)
	if err != nil {
		return nil, err
	}
	ex := db.executor()
	if len(q.Terms) == 0 {
		bm, err := ex.EvalBoolean(q)
		if err != nil {
			return nil, err
		}
		docs := bm.Docs()
		hits := make([]query.Hit, len(docs))
		for i, d := range docs {
			hits[i] = query.Hit{Doc: d, Rank: 1}
		}
		return hits, nil
	}
	return ex.Rank(q, indexer.Weights(db.docWeights), opts)
}
