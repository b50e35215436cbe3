package query

import (
	"fmt"

	"github.com/standardbeagle/mrsdb/internal/btree"
	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
	"github.com/standardbeagle/mrsdb/internal/index"
	"github.com/standardbeagle/mrsdb/internal/postings"
	"github.com/standardbeagle/mrsdb/internal/tokenizer"
)

// IndexProvider resolves a predicate's field name to the index that
// backs it. The empty field name addresses the synthetic full-text
// weighted index (spec.md §4.H "create the synthetic full-text
// weighted index").
type IndexProvider interface {
	Index(field string) (*index.Index, bool)
}

// Executor evaluates a parsed Query's boolean filter tree into a doc
// bitmap (spec.md §4.I "Evaluation").
type Executor struct {
	Indexes  IndexProvider
	MaxDocNr uint32
}

// EvalBoolean evaluates the query's full filter tree standalone (the
// "boolean" entry point of spec.md §4.I).
func (e *Executor) EvalBoolean(q *Query) (*postings.Bitmap, error) {
	return e.eval(q.Filter)
}

func (e *Executor) eval(n node) (*postings.Bitmap, error) {
	switch t := n.(type) {
	case *andNode:
		return e.evalAnd(t)
	case *orNode:
		return e.evalOr(t)
	case *notNode:
		child, err := e.eval(t.child)
		if err != nil {
			return nil, err
		}
		return child.Not(), nil
	case *docNrNode:
		return postings.BitmapFromDocs([]uint32{t.doc}, e.MaxDocNr), nil
	case *predicateNode:
		return e.evalPredicate(t)
	default:
		return nil, mrserrors.NewParseError("query.eval", fmt.Errorf("unknown node type %T", n))
	}
}

func (e *Executor) evalAnd(t *andNode) (*postings.Bitmap, error) {
	var acc *postings.Bitmap
	for _, c := range t.children {
		b, err := e.eval(c)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = b
		} else {
			acc = acc.And(b)
		}
	}
	return acc, nil
}

func (e *Executor) evalOr(t *orNode) (*postings.Bitmap, error) {
	var acc *postings.Bitmap
	for _, c := range t.children {
		b, err := e.eval(c)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = b
		} else {
			acc = acc.Or(b)
		}
	}
	return acc, nil
}

func (e *Executor) evalPredicate(p *predicateNode) (*postings.Bitmap, error) {
	ix, ok := e.Indexes.Index(p.field)
	if !ok {
		return nil, mrserrors.NewParseError("query.evalPredicate", fmt.Errorf("no such field %q", p.field))
	}
	switch p.op {
	case opEquals:
		docs, err := e.docsForTerm(ix, p.term)
		if err != nil {
			return nil, err
		}
		return postings.BitmapFromDocs(docs, e.MaxDocNr), nil
	case opRange:
		docs, err := ix.RangeDocs(rangeKey(ix, p.lo), rangeKey(ix, p.hi))
		if err != nil {
			return nil, err
		}
		return postings.BitmapFromDocs(docs, e.MaxDocNr), nil
	case opPattern:
		docs, err := ix.PatternDocs(p.pattern)
		if err != nil {
			return nil, err
		}
		return postings.BitmapFromDocs(docs, e.MaxDocNr), nil
	default:
		return nil, mrserrors.NewParseError("query.evalPredicate", fmt.Errorf("unknown predicate op %d", p.op))
	}
}

// docsForTerm looks up term's doc list, normalizing it the same way
// ingestion normalized stored terms (spec.md's shared-Normalize
// warning) before the lookup.
func (e *Executor) docsForTerm(ix *index.Index, term string) ([]uint32, error) {
	key := termKey(ix, term)
	if ix.Kind.Weighted() {
		ps, _, err := ix.WeightedPostings(key)
		if err != nil {
			return nil, err
		}
		docs := make([]uint32, len(ps))
		for i, p := range ps {
			docs[i] = p.Doc
		}
		return docs, nil
	}
	return ix.Docs(key)
}

// termKey normalizes and encodes a query term the way the matching
// index kind expects it on disk: number indices compare their decimal
// string keys numerically (btree.Numeric), so the plain digit bytes
// suffice; float indices need the sign-folded IEEE-754 key so byte
// order matches numeric order (btree.Float). The three char-family
// "content" kinds (multi, multi-IDL, weighted) are tokenized prose
// fields whose lexicon was interned stemmed (the batch indexer stems
// before Lexicon.Store), so a lookup against them must stem the query
// term the same way; KindChar/KindLink are exact attribute/link
// lookups and stay normalize-only.
func termKey(ix *index.Index, term string) []byte {
	switch ix.Kind {
	case index.KindNumber, index.KindNumberMulti:
		return []byte(term)
	case index.KindFloat, index.KindFloatMulti:
		return floatKey(term)
	case index.KindCharMulti, index.KindCharMultiIDL, index.KindCharWeighted:
		return []byte(tokenizer.Stem(tokenizer.Normalize(term)))
	default:
		return []byte(tokenizer.Normalize(term))
	}
}

func rangeKey(ix *index.Index, term string) []byte { return termKey(ix, term) }

func floatKey(s string) []byte {
	var f float64
	fmt.Sscanf(s, "%g", &f)
	return btree.FloatKey(f)
}
