// Package indexer implements the batch indexing pipeline of spec.md
// §4.H: per-document term collection, frequency-to-weight
// normalization, external-sort-backed routing to per-field writers,
// and the build-finish orchestration that materializes every index
// and recomputes the document weight vector.
package indexer

import (
	"bytes"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/mrsdb/internal/btree"
	"github.com/standardbeagle/mrsdb/internal/docstore"
	"github.com/standardbeagle/mrsdb/internal/index"
	"github.com/standardbeagle/mrsdb/internal/lexicon"
	"github.com/standardbeagle/mrsdb/internal/postings"
	"github.com/standardbeagle/mrsdb/internal/sortrun"
	"github.com/standardbeagle/mrsdb/internal/tokenizer"
)

// InputDocument is one ingested record, already decomposed into
// per-field token lists and attribute/value/link data by the external
// record-format parser (spec.md §1 lists that parser itself as out of
// scope; only its output is this engine's input).
type InputDocument struct {
	DocNr       uint32
	Attributes  []docstore.Attribute
	Text        []byte
	Tokens      map[string][]string // token field name -> ordered word list
	Values      map[string]string   // unique value field name -> its one value
	MultiValues map[string][]string // multi value field name -> its value list
	Links       map[string][]string // target databank name -> referenced ids
}

// Indexer drives the per-document collection and finish orchestration
// of spec.md §4.H over a caller-assembled set of named fields and the
// synthetic full-text weighted index.
type Indexer struct {
	lexicon    *lexicon.Lexicon
	store      *docstore.Store
	fullText   *index.Index
	progress   Progress
	scratchDir string

	fields    []*field
	fieldByIx map[string]int
	valueRuns map[int]*sortrun.Runner[valueEntry]

	fullTextEntries *sortrun.Runner[tokenEntry]

	// DocWeights is populated by Finish (spec.md §4.I "Document
	// weights"); index 0 is unused, DocWeights[d] is document d's
	// weight.
	DocWeights []float64
}

// New creates an Indexer over an already-open docstore and synthetic
// full-text weighted index (both typically owned and created by the
// databank facade). scratchDir backs every external-sort run this
// indexer spills.
func New(lex *lexicon.Lexicon, store *docstore.Store, fullText *index.Index, scratchDir string, progress Progress) *Indexer {
	if progress == nil {
		progress = NoopProgress{}
	}
	x := &Indexer{
		lexicon:    lex,
		store:      store,
		fullText:   fullText,
		progress:   progress,
		scratchDir: scratchDir,
		fieldByIx:  make(map[string]int),
		valueRuns:  make(map[int]*sortrun.Runner[valueEntry]),
	}
	x.fullTextEntries = sortrun.New[tokenEntry](scratchDir, func(a, b tokenEntry) bool {
		if c := lex.Compare(a.Term, b.Term); c != 0 {
			return c < 0
		}
		if a.Doc != b.Doc {
			return a.Doc < b.Doc
		}
		return a.Field < b.Field
	}, sortrun.DefaultRunSize, 0)
	return x
}

// AddField registers a named field backed by idx, returning its
// field index (used internally to tag full-text sort-run entries).
// Token fields (FieldToken/FieldTokenExcluded) must back onto a
// KindCharMulti or KindCharMultiIDL index; value/link fields must
// back onto one of the scalar kinds (char/number/float unique or
// multi, or link) — the indexer tokenizes and stems exactly the
// fields it is told are token fields, regardless of their backing
// index's own kind.
func (x *Indexer) AddField(spec FieldSpec, idx *index.Index) int {
	fieldIx := len(x.fields)
	x.fields = append(x.fields, &field{spec: spec, index: idx})
	x.fieldByIx[spec.Name] = fieldIx
	if spec.Kind == FieldValueMulti || spec.Kind == FieldLink {
		x.valueRuns[fieldIx] = sortrun.New[valueEntry](x.scratchDir, func(a, b valueEntry) bool {
			if c := bytes.Compare(a.Value, b.Value); c != 0 {
				return c < 0
			}
			return a.Doc < b.Doc
		}, sortrun.DefaultRunSize, 0)
	}
	return fieldIx
}

// FieldIndex returns a registered field's field index by name, used by
// callers (typically the databank facade) that need to cross-reference
// a field name against DocWeights or diagnostic output.
func (x *Indexer) FieldIndex(name string) (int, bool) {
	ix, ok := x.fieldByIx[name]
	return ix, ok
}

// AddDocument runs ingestion steps 2-3 of spec.md §4.H for one
// document: stores its compressed blob, then routes every field's
// content to the full-text run, a value field's own posting tree, or
// a value-sort run.
func (x *Indexer) AddDocument(doc InputDocument) error {
	if err := x.store.Store(doc.DocNr, doc.Attributes, doc.Links, doc.Text); err != nil {
		return err
	}
	for fieldIx, f := range x.fields {
		switch f.spec.Kind {
		case FieldToken, FieldTokenExcluded:
			if err := x.collectTokenField(fieldIx, f, doc); err != nil {
				return err
			}
		case FieldValueUnique:
			raw, ok := doc.Values[f.spec.Name]
			if !ok {
				continue
			}
			if err := f.index.PutUnique(encodeValueKey(f.index, raw), doc.DocNr); err != nil {
				return err
			}
		case FieldValueMulti:
			run := x.valueRuns[fieldIx]
			for _, raw := range doc.MultiValues[f.spec.Name] {
				run.PushBack(valueEntry{Value: encodeValueKey(f.index, raw), Doc: doc.DocNr})
			}
		case FieldLink:
			run := x.valueRuns[fieldIx]
			for _, raw := range doc.Links[f.spec.Name] {
				run.PushBack(valueEntry{Value: []byte(tokenizer.Normalize(raw)), Doc: doc.DocNr})
			}
		}
	}
	x.progress.Document(doc.DocNr)
	return nil
}

type occurrence struct {
	freq int
	locs []uint32
}

// collectTokenField interns doc's tokens for field f, normalizes their
// frequencies into weights, and pushes one tokenEntry per distinct
// term (spec.md §4.H step 3a).
func (x *Indexer) collectTokenField(fieldIx int, f *field, doc InputDocument) error {
	tokens := doc.Tokens[f.spec.Name]
	if len(tokens) == 0 {
		return nil
	}
	occs := make(map[uint32]*occurrence)
	for pos, tok := range tokens {
		stemmed := tokenizer.Stem(tokenizer.Normalize(tok))
		if stemmed == "" {
			continue
		}
		termID, err := x.lexicon.Store([]byte(stemmed))
		if err != nil {
			return err
		}
		o, ok := occs[termID]
		if !ok {
			o = &occurrence{}
			occs[termID] = o
		}
		o.freq++
		if f.spec.IDL {
			o.locs = append(o.locs, uint32(pos))
		}
	}
	if len(occs) == 0 {
		return nil
	}
	maxFreq := 0
	for _, o := range occs {
		if o.freq > maxFreq {
			maxFreq = o.freq
		}
	}
	for termID, o := range occs {
		weight := uint32(o.freq * int(postings.MaxAggregateWeight) / maxFreq)
		if weight == 0 {
			weight = 1
		}
		x.fullTextEntries.PushBack(tokenEntry{Term: termID, Doc: doc.DocNr, Field: fieldIx, Weight: weight, Locations: o.locs})
	}
	return nil
}

// encodeValueKey mirrors internal/query's termKey for value fields:
// number/float kinds get their comparator-native byte encoding,
// everything else is normalized-only (value fields are never
// stemmed — see DESIGN.md's stemming decision).
func encodeValueKey(ix *index.Index, raw string) []byte {
	switch ix.Kind {
	case index.KindNumber, index.KindNumberMulti:
		return []byte(raw)
	case index.KindFloat, index.KindFloatMulti:
		return floatValueKey(raw)
	default:
		return []byte(tokenizer.Normalize(raw))
	}
}

func floatValueKey(s string) []byte {
	var f float64
	fmt.Sscanf(s, "%g", &f)
	return btree.FloatKey(f)
}

// Finish runs spec.md §4.H's "on finish(docCount)" orchestration:
// drain the full-text run into the per-field writers and the
// synthetic weighted index, drain every value run into its target
// multi-index, parallel-finish every writer, and recompute document
// weights.
func (x *Indexer) Finish(docCount uint32) error {
	x.progress.Phase("drain-tokens")
	x.fullText.StartBatch()
	for _, f := range x.fields {
		if f.spec.Kind == FieldToken || f.spec.Kind == FieldTokenExcluded {
			f.index.StartBatch()
		}
	}
	if err := x.drainTokens(); err != nil {
		return err
	}

	x.progress.Phase("drain-values")
	if err := x.drainValues(); err != nil {
		return err
	}

	x.progress.Phase("finish-writers")
	g := &errgroup.Group{}
	g.Go(x.fullText.FinishBatch)
	for _, f := range x.fields {
		f := f
		switch f.spec.Kind {
		case FieldToken, FieldTokenExcluded, FieldValueMulti, FieldLink:
			g.Go(f.index.FinishBatch)
		case FieldValueUnique:
			g.Go(f.index.Vacuum)
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	x.progress.Phase("doc-weights")
	weights, err := RecomputeDocWeights(x.fullText, docCount)
	if err != nil {
		return err
	}
	x.DocWeights = weights
	return nil
}

// drainTokens walks the merged full-text run (sorted by term bytes,
// then docNr, then field index) maintaining two nested accumulators:
// per (field, term) for each field's own writer, and per (term, doc)
// — summed across non-excluded fields, saturated at MaxAggregateWeight
// — for the synthetic full-text weighted tree (spec.md §4.H finish
// steps 1-2).
func (x *Indexer) drainTokens() error {
	it, err := x.fullTextEntries.Finish()
	if err != nil {
		return err
	}
	defer it.Close()

	fieldAccums := make([]*fieldAccum, len(x.fields))

	var ftKey []byte
	var ftPostings []postings.Posting
	var curDoc uint32
	var curWeight uint32
	var haveDoc bool

	flushDoc := func() {
		if !haveDoc {
			return
		}
		w := curWeight
		if w > postings.MaxAggregateWeight {
			w = postings.MaxAggregateWeight
		}
		ftPostings = append(ftPostings, postings.Posting{Doc: curDoc, Weight: w})
		haveDoc = false
		curWeight = 0
	}
	flushTerm := func() error {
		flushDoc()
		if len(ftPostings) == 0 {
			ftKey = nil
			return nil
		}
		var maxW uint32
		for _, p := range ftPostings {
			if p.Weight > maxW {
				maxW = p.Weight
			}
		}
		if err := x.fullText.AppendWeighted(ftKey, ftPostings, maxW); err != nil {
			return err
		}
		ftPostings = ftPostings[:0]
		ftKey = nil
		return nil
	}

	for {
		e, err, ok := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		termBytes := x.lexicon.Get(e.Term)

		switch {
		case ftKey == nil:
			ftKey = append([]byte(nil), termBytes...)
			curDoc, haveDoc, curWeight = e.Doc, true, 0
		case !bytes.Equal(ftKey, termBytes):
			if err := flushTerm(); err != nil {
				return err
			}
			ftKey = append([]byte(nil), termBytes...)
			curDoc, haveDoc, curWeight = e.Doc, true, 0
		case e.Doc != curDoc:
			flushDoc()
			curDoc, haveDoc, curWeight = e.Doc, true, 0
		}
		if x.fields[e.Field].spec.Kind != FieldTokenExcluded {
			curWeight += e.Weight
			if curWeight > postings.MaxAggregateWeight {
				curWeight = postings.MaxAggregateWeight
			}
		}

		fa := fieldAccums[e.Field]
		if fa == nil || !bytes.Equal(fa.key, termBytes) {
			if fa != nil {
				if err := x.flushFieldAccum(e.Field, fa); err != nil {
					return err
				}
			}
			fa = &fieldAccum{key: append([]byte(nil), termBytes...)}
			fieldAccums[e.Field] = fa
		}
		fa.docs = append(fa.docs, e.Doc)
		if x.fields[e.Field].spec.IDL {
			fa.locs = append(fa.locs, e.Locations)
		}
	}
	if err := flushTerm(); err != nil {
		return err
	}
	for fieldIx, fa := range fieldAccums {
		if err := x.flushFieldAccum(fieldIx, fa); err != nil {
			return err
		}
	}
	return nil
}

// fieldAccum buffers one field's growing posting list for the term
// currently in scope, keyed by that term's literal (stemmed) bytes.
type fieldAccum struct {
	key  []byte
	docs []uint32
	locs [][]uint32
}

func (x *Indexer) flushFieldAccum(fieldIx int, acc *fieldAccum) error {
	if acc == nil || len(acc.docs) == 0 {
		return nil
	}
	f := x.fields[fieldIx]
	if f.spec.IDL {
		return f.index.AppendIDL(acc.key, acc.docs, acc.locs)
	}
	return f.index.AppendMulti(acc.key, acc.docs)
}

// drainValues walks each value/link field's run (sorted by value,
// then docNr), dedups consecutive equal docs within a value group,
// and batch-inserts the resulting (value, docs) entries (spec.md
// §4.H finish step 3).
func (x *Indexer) drainValues() error {
	for fieldIx, f := range x.fields {
		run, ok := x.valueRuns[fieldIx]
		if !ok {
			continue
		}
		it, err := run.Finish()
		if err != nil {
			return err
		}
		f.index.StartBatch()
		var curValue []byte
		var docs []uint32
		flush := func() error {
			if curValue == nil || len(docs) == 0 {
				return nil
			}
			return f.index.AppendMulti(curValue, dedupSorted(docs))
		}
		for {
			e, err, ok := it.Next()
			if err != nil {
				it.Close()
				return err
			}
			if !ok {
				break
			}
			if curValue == nil || !bytes.Equal(curValue, e.Value) {
				if err := flush(); err != nil {
					it.Close()
					return err
				}
				curValue = append([]byte(nil), e.Value...)
				docs = docs[:0]
			}
			docs = append(docs, e.Doc)
		}
		if err := flush(); err != nil {
			it.Close()
			return err
		}
		it.Close()
	}
	return nil
}

func dedupSorted(docs []uint32) []uint32 {
	if len(docs) < 2 {
		return docs
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i] < docs[j] })
	out := docs[:1]
	for _, d := range docs[1:] {
		if d != out[len(out)-1] {
			out = append(out, d)
		}
	}
	return out
}
