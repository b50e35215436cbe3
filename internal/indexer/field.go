package indexer

import "github.com/standardbeagle/mrsdb/internal/index"

// FieldKind classifies how a named field is collected during
// ingestion (spec.md §4.H step 3 "for each token/value/link field").
type FieldKind int

const (
	// FieldToken is tokenized prose: its terms are stemmed, interned
	// into the shared lexicon, and contribute to both this field's own
	// per-field index and the synthetic full-text weighted aggregate.
	FieldToken FieldKind = iota
	// FieldTokenExcluded is tokenized prose kept in its own per-field
	// index but excluded from the full-text aggregate's running
	// term-frequency sum (spec.md §4.H finish step 2 "non-excluded
	// fields").
	FieldTokenExcluded
	// FieldValueUnique is a single scalar value per document, inserted
	// directly into an interactive-mode unique B+-tree as documents
	// arrive (char/number/float unique kinds).
	FieldValueUnique
	// FieldValueMulti is zero-or-more scalar values per document,
	// batch-inserted after an external sort on (value, docNr).
	FieldValueMulti
	// FieldLink is a cross-databank reference, treated as a
	// FieldValueMulti of kind index.KindLink.
	FieldLink
)

// FieldSpec describes one named field the indexer collects (spec.md
// §3 "Index types"). The caller creates and owns the backing Index
// (via internal/index.Create/Open) and hands it to the Indexer
// through AddField; Indexer only ever Appends to it.
type FieldSpec struct {
	Name string
	Kind FieldKind
	// IDL requests in-document location tracking for a token field
	// (backing Index must be index.KindCharMultiIDL).
	IDL bool
}

// field pairs a FieldSpec with its backing Index. The external-sort
// runners collecting value/link fields' (value, docNr) pairs ahead of a
// batch insert live in Indexer.valueRuns, keyed by field index.
type field struct {
	spec  FieldSpec
	index *index.Index
}
