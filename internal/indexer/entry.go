package indexer

// tokenEntry is one (term, doc, field) entry of a token field, pushed
// into the full-text sort run once per distinct term after per-document
// frequency normalization (spec.md §4.H step 3a). Weight is that
// normalized weight, computed by collectTokenField; Locations carries
// the term's token positions (indices into the field's word list) for
// fields with FieldSpec.IDL set.
type tokenEntry struct {
	Term      uint32
	Doc       uint32
	Field     int
	Weight    uint32
	Locations []uint32
}

// valueEntry is one (value, docNr) pair pushed into a value field's
// external-sort run ahead of a deduped batch insert (spec.md §4.H
// step 3b "push into a typed value-sort-run array keyed by
// (value, docNr)").
type valueEntry struct {
	Value []byte
	Doc   uint32
}
