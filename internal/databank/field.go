package databank

import (
	"github.com/standardbeagle/mrsdb/internal/index"
	"github.com/standardbeagle/mrsdb/internal/indexer"
)

// FieldDef describes one named field a databank indexes, supplied by
// the caller at Create time (spec.md §4.K: the facade owns "a vector
// of (name, description, type, index)"). IndexKind picks the on-disk
// B+-tree variant; Collect picks how the batch indexer gathers this
// field's content from each ingested document.
type FieldDef struct {
	Name        string
	Description string
	IndexKind   index.Kind
	Collect     indexer.FieldKind
}

// Field pairs a FieldDef with its backing on-disk index, whether newly
// created or discovered by Open.
type Field struct {
	Def   FieldDef
	Index *index.Index
}

// toFieldSpec adapts a FieldDef to the shape internal/indexer's
// AddField expects, inferring IDL tracking from the backing index
// kind rather than asking the caller to state it twice.
func toFieldSpec(def FieldDef) indexer.FieldSpec {
	return indexer.FieldSpec{
		Name: def.Name,
		Kind: def.Collect,
		IDL:  def.IndexKind == index.KindCharMultiIDL,
	}
}
