// Package query implements the recursive-descent parser and executor
// of spec.md §4.I: a boolean combinator tree over field-qualified
// predicates for exact/boolean search, and a Smax-truncated
// accumulator scan for ranked free-text search.
package query

// predOp is the shape of value a field predicate carries.
type predOp int

const (
	opEquals predOp = iota
	opRange
	opPattern
)

// node is one AST node: a boolean combinator or a leaf predicate.
type node interface{}

type andNode struct{ children []node }
type orNode struct{ children []node }
type notNode struct{ child node }

// docNrNode is the `#123` singleton-document predicate.
type docNrNode struct{ doc uint32 }

// predicateNode is a leaf predicate. field == "" means an unqualified
// free-text term (e.g. a bare word in the query), evaluated against
// the full-text weighted index for boolean-mode purposes.
type predicateNode struct {
	field   string
	op      predOp
	term    string // opEquals
	lo, hi  string // opRange
	pattern string // opPattern
}

// Query is the parsed result: Filter is the full boolean expression
// tree (usable standalone for boolean search, including bare-word
// leaves), Terms collects every bare word/number/float/string token in
// appearance order (ranked search's term list T), and HasFieldFilter
// reports whether Filter contains at least one field-qualified
// predicate — ranked search only intersects against Filter when this
// is true, since a Filter built purely from bare-word equality leaves
// duplicates what Terms already expresses.
type Query struct {
	Filter         node
	Terms          []string
	HasFieldFilter bool
}
