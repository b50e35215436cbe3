package query

import (
	"fmt"
	"strconv"

	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
	"github.com/standardbeagle/mrsdb/internal/tokenizer"
)

// parser is a recursive-descent parser over tokenizer.NextQueryToken,
// matching the grammar implied by spec.md §4.I:
//
//	query   := orExpr
//	orExpr  := andExpr (OR andExpr)*
//	andExpr := notExpr (AND notExpr)*
//	notExpr := NOT notExpr | atom
//	atom    := '(' orExpr ')' | '#' number | field ':' value
//	         | field BETWEEN bound AND bound | bareTerm
//	value   := pattern | bound | bound '/' bound
//	bound   := word | number | float | string
//	bareTerm := word | number | float | string | pattern
type parser struct {
	tok *tokenizer.Tokenizer
	cur tokenizer.Token
	q   *Query
}

// Parse parses a query-language string into a Query.
func Parse(s string) (*Query, error) {
	p := &parser{tok: tokenizer.New(s), q: &Query{}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != tokenizer.KindEOF {
		return nil, parseError("unexpected trailing token %q", p.cur.Text)
	}
	p.q.Filter = n
	return p.q, nil
}

func parseError(format string, args ...any) error {
	return mrserrors.NewParseError("query.Parse", fmt.Errorf(format, args...))
}

func (p *parser) advance() error {
	tok, err := p.tok.NextQueryToken()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []node{left}
	for p.cur.Kind == tokenizer.KindOR {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &orNode{children: children}, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	children := []node{left}
	for p.cur.Kind == tokenizer.KindAND {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &andNode{children: children}, nil
}

func (p *parser) parseNot() (node, error) {
	if p.cur.Kind == tokenizer.KindNOT {
		if err := p.advance(); err != nil {
			return nil, err
		}
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{child: child}, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (node, error) {
	switch p.cur.Kind {
	case tokenizer.KindLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur.Kind != tokenizer.KindRParen {
			return nil, parseError("expected ')', got %q", p.cur.Text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return n, nil
	case tokenizer.KindDocNr:
		n, err := strconv.ParseUint(p.cur.Text, 10, 32)
		if err != nil {
			return nil, parseError("invalid doc number %q", p.cur.Text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &docNrNode{doc: uint32(n)}, nil
	case tokenizer.KindWord, tokenizer.KindNumber, tokenizer.KindFloat, tokenizer.KindString, tokenizer.KindPattern:
		return p.parseWordOrPredicate()
	default:
		return nil, parseError("unexpected token %q", p.cur.Text)
	}
}

// parseWordOrPredicate consumes a word and decides whether it is a
// field-qualified predicate (word ':' value ...) or a bare term
// (collected into Terms and emitted as a full-text equality leaf).
func (p *parser) parseWordOrPredicate() (node, error) {
	field := p.cur.Text
	isBareField := p.cur.Kind == tokenizer.KindWord
	if err := p.advance(); err != nil {
		return nil, err
	}
	if isBareField && p.cur.Kind == tokenizer.KindColon {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parsePredicateValue(field)
	}
	if isBareField && p.cur.Kind == tokenizer.KindBETWEEN {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseBetween(field)
	}
	p.q.Terms = append(p.q.Terms, field)
	return &predicateNode{field: "", op: opEquals, term: field}, nil
}

func (p *parser) parsePredicateValue(field string) (node, error) {
	switch p.cur.Kind {
	case tokenizer.KindPattern:
		pat := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		p.q.HasFieldFilter = true
		return &predicateNode{field: field, op: opPattern, pattern: pat}, nil
	case tokenizer.KindWord, tokenizer.KindNumber, tokenizer.KindFloat, tokenizer.KindString:
		lo := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == tokenizer.KindSlash {
			if err := p.advance(); err != nil {
				return nil, err
			}
			hi := p.cur.Text
			switch p.cur.Kind {
			case tokenizer.KindWord, tokenizer.KindNumber, tokenizer.KindFloat, tokenizer.KindString:
			default:
				return nil, parseError("expected range upper bound after '/', got %q", p.cur.Text)
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			p.q.HasFieldFilter = true
			return &predicateNode{field: field, op: opRange, lo: lo, hi: hi}, nil
		}
		p.q.HasFieldFilter = true
		return &predicateNode{field: field, op: opEquals, term: lo}, nil
	default:
		return nil, parseError("expected a value after '%s:', got %q", field, p.cur.Text)
	}
}

func (p *parser) parseBetween(field string) (node, error) {
	lo := p.cur.Text
	switch p.cur.Kind {
	case tokenizer.KindWord, tokenizer.KindNumber, tokenizer.KindFloat, tokenizer.KindString:
	default:
		return nil, parseError("expected BETWEEN lower bound, got %q", p.cur.Text)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Kind != tokenizer.KindAND {
		return nil, parseError("expected AND in BETWEEN clause, got %q", p.cur.Text)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	hi := p.cur.Text
	switch p.cur.Kind {
	case tokenizer.KindWord, tokenizer.KindNumber, tokenizer.KindFloat, tokenizer.KindString:
	default:
		return nil, parseError("expected BETWEEN upper bound, got %q", p.cur.Text)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	p.q.HasFieldFilter = true
	return &predicateNode{field: field, op: opRange, lo: lo, hi: hi}, nil
}
