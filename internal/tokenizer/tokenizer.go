// Package tokenizer splits UTF-8 text into words, numbers, and
// query-language tokens (spec.md's tokenizer black-box collaborator,
// grounded on the original M6Tokenizer). Stored terms and query terms
// both pass through the same Normalize function so they compare
// equal regardless of which path produced them.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/surgebase/porter2"
	"golang.org/x/text/unicode/norm"

	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
)

func mrsParseError(msg string) error {
	return mrserrors.NewParseError("tokenizer.NextQueryToken", fmt.Errorf("%s", msg))
}

// MaxTokenLength mirrors M6Tokenizer::kMaxTokenLength; tokens longer
// than this are truncated rather than rejected.
const MaxTokenLength = 255

// Kind classifies one token. The first group is produced by NextWord
// (ingestion path); the rest are produced by NextQueryToken (query
// path), matching the M6Token enum.
type Kind int

const (
	KindEOF Kind = iota
	KindUndefined
	KindWord
	KindNumber
	KindPunctuation

	KindString // a quoted string
	KindFloat
	KindPattern // a glob-like pattern
	KindDocNr   // #1234
	KindOR
	KindAND
	KindNOT
	KindBETWEEN
	KindLParen
	KindRParen
	KindLBracket
	KindRBracket
	KindSlash
	KindColon
	KindEquals
	KindLT
	KindLE
	KindGE
	KindGT
)

// Token is one lexeme: its kind and the (already normalized, for word
// tokens) text.
type Token struct {
	Kind Kind
	Text string
}

// Tokenizer scans a UTF-8 string into a stream of tokens.
type Tokenizer struct {
	runes []rune
	pos   int
}

// New wraps data for tokenization.
func New(data string) *Tokenizer {
	return &Tokenizer{runes: []rune(data)}
}

func (t *Tokenizer) peek() (rune, bool) {
	if t.pos >= len(t.runes) {
		return 0, false
	}
	return t.runes[t.pos], true
}

func (t *Tokenizer) advance() (rune, bool) {
	r, ok := t.peek()
	if ok {
		t.pos++
	}
	return r, ok
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsMark(r) || isHan(r)
}

func isHan(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

// NextWord returns the next word, number, or punctuation token from
// ingestion text (M6Tokenizer::GetNextWord). Word tokens are returned
// already normalized and lower-cased; Han characters are emitted one
// rune at a time as separate words, matching the original's treatment
// of Chinese text with no inter-word spacing.
func (t *Tokenizer) NextWord() Token {
	for {
		r, ok := t.peek()
		if !ok {
			return Token{Kind: KindEOF}
		}
		switch {
		case unicode.IsSpace(r):
			t.advance()
			continue
		case isHan(r):
			t.advance()
			return Token{Kind: KindWord, Text: Normalize(string(r))}
		case unicode.IsLetter(r):
			start := t.pos
			for {
				r, ok := t.peek()
				if !ok || !isWordRune(r) || isHan(r) {
					break
				}
				t.advance()
			}
			word := string(t.runes[start:t.pos])
			if len(word) > MaxTokenLength {
				word = word[:MaxTokenLength]
			}
			return Token{Kind: KindWord, Text: Normalize(word)}
		case unicode.IsDigit(r):
			start := t.pos
			for {
				r, ok := t.peek()
				if !ok || !(unicode.IsDigit(r) || r == '.') {
					break
				}
				t.advance()
			}
			return Token{Kind: KindNumber, Text: string(t.runes[start:t.pos])}
		default:
			t.advance()
			return Token{Kind: KindPunctuation, Text: string(r)}
		}
	}
}

var queryKeywords = map[string]Kind{
	"OR": KindOR, "AND": KindAND, "NOT": KindNOT, "BETWEEN": KindBETWEEN,
}

// NextQueryToken scans the next token of the query language: boolean
// keywords, quoted strings, glob patterns, numbers/floats, an explicit
// #docNr reference, and the structural punctuation a query predicate
// uses (parens, brackets, `/`, `:`, `=`, `<`, `<=`, `>=`, `>`)
// (M6Tokenizer::GetNextQueryToken).
func (t *Tokenizer) NextQueryToken() (Token, error) {
	for {
		r, ok := t.peek()
		if !ok {
			return Token{Kind: KindEOF}, nil
		}
		if unicode.IsSpace(r) {
			t.advance()
			continue
		}
		switch r {
		case '(':
			t.advance()
			return Token{Kind: KindLParen, Text: "("}, nil
		case ')':
			t.advance()
			return Token{Kind: KindRParen, Text: ")"}, nil
		case '[':
			t.advance()
			return Token{Kind: KindLBracket, Text: "["}, nil
		case ']':
			t.advance()
			return Token{Kind: KindRBracket, Text: "]"}, nil
		case '/':
			t.advance()
			return Token{Kind: KindSlash, Text: "/"}, nil
		case ':':
			t.advance()
			return Token{Kind: KindColon, Text: ":"}, nil
		case '=':
			t.advance()
			return Token{Kind: KindEquals, Text: "="}, nil
		case '|':
			t.advance()
			return Token{Kind: KindOR, Text: "|"}, nil
		case '&':
			t.advance()
			return Token{Kind: KindAND, Text: "&"}, nil
		case '<':
			t.advance()
			if r2, ok := t.peek(); ok && r2 == '=' {
				t.advance()
				return Token{Kind: KindLE, Text: "<="}, nil
			}
			return Token{Kind: KindLT, Text: "<"}, nil
		case '>':
			t.advance()
			if r2, ok := t.peek(); ok && r2 == '=' {
				t.advance()
				return Token{Kind: KindGE, Text: ">="}, nil
			}
			return Token{Kind: KindGT, Text: ">"}, nil
		case '\'', '"':
			return t.scanQuotedString(r)
		case '#':
			t.advance()
			start := t.pos
			for {
				c, ok := t.peek()
				if !ok || !unicode.IsDigit(c) {
					break
				}
				t.advance()
			}
			if t.pos == start {
				return Token{}, mrsParseError("expected digits after '#'")
			}
			return Token{Kind: KindDocNr, Text: string(t.runes[start:t.pos])}, nil
		}
		if isHan(r) {
			t.advance()
			return Token{Kind: KindWord, Text: Normalize(string(r))}, nil
		}
		if unicode.IsDigit(r) || r == '-' || r == '+' {
			return t.scanNumberOrFloat()
		}
		if unicode.IsLetter(r) {
			return t.scanWordOrPattern()
		}
		if r == '*' || r == '?' {
			return t.scanWordOrPattern()
		}
		t.advance()
		return Token{Kind: KindPunctuation, Text: string(r)}
	}
}

func (t *Tokenizer) scanQuotedString(quote rune) (Token, error) {
	t.advance() // opening quote
	var sb strings.Builder
	for {
		r, ok := t.advance()
		if !ok {
			return Token{}, mrsParseError("unterminated string")
		}
		if r == quote {
			return Token{Kind: KindString, Text: sb.String()}, nil
		}
		if r == '\\' {
			esc, ok := t.advance()
			if !ok {
				return Token{}, mrsParseError("unterminated string")
			}
			sb.WriteRune(esc)
			continue
		}
		sb.WriteRune(r)
	}
}

// scanNumberOrFloat consumes an integer, a -/+ prefixed integer, or a
// [0-9]+(.[0-9]+)?([eE][-+]?[0-9]+)? float, matching the original's
// state-machine precedence (an exponent/decimal point promotes the
// token from Number to Float; anything else leaves it a Number).
func (t *Tokenizer) scanNumberOrFloat() (Token, error) {
	start := t.pos
	if r, ok := t.peek(); ok && (r == '-' || r == '+') {
		t.advance()
	}
	digitsStart := t.pos
	for {
		r, ok := t.peek()
		if !ok || !unicode.IsDigit(r) {
			break
		}
		t.advance()
	}
	if t.pos == digitsStart {
		// a bare '-'/'+' with no following digits is punctuation.
		t.pos = start
		r, _ := t.advance()
		return Token{Kind: KindPunctuation, Text: string(r)}, nil
	}
	isFloat := false
	if r, ok := t.peek(); ok && r == '.' {
		save := t.pos
		t.advance()
		fracStart := t.pos
		for {
			r, ok := t.peek()
			if !ok || !unicode.IsDigit(r) {
				break
			}
			t.advance()
		}
		if t.pos > fracStart {
			isFloat = true
		} else {
			t.pos = save
		}
	}
	if r, ok := t.peek(); ok && (r == 'e' || r == 'E') {
		save := t.pos
		t.advance()
		if r2, ok := t.peek(); ok && (r2 == '+' || r2 == '-') {
			t.advance()
		}
		expStart := t.pos
		for {
			r, ok := t.peek()
			if !ok || !unicode.IsDigit(r) {
				break
			}
			t.advance()
		}
		if t.pos > expStart {
			isFloat = true
		} else {
			t.pos = save
		}
	}
	text := string(t.runes[start:t.pos])
	if isFloat {
		return Token{Kind: KindFloat, Text: text}, nil
	}
	return Token{Kind: KindNumber, Text: text}, nil
}

// scanWordOrPattern consumes a run of word/wildcard runes, returning a
// Pattern token if it saw a `*` or `?`, or a keyword token if the whole
// word matches OR/AND/NOT/BETWEEN, else a Word token.
func (t *Tokenizer) scanWordOrPattern() (Token, error) {
	start := t.pos
	isPattern := false
	for {
		r, ok := t.peek()
		if !ok {
			break
		}
		if r == '*' || r == '?' {
			isPattern = true
			t.advance()
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' {
			if isHan(r) {
				break
			}
			t.advance()
			continue
		}
		break
	}
	text := string(t.runes[start:t.pos])
	if isPattern {
		return Token{Kind: KindPattern, Text: text}, nil
	}
	if kw, ok := queryKeywords[strings.ToUpper(text)]; ok {
		return Token{Kind: kw, Text: text}, nil
	}
	return Token{Kind: KindWord, Text: Normalize(text)}, nil
}

// Words drains every word/number token (skipping punctuation), the
// shape the indexer consumes when collecting terms for a document.
func (t *Tokenizer) Words() []string {
	var out []string
	for {
		tok := t.NextWord()
		if tok.Kind == KindEOF {
			return out
		}
		if tok.Kind == KindWord || tok.Kind == KindNumber {
			out = append(out, tok.Text)
		}
	}
}

// CaseFold lower-cases a string (M6Tokenizer::CaseFold). Kept as its
// own step, distinct from Decompose/NFD, so callers that only need
// case folding (e.g. comparing attribute values) don't pay for
// normalization they don't need.
func CaseFold(s string) string { return strings.ToLower(s) }

// Normalize case-folds and NFD-decomposes s, the single function used
// on both the storage path (indexing a document's words) and the
// query path (parsing a query term), so the two always agree on how a
// given surface string maps to a lexicon key (M6Tokenizer::Normalize).
func Normalize(s string) string {
	return norm.NFD.String(CaseFold(s))
}

// Stem reduces a normalized word to its Porter2 stem for full-text
// indexing (spec.md §4.H "stemmed full-text term"); exact-match fields
// (id, title-as-stored, attribute values) never pass through Stem.
func Stem(normalized string) string {
	if !utf8.ValidString(normalized) {
		return normalized
	}
	return porter2.Stem(normalized)
}

// ContainsHan reports whether s has at least one Han character
// (uc::contains_han in the original, used to decide whether CJK
// per-character tokenization applies).
func ContainsHan(s string) bool {
	for _, r := range s {
		if isHan(r) {
			return true
		}
	}
	return false
}
