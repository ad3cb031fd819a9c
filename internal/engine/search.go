package engine

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
)

// MaxExtendedQueryLength is the longest query, in runes, evaluated with the
// extended search syntax. Longer queries use plain substring matching.
const MaxExtendedQueryLength = 40

// Index is a search index over a fixed set of text fields of a row set.
// It is immutable once built; a new field set or row set needs a new Index.
type Index struct {
	fields []catalog.Column
	// docs[i][f] is the folded text of field f of row i.
	docs [][]string
}

// BuildIndex normalizes the given fields of every row for matching.
//
// Parameters:
//   - rows: The row set, indexed by position
//   - fields: Searchable registry columns; array columns are joined with ","
//
// Returns:
//   - *Index: The built index
//   - error: ErrUnknownColumn (wrapped) if a field is not searchable
func BuildIndex(rows []catalog.FlatRow, fields []catalog.Column) (*Index, error) {
	defs, err := searchDefs(fields)
	if err != nil {
		return nil, err
	}

	docs := make([][]string, len(rows))
	for i := range rows {
		doc := make([]string, len(defs))
		for f, def := range defs {
			doc[f] = fold(def.Value(&rows[i]).String())
		}
		docs[i] = doc
	}

	return &Index{
		fields: append([]catalog.Column(nil), fields...),
		docs:   docs,
	}, nil
}

// Fields returns the indexed columns.
func (ix *Index) Fields() []catalog.Column {
	return append([]catalog.Column(nil), ix.fields...)
}

// Len returns the number of indexed rows.
func (ix *Index) Len() int {
	return len(ix.docs)
}

// Search returns the positions of the matching rows in original order.
// An empty or whitespace-only query matches every row.
func (ix *Index) Search(q string) []int {
	q = strings.TrimSpace(q)
	if q == "" {
		all := make([]int, len(ix.docs))
		for i := range all {
			all[i] = i
		}
		return all
	}

	match := ix.matcher(q)
	out := []int{}
	for i, doc := range ix.docs {
		if match(doc) {
			out = append(out, i)
		}
	}
	return out
}

func (ix *Index) matcher(q string) func(doc []string) bool {
	folded := fold(q)
	if utf8.RuneCountInString(q) > MaxExtendedQueryLength {
		return func(doc []string) bool {
			for _, text := range doc {
				if text != "" && strings.Contains(text, folded) {
					return true
				}
			}
			return false
		}
	}

	expr := parseExpression(folded)
	return func(doc []string) bool {
		// Blank fields are not indexed, so they never satisfy a token.
		for _, text := range doc {
			if text != "" && expr.matches(text) {
				return true
			}
		}
		return false
	}
}

func searchDefs(fields []catalog.Column) ([]catalog.ColumnDef, error) {
	defs := make([]catalog.ColumnDef, 0, len(fields))
	for _, f := range fields {
		def, err := catalog.Require(f, catalog.TraitSearch)
		if err != nil {
			return nil, fmt.Errorf("%w: search field: %w", ErrUnknownColumn, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// fold normalizes text for case-insensitive comparison.
// cases.Caser is stateful, so one is created per call.
func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

type tokenOp int

const (
	opInclude tokenOp = iota
	opExact
	opPrefix
	opSuffix
	opNotInclude
	opNotPrefix
	opNotSuffix
)

type token struct {
	op   tokenOp
	text string
}

// tokenGroup is a conjunction of tokens.
type tokenGroup []token

// expression is a disjunction of token groups.
type expression []tokenGroup

// parseExpression parses the extended query syntax:
//
//	foo    field contains foo
//	'foo   field contains foo
//	=foo   field equals foo
//	^foo   field starts with foo
//	foo$   field ends with foo
//	!foo   field does not contain foo
//	!^foo  field does not start with foo
//	!foo$  field does not end with foo
//
// Whitespace-separated tokens are AND'ed and "|" separates alternatives.
// A token's text may be double-quoted to include spaces, as in ="smart plug".
func parseExpression(q string) expression {
	var expr expression
	for _, alt := range strings.Split(q, "|") {
		var group tokenGroup
		for _, word := range splitWords(alt) {
			group = append(group, parseToken(word))
		}
		if len(group) > 0 {
			expr = append(expr, group)
		}
	}
	return expr
}

// splitWords splits s on whitespace outside double quotes.
func splitWords(s string) []string {
	var words []string
	var b strings.Builder
	quoted := false
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			b.WriteRune(r)
		case unicode.IsSpace(r) && !quoted:
			if b.Len() > 0 {
				words = append(words, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		words = append(words, b.String())
	}
	return words
}

func parseToken(word string) token {
	var tok token
	switch {
	case strings.HasPrefix(word, "!^"):
		tok = token{op: opNotPrefix, text: word[2:]}
	case strings.HasPrefix(word, "!") && strings.HasSuffix(word, "$") && len(word) > 2:
		tok = token{op: opNotSuffix, text: word[1 : len(word)-1]}
	case strings.HasPrefix(word, "!"):
		tok = token{op: opNotInclude, text: word[1:]}
	case strings.HasPrefix(word, "="):
		tok = token{op: opExact, text: word[1:]}
	case strings.HasPrefix(word, "'"):
		tok = token{op: opInclude, text: word[1:]}
	case strings.HasPrefix(word, "^"):
		tok = token{op: opPrefix, text: word[1:]}
	case strings.HasSuffix(word, "$") && len(word) > 1:
		tok = token{op: opSuffix, text: word[:len(word)-1]}
	default:
		tok = token{op: opInclude, text: word}
	}
	tok.text = unquote(tok.text)
	// A bare operator such as "^" or "!" is treated as a literal.
	if tok.text == "" {
		tok = token{op: opInclude, text: word}
	}
	return tok
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func (e expression) matches(text string) bool {
	for _, group := range e {
		if group.matches(text) {
			return true
		}
	}
	return false
}

func (g tokenGroup) matches(text string) bool {
	for _, tok := range g {
		if !tok.matches(text) {
			return false
		}
	}
	return true
}

func (t token) matches(text string) bool {
	switch t.op {
	case opExact:
		return text == t.text
	case opPrefix:
		return strings.HasPrefix(text, t.text)
	case opSuffix:
		return strings.HasSuffix(text, t.text)
	case opNotInclude:
		return !strings.Contains(text, t.text)
	case opNotPrefix:
		return !strings.HasPrefix(text, t.text)
	case opNotSuffix:
		return !strings.HasSuffix(text, t.text)
	default:
		return strings.Contains(text, t.text)
	}
}
