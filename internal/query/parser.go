package query

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/syntrixbase/searchsync/pkg/model"
)

// Node is a parsed search expression.
type Node interface {
	node()
}

// BoolOp joins the children of a BoolNode.
type BoolOp int

const (
	And BoolOp = iota
	Or
)

// BoolNode matches when all (And) or any (Or) of its children match.
type BoolNode struct {
	Op       BoolOp
	Children []Node
}

// NotNode negates its child.
type NotNode struct {
	Child Node
}

// TermNode is a word or phrase, optionally qualified by a field.
type TermNode struct {
	Field  string
	Text   string
	Quoted bool
}

// RangeNode is a "field:[lower TO upper]" clause. "*" leaves a bound open.
type RangeNode struct {
	Field        string
	Lower, Upper string
	IncludeLower bool
	IncludeUpper bool
}

func (*BoolNode) node()  {}
func (*NotNode) node()   {}
func (*TermNode) node()  {}
func (*RangeNode) node() {}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPhrase
	tokField // a word followed by ':'
	tokLParen
	tokRParen
	tokRange
	tokAnd
	tokOr
	tokNot
)

type token struct {
	kind tokenKind
	text string
	// range tokens
	lower, upper string
	inclLower    bool
	inclUpper    bool
}

// Parse parses a search expression in query-string syntax: words, quoted
// phrases, field:value clauses, field:[a TO b] ranges, AND/OR/NOT (also
// &&, ||, ! and a leading -), + and parentheses. Juxtaposed clauses are
// joined with AND. An empty expression yields a nil node.
func Parse(expr string) (Node, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if len(toks) == 0 {
		return nil, nil
	}
	n, err := p.parseOr("")
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, fmt.Errorf("%w: unexpected %q", model.ErrInvalidQuery, p.toks[p.pos].text)
	}
	return n, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) parseOr(field string) (Node, error) {
	first, err := p.parseAnd(field)
	if err != nil {
		return nil, err
	}
	children := []Node{first}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOr {
			break
		}
		p.pos++
		n, err := p.parseAnd(field)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	if len(children) == 1 {
		return first, nil
	}
	return &BoolNode{Op: Or, Children: children}, nil
}

func (p *parser) parseAnd(field string) (Node, error) {
	first, err := p.parseUnary(field)
	if err != nil {
		return nil, err
	}
	children := []Node{first}
	for {
		t, ok := p.peek()
		if !ok || t.kind == tokOr || t.kind == tokRParen {
			break
		}
		if t.kind == tokAnd {
			p.pos++
		}
		n, err := p.parseUnary(field)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	if len(children) == 1 {
		return first, nil
	}
	return &BoolNode{Op: And, Children: children}, nil
}

func (p *parser) parseUnary(field string) (Node, error) {
	t, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("%w: unexpected end of expression", model.ErrInvalidQuery)
	}
	if t.kind == tokNot {
		p.pos++
		child, err := p.parseUnary(field)
		if err != nil {
			return nil, err
		}
		return &NotNode{Child: child}, nil
	}
	return p.parsePrimary(field)
}

func (p *parser) parsePrimary(field string) (Node, error) {
	t, _ := p.peek()
	p.pos++
	switch t.kind {
	case tokLParen:
		n, err := p.parseOr(field)
		if err != nil {
			return nil, err
		}
		if t, ok := p.peek(); !ok || t.kind != tokRParen {
			return nil, fmt.Errorf("%w: missing closing parenthesis", model.ErrInvalidQuery)
		}
		p.pos++
		return n, nil
	case tokField:
		if field != "" {
			return nil, fmt.Errorf("%w: nested field %q", model.ErrInvalidQuery, t.text)
		}
		if _, ok := p.peek(); !ok {
			return nil, fmt.Errorf("%w: missing value for field %q", model.ErrInvalidQuery, t.text)
		}
		return p.parsePrimary(t.text)
	case tokWord:
		return &TermNode{Field: field, Text: t.text}, nil
	case tokPhrase:
		return &TermNode{Field: field, Text: t.text, Quoted: true}, nil
	case tokRange:
		if field == "" {
			return nil, fmt.Errorf("%w: range without field", model.ErrInvalidQuery)
		}
		return &RangeNode{
			Field:        field,
			Lower:        t.lower,
			Upper:        t.upper,
			IncludeLower: t.inclLower,
			IncludeUpper: t.inclUpper,
		}, nil
	}
	return nil, fmt.Errorf("%w: unexpected %q", model.ErrInvalidQuery, t.text)
}

func lex(expr string) ([]token, error) {
	var toks []token
	rs := []rune(expr)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case r == '"':
			text, n, err := lexPhrase(rs[i:])
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokPhrase, text: text})
			i += n
		case r == '[' || r == '{':
			tok, n, err := lexBracket(rs[i:])
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i += n
		case r == '&' && i+1 < len(rs) && rs[i+1] == '&':
			toks = append(toks, token{kind: tokAnd, text: "&&"})
			i += 2
		case r == '|' && i+1 < len(rs) && rs[i+1] == '|':
			toks = append(toks, token{kind: tokOr, text: "||"})
			i += 2
		case r == '!' || (r == '-' && startsClause(toks)):
			toks = append(toks, token{kind: tokNot, text: string(r)})
			i++
		case r == '+' && startsClause(toks):
			i++
		default:
			word, n := lexWord(rs[i:])
			i += n
			if i < len(rs) && rs[i] == ':' {
				toks = append(toks, token{kind: tokField, text: word})
				i++
				continue
			}
			switch word {
			case "AND":
				toks = append(toks, token{kind: tokAnd, text: word})
			case "OR":
				toks = append(toks, token{kind: tokOr, text: word})
			case "NOT":
				toks = append(toks, token{kind: tokNot, text: word})
			default:
				toks = append(toks, token{kind: tokWord, text: word})
			}
		}
	}
	return toks, nil
}

// startsClause reports whether a prefix operator may appear here.
func startsClause(toks []token) bool {
	if len(toks) == 0 {
		return true
	}
	switch toks[len(toks)-1].kind {
	case tokLParen, tokAnd, tokOr, tokNot, tokWord, tokPhrase, tokRParen, tokRange:
		return true
	}
	return false
}

func lexWord(rs []rune) (string, int) {
	var sb strings.Builder
	i := 0
	for i < len(rs) {
		r := rs[i]
		if r == '\\' && i+1 < len(rs) {
			sb.WriteRune(rs[i+1])
			i += 2
			continue
		}
		if unicode.IsSpace(r) || r == '(' || r == ')' || r == ':' || r == '"' {
			break
		}
		sb.WriteRune(r)
		i++
	}
	return sb.String(), i
}

func lexPhrase(rs []rune) (string, int, error) {
	var sb strings.Builder
	for i := 1; i < len(rs); i++ {
		switch rs[i] {
		case '\\':
			if i+1 < len(rs) {
				i++
				sb.WriteRune(rs[i])
			}
		case '"':
			return sb.String(), i + 1, nil
		default:
			sb.WriteRune(rs[i])
		}
	}
	return "", 0, fmt.Errorf("%w: unterminated phrase", model.ErrInvalidQuery)
}

// lexBracket reads "[a TO b]" ranges. Bracketed text without TO, such as
// "[blank]", is a plain word.
func lexBracket(rs []rune) (token, int, error) {
	closers := map[rune]bool{']': true, '}': true}
	end := -1
	for i := 1; i < len(rs); i++ {
		if closers[rs[i]] {
			end = i
			break
		}
	}
	if end < 0 {
		return token{}, 0, fmt.Errorf("%w: unterminated range", model.ErrInvalidQuery)
	}
	inner := string(rs[1:end])
	parts := strings.SplitN(inner, " TO ", 2)
	if len(parts) != 2 {
		word := string(rs[:end+1])
		return token{kind: tokWord, text: word}, end + 1, nil
	}
	return token{
		kind:      tokRange,
		text:      string(rs[:end+1]),
		lower:     unquote(strings.TrimSpace(parts[0])),
		upper:     unquote(strings.TrimSpace(parts[1])),
		inclLower: rs[0] == '[',
		inclUpper: rs[end] == ']',
	}, end + 1, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
