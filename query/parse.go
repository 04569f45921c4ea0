package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

type tokKind int

const (
	tkEOF tokKind = iota
	tkNewline
	tkIdent
	tkString
	tkNumber
	tkLParen
	tkRParen
	tkLBrack
	tkRBrack
	tkComma
	tkAssign
)

type token struct {
	kind tokKind
	text string
	line int
}

func lex(src string) ([]token, error) {
	var out []token
	rs := []rune(src)
	line, depth := 1, 0
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case r == '\n' || r == ';':
			// line breaks inside (..) or [..] continue the expression
			if depth == 0 {
				out = append(out, token{kind: tkNewline, line: line})
			}
			if r == '\n' {
				line++
			}
			i++
		case unicode.IsSpace(r) || r == '\ufeff':
			i++
		case r == '#':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
		case r == '"':
			j := i + 1
			for j < len(rs) && rs[j] != '"' {
				if rs[j] == '\\' {
					j++
				}
				if j < len(rs) && rs[j] == '\n' {
					return nil, errors.Newf("line %d: unterminated string", line)
				}
				j++
			}
			if j >= len(rs) {
				return nil, errors.Newf("line %d: unterminated string", line)
			}
			s, err := strconv.Unquote(string(rs[i : j+1]))
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: bad string literal", line)
			}
			out = append(out, token{kind: tkString, text: s, line: line})
			i = j + 1
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			j := i + 1
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			out = append(out, token{kind: tkNumber, text: string(rs[i:j]), line: line})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			out = append(out, token{kind: tkIdent, text: string(rs[i:j]), line: line})
			i = j
		default:
			kinds := map[rune]tokKind{'(': tkLParen, ')': tkRParen, '[': tkLBrack, ']': tkRBrack, ',': tkComma, '=': tkAssign}
			k, ok := kinds[r]
			if !ok {
				return nil, errors.Newf("line %d: unexpected character %q", line, r)
			}
			switch k {
			case tkLParen, tkLBrack:
				depth++
			case tkRParen, tkRBrack:
				depth--
			}
			out = append(out, token{kind: k, text: string(r), line: line})
			i++
		}
	}
	return append(out, token{kind: tkEOF, line: line}), nil
}

// Node is an expression in the closed language.
type Node interface {
	String() string
}

// Call is fn(args…).
type Call struct {
	Name string
	Args []Node
	Line int
}

// Ident names a dataset (df_<Name>), the graph, or an earlier binding.
type Ident struct {
	Name string
	Line int
}

// Str is a string literal.
type Str struct{ Value string }

// Num is a numeric literal.
type Num struct{ Value float64 }

// ListLit is [a, b, …].
type ListLit struct{ Items []Node }

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Name + "(" + strings.Join(args, ", ") + ")"
}
func (i *Ident) String() string { return i.Name }
func (s *Str) String() string   { return strconv.Quote(s.Value) }
func (n *Num) String() string   { return strconv.FormatFloat(n.Value, 'f', -1, 64) }
func (l *ListLit) String() string {
	items := make([]string, len(l.Items))
	for i, it := range l.Items {
		items[i] = it.String()
	}
	return "[" + strings.Join(items, ", ") + "]"
}

// Assign is one statement: name = expr.
type Assign struct {
	Name string
	Expr Node
	Line int
}

// Program is a parsed expression body.
type Program struct {
	Stmts []Assign
}

// ResultName is the binding whose value is returned.
const ResultName = "result"

type parser struct {
	toks []token
	pos  int
}

// Parse turns source into a Program. The marker is a comment and is not
// checked here; see HasMarker.
func Parse(src string) (*Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	prog := &Program{}
	for {
		for p.peek().kind == tkNewline {
			p.pos++
		}
		if p.peek().kind == tkEOF {
			break
		}
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, st)
	}
	hasResult := false
	for _, st := range prog.Stmts {
		if st.Name == ResultName {
			hasResult = true
		}
	}
	if !hasResult {
		return nil, errors.Newf("expression never assigns %q", ResultName)
	}
	return prog, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tkEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokKind, what string) (token, error) {
	t := p.next()
	if t.kind != k {
		return t, errors.Newf("line %d: expected %s, got %s", t.line, what, describe(t))
	}
	return t, nil
}

func describe(t token) string {
	switch t.kind {
	case tkEOF:
		return "end of input"
	case tkNewline:
		return "end of line"
	case tkString:
		return strconv.Quote(t.text)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

func (p *parser) statement() (Assign, error) {
	name, err := p.expect(tkIdent, "binding name")
	if err != nil {
		return Assign{}, err
	}
	if _, err := p.expect(tkAssign, "'='"); err != nil {
		return Assign{}, err
	}
	expr, err := p.expr()
	if err != nil {
		return Assign{}, err
	}
	if t := p.peek(); t.kind != tkNewline && t.kind != tkEOF {
		return Assign{}, errors.Newf("line %d: unexpected %s after expression", t.line, describe(t))
	}
	return Assign{Name: name.text, Expr: expr, Line: name.line}, nil
}

func (p *parser) expr() (Node, error) {
	t := p.next()
	switch t.kind {
	case tkString:
		return &Str{Value: t.text}, nil
	case tkNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, errors.Newf("line %d: bad number %q", t.line, t.text)
		}
		return &Num{Value: f}, nil
	case tkLBrack:
		l := &ListLit{}
		for p.peek().kind != tkRBrack {
			it, err := p.expr()
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, it)
			if p.peek().kind != tkComma {
				break
			}
			p.next()
		}
		if _, err := p.expect(tkRBrack, "']'"); err != nil {
			return nil, err
		}
		return l, nil
	case tkIdent:
		if p.peek().kind != tkLParen {
			return &Ident{Name: t.text, Line: t.line}, nil
		}
		p.next()
		c := &Call{Name: t.text, Line: t.line}
		for p.peek().kind != tkRParen {
			arg, err := p.expr()
			if err != nil {
				return nil, err
			}
			c.Args = append(c.Args, arg)
			if p.peek().kind != tkComma {
				break
			}
			p.next()
		}
		if _, err := p.expect(tkRParen, "')'"); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, errors.Newf("line %d: unexpected %s", t.line, describe(t))
	}
}
