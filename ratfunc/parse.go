package ratfunc

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"unicode"
)

// ErrSyntax is returned for malformed expressions.
var ErrSyntax = errors.New("syntax error")

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src []rune
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}
	start := l.pos
	c := l.src[l.pos]
	switch {
	case unicode.IsDigit(c) || c == '.':
		for l.pos < len(l.src) && (unicode.IsDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
			l.pos++
		}
		if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
			l.pos++
			if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
				l.pos++
			}
			for l.pos < len(l.src) && unicode.IsDigit(l.src[l.pos]) {
				l.pos++
			}
		}
		return token{kind: tokNumber, text: string(l.src[start:l.pos]), pos: start}, nil
	case unicode.IsLetter(c) || c == '_':
		for l.pos < len(l.src) && (unicode.IsLetter(l.src[l.pos]) || unicode.IsDigit(l.src[l.pos]) || l.src[l.pos] == '_') {
			l.pos++
		}
		return token{kind: tokIdent, text: string(l.src[start:l.pos]), pos: start}, nil
	}
	switch c {
	case '+', '-', '*', '/', '^', '(', ')':
		l.pos++
		return token{kind: tokOp, text: string(c), pos: start}, nil
	}
	return token{}, fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, c, start)
}

// parser is a recursive-descent parser over the grammar
//
//	expr  = term { ("+" | "-") term }
//	term  = unary { ("*" | "/") unary }
//	unary = ("-" | "+") unary | power
//	power = atom [ "^" integer ]
//	atom  = number | ident | "(" expr ")"
type parser struct {
	lex lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) isOp(op string) bool { return p.tok.kind == tokOp && p.tok.text == op }

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d", ErrSyntax, fmt.Sprintf(format, args...), p.tok.pos)
}

// Parse reads a rational function such as "(1-p)*q/(1+p^2)".
func Parse(s string) (Func, error) {
	p := &parser{lex: lexer{src: []rune(s)}}
	if err := p.advance(); err != nil {
		return Func{}, err
	}
	f, err := p.expr()
	if err != nil {
		return Func{}, err
	}
	if p.tok.kind != tokEOF {
		return Func{}, p.errorf("unexpected %q", p.tok.text)
	}
	return f, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Func {
	f, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return f
}

func (p *parser) expr() (Func, error) {
	f, err := p.term()
	if err != nil {
		return Func{}, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.tok.text
		if err := p.advance(); err != nil {
			return Func{}, err
		}
		g, err := p.term()
		if err != nil {
			return Func{}, err
		}
		if op == "+" {
			f = f.Add(g)
		} else {
			f = f.Sub(g)
		}
	}
	return f, nil
}

func (p *parser) term() (Func, error) {
	f, err := p.unary()
	if err != nil {
		return Func{}, err
	}
	for p.isOp("*") || p.isOp("/") {
		op := p.tok.text
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return Func{}, err
		}
		g, err := p.unary()
		if err != nil {
			return Func{}, err
		}
		if op == "*" {
			f = f.Mul(g)
			continue
		}
		if f, err = f.Div(g); err != nil {
			return Func{}, fmt.Errorf("%w at offset %d", err, pos)
		}
	}
	return f, nil
}

func (p *parser) unary() (Func, error) {
	if p.isOp("-") || p.isOp("+") {
		neg := p.tok.text == "-"
		if err := p.advance(); err != nil {
			return Func{}, err
		}
		f, err := p.unary()
		if err != nil {
			return Func{}, err
		}
		if neg {
			return f.Neg(), nil
		}
		return f, nil
	}
	return p.power()
}

func (p *parser) power() (Func, error) {
	f, err := p.atom()
	if err != nil {
		return Func{}, err
	}
	if !p.isOp("^") {
		return f, nil
	}
	if err := p.advance(); err != nil {
		return Func{}, err
	}
	if p.tok.kind != tokNumber {
		return Func{}, p.errorf("expected exponent")
	}
	e, err := strconv.Atoi(p.tok.text)
	if err != nil || e < 0 {
		return Func{}, p.errorf("exponent %q is not a natural number", p.tok.text)
	}
	if err := p.advance(); err != nil {
		return Func{}, err
	}
	return f.Pow(e), nil
}

func (p *parser) atom() (Func, error) {
	switch p.tok.kind {
	case tokNumber:
		r, ok := new(big.Rat).SetString(p.tok.text)
		if !ok {
			return Func{}, p.errorf("bad number %q", p.tok.text)
		}
		if err := p.advance(); err != nil {
			return Func{}, err
		}
		return FromRat(r), nil
	case tokIdent:
		v := Var(p.tok.text)
		if err := p.advance(); err != nil {
			return Func{}, err
		}
		return FromVar(v), nil
	case tokOp:
		if p.tok.text != "(" {
			break
		}
		if err := p.advance(); err != nil {
			return Func{}, err
		}
		f, err := p.expr()
		if err != nil {
			return Func{}, err
		}
		if !p.isOp(")") {
			return Func{}, p.errorf("expected )")
		}
		if err := p.advance(); err != nil {
			return Func{}, err
		}
		return f, nil
	case tokEOF:
		return Func{}, p.errorf("unexpected end of input")
	}
	return Func{}, p.errorf("unexpected %q", p.tok.text)
}
