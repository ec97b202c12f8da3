package term

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cognicore/planmatch/pkg/planmatch/internalerr"
)

// Parse reads exactly one term. Two notations are accepted and may be mixed:
//
//	(on ?x (pos B 3))   s-expression
//	on(?x, pos(B, 3))   functor notation
//
// Double-quoted text is always a constant. A trailing "." is allowed.
func Parse(src string) (Term, error) {
	terms, err := ParseAll(src)
	if err != nil {
		return nil, err
	}
	if len(terms) != 1 {
		return nil, fmt.Errorf("%w: expected one term, found %d", internalerr.ErrInvalidInput, len(terms))
	}
	return terms[0], nil
}

// MustParse is Parse for literals known to be valid; it panics otherwise.
func MustParse(src string) Term {
	t, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseAll reads a sequence of terms, e.g. the contents of a facts file.
// Comments run from ';', '%' or a '#' at the start of a token to the end of
// the line.
func ParseAll(src string) ([]Term, error) {
	p := &parser{lex: lexer{src: src, line: 1}}
	p.next()

	var out []Term
	for p.tok.kind != tokEOF {
		if p.tok.kind == tokDot {
			p.next()
			continue
		}
		t, err := p.term()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if p.lex.err != nil {
		return nil, p.lex.err
	}
	return out, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokLParen
	tokRParen
	tokComma
	tokDot
	tokAtom
	tokString
)

type token struct {
	kind tokKind
	text string
	line int
	// spaced is true when whitespace or a comment preceded the token.
	spaced bool
}

type lexer struct {
	src  string
	pos  int
	line int
	err  error
}

func (l *lexer) skip() bool {
	spaced := false
	for l.pos < len(l.src) {
		c, size := utf8.DecodeRuneInString(l.src[l.pos:])
		switch {
		case c == '\n':
			l.line++
			l.pos++
			spaced = true
		case unicode.IsSpace(c):
			l.pos += size
			spaced = true
		case c == ';' || c == '%' || c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			spaced = true
		default:
			return spaced
		}
	}
	return spaced
}

func (l *lexer) next() token {
	spaced := l.skip()
	tok := token{line: l.line, spaced: spaced}
	if l.pos >= len(l.src) {
		tok.kind = tokEOF
		return tok
	}

	switch c := l.src[l.pos]; c {
	case '(':
		l.pos++
		tok.kind = tokLParen
	case ')':
		l.pos++
		tok.kind = tokRParen
	case ',':
		l.pos++
		tok.kind = tokComma
	case '"':
		end := l.pos + 1
		for end < len(l.src) && l.src[end] != '"' {
			if l.src[end] == '\\' {
				end++
			}
			end++
		}
		if end >= len(l.src) {
			l.err = fmt.Errorf("%w: line %d: unterminated string", internalerr.ErrInvalidInput, l.line)
			tok.kind = tokEOF
			l.pos = len(l.src)
			return tok
		}
		s, err := strconv.Unquote(l.src[l.pos : end+1])
		if err != nil {
			l.err = fmt.Errorf("%w: line %d: bad string: %v", internalerr.ErrInvalidInput, l.line, err)
			tok.kind = tokEOF
			l.pos = len(l.src)
			return tok
		}
		l.pos = end + 1
		tok.kind = tokString
		tok.text = s
	default:
		start := l.pos
		for l.pos < len(l.src) {
			r, size := utf8.DecodeRuneInString(l.src[l.pos:])
			if isDelim(r) {
				break
			}
			l.pos += size
		}
		text := l.src[start:l.pos]
		// "foo." ends a clause; "3.5" is a number.
		if strings.HasSuffix(text, ".") {
			if _, ok := parseNumber(text); !ok {
				l.pos--
				text = text[:len(text)-1]
			}
		}
		if text == "" {
			l.pos++
			tok.kind = tokDot
			return tok
		}
		tok.kind = tokAtom
		tok.text = text
	}
	return tok
}

func isDelim(r rune) bool {
	switch r {
	case '(', ')', ',', '"', ';', '%':
		return true
	}
	return unicode.IsSpace(r)
}

type parser struct {
	lex lexer
	tok token
}

func (p *parser) next() { p.tok = p.lex.next() }

func (p *parser) errorf(format string, args ...any) error {
	if p.lex.err != nil {
		return p.lex.err
	}
	return fmt.Errorf("%w: line %d: %s", internalerr.ErrInvalidInput, p.tok.line, fmt.Sprintf(format, args...))
}

func (p *parser) term() (Term, error) {
	switch p.tok.kind {
	case tokLParen:
		p.next()
		var elems Compound
		for p.tok.kind != tokRParen {
			if p.tok.kind == tokEOF {
				return nil, p.errorf("unbalanced '('")
			}
			t, err := p.term()
			if err != nil {
				return nil, err
			}
			elems = append(elems, t)
		}
		p.next()
		if elems == nil {
			elems = Compound{}
		}
		return elems, nil
	case tokString:
		c := Const(p.tok.text)
		p.next()
		return c, nil
	case tokAtom:
		head := atom(p.tok.text)
		p.next()
		if p.tok.kind == tokLParen && !p.tok.spaced {
			return p.functor(head)
		}
		return head, nil
	case tokEOF:
		return nil, p.errorf("unexpected end of input")
	default:
		return nil, p.errorf("unexpected %q", p.lex.src[p.lex.pos-1:p.lex.pos])
	}
}

// functor reads the argument list of name(arg, ...).
func (p *parser) functor(head Term) (Term, error) {
	p.next()
	out := Compound{head}
	if p.tok.kind == tokRParen {
		p.next()
		return out, nil
	}
	for {
		t, err := p.term()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		switch p.tok.kind {
		case tokComma:
			p.next()
		case tokRParen:
			p.next()
			return out, nil
		default:
			return nil, p.errorf("expected ',' or ')' in arguments of %s", head)
		}
	}
}

func atom(text string) Term {
	if IsVarName(text) {
		return Var(text)
	}
	if f, ok := parseNumber(text); ok {
		return Num(f)
	}
	return Const(text)
}

// parseNumber accepts decimal and exponent forms only, so symbols such as
// "inf" or "nan" stay constants.
func parseNumber(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	i := 0
	if text[0] == '+' || text[0] == '-' {
		i++
	}
	if i < len(text) && text[i] == '.' {
		i++
	}
	if i >= len(text) || text[i] < '0' || text[i] > '9' {
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	return f, err == nil
}
