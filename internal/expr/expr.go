// Package expr evaluates the arithmetic subset used by share-page scripts
// to build download keys: decimal integer literals, + - * / %, parentheses
// and unary signs.
//
// Intermediate values are float64 so division and modulo behave like the
// page's own script engine; only the final result is truncated toward zero.
// Integers are exact up to 2^53. A result that rounds to 2^63 or beyond is
// ErrOutOfRange, so the literal 9223372036854775807 itself is rejected.
// Download keys are far below these limits.
package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"unicode"
)

var (
	ErrEmpty           = errors.New("empty expression")
	ErrUnbalanced      = errors.New("unbalanced parentheses")
	ErrUnexpectedToken = errors.New("unexpected token")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrOutOfRange      = errors.New("result out of int64 range")
	ErrTooDeep         = errors.New("expression nested too deeply")
)

// maxDepth bounds parenthesis and unary-sign nesting.
const maxDepth = 64

// Error reports where in the source text evaluation failed.
type Error struct {
	Offset int
	Token  string
	Err    error
}

func (e *Error) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%v at offset %d", e.Err, e.Offset)
	}
	return fmt.Sprintf("%v %q at offset %d", e.Err, e.Token, e.Offset)
}

func (e *Error) Unwrap() error { return e.Err }

// Evaluate computes text and truncates the result to an int64.
func Evaluate(text string) (int64, error) {
	v, err := EvaluateFloat(text)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < math.MinInt64 || v >= math.MaxInt64 {
		return 0, &Error{Offset: len(text), Err: ErrOutOfRange}
	}
	return int64(math.Trunc(v)), nil
}

// EvaluateFloat computes text without the final truncation.
func EvaluateFloat(text string) (float64, error) {
	toks, err := lex(text)
	if err != nil {
		return 0, err
	}
	if len(toks) == 1 {
		return 0, &Error{Offset: 0, Err: ErrEmpty}
	}

	p := &parser{toks: toks}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}

	switch t := p.peek(); t.kind {
	case tokEOF:
		return v, nil
	case tokRParen:
		return 0, &Error{Offset: t.pos, Token: t.text, Err: ErrUnbalanced}
	default:
		return 0, &Error{Offset: t.pos, Token: t.text, Err: ErrUnexpectedToken}
	}
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOp
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind  tokenKind
	text  string
	pos   int
	value float64
}

func lex(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c >= '0' && c <= '9':
			j := i
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			if j < len(s) && isWordByte(s[j]) {
				return nil, &Error{Offset: i, Token: s[i:wordEnd(s, j)], Err: ErrUnexpectedToken}
			}
			v, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				return nil, &Error{Offset: i, Token: s[i:j], Err: ErrOutOfRange}
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:j], pos: i, value: v})
			i = j
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '%':
			toks = append(toks, token{kind: tokOp, text: s[i : i+1], pos: i})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		default:
			end := i + 1
			if isWordByte(s[i]) {
				end = wordEnd(s, i)
			}
			return nil, &Error{Offset: i, Token: s[i:end], Err: ErrUnexpectedToken}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(s)}), nil
}

func isWordByte(b byte) bool {
	return b == '_' || b == '$' || b == '.' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func wordEnd(s string, i int) int {
	for i < len(s) && isWordByte(s[i]) {
		i++
	}
	return i
}

// parser is a recursive-descent evaluator:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/" | "%") unary }
//	unary   = ("-" | "+") unary | primary
//	primary = number | "(" expr ")"
type parser struct {
	toks  []token
	pos   int
	depth int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(ops string) bool {
	t := p.peek()
	if t.kind != tokOp {
		return false
	}
	for i := 0; i < len(ops); i++ {
		if t.text[0] == ops[i] {
			return true
		}
	}
	return false
}

func (p *parser) enter(t token) error {
	p.depth++
	if p.depth > maxDepth {
		return &Error{Offset: t.pos, Token: t.text, Err: ErrTooDeep}
	}
	return nil
}

func (p *parser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for p.isOp("+-") {
		op := p.next()
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if op.text == "+" {
			left += right
		} else {
			left -= right
		}
	}
	return left, nil
}

func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for p.isOp("*/%") {
		op := p.next()
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op.text {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, &Error{Offset: op.pos, Token: op.text, Err: ErrDivisionByZero}
			}
			left /= right
		case "%":
			if right == 0 {
				return 0, &Error{Offset: op.pos, Token: op.text, Err: ErrDivisionByZero}
			}
			left = math.Mod(left, right)
		}
	}
	return left, nil
}

func (p *parser) unary() (float64, error) {
	if !p.isOp("+-") {
		return p.primary()
	}
	op := p.next()
	if err := p.enter(op); err != nil {
		return 0, err
	}
	v, err := p.unary()
	p.depth--
	if err != nil {
		return 0, err
	}
	if op.text == "-" {
		return -v, nil
	}
	return v, nil
}

func (p *parser) primary() (float64, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return t.value, nil
	case tokLParen:
		if err := p.enter(t); err != nil {
			return 0, err
		}
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		p.depth--
		if closing := p.next(); closing.kind != tokRParen {
			return 0, &Error{Offset: t.pos, Token: t.text, Err: ErrUnbalanced}
		}
		return v, nil
	case tokRParen:
		return 0, &Error{Offset: t.pos, Token: t.text, Err: ErrUnbalanced}
	case tokEOF:
		return 0, &Error{Offset: t.pos, Err: ErrUnexpectedToken}
	default:
		return 0, &Error{Offset: t.pos, Token: t.text, Err: ErrUnexpectedToken}
	}
}
