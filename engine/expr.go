/*
expr.go - Whitelisted expression language for salary rules

PURPOSE:
  Salary-rule conditions and amounts are small arithmetic expressions over a
  named environment (contract fields, period facts, prior line codes). This
  file implements the restricted grammar: literals, identifiers, arithmetic,
  comparisons, and the helpers min/max/round/floor/abs. Nothing else.

WHY NOT A SCRIPTING ENGINE:
  The upstream system evaluated free-form rule strings, which made rules
  impossible to audit and let them reach into global state. Here every
  identifier is resolved against a known environment when the ruleset is
  LOADED, not when a payslip is computed. Unknown names are a load error.

GRAMMAR (precedence low to high):
  expr    := cmp
  cmp     := add (("<" | "<=" | ">" | ">=" | "==" | "!=") add)?
  add     := mul (("+" | "-") mul)*
  mul     := unary (("*" | "/") unary)*
  unary   := "-" unary | primary
  primary := NUMBER | IDENT | IDENT "(" expr ("," expr)* ")" | "(" expr ")"

  Identifiers may be dotted: contract.salary_base, payslip.period_days.
  Comparisons evaluate to 1 or 0; a condition is true when non-zero.

USAGE:
  e, err := engine.ParseExpr("min(contract.salary_base, sso_ceiling) * 0.045")
  val, err := e.Eval(env)
*/
package engine

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Env resolves identifier values during evaluation.
type Env func(name string) (decimal.Decimal, bool)

// Expr is a parsed, immutable expression.
type Expr struct {
	src  string
	root node
}

// Source returns the original expression text.
func (e *Expr) Source() string { return e.src }

// ParseExpr parses src into an expression, rejecting anything outside the
// whitelisted grammar.
func ParseExpr(src string) (*Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, fmt.Errorf("unexpected %q at end of expression", p.peek().text)
	}
	return &Expr{src: src, root: root}, nil
}

// MustParseExpr parses a built-in rule formula. Panics on error: built-in
// rulesets are constructed at startup and a bad formula is a programming
// mistake, not runtime input.
func MustParseExpr(src string) *Expr {
	e, err := ParseExpr(src)
	if err != nil {
		panic(fmt.Sprintf("bad built-in expression %q: %v", src, err))
	}
	return e
}

// Identifiers returns every identifier referenced by the expression,
// excluding function names. Used for load-time validation.
func (e *Expr) Identifiers() []string {
	seen := map[string]bool{}
	var out []string
	var walk func(n node)
	walk = func(n node) {
		switch v := n.(type) {
		case identNode:
			if !seen[v.name] {
				seen[v.name] = true
				out = append(out, v.name)
			}
		case unaryNode:
			walk(v.operand)
		case binaryNode:
			walk(v.left)
			walk(v.right)
		case callNode:
			for _, a := range v.args {
				walk(a)
			}
		}
	}
	walk(e.root)
	return out
}

// Eval computes the expression against env.
func (e *Expr) Eval(env Env) (decimal.Decimal, error) {
	return e.root.eval(env)
}

// EvalBool treats the result as a condition: true when non-zero.
func (e *Expr) EvalBool(env Env) (bool, error) {
	v, err := e.root.eval(env)
	if err != nil {
		return false, err
	}
	return !v.IsZero(), nil
}

// =============================================================================
// AST
// =============================================================================

type node interface {
	eval(env Env) (decimal.Decimal, error)
}

type numberNode struct{ value decimal.Decimal }

func (n numberNode) eval(Env) (decimal.Decimal, error) { return n.value, nil }

type identNode struct{ name string }

func (n identNode) eval(env Env) (decimal.Decimal, error) {
	if v, ok := env(n.name); ok {
		return v, nil
	}
	return decimal.Zero, fmt.Errorf("unknown identifier %q", n.name)
}

type unaryNode struct{ operand node }

func (n unaryNode) eval(env Env) (decimal.Decimal, error) {
	v, err := n.operand.eval(env)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Neg(), nil
}

type binaryNode struct {
	op    string
	left  node
	right node
}

func (n binaryNode) eval(env Env) (decimal.Decimal, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return decimal.Zero, err
	}
	r, err := n.right.eval(env)
	if err != nil {
		return decimal.Zero, err
	}
	switch n.op {
	case "+":
		return l.Add(r), nil
	case "-":
		return l.Sub(r), nil
	case "*":
		return l.Mul(r), nil
	case "/":
		if r.IsZero() {
			return decimal.Zero, fmt.Errorf("division by zero")
		}
		return l.Div(r), nil
	case "<":
		return boolDec(l.LessThan(r)), nil
	case "<=":
		return boolDec(l.LessThanOrEqual(r)), nil
	case ">":
		return boolDec(l.GreaterThan(r)), nil
	case ">=":
		return boolDec(l.GreaterThanOrEqual(r)), nil
	case "==":
		return boolDec(l.Equal(r)), nil
	case "!=":
		return boolDec(!l.Equal(r)), nil
	}
	return decimal.Zero, fmt.Errorf("unknown operator %q", n.op)
}

func boolDec(b bool) decimal.Decimal {
	if b {
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}

type callNode struct {
	fn   string
	args []node
}

func (n callNode) eval(env Env) (decimal.Decimal, error) {
	vals := make([]decimal.Decimal, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(env)
		if err != nil {
			return decimal.Zero, err
		}
		vals[i] = v
	}
	switch n.fn {
	case "min":
		out := vals[0]
		for _, v := range vals[1:] {
			if v.LessThan(out) {
				out = v
			}
		}
		return out, nil
	case "max":
		out := vals[0]
		for _, v := range vals[1:] {
			if v.GreaterThan(out) {
				out = v
			}
		}
		return out, nil
	case "round":
		places := int32(0)
		if len(vals) == 2 {
			places = int32(vals[1].IntPart())
		}
		return vals[0].Round(places), nil
	case "floor":
		return vals[0].Floor(), nil
	case "abs":
		return vals[0].Abs(), nil
	}
	return decimal.Zero, fmt.Errorf("unknown function %q", n.fn)
}

// knownFunctions maps function name to (min arity, max arity; -1 = variadic).
var knownFunctions = map[string][2]int{
	"min":   {2, -1},
	"max":   {2, -1},
	"round": {1, 2},
	"floor": {1, 1},
	"abs":   {1, 1},
}

// =============================================================================
// LEXER
// =============================================================================

type token struct {
	kind string // "num", "ident", "op", "lparen", "rparen", "comma"
	text string
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	runes := []rune(src)
	for i < len(runes) {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case unicode.IsDigit(c) || (c == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: "num", text: string(runes[i:j])})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: "ident", text: string(runes[i:j])})
			i = j
		case c == '(':
			toks = append(toks, token{kind: "lparen", text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: "rparen", text: ")"})
			i++
		case c == ',':
			toks = append(toks, token{kind: "comma", text: ","})
			i++
		case strings.ContainsRune("+-*/", c):
			toks = append(toks, token{kind: "op", text: string(c)})
			i++
		case c == '<' || c == '>' || c == '=' || c == '!':
			op := string(c)
			if i+1 < len(runes) && runes[i+1] == '=' {
				op += "="
				i++
			}
			if op == "=" || op == "!" {
				return nil, fmt.Errorf("invalid operator %q", op)
			}
			toks = append(toks, token{kind: "op", text: op})
			i++
		default:
			return nil, fmt.Errorf("invalid character %q in expression", c)
		}
	}
	return toks, nil
}

// =============================================================================
// PARSER - Recursive descent, one token of lookahead
// =============================================================================

type parser struct {
	toks []token
	pos  int
}

func (p *parser) eof() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.eof() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) acceptOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != "op" {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if op, ok := p.acceptOp("<", "<=", ">", ">=", "==", "!="); ok {
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseAdd() (node, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseMul() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("*", "/")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if _, ok := p.acceptOp("-"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case "num":
		v, err := decimal.NewFromString(t.text)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.text)
		}
		return numberNode{value: v}, nil

	case "ident":
		if p.peek().kind != "lparen" {
			return identNode{name: t.text}, nil
		}
		arity, ok := knownFunctions[t.text]
		if !ok {
			return nil, fmt.Errorf("unknown function %q", t.text)
		}
		p.next() // consume "("
		var args []node
		if p.peek().kind != "rparen" {
			for {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.peek().kind != "comma" {
					break
				}
				p.next()
			}
		}
		if p.peek().kind != "rparen" {
			return nil, fmt.Errorf("missing ) in call to %s", t.text)
		}
		p.next()
		if len(args) < arity[0] || (arity[1] >= 0 && len(args) > arity[1]) {
			return nil, fmt.Errorf("%s: wrong argument count %d", t.text, len(args))
		}
		return callNode{fn: t.text, args: args}, nil

	case "lparen":
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != "rparen" {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.next()
		return inner, nil
	}
	return nil, fmt.Errorf("unexpected %q in expression", t.text)
}
