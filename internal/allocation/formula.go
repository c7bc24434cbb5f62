package allocation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Formula expressions are restricted arithmetic over a fixed variable
// vocabulary. They are parsed into an expression tree and evaluated
// numerically; user-supplied text never reaches a general-purpose
// interpreter.

// FormulaVariables is the whitelist of identifiers a formula may reference.
var FormulaVariables = map[string]bool{
	"source_amount":        true,
	"headcount":            true,
	"total_headcount":      true,
	"square_footage":       true,
	"total_square_footage": true,
	"patient_days":         true,
	"total_patient_days":   true,
	"service_volume":       true,
	"total_service_volume": true,
	"revenue":              true,
	"total_revenue":        true,
}

// Expr is a parsed formula node: Literal, Variable, or BinaryOp.
type Expr interface {
	Evaluate(vars map[string]decimal.Decimal) (decimal.Decimal, error)
}

// Literal is a numeric constant.
type Literal struct {
	Value decimal.Decimal
}

// Evaluate returns the constant value.
func (l Literal) Evaluate(map[string]decimal.Decimal) (decimal.Decimal, error) {
	return l.Value, nil
}

// Variable references one of the whitelisted driver values.
type Variable struct {
	Name string
}

// Evaluate looks the variable up in the supplied value map.
func (v Variable) Evaluate(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	val, ok := vars[v.Name]
	if !ok {
		return decimal.Zero, fmt.Errorf("formula variable %q has no value", v.Name)
	}
	return val, nil
}

// BinaryOp applies +, -, * or / to two subtrees.
type BinaryOp struct {
	Op    byte
	Left  Expr
	Right Expr
}

// Evaluate computes both subtrees and applies the operator. Division by a
// zero value is an evaluation error.
func (b BinaryOp) Evaluate(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	left, err := b.Left.Evaluate(vars)
	if err != nil {
		return decimal.Zero, err
	}
	right, err := b.Right.Evaluate(vars)
	if err != nil {
		return decimal.Zero, err
	}
	switch b.Op {
	case '+':
		return left.Add(right), nil
	case '-':
		return left.Sub(right), nil
	case '*':
		return left.Mul(right), nil
	case '/':
		if right.IsZero() {
			return decimal.Zero, fmt.Errorf("formula divides by zero")
		}
		return left.Div(right), nil
	}
	return decimal.Zero, fmt.Errorf("unknown operator %q", string(b.Op))
}

// ValidateFormula reports whether the expression parses under the restricted
// grammar. It rejects unknown identifiers, unbalanced parentheses, doubled
// or trailing operators, and literal division by zero.
func ValidateFormula(input string) error {
	_, err := ParseFormula(input)
	return err
}

// ParseFormula tokenizes and parses the expression into an Expr tree.
func ParseFormula(input string) (Expr, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("formula is empty")
	}
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("unexpected token %q", p.tokens[p.pos].text)
	}
	return expr, nil
}

type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenIdent
	tokenOperator
	tokenLeftParen
	tokenRightParen
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{tokenLeftParen, "("})
			i++
		case r == ')':
			tokens = append(tokens, token{tokenRightParen, ")"})
			i++
		case r == '+' || r == '-' || r == '*' || r == '/':
			tokens = append(tokens, token{tokenOperator, string(r)})
			i++
		case unicode.IsDigit(r):
			j := i
			dots := 0
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				if runes[j] == '.' {
					dots++
				}
				j++
			}
			if dots > 1 {
				return nil, fmt.Errorf("malformed number %q", string(runes[i:j]))
			}
			tokens = append(tokens, token{tokenNumber, string(runes[i:j])})
			i = j
		case unicode.IsLower(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLower(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			name := string(runes[i:j])
			if !FormulaVariables[name] {
				return nil, fmt.Errorf("unknown formula variable %q", name)
			}
			tokens = append(tokens, token{tokenIdent, name})
			i = j
		default:
			return nil, fmt.Errorf("illegal character %q in formula", string(r))
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("formula is empty")
	}
	return tokens, nil
}

// parser implements the grammar
//
//	expr   = term { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = number | variable | "(" expr ")"
type parser struct {
	tokens []token
	pos    int
}

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.pos < len(p.tokens) && p.tokens[p.pos].kind == tokenOperator &&
		(p.tokens[p.pos].text == "+" || p.tokens[p.pos].text == "-") {
		op := p.tokens[p.pos].text[0]
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.pos < len(p.tokens) && p.tokens[p.pos].kind == tokenOperator &&
		(p.tokens[p.pos].text == "*" || p.tokens[p.pos].text == "/") {
		op := p.tokens[p.pos].text[0]
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		if op == '/' {
			if lit, ok := right.(Literal); ok && lit.Value.IsZero() {
				return nil, fmt.Errorf("formula divides by zero")
			}
		}
		left = BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseFactor() (Expr, error) {
	if p.pos >= len(p.tokens) {
		return nil, fmt.Errorf("formula ends unexpectedly")
	}
	tok := p.tokens[p.pos]
	switch tok.kind {
	case tokenNumber:
		p.pos++
		value, err := decimal.NewFromString(tok.text)
		if err != nil {
			return nil, fmt.Errorf("malformed number %q", tok.text)
		}
		return Literal{Value: value}, nil
	case tokenIdent:
		p.pos++
		return Variable{Name: tok.text}, nil
	case tokenLeftParen:
		p.pos++
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.tokens) || p.tokens[p.pos].kind != tokenRightParen {
			return nil, fmt.Errorf("unbalanced parentheses")
		}
		p.pos++
		return expr, nil
	default:
		return nil, fmt.Errorf("unexpected token %q", tok.text)
	}
}
