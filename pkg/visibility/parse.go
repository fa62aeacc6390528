package visibility

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-inlineform/pkg/diff"
	"github.com/goliatone/go-inlineform/pkg/values"
)

type node interface {
	eval(tree values.Tree) bool
	paths(seen map[string]struct{})
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) accept(kind tokenKind) bool {
	if tok, ok := p.peek(); ok && tok.kind == kind {
		p.pos++
		return true
	}
	return false
}

func (p *parser) or() (node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.accept(tokOr) {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) and() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.accept(tokAnd) {
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	if p.accept(tokNot) {
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	if p.accept(tokLParen) {
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if !p.accept(tokRParen) {
			return nil, errors.New("visibility: missing ')'")
		}
		return inner, nil
	}

	tok, ok := p.peek()
	if !ok {
		return nil, errors.New("visibility: unexpected end of rule")
	}
	if tok.kind != tokIdent {
		return nil, fmt.Errorf("visibility: expected a value path, got %q", tok.text)
	}
	p.pos++
	switch tok.text {
	case "true":
		return constNode(true), nil
	case "false":
		return constNode(false), nil
	}

	op, ok := p.peek()
	if !ok || op.kind != tokOp {
		return truthyNode{path: tok.text}, nil
	}
	p.pos++
	lit, err := p.literal()
	if err != nil {
		return nil, err
	}
	cmp := compareNode{path: tok.text, op: op.text, literal: lit}
	if cmp.ordered() {
		if _, isNumber := lit.(float64); !isNumber {
			return nil, fmt.Errorf("visibility: %s needs a number, got %q", op.text, fmt.Sprint(lit))
		}
	}
	return cmp, nil
}

func (p *parser) literal() (any, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, errors.New("visibility: missing value after operator")
	}
	p.pos++
	switch tok.kind {
	case tokString:
		return tok.text, nil
	case tokNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("visibility: invalid number %q", tok.text)
		}
		return f, nil
	case tokIdent:
		switch strings.ToLower(tok.text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null", "nil":
			return nil, nil
		}
		return tok.text, nil
	}
	return nil, fmt.Errorf("visibility: expected a value, got %q", tok.text)
}

type orNode struct{ left, right node }

func (n orNode) eval(tree values.Tree) bool { return n.left.eval(tree) || n.right.eval(tree) }
func (n orNode) paths(seen map[string]struct{}) {
	n.left.paths(seen)
	n.right.paths(seen)
}

type andNode struct{ left, right node }

func (n andNode) eval(tree values.Tree) bool { return n.left.eval(tree) && n.right.eval(tree) }
func (n andNode) paths(seen map[string]struct{}) {
	n.left.paths(seen)
	n.right.paths(seen)
}

type notNode struct{ inner node }

func (n notNode) eval(tree values.Tree) bool     { return !n.inner.eval(tree) }
func (n notNode) paths(seen map[string]struct{}) { n.inner.paths(seen) }

type constNode bool

func (n constNode) eval(values.Tree) bool     { return bool(n) }
func (n constNode) paths(map[string]struct{}) {}

type truthyNode struct{ path string }

func (n truthyNode) eval(tree values.Tree) bool {
	value, _ := values.Get(tree, n.path)
	return truthy(value)
}

func (n truthyNode) paths(seen map[string]struct{}) { seen[n.path] = struct{}{} }

type compareNode struct {
	path    string
	op      string
	literal any
}

func (n compareNode) ordered() bool {
	return n.op != "==" && n.op != "!="
}

func (n compareNode) eval(tree values.Tree) bool {
	value, _ := values.Get(tree, n.path)
	switch n.op {
	case "==":
		return diff.Equal(value, n.literal)
	case "!=":
		return !diff.Equal(value, n.literal)
	}
	got, ok := number(value)
	if !ok {
		return false
	}
	want := n.literal.(float64)
	switch n.op {
	case "<":
		return got < want
	case "<=":
		return got <= want
	case ">":
		return got > want
	case ">=":
		return got >= want
	}
	return false
}

func (n compareNode) paths(seen map[string]struct{}) { seen[n.path] = struct{}{} }

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	if n, ok := number(value); ok {
		return n != 0
	}
	return true
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}
