// Package visibility decides whether a field applies to a record, from a
// small boolean rule over the record's values:
//
//	kind == "company" && (vat != null || country == "DE")
//	!archived
//	seats >= 10
//
// Identifiers are dotted value paths. A bare identifier is true when its
// value is set and not empty, zero or false. == and != compare with the same
// deep equality patches use, so 3 equals 3.0. <, <=, > and >= compare
// numbers; a missing or non-numeric value makes them false. Bare words on
// the right of a comparison are strings.
package visibility

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-inlineform/pkg/values"
)

// Rule is a compiled rule. A nil Rule is always visible.
type Rule struct {
	src  string
	root node
}

// Compile parses src. An empty src compiles to nil.
func Compile(src string) (*Rule, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.or()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok {
		return nil, fmt.Errorf("visibility: unexpected %q in %q", tok.text, src)
	}
	return &Rule{src: src, root: root}, nil
}

// MustCompile is Compile for rules known to be valid.
func MustCompile(src string) *Rule {
	r, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Rule) String() string {
	if r == nil {
		return ""
	}
	return r.src
}

// Visible evaluates the rule against tree.
func (r *Rule) Visible(tree values.Tree) bool {
	if r == nil {
		return true
	}
	return r.root.eval(tree)
}

// Paths lists the value paths the rule reads, sorted.
func (r *Rule) Paths() []string {
	if r == nil {
		return nil
	}
	seen := map[string]struct{}{}
	r.root.paths(seen)
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Visible compiles and evaluates src in one step. Invalid rules hide
// nothing.
func Visible(src string, tree values.Tree) bool {
	r, err := Compile(src)
	if err != nil {
		return true
	}
	return r.Visible(tree)
}
