package field

import (
	"sort"
	"strings"

	"github.com/goliatone/go-inlineform/pkg/form"
)

// Autocomplete suggests options while typing. Escape restores the previous
// value and blur commits.
type Autocomplete struct {
	*Controller
	options []Option
	limit   int
}

func NewAutocomplete(f *form.Form, path string, options []Option, limit int) *Autocomplete {
	return &Autocomplete{Controller: NewController(f, path), options: options, limit: limit}
}

// Suggest returns options whose label contains query, prefix matches first.
// An empty query yields no suggestions.
func (a *Autocomplete) Suggest(query string) []Option {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	type match struct {
		opt      Option
		isPrefix bool
	}
	matches := make([]match, 0, 16)
	for _, opt := range a.options {
		label := strings.ToLower(opt.Label)
		if !strings.Contains(label, query) {
			continue
		}
		matches = append(matches, match{opt: opt, isPrefix: strings.HasPrefix(label, query)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].isPrefix != matches[j].isPrefix {
			return matches[i].isPrefix
		}
		return matches[i].opt.Label < matches[j].opt.Label
	})
	if a.limit > 0 && len(matches) > a.limit {
		matches = matches[:a.limit]
	}

	out := make([]Option, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.opt)
	}
	return out
}

// Pick stores the option value without committing.
func (a *Autocomplete) Pick(opt Option) error {
	return a.Change(opt.Value)
}

func (a *Autocomplete) Key(key Key) error {
	if key == KeyEscape {
		return a.Cancel()
	}
	return nil
}

func (a *Autocomplete) Blur() error {
	return a.Commit()
}
