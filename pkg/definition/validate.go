package definition

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-inlineform/pkg/field"
	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/upload"
	"github.com/goliatone/go-inlineform/pkg/values"
)

// Issue is a problem found in a value tree.
type Issue struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Result collects the issues of a Check.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

// Check validates tree against def: required fields must be set, option
// values must be known and number bounds hold. Fields hidden by their
// VisibleWhen rule are skipped.
func Check(def Definition, tree values.Tree) Result {
	result := Result{Valid: true}
	add := func(path, msg string) {
		result.Valid = false
		result.Issues = append(result.Issues, Issue{Path: path, Message: msg})
	}

	for _, f := range def.Fields {
		if !f.Visible(tree) {
			continue
		}
		value, _ := values.Get(tree, f.Path)
		if blank(f, value) {
			if f.Required {
				add(f.Path, "is required")
			}
			continue
		}
		switch f.Kind {
		case KindSelect, KindRadio, KindBoolean:
			if !hasOption(f, value) {
				add(f.Path, "is not one of the options")
			}
		case KindNumber:
			n, ok := number(f, value)
			switch {
			case !ok:
				add(f.Path, "must be a number")
			case f.Min != nil && n < *f.Min:
				add(f.Path, "is below the minimum")
			case f.Max != nil && n > *f.Max:
				add(f.Path, "is above the maximum")
			}
		case KindDate, KindDateTime, KindBirthdate:
			if _, ok := field.ParseTime(value); !ok {
				add(f.Path, "must be a date")
			}
		}
	}
	return result
}

// Validator adapts Check to form.WithValidator.
func (d Definition) Validator() form.ValidateFunc {
	return func(tree values.Tree) map[string]string {
		result := Check(d, tree)
		if result.Valid {
			return nil
		}
		errs := make(map[string]string, len(result.Issues))
		for _, issue := range result.Issues {
			if _, ok := errs[issue.Path]; !ok {
				errs[issue.Path] = issue.Message
			}
		}
		return errs
	}
}

// Defaults returns an empty record shaped by def: lists for multi-file
// fields, empty strings for text and nil elsewhere.
func (d Definition) Defaults() values.Tree {
	tree := values.Tree{}
	for _, f := range d.Fields {
		var v any
		switch f.Kind {
		case KindText, KindTextarea, KindImage, KindAutocomplete:
			v = ""
		case KindFile:
			v = []any{}
		}
		_ = values.Set(tree, f.Path, v)
	}
	return tree
}

func blank(f Field, value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	}
	if f.Kind == KindFile {
		return len(upload.FileValuesFrom(value)) == 0
	}
	return false
}

func hasOption(f Field, value any) bool {
	for _, opt := range field.OptionsFrom(f.Options) {
		if opt.Key() == fmt.Sprint(value) {
			return true
		}
	}
	return false
}

func number(f Field, value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		_, n, ok := NumberFormat(f).Parse(v)
		return n, ok
	}
	return 0, false
}
