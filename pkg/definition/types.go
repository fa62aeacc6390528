// Package definition describes inline forms as data.
//
// A Definition lists the fields of a record editor: their paths, kinds and
// kind specific settings. Definitions are loaded from JSON or YAML files or
// derived from the request body of an OpenAPI operation, and Bind turns one
// into live field controllers on a form.
package definition

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-inlineform/pkg/upload"
	"github.com/goliatone/go-inlineform/pkg/values"
	"github.com/goliatone/go-inlineform/pkg/visibility"
)

// Kind names a field kind.
type Kind string

const (
	KindText         Kind = "text"
	KindTextarea     Kind = "textarea"
	KindNumber       Kind = "number"
	KindSelect       Kind = "select"
	KindRadio        Kind = "radio"
	KindBoolean      Kind = "boolean"
	KindAutocomplete Kind = "autocomplete"
	KindDate         Kind = "date"
	KindDateTime     Kind = "datetime"
	KindBirthdate    Kind = "birthdate"
	KindFile         Kind = "file"
	KindImage        Kind = "image"
)

var knownKinds = map[Kind]struct{}{
	KindText: {}, KindTextarea: {}, KindNumber: {}, KindSelect: {}, KindRadio: {},
	KindBoolean: {}, KindAutocomplete: {}, KindDate: {}, KindDateTime: {},
	KindBirthdate: {}, KindFile: {}, KindImage: {},
}

// Field describes one field.
type Field struct {
	Path     string `json:"path" yaml:"path"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
	Kind     Kind   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`

	// Options holds strings or {value, label} mappings.
	Options []any `json:"options,omitempty" yaml:"options,omitempty"`
	// Limit caps autocomplete suggestions.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`

	// Format is one of "credit-card", "phone", "currency" or "length".
	Format        string   `json:"format,omitempty" yaml:"format,omitempty"`
	Prefix        string   `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Length        int      `json:"length,omitempty" yaml:"length,omitempty"`
	NumericString bool     `json:"numericString,omitempty" yaml:"numericString,omitempty"`
	Min           *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max           *float64 `json:"max,omitempty" yaml:"max,omitempty"`

	Sanitize bool `json:"sanitize,omitempty" yaml:"sanitize,omitempty"`

	Multiple bool                  `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	Accept   string                `json:"accept,omitempty" yaml:"accept,omitempty"`
	Resize   *upload.ResizeOptions `json:"resize,omitempty" yaml:"resize,omitempty"`

	// VisibleWhen hides the field unless the rule holds for the record,
	// e.g. `kind == "company"`.
	VisibleWhen string `json:"visibleWhen,omitempty" yaml:"visibleWhen,omitempty"`
}

// Visible reports whether f applies to tree.
func (f Field) Visible(tree values.Tree) bool {
	return visibility.Visible(f.VisibleWhen, tree)
}

// Definition is a record editor.
type Definition struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	// Endpoint is the API path records are read from and patched at. A
	// "{id}" placeholder is replaced with the record id.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// Uploads is the presign path for file and image fields.
	Uploads string  `json:"uploads,omitempty" yaml:"uploads,omitempty"`
	Fields  []Field `json:"fields" yaml:"fields"`
	Source  string  `json:"-" yaml:"-"`
}

// Field returns the field at path.
func (d Definition) Field(path string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Path == path {
			return f, true
		}
	}
	return Field{}, false
}

// Paths returns the field paths in definition order.
func (d Definition) Paths() []string {
	out := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		out[i] = f.Path
	}
	return out
}

// RecordPath returns the endpoint for record id.
func (d Definition) RecordPath(id string) string {
	return strings.ReplaceAll(d.Endpoint, "{id}", id)
}

// Normalize trims paths, defaults kinds to text and checks the definition.
func (d *Definition) Normalize() error {
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		return fmt.Errorf("definition: %s: missing id", d.sourceName())
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("definition: %q has no fields", d.ID)
	}
	seen := make(map[string]struct{}, len(d.Fields))
	for i := range d.Fields {
		f := &d.Fields[i]
		f.Path = strings.Trim(strings.TrimSpace(f.Path), ".")
		if f.Path == "" {
			return fmt.Errorf("definition: %q field %d has an empty path", d.ID, i)
		}
		if _, dup := seen[f.Path]; dup {
			return fmt.Errorf("definition: %q duplicate field %q", d.ID, f.Path)
		}
		seen[f.Path] = struct{}{}

		f.Kind = Kind(strings.ToLower(strings.TrimSpace(string(f.Kind))))
		if f.Kind == "" {
			f.Kind = KindText
		}
		if _, ok := knownKinds[f.Kind]; !ok {
			return fmt.Errorf("definition: %q field %q: unknown kind %q", d.ID, f.Path, f.Kind)
		}
		switch f.Kind {
		case KindBoolean:
			if len(f.Options) == 0 {
				f.Options = []any{
					map[string]any{"value": true, "label": "Yes"},
					map[string]any{"value": false, "label": "No"},
				}
			}
		case KindSelect, KindRadio, KindAutocomplete:
			if len(f.Options) == 0 {
				return fmt.Errorf("definition: %q field %q: %s needs options", d.ID, f.Path, f.Kind)
			}
		}
		if f.Label == "" {
			f.Label = labelFor(f.Path)
		}
		f.VisibleWhen = strings.TrimSpace(f.VisibleWhen)
		if _, err := visibility.Compile(f.VisibleWhen); err != nil {
			return fmt.Errorf("definition: %q field %q: %w", d.ID, f.Path, err)
		}
	}
	return nil
}

func (d Definition) sourceName() string {
	if d.Source == "" {
		return "<inline>"
	}
	return d.Source
}

// labelFor turns the last path segment into a label: "owner.first_name"
// becomes "First name".
func labelFor(path string) string {
	name := path
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		name = name[idx+1:]
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || r == '-':
			b.WriteByte(' ')
		case i > 0 && r >= 'A' && r <= 'Z':
			b.WriteByte(' ')
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	label := b.String()
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
