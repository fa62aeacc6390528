package field

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-inlineform/pkg/diff"
	"github.com/goliatone/go-inlineform/pkg/form"
)

// Option is a choice of a select, radio or autocomplete field. It is either a
// literal value, displayed as is, or a value with a label.
type Option struct {
	Value   any
	Label   string
	labeled bool
}

// Literal builds an option displayed by its own value.
func Literal(value string) Option {
	return Option{Value: value, Label: value}
}

// Labeled builds an option with a separate label.
func Labeled(value any, label string) Option {
	return Option{Value: value, Label: label, labeled: true}
}

// IsLabeled reports whether the option carries its own label.
func (o Option) IsLabeled() bool { return o.labeled }

// Key returns the string form of the value used for lookups.
func (o Option) Key() string { return fmt.Sprint(o.Value) }

// OptionsFrom converts a mixed list of strings and {value,label} maps, as
// found in JSON and YAML field definitions.
func OptionsFrom(raw []any) []Option {
	out := make([]Option, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			out = append(out, Literal(v))
		case map[string]any:
			label, _ := v["label"].(string)
			if label == "" {
				label = fmt.Sprint(v["value"])
			}
			out = append(out, Labeled(v["value"], label))
		case Option:
			out = append(out, v)
		default:
			out = append(out, Labeled(v, fmt.Sprint(v)))
		}
	}
	return out
}

func findOption(options []Option, value any) (Option, bool) {
	for _, opt := range options {
		if diff.Equal(opt.Value, value) || opt.Key() == fmt.Sprint(value) {
			return opt, true
		}
	}
	return Option{}, false
}

// ErrUnknownOption is reported when a value outside the option set is chosen.
var ErrUnknownOption = errors.New("field: value is not one of the options")

// SelectField commits as soon as a choice is made.
type SelectField struct {
	*Controller
	options []Option
}

func NewSelectField(f *form.Form, path string, options []Option) *SelectField {
	return &SelectField{Controller: NewController(f, path), options: options}
}

func (s *SelectField) Options() []Option { return append([]Option(nil), s.options...) }

// Selected returns the option matching the current value.
func (s *SelectField) Selected() (Option, bool) { return findOption(s.options, s.Value()) }

// Choose sets the value of the option matching value and commits. Values
// outside the option set are rejected with a field error.
func (s *SelectField) Choose(value any) error {
	opt, ok := findOption(s.options, value)
	if !ok {
		s.Field().SetError(ErrUnknownOption.Error())
		return fmt.Errorf("%w: %v", ErrUnknownOption, value)
	}
	if err := s.Change(opt.Value); err != nil {
		return err
	}
	return s.Commit()
}

// RadioGroup commits on change. Boolean groups store "true" and "false"
// choices as bools.
type RadioGroup struct {
	*Controller
	options []Option
	boolean bool
}

func NewRadioGroup(f *form.Form, path string, options []Option, boolean bool) *RadioGroup {
	return &RadioGroup{Controller: NewController(f, path), options: options, boolean: boolean}
}

func (r *RadioGroup) Options() []Option { return append([]Option(nil), r.options...) }

// Choose stores the option with the given key and commits.
func (r *RadioGroup) Choose(key string) error {
	opt, ok := findOption(r.options, key)
	if !ok {
		r.Field().SetError(ErrUnknownOption.Error())
		return fmt.Errorf("%w: %s", ErrUnknownOption, key)
	}
	var value any = opt.Value
	if r.boolean {
		value = strings.EqualFold(opt.Key(), "true")
	}
	if err := r.Change(value); err != nil {
		return err
	}
	return r.Commit()
}
