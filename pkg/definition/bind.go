package definition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-inlineform/pkg/field"
	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/upload"
)

var ErrNoUploadManager = errors.New("definition: file and image fields need an upload manager")

// Editor is the part of every field kind Bind returns.
type Editor interface {
	Path() string
	Value() any
	State() field.State
	Error() string
	Close()
}

// Binding pairs a field definition with its editor. Editor holds the
// concrete kind, e.g. *field.NumberField or *upload.FileField.
type Binding struct {
	Spec   Field
	Editor Editor
}

// Bound is a bound definition.
type Bound struct {
	Definition Definition
	Bindings   []Binding
}

// Get returns the binding for path.
func (b *Bound) Get(path string) (Binding, bool) {
	for _, binding := range b.Bindings {
		if binding.Spec.Path == path {
			return binding, true
		}
	}
	return Binding{}, false
}

// Close detaches every editor.
func (b *Bound) Close() {
	for _, binding := range b.Bindings {
		binding.Editor.Close()
	}
}

// Bind creates an editor for every field of def on f. manager may be nil
// when def has no file or image fields.
func Bind(f *form.Form, def Definition, manager *upload.Manager) (*Bound, error) {
	bound := &Bound{Definition: def}
	for _, spec := range def.Fields {
		editor, err := newEditor(f, spec, manager)
		if err != nil {
			bound.Close()
			return nil, err
		}
		bound.Bindings = append(bound.Bindings, Binding{Spec: spec, Editor: editor})
	}
	return bound, nil
}

func newEditor(f *form.Form, spec Field, manager *upload.Manager) (Editor, error) {
	switch spec.Kind {
	case KindText, "":
		return field.NewTextField(f, spec.Path, textOptions(spec)...), nil
	case KindTextarea:
		return field.NewTextField(f, spec.Path, append(textOptions(spec), field.Multiline())...), nil
	case KindNumber:
		return field.NewNumberField(f, spec.Path, numberOptions(spec)...), nil
	case KindSelect:
		return field.NewSelectField(f, spec.Path, field.OptionsFrom(spec.Options)), nil
	case KindRadio:
		return field.NewRadioGroup(f, spec.Path, field.OptionsFrom(spec.Options), false), nil
	case KindBoolean:
		return field.NewRadioGroup(f, spec.Path, field.OptionsFrom(spec.Options), true), nil
	case KindAutocomplete:
		return field.NewAutocomplete(f, spec.Path, field.OptionsFrom(spec.Options), spec.Limit), nil
	case KindDate, KindDateTime:
		return field.NewDateTimeField(f, spec.Path), nil
	case KindBirthdate:
		return field.NewDateTimeField(f, spec.Path, field.Birthdate()), nil
	case KindFile:
		if manager == nil {
			return nil, fmt.Errorf("%w: %q", ErrNoUploadManager, spec.Path)
		}
		var opts []upload.FileOption
		if spec.Multiple {
			opts = append(opts, upload.Multiple())
		}
		if spec.Accept != "" {
			opts = append(opts, upload.AcceptTypes(spec.Accept))
		}
		return upload.NewFileField(f, spec.Path, manager, opts...), nil
	case KindImage:
		if manager == nil {
			return nil, fmt.Errorf("%w: %q", ErrNoUploadManager, spec.Path)
		}
		var opts []upload.ImageOption
		if spec.Resize != nil {
			opts = append(opts, upload.WithResize(*spec.Resize))
		}
		return upload.NewImageField(f, spec.Path, manager, opts...), nil
	}
	return nil, fmt.Errorf("definition: field %q: unknown kind %q", spec.Path, spec.Kind)
}

func textOptions(spec Field) []field.TextOption {
	if spec.Sanitize {
		return []field.TextOption{field.Sanitize(nil)}
	}
	return nil
}

// NumberFormat returns the display format named by spec.
func NumberFormat(spec Field) field.NumberFormat {
	switch strings.ToLower(spec.Format) {
	case "credit-card", "creditcard":
		return field.CreditCardFormat
	case "phone":
		return field.PhoneFormat
	case "currency":
		return field.CurrencyFormat
	case "length":
		return field.LengthFormat(spec.Length, spec.Prefix)
	}
	return field.NumberFormat{Prefix: spec.Prefix}
}

func numberOptions(spec Field) []field.NumberOption {
	opts := []field.NumberOption{field.WithFormat(NumberFormat(spec))}
	if spec.NumericString {
		opts = append(opts, field.NumericString())
	}
	if spec.Min != nil {
		opts = append(opts, field.Min(*spec.Min))
	}
	if spec.Max != nil {
		opts = append(opts, field.Max(*spec.Max))
	}
	return opts
}
