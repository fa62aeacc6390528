package form

import (
	"github.com/goliatone/go-inlineform/pkg/values"
)

// Field is the accessor for one field of a Form, addressed by dotted path.
type Field struct {
	form *Form
	path string
}

func (fl Field) Path() string { return fl.path }

func (fl Field) Form() *Form { return fl.form }

// Value returns a deep copy of the field's current value.
func (fl Field) Value() any {
	v, _ := values.Get(fl.form.values, fl.path)
	return values.Clone(v)
}

// InitialValue returns a deep copy of the field's initial value.
func (fl Field) InitialValue() any {
	v, _ := values.Get(fl.form.initial, fl.path)
	return values.Clone(v)
}

func (fl Field) Touched() bool { return fl.form.touched[fl.path] }

// Error returns the field error, or "" when the field is valid.
func (fl Field) Error() string { return fl.form.errors[fl.path] }

// SetValue stores a deep copy of value at the field path.
func (fl Field) SetValue(value any) error {
	f := fl.form
	if f.closed {
		return ErrClosed
	}
	if !f.Ready() {
		return ErrNotReady
	}
	if err := values.Set(f.values, fl.path, values.Clone(value)); err != nil {
		return err
	}
	f.validateOnChange()
	f.notify()
	return nil
}

func (fl Field) SetTouched(touched bool) {
	if touched {
		fl.form.touched[fl.path] = true
	} else {
		delete(fl.form.touched, fl.path)
	}
	fl.form.notify()
}

// SetError sets the field error. An empty message clears it.
func (fl Field) SetError(msg string) {
	if msg == "" {
		delete(fl.form.errors, fl.path)
	} else {
		fl.form.errors[fl.path] = msg
	}
	fl.form.notify()
}
