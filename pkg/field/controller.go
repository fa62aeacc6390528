// Package field implements the inline edit lifecycle of a single form field.
//
// A Controller remembers the value to restore on cancel, tracks focus and
// requests exactly one form submit per commit action. It watches the form's
// submit counter to learn when an attempt completed and only then advances
// its previous value. Field kinds (text, number, select, radio,
// autocomplete, date/time) wrap a Controller with their input rules.
//
// Controllers belong to the goroutine running the form's loop.
package field

import (
	"github.com/golang/glog"

	"github.com/goliatone/go-inlineform/pkg/diff"
	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/values"
)

// Controller drives one field of a form.
type Controller struct {
	form  *form.Form
	field form.Field

	state           State
	previous        any
	initial         any
	lastSubmitCount int
	focused         bool
	closed          bool

	unsubscribe func()
	listeners   []func(*Controller)
}

// NewController binds a controller to the field at path.
func NewController(f *form.Form, path string) *Controller {
	c := &Controller{
		form:            f,
		field:           f.Field(path),
		lastSubmitCount: f.SubmitCount(),
	}
	c.initial = c.field.InitialValue()
	c.previous = values.Clone(c.initial)
	c.unsubscribe = f.Subscribe(c.observe)
	return c
}

// OnChange registers fn to run after the controller state changed.
func (c *Controller) OnChange(fn func(*Controller)) {
	if fn != nil {
		c.listeners = append(c.listeners, fn)
	}
}

func (c *Controller) changed() {
	for _, fn := range c.listeners {
		fn(c)
	}
}

func (c *Controller) Path() string      { return c.field.Path() }
func (c *Controller) Form() *form.Form  { return c.form }
func (c *Controller) Field() form.Field { return c.field }
func (c *Controller) State() State      { return c.state }
func (c *Controller) Focused() bool     { return c.focused }
func (c *Controller) Touched() bool     { return c.field.Touched() }
func (c *Controller) Error() string     { return c.field.Error() }

// Value returns the current field value.
func (c *Controller) Value() any { return c.field.Value() }

// PreviousValue returns the value restored by Cancel.
func (c *Controller) PreviousValue() any { return values.Clone(c.previous) }

// ShowControls reports whether commit and cancel affordances are visible.
func (c *Controller) ShowControls() bool { return c.focused && !c.ShowProgress() }

// ShowProgress reports whether the saving affordance is visible: the form is
// submitting this field's changed value and the field has no error.
func (c *Controller) ShowProgress() bool {
	return c.Error() == "" && c.form.IsSubmitting() && !diff.Equal(c.Value(), c.previous)
}

// ShowError reports whether the field error should be displayed.
func (c *Controller) ShowError() bool { return c.Touched() && c.Error() != "" }

func (c *Controller) transition(to State) error {
	if c.closed {
		return form.ErrClosed
	}
	if !canTransition(c.state, to) {
		return &TransitionError{Path: c.Path(), From: c.state, To: to}
	}
	if c.state != to {
		glog.V(2).Infof("field %s: %s -> %s", c.Path(), c.state, to)
	}
	c.state = to
	return nil
}

func (c *Controller) ready() error {
	if c.closed {
		return form.ErrClosed
	}
	if !c.form.Ready() {
		return form.ErrNotReady
	}
	return nil
}

// Focus enters editing. It never submits.
func (c *Controller) Focus() error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.transition(StateEditing); err != nil {
		return err
	}
	c.focused = true
	c.changed()
	return nil
}

// Change sets a new local value and enters editing.
func (c *Controller) Change(value any) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.transition(StateEditing); err != nil {
		return err
	}
	if err := c.field.SetValue(value); err != nil {
		return err
	}
	c.field.SetTouched(true)
	c.changed()
	return nil
}

// Commit requests one form submit for the current value.
func (c *Controller) Commit() error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.transition(StateCommitting); err != nil {
		return err
	}
	c.focused = false
	c.field.SetTouched(true)
	if err := c.form.SubmitForm(); err != nil {
		return err
	}
	c.changed()
	return nil
}

// Cancel restores the previous value and leaves editing.
func (c *Controller) Cancel() error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.transition(StateIdle); err != nil {
		return err
	}
	c.focused = false
	if err := c.field.SetValue(values.Clone(c.previous)); err != nil {
		return err
	}
	c.field.SetTouched(false)
	c.changed()
	return nil
}

// observe runs on every form notification.
func (c *Controller) observe() {
	if c.closed {
		return
	}
	notify := false

	initial := c.field.InitialValue()
	if !diff.Equal(initial, c.initial) {
		c.initial = initial
		c.previous = values.Clone(initial)
		notify = true
	}

	// A field mid-edit keeps the value from before the edit, even when
	// another field's save carried its uncommitted value.
	count := c.form.SubmitCount()
	if !c.form.IsSubmitting() && count != c.lastSubmitCount {
		if c.state != StateEditing {
			c.previous = c.field.Value()
		}
		c.lastSubmitCount = count
		if c.state == StateCommitting {
			glog.V(2).Infof("field %s: %s -> %s", c.Path(), c.state, StateIdle)
			c.state = StateIdle
		}
		notify = true
	}

	if notify {
		c.changed()
	}
}

// Close detaches the controller from the form.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.listeners = nil
}
