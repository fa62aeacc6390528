package field

import (
	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-inlineform/pkg/form"
)

// Key is a keyboard key relevant to inline editing.
type Key string

const (
	KeyEnter  Key = "Enter"
	KeyEscape Key = "Escape"
	KeyTab    Key = "Tab"
)

// TextField is a free text field. Escape cancels, Enter commits single-line
// fields and blur commits unless focus moved to the cancel control.
type TextField struct {
	*Controller
	multiline bool
	policy    *bluemonday.Policy
}

type TextOption func(*TextField)

// Multiline makes Enter insert text instead of committing.
func Multiline() TextOption {
	return func(t *TextField) { t.multiline = true }
}

// Sanitize strips markup from committed text with policy. A nil policy uses
// bluemonday.StrictPolicy.
func Sanitize(policy *bluemonday.Policy) TextOption {
	return func(t *TextField) {
		if policy == nil {
			policy = bluemonday.StrictPolicy()
		}
		t.policy = policy
	}
}

func NewTextField(f *form.Form, path string, opts ...TextOption) *TextField {
	t := &TextField{Controller: NewController(f, path)}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Input replaces the text.
func (t *TextField) Input(text string) error {
	return t.Change(text)
}

// Text returns the current value as text.
func (t *TextField) Text() string {
	s, _ := t.Value().(string)
	return s
}

// Key handles a key press.
func (t *TextField) Key(key Key) error {
	switch key {
	case KeyEscape:
		return t.Cancel()
	case KeyEnter:
		if t.multiline {
			return nil
		}
		return t.Commit()
	default:
		return nil
	}
}

// Blur leaves the field. toCancel reports that focus moved to the cancel
// control, in which case the edit is cancelled instead of committed.
func (t *TextField) Blur(toCancel bool) error {
	if toCancel {
		return t.Cancel()
	}
	return t.Commit()
}

// Commit sanitizes the text, when configured, and commits it.
func (t *TextField) Commit() error {
	if t.policy != nil {
		if s, ok := t.Value().(string); ok {
			if clean := t.policy.Sanitize(s); clean != s {
				if err := t.Field().SetValue(clean); err != nil {
					return err
				}
			}
		}
	}
	return t.Controller.Commit()
}
