package form

import (
	"strings"
)

// Helpers is handed to submitters. Its methods are safe to call from any
// goroutine; changes are applied on the form's loop.
type Helpers struct {
	form *Form
}

// SetFieldError sets the error of one field.
func (h Helpers) SetFieldError(path, msg string) {
	if h.form == nil {
		return
	}
	h.form.loop.Post(func() { h.form.Field(path).SetError(msg) })
}

// SetErrors replaces all field errors.
func (h Helpers) SetErrors(errs map[string]string) {
	if h.form == nil {
		return
	}
	copied := make(map[string]string, len(errs))
	for k, v := range errs {
		copied[k] = v
	}
	h.form.loop.Post(func() { h.form.SetErrors(copied) })
}

// ApplyErrorPayload maps a server validation payload onto field errors and
// returns the messages that could not be attributed to a field. The payload
// is mapped against fieldPaths, typically the keys of the submitted patch.
func (h Helpers) ApplyErrorPayload(fieldPaths []string, payload map[string][]string) []string {
	mapping := MapErrorPayload(fieldPaths, payload)
	if len(mapping.Fields) > 0 && h.form != nil {
		errs := make(map[string]string, len(mapping.Fields))
		for path, messages := range mapping.Fields {
			errs[path] = strings.Join(messages, "; ")
		}
		h.form.loop.Post(func() {
			for path, msg := range errs {
				h.form.errors[path] = msg
			}
			h.form.notify()
		})
	}
	return mapping.Form
}
