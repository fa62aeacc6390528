package inline

import (
	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/loop"
)

// Options configures a Coalescer and the form assembled by NewForm.
type Options struct {
	// RollbackOnError restores the previous baseline when persist fails, so
	// the failed changes are sent again with the next attempt. Off by
	// default: a failed save may have partially succeeded server side.
	RollbackOnError bool
	Form            []form.OptionFn
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{}
}

func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	return opts
}

func WithRollbackOnError(enabled bool) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.RollbackOnError = enabled
	}
}

// WithFormOptions forwards options to the form built by NewForm.
func WithFormOptions(fns ...form.OptionFn) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Form = append(o.Form, fns...)
	}
}

// NewForm assembles an inline-edit form: a form.Form whose submit attempts go
// through a Coalescer wrapping persist.
func NewForm(lp *loop.Loop, persist PersistFunc, fns ...OptionFn) (*form.Form, *Coalescer) {
	c := New(lp, persist, fns...)
	f := form.New(lp, c, c.opts.Form...)
	return f, c
}
