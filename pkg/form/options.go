package form

import (
	"context"
	"errors"

	"github.com/golang/glog"

	"github.com/goliatone/go-inlineform/pkg/diff"
	"github.com/goliatone/go-inlineform/pkg/values"
)

// ValidateFunc returns field errors keyed by dotted path. An empty result
// means the values are valid.
type ValidateFunc func(values.Tree) map[string]string

// ErrorHandler receives every error that ends a submit attempt.
type ErrorHandler func(error)

// Options configures a Form.
type Options struct {
	Context          context.Context
	InitialValues    values.Tree
	Validator        ValidateFunc
	ValidateOnChange bool
	ErrorHandler     ErrorHandler
}

// OptionFn mutates Options.
type OptionFn func(*Options)

// DefaultOptions returns the form defaults: validation on change enabled and
// attempt errors logged.
func DefaultOptions() Options {
	return Options{
		Context:          context.Background(),
		ValidateOnChange: true,
		ErrorHandler:     LogError,
	}
}

// NewOptions applies fns over DefaultOptions.
func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.ErrorHandler == nil {
		opts.ErrorHandler = LogError
	}
	if opts.InitialValues != nil {
		opts.InitialValues = values.CloneTree(opts.InitialValues)
	}
	return opts
}

// WithContext sets the parent context handed to the submitter. Closing the
// form cancels it.
func WithContext(ctx context.Context) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Context = ctx
	}
}

// WithInitialValues seeds the form. Without initial values the form is not
// ready until SetInitialValues is called.
func WithInitialValues(tree values.Tree) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.InitialValues = tree
	}
}

func WithValidator(fn ValidateFunc) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Validator = fn
	}
}

func WithValidateOnChange(enabled bool) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.ValidateOnChange = enabled
	}
}

func WithErrorHandler(fn ErrorHandler) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.ErrorHandler = fn
	}
}

// LogError is the default ErrorHandler. Contract violations such as
// incompatible value kinds are logged at error level, failed attempts as
// warnings.
func LogError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, diff.ErrIncompatibleTypes) {
		glog.Errorf("form: %v", err)
		return
	}
	glog.Warningf("form: submit attempt failed: %v", err)
}
