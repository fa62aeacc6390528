// Package form implements the form-state container that inline fields and
// the submit coalescer are built on.
//
// A Form owns the value tree, per-field touched and error state, the submit
// counter and the submitting flag. It must only be used from the goroutine
// running its loop.Loop. Submit requests are dispatched once per loop batch,
// and at most one attempt is in flight at a time: requests that arrive while
// an attempt is running collapse into a single follow-up attempt that reads
// the latest values.
package form

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"

	"github.com/goliatone/go-inlineform/pkg/diff"
	"github.com/goliatone/go-inlineform/pkg/loop"
	"github.com/goliatone/go-inlineform/pkg/values"
)

// Submitter receives the full value tree of a submit attempt.
//
// When Submit returns an error the attempt ends immediately with that error
// and done must not be called. Otherwise the submitter calls done exactly once,
// from any goroutine, when the attempt is over.
type Submitter interface {
	Submit(ctx context.Context, tree values.Tree, helpers Helpers, done func(error)) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, tree values.Tree, helpers Helpers, done func(error)) error

func (fn SubmitterFunc) Submit(ctx context.Context, tree values.Tree, helpers Helpers, done func(error)) error {
	return fn(ctx, tree, helpers, done)
}

// InitialValuesObserver is implemented by submitters that track the form's
// initial values.
type InitialValuesObserver interface {
	InitialValuesChanged(tree values.Tree)
}

// Form is the form-state container.
type Form struct {
	loop      *loop.Loop
	submitter Submitter
	opts      Options
	ctx       context.Context
	cancel    context.CancelFunc

	values  values.Tree
	initial values.Tree
	touched map[string]bool
	errors  map[string]string

	formError   error
	loadError   error
	submitCount int
	submitting  bool
	scheduled   bool
	pending     bool
	attempt     ulid.ULID
	closed      bool

	listeners    map[int]func()
	nextListener int
}

// New creates a form driven by lp. Submit attempts are handed to submitter.
func New(lp *loop.Loop, submitter Submitter, fns ...OptionFn) *Form {
	opts := NewOptions(fns...)
	ctx, cancel := context.WithCancel(opts.Context)
	f := &Form{
		loop:      lp,
		submitter: submitter,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		touched:   make(map[string]bool),
		errors:    make(map[string]string),
		listeners: make(map[int]func()),
	}
	if opts.InitialValues != nil {
		f.initial = values.CloneTree(opts.InitialValues)
		f.values = values.CloneTree(opts.InitialValues)
		f.announceInitialValues()
	}
	return f
}

// Loop returns the loop driving the form.
func (f *Form) Loop() *loop.Loop { return f.loop }

// Context is cancelled when the form closes.
func (f *Form) Context() context.Context { return f.ctx }

// Ready reports whether initial values are loaded. Fields must not be
// editable before that.
func (f *Form) Ready() bool { return f.initial != nil }

// Values returns a deep copy of the current value tree.
func (f *Form) Values() values.Tree { return values.CloneTree(f.values) }

// InitialValues returns a deep copy of the initial value tree.
func (f *Form) InitialValues() values.Tree { return values.CloneTree(f.initial) }

// SubmitCount is incremented exactly once per completed attempt.
func (f *Form) SubmitCount() int { return f.submitCount }

// IsSubmitting is true strictly while an attempt is in flight.
func (f *Form) IsSubmitting() bool { return f.submitting }

// Busy reports whether an attempt is running or requested.
func (f *Form) Busy() bool { return f.submitting || f.scheduled || f.pending }

// Error returns the form-level error of the last attempt, if any.
func (f *Form) Error() error { return f.formError }

// LoadError returns the error reported while loading initial values.
func (f *Form) LoadError() error { return f.loadError }

// SetLoadError records a failure to load the record behind the form.
func (f *Form) SetLoadError(err error) {
	f.loadError = err
	f.notify()
}

// FieldErrors returns a copy of the current field errors.
func (f *Form) FieldErrors() map[string]string {
	out := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// SetErrors replaces all field errors.
func (f *Form) SetErrors(errs map[string]string) {
	f.errors = make(map[string]string, len(errs))
	for path, msg := range errs {
		if msg != "" {
			f.errors[path] = msg
		}
	}
	f.notify()
}

// Field returns the accessor for the field at path.
func (f *Form) Field(path string) Field {
	return Field{form: f, path: path}
}

// FieldPaths lists the leaf paths of the current values plus every path that
// carries touched or error state.
func (f *Form) FieldPaths() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	for _, path := range values.Paths(f.values) {
		add(path)
	}
	for path := range f.touched {
		add(path)
	}
	for path := range f.errors {
		add(path)
	}
	sort.Strings(out)
	return out
}

// SetInitialValues loads or reloads the record behind the form. A tree that
// is deep-equal to the current initial values is ignored; otherwise the
// values, touched and error state are reset to the new tree.
func (f *Form) SetInitialValues(tree values.Tree) {
	if f.closed || tree == nil {
		return
	}
	if f.initial != nil && diff.Equal(f.initial, tree) {
		return
	}
	glog.V(1).Infof("form: initial values reloaded")
	f.initial = values.CloneTree(tree)
	f.values = values.CloneTree(tree)
	f.touched = make(map[string]bool)
	f.errors = make(map[string]string)
	f.loadError = nil
	f.announceInitialValues()
	f.notify()
}

func (f *Form) announceInitialValues() {
	if observer, ok := f.submitter.(InitialValuesObserver); ok {
		observer.InitialValuesChanged(values.CloneTree(f.initial))
	}
}

// Subscribe registers fn to run after every state change. The returned
// function removes the subscription.
func (f *Form) Subscribe(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	id := f.nextListener
	f.nextListener++
	f.listeners[id] = fn
	return func() { delete(f.listeners, id) }
}

func (f *Form) notify() {
	if len(f.listeners) == 0 {
		return
	}
	ids := make([]int, 0, len(f.listeners))
	for id := range f.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if fn, ok := f.listeners[id]; ok {
			fn()
		}
	}
}

// SubmitForm requests a submit attempt. Requests made in the same loop batch
// share one attempt; requests made while an attempt is in flight are folded
// into one follow-up attempt.
func (f *Form) SubmitForm() error {
	if f.closed {
		return ErrClosed
	}
	if !f.Ready() {
		return ErrNotReady
	}
	if f.submitting {
		f.pending = true
		return nil
	}
	f.schedule()
	return nil
}

func (f *Form) schedule() {
	if f.scheduled {
		return
	}
	f.scheduled = true
	f.loop.Defer(f.dispatch)
}

func (f *Form) dispatch() {
	f.scheduled = false
	if f.closed {
		return
	}
	if f.submitting {
		f.pending = true
		return
	}

	f.submitting = true
	f.formError = nil
	f.attempt = ulid.Make()
	id := f.attempt
	glog.V(2).Infof("form: attempt %s started (count=%d)", id, f.submitCount)

	for _, path := range values.Paths(f.values) {
		f.touched[path] = true
	}
	f.notify()

	if f.opts.Validator != nil {
		if errs := f.opts.Validator(values.CloneTree(f.values)); len(errs) > 0 {
			f.errors = errs
			glog.V(2).Infof("form: attempt %s failed validation (%d errors)", id, len(errs))
			f.finish(id, nil)
			return
		}
	}

	if f.submitter == nil {
		f.finish(id, nil)
		return
	}

	var fired atomic.Bool
	done := func(err error) {
		if !fired.CompareAndSwap(false, true) {
			glog.Warningf("form: attempt %s completed more than once", id)
			return
		}
		f.loop.Post(func() { f.finish(id, err) })
	}
	if err := f.submitter.Submit(f.ctx, values.CloneTree(f.values), Helpers{form: f}, done); err != nil {
		f.finish(id, err)
	}
}

func (f *Form) finish(id ulid.ULID, err error) {
	if !f.submitting || id != f.attempt {
		glog.V(2).Infof("form: ignoring completion of stale attempt %s", id)
		return
	}
	f.submitting = false
	f.submitCount++
	f.formError = err
	glog.V(2).Infof("form: attempt %s finished (count=%d, err=%v)", id, f.submitCount, err)
	if err != nil && f.opts.ErrorHandler != nil {
		f.opts.ErrorHandler(err)
	}
	f.notify()

	if f.pending && !f.closed {
		f.pending = false
		f.schedule()
	}
}

// Close cancels the submit context and drops all subscriptions. Attempts in
// flight still complete, but no further attempts start.
func (f *Form) Close() {
	if f.closed {
		return
	}
	f.closed = true
	f.pending = false
	f.cancel()
	f.listeners = make(map[int]func())
}

func (f *Form) validateOnChange() {
	if !f.opts.ValidateOnChange || f.opts.Validator == nil {
		return
	}
	errs := f.opts.Validator(values.CloneTree(f.values))
	f.errors = make(map[string]string, len(errs))
	for path, msg := range errs {
		f.errors[path] = msg
	}
}
