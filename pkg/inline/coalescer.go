// Package inline provides the submit coalescer behind inline-edit forms.
//
// Inline forms save field by field. The Coalescer keeps a baseline of the
// last tree it attempted to save, diffs every submitted tree against it and
// hands only the patch to the persist callback. Submitting an unchanged tree
// never reaches the persist callback.
package inline

import (
	"context"

	"github.com/golang/glog"

	"github.com/goliatone/go-inlineform/pkg/diff"
	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/loop"
	"github.com/goliatone/go-inlineform/pkg/values"
)

// PersistFunc saves a patch. It runs on its own goroutine and must tolerate
// receiving only the changed subset of the form.
type PersistFunc func(ctx context.Context, patch map[string]any, helpers form.Helpers) error

// Coalescer implements form.Submitter. All methods run on the form's loop.
type Coalescer struct {
	loop    *loop.Loop
	persist PersistFunc
	opts    Options

	baseline    values.Tree
	inFlight    bool
	refresh     values.Tree
	hasRefresh  bool
	persistRuns int
}

// New creates a coalescer posting its bookkeeping to lp.
func New(lp *loop.Loop, persist PersistFunc, fns ...OptionFn) *Coalescer {
	return &Coalescer{
		loop:    lp,
		persist: persist,
		opts:    NewOptions(fns...),
	}
}

// Baseline returns a deep copy of the last attempted tree.
func (c *Coalescer) Baseline() values.Tree { return values.CloneTree(c.baseline) }

// InFlight reports whether a persist call is running.
func (c *Coalescer) InFlight() bool { return c.inFlight }

// PersistRuns returns how many times the persist callback was invoked.
func (c *Coalescer) PersistRuns() int { return c.persistRuns }

// InitialValuesChanged refreshes the baseline after the record behind the
// form was reloaded. While a persist call is running the refresh waits for
// it to finish.
func (c *Coalescer) InitialValuesChanged(tree values.Tree) {
	if c.inFlight {
		c.refresh = values.CloneTree(tree)
		c.hasRefresh = true
		glog.V(2).Infof("inline: baseline refresh deferred until persist completes")
		return
	}
	c.baseline = values.CloneTree(tree)
}

// Submit diffs tree against the baseline. An empty patch completes the
// attempt at once. Otherwise the baseline advances to tree before the
// persist callback starts, so edits made while it runs are diffed against
// the values already being saved.
func (c *Coalescer) Submit(ctx context.Context, tree values.Tree, helpers form.Helpers, done func(error)) error {
	patch, err := diff.Diff(c.baseline, tree)
	if err != nil {
		return err
	}
	if !patch.Changed {
		glog.V(2).Infof("inline: no changes, skipping persist")
		done(nil)
		return nil
	}
	changes, ok := patch.Map()
	if !ok {
		changes = values.CloneTree(tree)
	}

	previous := c.baseline
	c.baseline = values.CloneTree(tree)
	c.inFlight = true
	c.persistRuns++
	glog.V(1).Infof("inline: persisting %d changed field(s)", len(changes))

	persist := c.persist
	go func() {
		var perr error
		if persist != nil {
			perr = persist(ctx, changes, helpers)
		}
		if perr != nil {
			perr = &SubmissionError{Patch: changes, Err: perr}
		}
		c.loop.Post(func() { c.settle(previous, perr) })
		done(perr)
	}()
	return nil
}

func (c *Coalescer) settle(previous values.Tree, err error) {
	c.inFlight = false
	if err != nil && c.opts.RollbackOnError {
		glog.V(1).Infof("inline: persist failed, rolling baseline back")
		c.baseline = previous
	}
	if c.hasRefresh {
		c.baseline = c.refresh
		c.refresh = nil
		c.hasRefresh = false
	}
}
