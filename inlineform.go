// Package inlineform edits records one field at a time and saves only what
// changed.
//
// A form keeps a value tree and the initial values it was loaded with. Field
// controllers edit single paths and submit the whole tree; the submit
// coalescer diffs it against the last saved baseline and persists the patch,
// one request at a time. The root package re-exports the pieces most callers
// need; the pkg/ packages hold the full API.
package inlineform

import (
	"context"
	"io/fs"

	"github.com/goliatone/go-inlineform/pkg/definition"
	"github.com/goliatone/go-inlineform/pkg/diff"
	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/inline"
	"github.com/goliatone/go-inlineform/pkg/loop"
	"github.com/goliatone/go-inlineform/pkg/upload"
	"github.com/goliatone/go-inlineform/pkg/values"
)

// Tree is a nested value tree addressed by dotted paths.
type Tree = values.Tree

// Form aliases form.Form.
type Form = form.Form

// Coalescer aliases inline.Coalescer.
type Coalescer = inline.Coalescer

// PersistFunc saves a patch.
type PersistFunc = inline.PersistFunc

// Definition aliases definition.Definition.
type Definition = definition.Definition

// Bound is a definition bound to a form.
type Bound = definition.Bound

// Patch is the result of Diff.
type Patch = diff.Patch

// ErrIncompatibleTypes matches Diff errors for operands of different kinds.
var ErrIncompatibleTypes = diff.ErrIncompatibleTypes

// NewLoop returns an event loop; forms and controllers sharing it are
// serialized on it.
func NewLoop() *loop.Loop { return loop.New() }

// NewForm builds a form whose submissions are coalesced into patches.
func NewForm(lp *loop.Loop, persist PersistFunc, options ...inline.OptionFn) (*Form, *Coalescer) {
	return inline.NewForm(lp, persist, options...)
}

// Diff returns the patch turning oldValue into newValue.
func Diff(oldValue, newValue any) (Patch, error) {
	return diff.Diff(oldValue, newValue)
}

// Edit builds a form validated by def, seeded with initial, and binds an
// editor to every field. manager may be nil when def has no file or image
// fields. It must be called on lp.
func Edit(lp *loop.Loop, def Definition, initial Tree, persist PersistFunc, manager *upload.Manager, options ...inline.OptionFn) (*Form, *Bound, error) {
	if initial == nil {
		initial = def.Defaults()
	}
	options = append([]inline.OptionFn{inline.WithFormOptions(
		form.WithInitialValues(initial),
		form.WithValidator(def.Validator()),
	)}, options...)
	f, _ := inline.NewForm(lp, persist, options...)
	bound, err := definition.Bind(f, def, manager)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, bound, nil
}

// LoadDefinitions reads every JSON and YAML definition under fsys.
func LoadDefinitions(fsys fs.FS) (*definition.Store, error) {
	return definition.LoadFS(fsys)
}

// DefinitionFromOpenAPI derives a definition from an operation request body.
func DefinitionFromOpenAPI(ctx context.Context, data []byte, operationID string) (Definition, error) {
	return definition.FromOpenAPI(ctx, data, operationID)
}
