package inlineform_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-inlineform"
	"github.com/goliatone/go-inlineform/pkg/definition"
	"github.com/goliatone/go-inlineform/pkg/field"
	"github.com/goliatone/go-inlineform/pkg/testsupport"
)

const noteJSON = `{
	"id": "note",
	"fields": [
		{"path": "title", "required": true},
		{"path": "pages", "kind": "number", "min": 1}
	]
}`

func TestEdit_SavesOnlyChangedFields(t *testing.T) {
	def, err := definition.Parse([]byte(noteJSON), "note.json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lp := inlineform.NewLoop()
	persister := testsupport.NewRecordingPersister()

	var (
		f     *inlineform.Form
		bound *inlineform.Bound
	)
	testsupport.Do(lp, func() {
		f, bound, err = inlineform.Edit(lp, def, inlineform.Tree{"title": "Draft", "pages": 3.0}, persister.Persist, nil)
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	pages, _ := bound.Get("pages")
	number := pages.Editor.(*field.NumberField)
	testsupport.Do(lp, func() {
		_ = number.Input("12")
		_ = number.Commit()
	})
	testsupport.Settle(t, lp, func() bool { return f.SubmitCount() == 1 && !f.Busy() })

	want := []map[string]any{{"pages": 12.0}}
	if diff := cmp.Diff(want, persister.Patches()); diff != "" {
		t.Fatalf("patches mismatch (-want +got):\n%s", diff)
	}
}

func TestEdit_DefaultsAndValidation(t *testing.T) {
	def, err := definition.Parse([]byte(noteJSON), "note.json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lp := inlineform.NewLoop()
	persister := testsupport.NewRecordingPersister()

	var f *inlineform.Form
	testsupport.Do(lp, func() {
		f, _, err = inlineform.Edit(lp, def, nil, persister.Persist, nil)
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if diff := cmp.Diff(inlineform.Tree{"title": "", "pages": nil}, f.InitialValues()); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}

	testsupport.Do(lp, func() { _ = f.SubmitForm() })
	testsupport.Settle(t, lp, func() bool { return f.SubmitCount() == 1 && !f.Busy() })
	if persister.Calls() != 0 {
		t.Fatalf("invalid form was persisted: %v", persister.Patches())
	}
	if got := f.FieldErrors()["title"]; got != "is required" {
		t.Fatalf("title error = %q", got)
	}
}

func TestDiff(t *testing.T) {
	patch, err := inlineform.Diff(inlineform.Tree{"a": 1, "b": "x"}, inlineform.Tree{"a": 1.0, "b": "y"})
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"b": "y"}, patch.Value); diff != "" {
		t.Fatalf("patch mismatch (-want +got):\n%s", diff)
	}

	if _, err := inlineform.Diff("text", 3); !errors.Is(err, inlineform.ErrIncompatibleTypes) {
		t.Fatalf("err = %v", err)
	}
}
