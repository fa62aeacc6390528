package form_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/loop"
	"github.com/goliatone/go-inlineform/pkg/values"
)

// recordingSubmitter records each attempt and leaves it open until the test
// calls release.
type recordingSubmitter struct {
	trees []values.Tree
	dones []func(error)
}

func (r *recordingSubmitter) Submit(_ context.Context, tree values.Tree, _ form.Helpers, done func(error)) error {
	r.trees = append(r.trees, tree)
	r.dones = append(r.dones, done)
	return nil
}

func (r *recordingSubmitter) release(i int, err error) { r.dones[i](err) }

func newForm(t *testing.T, sub form.Submitter, fns ...form.OptionFn) (*form.Form, *loop.Loop) {
	t.Helper()
	lp := loop.New()
	fns = append([]form.OptionFn{
		form.WithInitialValues(values.Tree{"name": "Alice", "age": 30}),
		form.WithErrorHandler(func(error) {}),
	}, fns...)
	f := form.New(lp, sub, fns...)
	t.Cleanup(f.Close)
	return f, lp
}

func TestSubmitForm_RequestsInSameBatchShareOneAttempt(t *testing.T) {
	sub := &recordingSubmitter{}
	f, lp := newForm(t, sub)

	lp.Post(func() {
		if err := f.Field("age").SetValue(31); err != nil {
			t.Errorf("set age: %v", err)
		}
		_ = f.SubmitForm()
		_ = f.Field("name").SetValue("Bob")
		_ = f.SubmitForm()
	})
	lp.RunPending()

	if len(sub.trees) != 1 {
		t.Fatalf("expected one attempt, got %d", len(sub.trees))
	}
	want := values.Tree{"name": "Bob", "age": 31}
	if diff := cmp.Diff(want, sub.trees[0]); diff != "" {
		t.Fatalf("submitted tree mismatch (-want +got):\n%s", diff)
	}
	if !f.IsSubmitting() || f.SubmitCount() != 0 {
		t.Fatalf("expected in-flight attempt, submitting=%v count=%d", f.IsSubmitting(), f.SubmitCount())
	}

	sub.release(0, nil)
	lp.RunPending()

	if f.IsSubmitting() || f.SubmitCount() != 1 {
		t.Fatalf("expected completed attempt, submitting=%v count=%d", f.IsSubmitting(), f.SubmitCount())
	}
}

func TestSubmitForm_RequestsDuringFlightFoldIntoOneFollowUp(t *testing.T) {
	sub := &recordingSubmitter{}
	f, lp := newForm(t, sub)

	lp.Post(func() { _ = f.SubmitForm() })
	lp.RunPending()

	lp.Post(func() {
		_ = f.Field("age").SetValue(32)
		_ = f.SubmitForm()
	})
	lp.Post(func() {
		_ = f.Field("name").SetValue("Carol")
		_ = f.SubmitForm()
	})
	lp.RunPending()
	if len(sub.trees) != 1 {
		t.Fatalf("expected requests to wait for the in-flight attempt, got %d attempts", len(sub.trees))
	}

	var observed []int
	f.Subscribe(func() {
		if !f.IsSubmitting() {
			observed = append(observed, f.SubmitCount())
		}
	})

	sub.release(0, nil)
	lp.RunPending()

	if len(sub.trees) != 2 {
		t.Fatalf("expected exactly one follow-up attempt, got %d attempts", len(sub.trees))
	}
	want := values.Tree{"name": "Carol", "age": 32}
	if diff := cmp.Diff(want, sub.trees[1]); diff != "" {
		t.Fatalf("follow-up tree mismatch (-want +got):\n%s", diff)
	}
	if len(observed) == 0 || observed[0] != 1 {
		t.Fatalf("expected idle notification with count 1 before follow-up, got %v", observed)
	}
}

func TestSubmitForm_ValidationFailureSkipsSubmitter(t *testing.T) {
	sub := &recordingSubmitter{}
	f, lp := newForm(t, sub, form.WithValidator(func(tree values.Tree) map[string]string {
		if age, _ := tree["age"].(int); age > 120 {
			return map[string]string{"age": "too old"}
		}
		return nil
	}))

	lp.Post(func() {
		_ = f.Field("age").SetValue(200)
		_ = f.SubmitForm()
	})
	lp.RunPending()

	if len(sub.trees) != 0 {
		t.Fatalf("expected submitter not to run, got %d attempts", len(sub.trees))
	}
	if f.SubmitCount() != 1 || f.IsSubmitting() {
		t.Fatalf("expected completed attempt, submitting=%v count=%d", f.IsSubmitting(), f.SubmitCount())
	}
	if got := f.Field("age").Error(); got != "too old" {
		t.Fatalf("expected field error, got %q", got)
	}
}

func TestSubmitForm_SynchronousErrorBecomesFormError(t *testing.T) {
	boom := errors.New("boom")
	var handled []error
	sub := form.SubmitterFunc(func(context.Context, values.Tree, form.Helpers, func(error)) error {
		return boom
	})
	f, lp := newForm(t, sub, form.WithErrorHandler(func(err error) { handled = append(handled, err) }))

	lp.Post(func() { _ = f.SubmitForm() })
	lp.RunPending()

	if !errors.Is(f.Error(), boom) {
		t.Fatalf("expected form error, got %v", f.Error())
	}
	if f.SubmitCount() != 1 {
		t.Fatalf("expected count 1, got %d", f.SubmitCount())
	}
	if len(handled) != 1 {
		t.Fatalf("expected error handler once, got %d", len(handled))
	}
}

func TestSubmitForm_NotReadyWithoutInitialValues(t *testing.T) {
	lp := loop.New()
	f := form.New(lp, &recordingSubmitter{})
	defer f.Close()

	if f.Ready() {
		t.Fatalf("expected form without initial values to be loading")
	}
	if err := f.SubmitForm(); !errors.Is(err, form.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if err := f.Field("name").SetValue("x"); !errors.Is(err, form.ErrNotReady) {
		t.Fatalf("expected ErrNotReady from SetValue, got %v", err)
	}

	f.SetInitialValues(values.Tree{"name": "Alice"})
	if !f.Ready() {
		t.Fatalf("expected form to be ready")
	}
}

func TestSetInitialValues_ResetsOnlyOnChange(t *testing.T) {
	f, lp := newForm(t, &recordingSubmitter{})

	notifications := 0
	f.Subscribe(func() { notifications++ })

	lp.Post(func() {
		f.SetInitialValues(values.Tree{"name": "Alice", "age": 30.0})
	})
	lp.RunPending()
	if notifications != 0 {
		t.Fatalf("expected deep-equal initial values to be ignored")
	}

	lp.Post(func() {
		_ = f.Field("age").SetValue(99)
		f.SetInitialValues(values.Tree{"name": "Alice", "age": 40})
	})
	lp.RunPending()

	want := values.Tree{"name": "Alice", "age": 40}
	if diff := cmp.Diff(want, f.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestHelpers_ApplyErrorPayload(t *testing.T) {
	sub := form.SubmitterFunc(func(_ context.Context, tree values.Tree, h form.Helpers, done func(error)) error {
		formLevel := h.ApplyErrorPayload(values.Paths(tree), map[string][]string{
			"/data/name": {"taken"},
			"__all__":    {"try again"},
		})
		done(errors.New(formLevel[0]))
		return nil
	})
	f, lp := newForm(t, sub)

	lp.Post(func() { _ = f.SubmitForm() })
	lp.RunPending()

	if got := f.Field("name").Error(); got != "taken" {
		t.Fatalf("expected mapped field error, got %q", got)
	}
	if f.Error() == nil || f.Error().Error() != "try again" {
		t.Fatalf("expected form-level error, got %v", f.Error())
	}
}
