package values_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-inlineform/pkg/values"
)

func TestSetAndGet_NestedPaths(t *testing.T) {
	tree := values.Tree{}

	steps := []struct {
		path  string
		value any
	}{
		{"name", "Alice"},
		{"owner.email", "a@example.com"},
		{"tags.1", "b"},
		{"contacts.0.phone", "555"},
	}
	for _, step := range steps {
		if err := values.Set(tree, step.path, step.value); err != nil {
			t.Fatalf("set %s: %v", step.path, err)
		}
	}

	want := values.Tree{
		"name":     "Alice",
		"owner":    map[string]any{"email": "a@example.com"},
		"tags":     []any{nil, "b"},
		"contacts": []any{map[string]any{"phone": "555"}},
	}
	if diff := cmp.Diff(want, tree); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}

	got, ok := values.Get(tree, "contacts.0.phone")
	if !ok || got != "555" {
		t.Fatalf("expected 555, got %v (ok=%v)", got, ok)
	}
	if _, ok := values.Get(tree, "tags.5"); ok {
		t.Fatalf("expected out-of-range index to miss")
	}
}

func TestSet_RejectsNonNumericSliceSegment(t *testing.T) {
	tree := values.Tree{"tags": []any{"a"}}
	if err := values.Set(tree, "tags.first", "x"); err == nil {
		t.Fatalf("expected error for non-numeric slice segment")
	}
}

func TestClone_IsDeepAndNormalisesTypedContainers(t *testing.T) {
	src := values.Tree{
		"labels": map[string]string{"k": "v"},
		"nums":   []int{1, 2},
		"nested": map[string]any{"list": []any{"x"}},
	}

	clone := values.CloneTree(src)
	clone["nested"].(map[string]any)["list"].([]any)[0] = "changed"

	if src["nested"].(map[string]any)["list"].([]any)[0] != "x" {
		t.Fatalf("clone shares nested storage with source")
	}

	want := values.Tree{
		"labels": map[string]any{"k": "v"},
		"nums":   []any{1, 2},
		"nested": map[string]any{"list": []any{"changed"}},
	}
	if diff := cmp.Diff(want, clone); diff != "" {
		t.Fatalf("clone mismatch (-want +got):\n%s", diff)
	}
}

func TestPathsAndDelete(t *testing.T) {
	tree := values.Tree{
		"b":     1,
		"a":     map[string]any{"y": 2, "x": 1},
		"empty": map[string]any{},
	}
	want := []string{"a.x", "a.y", "b", "empty"}
	if diff := cmp.Diff(want, values.Paths(tree)); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}

	values.Delete(tree, "a.x")
	values.Delete(tree, "missing.path")
	if _, ok := values.Get(tree, "a.x"); ok {
		t.Fatalf("expected a.x to be deleted")
	}
}
