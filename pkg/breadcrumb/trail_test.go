package breadcrumb_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-inlineform/pkg/breadcrumb"
)

func TestTrail_RegisterUpdateRemove(t *testing.T) {
	trail := breadcrumb.New(breadcrumb.Crumb{Label: "Home", Href: "/"})
	users := trail.Register(breadcrumb.Crumb{Label: "Users", Href: "/users"})
	record := trail.Register(breadcrumb.Crumb{Label: "..."})

	trail.Update(record, breadcrumb.Crumb{Label: "Ada"})
	if got, want := trail.String(), "Home / Users / Ada"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}

	if !trail.Remove(users) {
		t.Fatalf("Remove(%d) = false", users)
	}
	if trail.Remove(users) {
		t.Fatalf("second Remove(%d) = true", users)
	}
	if got, want := trail.String(), "Home / Ada"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}

	trail.Update(users, breadcrumb.Crumb{Label: "People", Href: "/users"})
	want := []breadcrumb.Crumb{
		{ID: 0, Label: "Home", Href: "/"},
		{ID: users, Label: "People", Href: "/users"},
		{ID: record, Label: "Ada"},
	}
	if diff := cmp.Diff(want, trail.Crumbs()); diff != "" {
		t.Fatalf("crumbs mismatch (-want +got):\n%s", diff)
	}
}

func TestTrail_UpdateIgnoresUnknownIDs(t *testing.T) {
	trail := breadcrumb.New()
	trail.Update(3, breadcrumb.Crumb{Label: "ghost"})
	if got := trail.Crumbs(); len(got) != 0 {
		t.Fatalf("crumbs = %v, want empty", got)
	}
}

func TestTrail_OnChange(t *testing.T) {
	trail := breadcrumb.New()
	var seen [][]breadcrumb.Crumb
	trail.OnChange(func(c []breadcrumb.Crumb) { seen = append(seen, c) })

	id := trail.Register(breadcrumb.Crumb{Label: "Orders"})
	trail.Remove(id)

	if len(seen) != 2 {
		t.Fatalf("notifications = %d, want 2", len(seen))
	}
	if len(seen[0]) != 1 || len(seen[1]) != 0 {
		t.Fatalf("notifications = %v", seen)
	}
}
