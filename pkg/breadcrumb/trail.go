// Package breadcrumb keeps an ordered trail of navigation crumbs. A Trail is
// an owned value: callers pass it to whatever needs to register crumbs
// instead of reaching for shared state.
package breadcrumb

import (
	"sort"
	"strings"
	"sync"
)

// ID identifies a crumb for its whole lifetime, including after removal.
type ID int

// Crumb is a single trail entry.
type Crumb struct {
	ID    ID     `json:"id"`
	Label string `json:"label"`
	Href  string `json:"href,omitempty"`
}

// Trail is safe for concurrent use.
type Trail struct {
	mu       sync.Mutex
	crumbs   []Crumb
	next     ID
	onChange []func([]Crumb)
}

// New returns a trail seeded with initial, in order.
func New(initial ...Crumb) *Trail {
	t := &Trail{}
	for _, c := range initial {
		t.register(c)
	}
	return t
}

// Register appends c and returns its identity. The ID field of c is ignored.
func (t *Trail) Register(c Crumb) ID {
	t.mu.Lock()
	id := t.register(c)
	snapshot, listeners := t.snapshotLocked()
	t.mu.Unlock()
	notify(listeners, snapshot)
	return id
}

func (t *Trail) register(c Crumb) ID {
	c.ID = t.next
	t.next++
	t.crumbs = append(t.crumbs, c)
	return c.ID
}

// Update replaces the crumb registered as id. A crumb that was removed is
// put back at its original position relative to the crumbs still present.
// Unknown ids are ignored.
func (t *Trail) Update(id ID, c Crumb) {
	t.mu.Lock()
	if id < 0 || id >= t.next {
		t.mu.Unlock()
		return
	}
	c.ID = id
	idx := sort.Search(len(t.crumbs), func(i int) bool { return t.crumbs[i].ID >= id })
	if idx < len(t.crumbs) && t.crumbs[idx].ID == id {
		t.crumbs[idx] = c
	} else {
		t.crumbs = append(t.crumbs, Crumb{})
		copy(t.crumbs[idx+1:], t.crumbs[idx:])
		t.crumbs[idx] = c
	}
	snapshot, listeners := t.snapshotLocked()
	t.mu.Unlock()
	notify(listeners, snapshot)
}

// Remove drops the crumb registered as id. It reports whether it was present.
func (t *Trail) Remove(id ID) bool {
	t.mu.Lock()
	idx := -1
	for i, c := range t.crumbs {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return false
	}
	t.crumbs = append(t.crumbs[:idx], t.crumbs[idx+1:]...)
	snapshot, listeners := t.snapshotLocked()
	t.mu.Unlock()
	notify(listeners, snapshot)
	return true
}

// Crumbs returns a copy of the trail in order.
func (t *Trail) Crumbs() []Crumb {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Crumb(nil), t.crumbs...)
}

// OnChange registers fn to receive the trail after every change.
func (t *Trail) OnChange(fn func([]Crumb)) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.onChange = append(t.onChange, fn)
	t.mu.Unlock()
}

// String joins the labels, e.g. "Users / Ada".
func (t *Trail) String() string {
	crumbs := t.Crumbs()
	labels := make([]string, 0, len(crumbs))
	for _, c := range crumbs {
		if c.Label != "" {
			labels = append(labels, c.Label)
		}
	}
	return strings.Join(labels, " / ")
}

func (t *Trail) snapshotLocked() ([]Crumb, []func([]Crumb)) {
	listeners := make([]func([]Crumb), len(t.onChange))
	copy(listeners, t.onChange)
	return append([]Crumb(nil), t.crumbs...), listeners
}

func notify(listeners []func([]Crumb), crumbs []Crumb) {
	for _, fn := range listeners {
		fn(crumbs)
	}
}
