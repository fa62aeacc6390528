package testsupport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/values"
)

// RecordingPersister records every patch it receives. When held, each call
// blocks until the test releases it, which lets tests interleave edits with
// an in-flight save.
type RecordingPersister struct {
	mu      sync.Mutex
	cond    *sync.Cond
	patches []map[string]any
	hold    bool
	results map[int]error
	Err     error
}

func NewRecordingPersister() *RecordingPersister {
	p := &RecordingPersister{results: make(map[int]error)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Hold makes subsequent calls block until Release.
func (p *RecordingPersister) Hold() {
	p.mu.Lock()
	p.hold = true
	p.mu.Unlock()
}

// Release completes call i (zero based) with err.
func (p *RecordingPersister) Release(i int, err error) {
	p.mu.Lock()
	p.results[i] = err
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Persist has the signature of inline.PersistFunc.
func (p *RecordingPersister) Persist(ctx context.Context, patch map[string]any, _ form.Helpers) error {
	p.mu.Lock()
	idx := len(p.patches)
	p.patches = append(p.patches, values.CloneTree(patch))
	p.cond.Broadcast()
	if !p.hold {
		err := p.Err
		p.mu.Unlock()
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()
	for {
		if err, ok := p.results[idx]; ok {
			p.mu.Unlock()
			return err
		}
		if ctx.Err() != nil {
			p.mu.Unlock()
			return ctx.Err()
		}
		p.cond.Wait()
	}
}

// Patches returns the patches received so far.
func (p *RecordingPersister) Patches() []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]map[string]any, len(p.patches))
	copy(out, p.patches)
	return out
}

// Calls returns how many times Persist ran.
func (p *RecordingPersister) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.patches)
}

// WaitCalls blocks until at least n calls were recorded.
func (p *RecordingPersister) WaitCalls(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if p.Calls() >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d persist calls, got %d", n, p.Calls())
		}
		time.Sleep(time.Millisecond)
	}
}
