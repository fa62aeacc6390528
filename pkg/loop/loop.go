// Package loop provides the serial event loop that owns all form state.
//
// Every form, coalescer and field controller is driven from a single loop
// goroutine, so callbacks may manipulate shared state without
// synchronization. Work that must not block the loop (persist calls, upload
// transports) runs in its own goroutine and posts its result back with Post.
//
// Events are consumed in batches: all queued events are handled, then the
// deferred callbacks registered during the batch run once. Submit dispatch
// relies on this to coalesce requests issued within the same batch.
package loop

import (
	"context"
	"sync"
)

// Loop is a generic serial event loop. The zero value is not usable; call
// New.
type Loop struct {
	mu       sync.Mutex
	queue    []func()
	deferred []func()
	wakeCh   chan struct{}
}

// New creates an empty loop.
func New() *Loop {
	return &Loop{
		wakeCh: make(chan struct{}, 1),
	}
}

// Post queues fn to run on the loop goroutine. It never blocks and is safe to
// call from any goroutine, including from inside a loop callback.
func (lp *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	lp.mu.Lock()
	lp.queue = append(lp.queue, fn)
	lp.mu.Unlock()
	lp.wake()
}

// Defer queues fn to run after the current batch of events has been
// consumed. Deferred callbacks run in registration order.
func (lp *Loop) Defer(fn func()) {
	if fn == nil {
		return
	}
	lp.mu.Lock()
	lp.deferred = append(lp.deferred, fn)
	lp.mu.Unlock()
	lp.wake()
}

func (lp *Loop) wake() {
	select {
	case lp.wakeCh <- struct{}{}:
	default:
	}
}

// Run consumes events until ctx is done. It is fully serial: it does not
// spawn goroutines and never calls two callbacks in parallel.
func (lp *Loop) Run(ctx context.Context) error {
	for {
		lp.RunPending()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-lp.wakeCh:
		}
	}
}

// RunPending consumes batches until no event or deferred callback is left,
// and returns how many callbacks ran. It must not be called concurrently with
// Run.
func (lp *Loop) RunPending() int {
	ran := 0
	for {
		n := lp.runBatch()
		if n == 0 {
			return ran
		}
		ran += n
	}
}

// RunUntil consumes events as they arrive until cond reports true or ctx is
// done. cond is evaluated on the calling goroutine between batches.
func (lp *Loop) RunUntil(ctx context.Context, cond func() bool) error {
	for {
		lp.RunPending()
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-lp.wakeCh:
		}
	}
}

// Pending reports whether events or deferred callbacks are queued.
func (lp *Loop) Pending() bool {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return len(lp.queue) > 0 || len(lp.deferred) > 0
}

func (lp *Loop) runBatch() int {
	ran := 0
	// Consume all events, including ones posted while handling the batch.
	for {
		fn, ok := lp.next()
		if !ok {
			break
		}
		fn()
		ran++
	}

	lp.mu.Lock()
	deferred := lp.deferred
	lp.deferred = nil
	lp.mu.Unlock()
	for _, fn := range deferred {
		fn()
		ran++
	}
	return ran
}

func (lp *Loop) next() (func(), bool) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if len(lp.queue) == 0 {
		return nil, false
	}
	fn := lp.queue[0]
	lp.queue[0] = nil
	lp.queue = lp.queue[1:]
	return fn, true
}
