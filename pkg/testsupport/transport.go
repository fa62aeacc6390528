package testsupport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-inlineform/pkg/upload"
)

// FakeTransport is an upload.Transport driven by the test: every Upload call
// blocks until the test completes or fails it, or its context is cancelled.
type FakeTransport struct {
	mu    sync.Mutex
	calls []*TransportCall
}

// TransportCall is one Upload invocation.
type TransportCall struct {
	File     upload.File
	ctx      context.Context
	progress upload.ProgressFunc
	result   chan transportResult
}

type transportResult struct {
	url string
	err error
}

func (f *FakeTransport) Upload(ctx context.Context, file upload.File, progress upload.ProgressFunc) (upload.Result, error) {
	call := &TransportCall{
		File:     file,
		ctx:      ctx,
		progress: progress,
		result:   make(chan transportResult, 1),
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	select {
	case res := <-call.result:
		if res.err != nil {
			return upload.Result{}, res.err
		}
		return upload.Result{URL: res.url}, nil
	case <-ctx.Done():
		return upload.Result{}, ctx.Err()
	}
}

// Calls returns the calls made so far.
func (f *FakeTransport) Calls() []*TransportCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*TransportCall(nil), f.calls...)
}

// WaitCalls blocks until at least n calls were made and returns them.
func (f *FakeTransport) WaitCalls(t *testing.T, n int) []*TransportCall {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if calls := f.Calls(); len(calls) >= n {
			return calls
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d uploads, got %d", n, len(f.Calls()))
		}
		time.Sleep(time.Millisecond)
	}
}

// Progress reports progress for the call.
func (c *TransportCall) Progress(fraction float64) { c.progress(fraction) }

// Complete finishes the call with url.
func (c *TransportCall) Complete(url string) { c.result <- transportResult{url: url} }

// Fail finishes the call with err.
func (c *TransportCall) Fail(err error) { c.result <- transportResult{err: err} }

// Cancelled reports whether the call's context was cancelled.
func (c *TransportCall) Cancelled() bool { return c.ctx.Err() != nil }
