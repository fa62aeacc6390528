package loop_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-inlineform/pkg/loop"
)

func TestRunPending_ConsumesBatchBeforeDeferred(t *testing.T) {
	lp := loop.New()
	var got []string

	lp.Post(func() {
		got = append(got, "a")
		lp.Defer(func() { got = append(got, "deferred") })
		lp.Post(func() { got = append(got, "c") })
	})
	lp.Post(func() { got = append(got, "b") })

	if ran := lp.RunPending(); ran != 4 {
		t.Fatalf("expected 4 callbacks, got %d", ran)
	}

	want := []string{"a", "b", "c", "deferred"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if lp.Pending() {
		t.Fatalf("expected empty loop")
	}
}

func TestRunPending_DeferredCanPostNextBatch(t *testing.T) {
	lp := loop.New()
	var got []string

	lp.Defer(func() {
		got = append(got, "deferred")
		lp.Post(func() { got = append(got, "next") })
	})
	lp.RunPending()

	want := []string{"deferred", "next"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRunUntil_WaitsForPostsFromOtherGoroutines(t *testing.T) {
	lp := loop.New()
	done := false

	go func() {
		time.Sleep(10 * time.Millisecond)
		lp.Post(func() { done = true })
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := lp.RunUntil(ctx, func() bool { return done }); err != nil {
		t.Fatalf("run until: %v", err)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	lp := loop.New()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- lp.Run(ctx) }()

	ran := make(chan struct{})
	lp.Post(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("posted callback did not run")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("run did not return after cancel")
	}
}
