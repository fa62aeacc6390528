package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-inlineform/pkg/loop"
)

// Settle runs lp until cond holds, failing the test after two seconds.
func Settle(t *testing.T, lp *loop.Loop, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := lp.RunUntil(ctx, cond); err != nil {
		t.Fatalf("loop did not settle: %v", err)
	}
}

// Do posts fn and runs the loop until the resulting batch is consumed.
func Do(lp *loop.Loop, fn func()) {
	lp.Post(fn)
	lp.RunPending()
}
