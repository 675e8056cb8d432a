package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueue_PreservesSubmissionOrder(t *testing.T) {
	t.Parallel()

	q := NewQueue(nil)
	ctx := context.Background()

	var mu sync.Mutex
	var log []string
	append_ := func(name string) {
		mu.Lock()
		log = append(log, name)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(2)

	started := make(chan struct{})
	go func() {
		defer wg.Done()
		_, _ = q.Do(ctx, "slow", func(context.Context) (any, error) {
			close(started)
			time.Sleep(50 * time.Millisecond)
			append_("slow")
			return nil, nil
		})
	}()

	// Submit the fast operation strictly after the slow one is running.
	<-started
	go func() {
		defer wg.Done()
		_, _ = q.Do(ctx, "fast", func(context.Context) (any, error) {
			time.Sleep(5 * time.Millisecond)
			append_("fast")
			return nil, nil
		})
	}()

	wg.Wait()

	if len(log) != 2 || log[0] != "slow" || log[1] != "fast" {
		t.Fatalf("unexpected completion order: %v", log)
	}
}

func TestQueue_FailureDoesNotPoisonSuccessor(t *testing.T) {
	t.Parallel()

	q := NewQueue(nil)
	ctx := context.Background()
	boom := errors.New("boom")

	if _, err := q.Do(ctx, "first", func(context.Context) (any, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("first operation error = %v, want boom", err)
	}

	out, err := q.Do(ctx, "second", func(context.Context) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("second operation failed: %v", err)
	}
	if out != "ok" {
		t.Fatalf("second operation result = %v, want ok", out)
	}
}

func TestQueue_ReturnsOwnResult(t *testing.T) {
	t.Parallel()

	q := NewQueue(nil)
	ctx := context.Background()

	out, err := q.Do(ctx, "op", func(context.Context) (any, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := out.(int); got != 42 {
		t.Fatalf("result = %v, want 42", out)
	}
}

func TestQueue_CancelledWhileQueuedSkipsWork(t *testing.T) {
	t.Parallel()

	q := NewQueue(nil)

	release := make(chan struct{})
	running := make(chan struct{})
	go func() {
		_, _ = q.Do(context.Background(), "holder", func(context.Context) (any, error) {
			close(running)
			<-release
			return nil, nil
		})
	}()
	<-running

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	_, err := q.Do(ctx, "late", func(context.Context) (any, error) {
		ran = true
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ran {
		t.Fatal("cancelled operation must not run")
	}

	close(release)

	// The chain must still drain for later submissions.
	if _, err := q.Do(context.Background(), "after", func(context.Context) (any, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("successor after cancellation failed: %v", err)
	}
}

func TestQueue_WaitReachesQuiescence(t *testing.T) {
	t.Parallel()

	q := NewQueue(nil)
	ctx := context.Background()

	var finished bool
	var wg sync.WaitGroup
	wg.Add(1)
	started := make(chan struct{})
	go func() {
		defer wg.Done()
		_, _ = q.Do(ctx, "op", func(context.Context) (any, error) {
			close(started)
			time.Sleep(20 * time.Millisecond)
			finished = true
			return nil, nil
		})
	}()

	<-started
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if !finished {
		t.Fatal("wait returned before the tail operation completed")
	}
	wg.Wait()
}

func TestQueue_ClearDropsTail(t *testing.T) {
	t.Parallel()

	q := NewQueue(nil)
	q.Clear()

	if err := q.Wait(context.Background()); err != nil {
		t.Fatalf("wait after clear failed: %v", err)
	}
}
