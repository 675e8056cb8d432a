package progress

import (
	"fmt"
	"testing"

	"github.com/jonboulle/clockwork"
)

type sequentialIDs struct {
	next int
}

func (g *sequentialIDs) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("op-%03d", g.next), nil
}

func newTestTracker(t *testing.T, opts ...Option) (*Tracker, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	opts = append(opts, WithClock(clock))
	return NewTracker(&sequentialIDs{}, opts...), clock
}

func statusOf(s Status) *Status { return &s }
func progressOf(p int) *int     { return &p }
func errOf(e string) *string    { return &e }

func TestTracker_AddDefaultsToPending(t *testing.T) {
	t.Parallel()

	tracker, _ := newTestTracker(t)

	opID, err := tracker.Add("upload", "game-1")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	snap := tracker.Snapshot()
	if len(snap.Operations) != 1 {
		t.Fatalf("operations = %d, want 1", len(snap.Operations))
	}
	op := snap.Operations[0]
	if op.ID != opID || op.Status != StatusPending || op.Progress != 0 {
		t.Fatalf("unexpected operation: %+v", op)
	}
	if !snap.IsActive || snap.PendingCount != 1 {
		t.Fatalf("unexpected aggregate: %+v", snap)
	}
}

func TestTracker_OverallProgressIsMean(t *testing.T) {
	t.Parallel()

	tracker, _ := newTestTracker(t)

	a, _ := tracker.Add("upload", "game-1")
	b, _ := tracker.Add("download", "game-2")

	tracker.Update(a, Update{Status: statusOf(StatusSyncing), Progress: progressOf(50)})
	tracker.Update(b, Update{Status: statusOf(StatusCompleted)})

	snap := tracker.Snapshot()
	if snap.OverallProgress != 75 {
		t.Fatalf("overall progress = %d, want 75", snap.OverallProgress)
	}
	if !snap.IsActive {
		t.Fatal("tracker with a syncing operation must be active")
	}
}

func TestTracker_CompletionSetsLastSync(t *testing.T) {
	t.Parallel()

	tracker, clock := newTestTracker(t)
	opID, _ := tracker.Add("upload", "game-1")

	before := tracker.Snapshot()
	if !before.LastSync.IsZero() {
		t.Fatalf("last sync should start zero, got %v", before.LastSync)
	}

	tracker.Update(opID, Update{Status: statusOf(StatusCompleted)})

	after := tracker.Snapshot()
	if !after.LastSync.Equal(clock.Now()) {
		t.Fatalf("last sync = %v, want %v", after.LastSync, clock.Now())
	}
	if after.Operations[0].Progress != 100 {
		t.Fatalf("completed progress = %d, want 100", after.Operations[0].Progress)
	}
}

func TestTracker_RetryFailedResetsFailures(t *testing.T) {
	t.Parallel()

	tracker, _ := newTestTracker(t)

	failed, _ := tracker.Add("upload", "game-1")
	done, _ := tracker.Add("upload", "game-2")
	tracker.Update(failed, Update{Status: statusOf(StatusFailed), Progress: progressOf(30), Err: errOf("gateway timeout")})
	tracker.Update(done, Update{Status: statusOf(StatusCompleted)})

	if got := tracker.RetryFailed(); got != 1 {
		t.Fatalf("retried = %d, want 1", got)
	}

	snap := tracker.Snapshot()
	for _, op := range snap.Operations {
		if op.ID != failed {
			continue
		}
		if op.Status != StatusPending || op.Progress != 0 || op.Err != "" {
			t.Fatalf("failed operation not reset: %+v", op)
		}
	}
	if snap.FailedCount != 0 {
		t.Fatalf("failed count = %d, want 0", snap.FailedCount)
	}
}

func TestTracker_SweepKeepsNewestCompleted(t *testing.T) {
	t.Parallel()

	tracker, _ := newTestTracker(t, WithCompletedRetention(3))

	var ids []string
	for i := 0; i < 5; i++ {
		opID, _ := tracker.Add("upload", fmt.Sprintf("game-%d", i))
		tracker.Update(opID, Update{Status: statusOf(StatusCompleted)})
		ids = append(ids, opID)
	}
	pending, _ := tracker.Add("download", "game-live")

	tracker.Sweep()

	snap := tracker.Snapshot()
	if len(snap.Operations) != 4 {
		t.Fatalf("operations after sweep = %d, want 4", len(snap.Operations))
	}

	remaining := make(map[string]bool, len(snap.Operations))
	for _, op := range snap.Operations {
		remaining[op.ID] = true
	}
	if remaining[ids[0]] || remaining[ids[1]] {
		t.Fatalf("oldest completed entries should be evicted, got %v", remaining)
	}
	if !remaining[pending] {
		t.Fatal("sweep must never evict non-completed operations")
	}
}

func TestTracker_ClearCompleted(t *testing.T) {
	t.Parallel()

	tracker, _ := newTestTracker(t)

	done, _ := tracker.Add("upload", "game-1")
	tracker.Update(done, Update{Status: statusOf(StatusCompleted)})
	tracker.Add("upload", "game-2")

	tracker.ClearCompleted()

	snap := tracker.Snapshot()
	if len(snap.Operations) != 1 || snap.Operations[0].Status != StatusPending {
		t.Fatalf("unexpected operations after clear: %+v", snap.Operations)
	}
}
