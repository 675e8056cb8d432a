package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/touchline/matchclock/internal/platform/id"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSyncing   Status = "syncing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	// Completed entries kept by the sweep; oldest beyond this are evicted.
	defaultCompletedRetention = 50
	defaultSweepInterval      = 30 * time.Second
)

// Operation is one tracked unit of sync work.
type Operation struct {
	ID        string
	Type      string
	Resource  string
	Status    Status
	Progress  int
	Err       string
	Timestamp time.Time
}

// Update patches an operation; nil fields are left untouched.
type Update struct {
	Status   *Status
	Progress *int
	Err      *string
}

// Snapshot is the aggregated tracker view exposed to callers.
type Snapshot struct {
	Operations      []Operation
	IsActive        bool
	OverallProgress int
	LastSync        time.Time
	PendingCount    int
	FailedCount     int
}

// Tracker is an in-memory ledger of named async sync operations.
type Tracker struct {
	mu    sync.Mutex
	ops   map[string]*Operation
	order []string

	gen       id.Generator
	clock     clockwork.Clock
	retention int
	lastSync  time.Time
}

type Option func(*Tracker)

func WithClock(clock clockwork.Clock) Option {
	return func(t *Tracker) { t.clock = clock }
}

func WithCompletedRetention(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.retention = n
		}
	}
}

func NewTracker(gen id.Generator, opts ...Option) *Tracker {
	if gen == nil {
		gen = id.NewPrefixedGenerator("op_")
	}

	t := &Tracker{
		ops:       make(map[string]*Operation),
		gen:       gen,
		clock:     clockwork.NewRealClock(),
		retention: defaultCompletedRetention,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Add registers a new operation in pending state and returns its ID.
func (t *Tracker) Add(opType, resource string) (string, error) {
	opID, err := t.gen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate operation id: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.ops[opID] = &Operation{
		ID:        opID,
		Type:      opType,
		Resource:  resource,
		Status:    StatusPending,
		Timestamp: t.clock.Now(),
	}
	t.order = append(t.order, opID)
	return opID, nil
}

// Update merges the patch into the operation. Transitioning to completed
// forces progress to 100 and refreshes the last-sync timestamp.
func (t *Tracker) Update(opID string, patch Update) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.ops[opID]
	if !ok {
		return false
	}

	if patch.Status != nil {
		op.Status = *patch.Status
		if op.Status == StatusCompleted {
			op.Progress = 100
			t.lastSync = t.clock.Now()
		}
	}
	if patch.Progress != nil {
		op.Progress = clampProgress(*patch.Progress)
	}
	if patch.Err != nil {
		op.Err = *patch.Err
	}
	op.Timestamp = t.clock.Now()
	return true
}

func (t *Tracker) Remove(opID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleteLocked(opID)
}

// ClearCompleted drops every completed operation.
func (t *Tracker) ClearCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, opID := range append([]string(nil), t.order...) {
		if op := t.ops[opID]; op != nil && op.Status == StatusCompleted {
			t.deleteLocked(opID)
		}
	}
}

// RetryFailed resets every failed operation back to pending with a fresh
// progress and cleared error, so the owning caller can re-run it.
func (t *Tracker) RetryFailed() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for _, op := range t.ops {
		if op.Status != StatusFailed {
			continue
		}
		op.Status = StatusPending
		op.Progress = 0
		op.Err = ""
		op.Timestamp = t.clock.Now()
		count++
	}
	return count
}

// Snapshot aggregates the tracked operations.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		Operations: make([]Operation, 0, len(t.order)),
		LastSync:   t.lastSync,
	}

	total := 0
	for _, opID := range t.order {
		op := t.ops[opID]
		if op == nil {
			continue
		}
		snap.Operations = append(snap.Operations, *op)
		total += op.Progress

		switch op.Status {
		case StatusPending:
			snap.PendingCount++
			snap.IsActive = true
		case StatusSyncing:
			snap.IsActive = true
		case StatusFailed:
			snap.FailedCount++
		}
	}

	if n := len(snap.Operations); n > 0 {
		snap.OverallProgress = total / n
	}
	return snap
}

// Run sweeps completed operations on a fixed cadence until ctx is done.
// Non-completed entries are never evicted here.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	ticker := t.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			t.Sweep()
		}
	}
}

// Sweep evicts completed operations beyond the retention limit, oldest first.
func (t *Tracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	completed := 0
	for _, op := range t.ops {
		if op.Status == StatusCompleted {
			completed++
		}
	}
	excess := completed - t.retention
	if excess <= 0 {
		return
	}

	for _, opID := range append([]string(nil), t.order...) {
		if excess == 0 {
			break
		}
		if op := t.ops[opID]; op != nil && op.Status == StatusCompleted {
			t.deleteLocked(opID)
			excess--
		}
	}
}

func (t *Tracker) deleteLocked(opID string) {
	if _, ok := t.ops[opID]; !ok {
		return
	}
	delete(t.ops, opID)
	for i, existing := range t.order {
		if existing == opID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func clampProgress(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
