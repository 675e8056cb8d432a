package usecase

import "context"

// WakeLock keeps the device display on while the match clock runs. The
// platform may revoke the lock at any time; Revoked yields once per grant
// when that happens. Platforms without a usable lock plug in NoopWakeLock
// and the engine treats the whole concern as a permanent no-op.
type WakeLock interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
	Revoked() <-chan struct{}
}

type NoopWakeLock struct{}

func (NoopWakeLock) Acquire(context.Context) error { return nil }
func (NoopWakeLock) Release(context.Context) error { return nil }

// Revoked returns nil so selects on it block forever.
func (NoopWakeLock) Revoked() <-chan struct{} { return nil }
