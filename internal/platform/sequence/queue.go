package sequence

import (
	"context"
	"sync"

	"github.com/touchline/matchclock/internal/platform/logging"
)

// Queue forces named async operations to complete in FIFO submission order.
// Each call waits for the previously submitted operation to finish (whatever
// its outcome) before running its own work, so two writes routed through the
// same Queue can never be observed out of submission order.
type Queue struct {
	mu     sync.Mutex
	tail   chan struct{}
	logger *logging.Logger
}

func NewQueue(logger *logging.Logger) *Queue {
	if logger == nil {
		logger = logging.Default()
	}
	return &Queue{logger: logger}
}

// Do runs fn after every previously submitted operation has completed. The
// result and error belong to fn alone; a predecessor's failure never fails a
// successor. A context cancelled while queued skips fn entirely without
// breaking the chain for later submissions.
func (q *Queue) Do(ctx context.Context, name string, fn func(context.Context) (any, error)) (any, error) {
	q.mu.Lock()
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			q.logger.DebugContext(ctx, "queued operation abandoned", "operation", name)
			go func() {
				<-prev
				close(done)
			}()
			return nil, ctx.Err()
		}
	}
	defer close(done)

	out, err := fn(ctx)
	if err != nil {
		q.logger.DebugContext(ctx, "queued operation failed", "operation", name, "error", err)
	}
	return out, err
}

// Clear drops the tail reference so the next Do starts immediately instead of
// chaining on whatever was last submitted. In-flight operations still hold
// their own predecessor reference and complete normally.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.tail = nil
	q.mu.Unlock()
}

// Wait blocks until every operation submitted before the call has completed.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	tail := q.tail
	q.mu.Unlock()

	if tail == nil {
		return nil
	}

	select {
	case <-tail:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
