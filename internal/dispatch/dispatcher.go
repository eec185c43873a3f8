package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/clusterwork/internal/model"
)

// DefaultTaskTimeout is the per-task deadline used when none is configured.
const DefaultTaskTimeout = 30 * time.Second

// ErrNegativeTaskCount is returned when a request asks for fewer than zero tasks.
var ErrNegativeTaskCount = errors.New("task count must not be negative")

// errNilHandle is recorded when a Channel returns no Future for a task.
var errNilHandle = fmt.Errorf("%w: channel returned no handle", ErrRouting)

// PendingCall is one in-flight remote invocation.
type PendingCall struct {
	Index    int
	Handle   *Future
	Deadline time.Time

	issued  time.Time
	release context.CancelFunc
}

// done releases the call's context and timer. It is safe to call on a
// PendingCall built outside Dispatch.
func (c PendingCall) done() {
	if c.release != nil {
		c.release()
	}
}

// Dispatcher fans a request out into one Channel invocation per task.
type Dispatcher struct {
	channel Channel
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher that gives every task the same timeout.
// A non-positive timeout selects DefaultTaskTimeout.
func NewDispatcher(ch Channel, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &Dispatcher{
		channel: ch,
		timeout: timeout,
		logger:  logger,
	}
}

// Timeout returns the per-task deadline duration.
func (d *Dispatcher) Timeout() time.Duration {
	return d.timeout
}

// Dispatch issues taskCount invocations concurrently and returns one
// PendingCall per task, indexed 0..taskCount-1. A zero count issues nothing.
// Each call's context is derived from ctx and expires at the call's deadline.
func (d *Dispatcher) Dispatch(ctx context.Context, taskCount int) ([]PendingCall, error) {
	if taskCount < 0 {
		return nil, fmt.Errorf("dispatch %d tasks: %w", taskCount, ErrNegativeTaskCount)
	}

	calls := make([]PendingCall, taskCount)
	var wg sync.WaitGroup
	for i := range taskCount {
		issued := time.Now()
		deadline := issued.Add(d.timeout)
		callCtx, cancel := context.WithDeadline(ctx, deadline)
		calls[i] = PendingCall{
			Index:    i,
			Deadline: deadline,
			issued:   issued,
			release:  cancel,
		}

		wg.Go(func() {
			calls[i].Handle = d.invoke(callCtx, model.TaskDescriptor{Index: i})
		})
	}
	wg.Wait()

	inflightTasks.Add(float64(taskCount))
	d.logger.Debug("dispatched tasks", "count", taskCount, "timeout", d.timeout.String())
	return calls, nil
}

// invoke calls the channel, converting a panic or missing handle into a
// rejected Future so that one bad invocation cannot take down the request.
func (d *Dispatcher) invoke(ctx context.Context, task model.TaskDescriptor) (f *Future) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("channel invoke panicked", "task_index", task.Index, "panic", r)
			f = Rejected(fmt.Errorf("%w: invoke panicked: %v", ErrRouting, r))
		}
	}()

	f = d.channel.Invoke(ctx, task)
	if f == nil {
		return Rejected(errNilHandle)
	}
	return f
}
