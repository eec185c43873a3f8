package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/seantiz/clusterwork/internal/model"
)

// Channel delivers a task to some remote worker and returns a handle to the
// eventual reply. Invoke must not block on the remote call itself, and must
// report delivery problems through the returned Future rather than by
// panicking. The ctx carries the task's deadline; implementations should
// abandon the call when it is done.
type Channel interface {
	Invoke(ctx context.Context, task model.TaskDescriptor) *Future
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc func(ctx context.Context, task model.TaskDescriptor) *Future

// Invoke calls f(ctx, task).
func (f ChannelFunc) Invoke(ctx context.Context, task model.TaskDescriptor) *Future {
	return f(ctx, task)
}

// ErrRouting marks failures to deliver a call to any worker.
var ErrRouting = errors.New("routing failure")

// RemoteError is a failure reported by the worker that executed the task.
type RemoteError struct {
	Member  string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Member == "" {
		return fmt.Sprintf("remote execution failed: %s", e.Message)
	}
	return fmt.Sprintf("remote execution failed on %s: %s", e.Member, e.Message)
}
