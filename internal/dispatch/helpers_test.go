package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seantiz/clusterwork/internal/dispatch"
	"github.com/seantiz/clusterwork/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// scriptedChannel is a deterministic Channel double. Each task settles after
// delayFor(index); tasks listed in fail are rejected with a RemoteError and
// tasks listed in hang never settle on their own.
type scriptedChannel struct {
	delayFor func(index int) time.Duration
	fail     map[int]bool
	hang     map[int]bool

	invoked atomic.Int32
	mu      sync.Mutex
	order   []int
}

func (c *scriptedChannel) Invoke(ctx context.Context, task model.TaskDescriptor) *dispatch.Future {
	c.invoked.Add(1)
	f := dispatch.NewFuture()

	go func() {
		if c.hang[task.Index] {
			<-ctx.Done()
			f.Reject(ctx.Err())
			return
		}

		var delay time.Duration
		if c.delayFor != nil {
			delay = c.delayFor(task.Index)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			f.Reject(ctx.Err())
			return
		}

		c.mu.Lock()
		c.order = append(c.order, task.Index)
		c.mu.Unlock()

		if c.fail[task.Index] {
			f.Reject(&dispatch.RemoteError{Member: "w1", Message: "boom"})
			return
		}
		f.Resolve(resultText(task.Index))
	}()

	return f
}

func (c *scriptedChannel) completionOrder() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.order...)
}

func resultText(index int) string {
	return fmt.Sprintf("Task #%d completed", index)
}

var errUnavailable = fmt.Errorf("%w: no members", dispatch.ErrRouting)

// unavailableChannel rejects every call immediately.
var unavailableChannel = dispatch.ChannelFunc(func(context.Context, model.TaskDescriptor) *dispatch.Future {
	return dispatch.Rejected(errUnavailable)
})

var errSentinel = errors.New("sentinel")
