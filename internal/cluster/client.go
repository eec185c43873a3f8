package cluster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"time"

	"github.com/seantiz/clusterwork/internal/dispatch"
	"github.com/seantiz/clusterwork/internal/model"
	"github.com/seantiz/clusterwork/internal/wire"
)

// Retry defaults for establishing a connection to a member.
const (
	dialMaxRetries  = 3
	dialBaseBackoff = 50 * time.Millisecond
)

// Caller delivers one task to one member and waits for its result.
type Caller interface {
	Call(ctx context.Context, m model.Member, task model.TaskDescriptor) (string, error)
}

// Client is the network Caller: one connection per call, carrying one framed
// task record out and one framed result record back.
type Client struct {
	dial        func(ctx context.Context, addr string) (net.Conn, error)
	maxRetries  int
	baseBackoff time.Duration
}

// NewClient creates a Client that dials members with Dial.
func NewClient() *Client {
	return &Client{
		dial:        Dial,
		maxRetries:  dialMaxRetries,
		baseBackoff: dialBaseBackoff,
	}
}

// Call sends task to m. Failures to connect or exchange records wrap
// dispatch.ErrRouting; a failure reported by the worker is a
// *dispatch.RemoteError.
func (c *Client) Call(ctx context.Context, m model.Member, task model.TaskDescriptor) (string, error) {
	// The wire record carries the index as int32.
	if task.Index < 0 || task.Index > math.MaxInt32 {
		return "", fmt.Errorf("%w: task index %d does not fit the wire format", dispatch.ErrRouting, task.Index)
	}

	conn, err := c.connect(ctx, m.Addr)
	if err != nil {
		return "", fmt.Errorf("%w: %w", dispatch.ErrRouting, err)
	}
	defer conn.Close()

	// Unblock any pending read or write as soon as the call is abandoned.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return "", fmt.Errorf("%w: set deadline: %w", dispatch.ErrRouting, err)
		}
	}

	if err := wire.WriteTask(conn, wire.Task{Index: int32(task.Index)}); err != nil {
		return "", c.transportErr(ctx, "send task", err)
	}

	res, err := wire.ReadResult(conn)
	if err != nil {
		return "", c.transportErr(ctx, "read result", err)
	}

	if int(res.Index) != task.Index {
		return "", fmt.Errorf("%w: result for task %d received for task %d", dispatch.ErrRouting, res.Index, task.Index)
	}
	if res.Error != "" {
		return "", &dispatch.RemoteError{Member: m.ID, Message: res.Error}
	}
	return res.Result, nil
}

// transportErr reports an I/O failure, preferring the context error when the
// failure was caused by the call being abandoned.
func (c *Client) transportErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	// The connection deadline mirrors the ctx deadline and may fire first.
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, context.DeadlineExceeded)
	}
	return fmt.Errorf("%w: %s: %w", dispatch.ErrRouting, op, err)
}

// connect dials addr, retrying with exponential backoff.
func (c *Client) connect(ctx context.Context, addr string) (net.Conn, error) {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := range c.maxRetries {
		conn, err := c.dial(ctx, addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		if attempt < c.maxRetries-1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("dial %s: %w", addr, ctx.Err())
			}
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("dial %s after %d attempts: %w", addr, c.maxRetries, lastErr)
}
