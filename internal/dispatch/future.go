package dispatch

import (
	"context"
	"errors"
	"sync"
)

// errRejected stands in when a Future is rejected with a nil error.
var errRejected = errors.New("call rejected")

// Future is a settle-once handle to the eventual result of a remote call.
// It is safe for concurrent use.
type Future struct {
	done   chan struct{}
	once   sync.Once
	result string
	err    error
}

// NewFuture returns an unsettled Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a Future already settled with result.
func Resolved(result string) *Future {
	f := NewFuture()
	f.Resolve(result)
	return f
}

// Rejected returns a Future already settled with err.
func Rejected(err error) *Future {
	f := NewFuture()
	f.Reject(err)
	return f
}

// Resolve settles the Future successfully. It reports whether this call
// settled it; later calls are ignored.
func (f *Future) Resolve(result string) bool {
	return f.settle(result, nil)
}

// Reject settles the Future with an error. It reports whether this call
// settled it; later calls are ignored.
func (f *Future) Reject(err error) bool {
	if err == nil {
		err = errRejected
	}
	return f.settle("", err)
}

func (f *Future) settle(result string, err error) bool {
	settled := false
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
		settled = true
	})
	return settled
}

// Done returns a channel that is closed once the Future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the Future settles or ctx is done, whichever comes
// first. A result that is already available wins over an expired ctx.
func (f *Future) Await(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.result, f.err
	default:
	}

	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
