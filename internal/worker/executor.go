package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/seantiz/clusterwork/internal/model"
)

// ErrSimulatedFailure is returned by SimulatedExecutor for tasks it was told
// to fail.
var ErrSimulatedFailure = errors.New("simulated task failure")

// Executor runs a single task on this node.
type Executor interface {
	Execute(ctx context.Context, task model.TaskDescriptor) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task model.TaskDescriptor) (string, error)

// Execute calls f(ctx, task).
func (f ExecutorFunc) Execute(ctx context.Context, task model.TaskDescriptor) (string, error) {
	return f(ctx, task)
}

// SimulatedExecutor stands in for real work: it sleeps a random delay in
// [MinDelay, MaxDelay] and then reports completion, or fails with
// probability FailureRate.
type SimulatedExecutor struct {
	Node        string
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64
}

// Execute implements Executor.
func (e *SimulatedExecutor) Execute(ctx context.Context, task model.TaskDescriptor) (string, error) {
	delay := e.MinDelay
	if span := e.MaxDelay - e.MinDelay; span > 0 {
		delay += rand.N(span + 1)
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if e.FailureRate > 0 && rand.Float64() < e.FailureRate {
		return "", ErrSimulatedFailure
	}
	return CompletionStatus(task.Index, e.Node), nil
}

// CompletionStatus renders the status text for a task completed on node.
func CompletionStatus(index int, node string) string {
	return fmt.Sprintf("Task #%d completed by %s", index, node)
}
