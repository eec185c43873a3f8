package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/clusterwork/internal/model"
)

// Aggregator collects the outcomes of a set of PendingCalls.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(logger *slog.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Aggregate awaits every call and returns their rendered statuses in task
// index order. It returns only once every call has settled.
func (a *Aggregator) Aggregate(ctx context.Context, calls []PendingCall) model.WorkResponse {
	return a.Collect(ctx, calls, nil)
}

// Collect is Aggregate with a callback invoked once per outcome, in
// completion order. onSettle may be called from multiple goroutines.
//
// Each call is awaited in its own goroutine until its handle settles or its
// deadline passes. Outcomes are written straight into the slot for their
// index; calls must carry distinct indices in [0, len(calls)).
func (a *Aggregator) Collect(ctx context.Context, calls []PendingCall, onSettle func(Outcome)) model.WorkResponse {
	statuses := make([]string, len(calls))
	if len(calls) == 0 {
		return model.WorkResponse{Statuses: statuses}
	}

	var wg sync.WaitGroup
	for _, call := range calls {
		wg.Go(func() {
			o := await(ctx, call)
			statuses[o.Index] = o.Status()
			a.record(call, o)
			if onSettle != nil {
				onSettle(o)
			}
		})
	}
	wg.Wait()

	return model.WorkResponse{Statuses: statuses}
}

// await settles a single call to exactly one Outcome.
func await(ctx context.Context, call PendingCall) Outcome {
	defer call.done()

	if call.Handle == nil {
		return Outcome{Index: call.Index, Err: errNilHandle}
	}

	waitCtx, cancel := context.WithDeadline(ctx, call.Deadline)
	defer cancel()

	result, err := call.Handle.Await(waitCtx)
	return Outcome{Index: call.Index, Result: result, Err: err}
}

func (a *Aggregator) record(call PendingCall, o Outcome) {
	kind := o.Kind()
	taskOutcomesTotal.WithLabelValues(kind).Inc()
	if !call.issued.IsZero() {
		taskDuration.WithLabelValues(kind).Observe(time.Since(call.issued).Seconds())
		inflightTasks.Dec()
	}

	if !o.Succeeded() {
		a.logger.Warn("task failed", "task_index", o.Index, "kind", kind, "error", o.Err)
	}
}
