package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/seantiz/clusterwork/internal/model"
	"github.com/seantiz/clusterwork/internal/store"
)

// ErrInvalidTransition is returned when a run status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrTooManyTasks is returned when a request asks for more tasks than the
// engine accepts.
var ErrTooManyTasks = errors.New("task count exceeds limit")

// persistTimeout bounds how long saving a finished run may take.
const persistTimeout = 5 * time.Second

// DefaultMaxTasks is the task limit of a new Engine. Task indices travel as
// int32, so no limit may exceed math.MaxInt32.
const DefaultMaxTasks = 10000

// Engine runs work requests end to end: it dispatches the tasks, aggregates
// their outcomes, publishes settlement events and records the finished run.
// In-flight runs live only in memory.
type Engine struct {
	dispatcher *Dispatcher
	aggregator *Aggregator
	store      store.Store
	broker     *EventBroker
	logger     *slog.Logger
	maxTasks   int
	wg         sync.WaitGroup

	mu     sync.RWMutex
	active map[string]*model.Run
}

// NewEngine creates a new work engine.
func NewEngine(d *Dispatcher, s store.Store, logger *slog.Logger) *Engine {
	return &Engine{
		dispatcher: d,
		aggregator: NewAggregator(logger),
		store:      s,
		broker:     NewEventBroker(),
		logger:     logger,
		maxTasks:   DefaultMaxTasks,
		active:     make(map[string]*model.Run),
	}
}

// SetMaxTasks sets the largest task count a request may ask for. A
// non-positive n restores DefaultMaxTasks; values above math.MaxInt32 are
// clamped. Call it before the engine serves requests.
func (e *Engine) SetMaxTasks(n int) {
	switch {
	case n <= 0:
		n = DefaultMaxTasks
	case n > math.MaxInt32:
		n = math.MaxInt32
	}
	e.maxTasks = n
}

// MaxTasks returns the largest task count a request may ask for.
func (e *Engine) MaxTasks() int {
	return e.maxTasks
}

// validate rejects task counts outside [0, MaxTasks].
func (e *Engine) validate(req model.WorkRequest) error {
	if req.Tasks < 0 {
		return ErrNegativeTaskCount
	}
	if req.Tasks > e.maxTasks {
		return fmt.Errorf("%d tasks, limit %d: %w", req.Tasks, e.maxTasks, ErrTooManyTasks)
	}
	return nil
}

// TaskTimeout returns the per-task deadline applied to every dispatched call.
func (e *Engine) TaskTimeout() time.Duration {
	return e.dispatcher.Timeout()
}

// Broker returns the engine's event broker for SSE subscription.
func (e *Engine) Broker() *EventBroker {
	return e.broker
}

// Execute runs the request synchronously and returns the ordered statuses
// together with the finished run record. Individual task failures are part
// of the response; an error is returned only for an invalid request or when
// dispatch itself fails.
func (e *Engine) Execute(ctx context.Context, req model.WorkRequest) (*model.WorkResponse, *model.Run, error) {
	if err := e.validate(req); err != nil {
		return nil, nil, fmt.Errorf("execute: %w", err)
	}

	run := e.begin(req)
	resp, err := e.process(ctx, run.ID, req.Tasks)
	final := e.lookupActive(run.ID)
	e.finish(run.ID)
	if err != nil {
		return nil, final, err
	}
	return resp, final, nil
}

// Submit registers a pending run and executes it in a goroutine. The
// returned run is a snapshot taken before execution starts.
func (e *Engine) Submit(ctx context.Context, req model.WorkRequest) (*model.Run, error) {
	if err := e.validate(req); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	run := e.begin(req)
	ctx = context.WithoutCancel(ctx)
	e.wg.Go(func() {
		defer e.finish(run.ID)
		if _, err := e.process(ctx, run.ID, req.Tasks); err != nil {
			e.logger.Error("async run failed", "run_id", run.ID, "error", err)
		}
	})

	return run, nil
}

// Wait blocks until all in-flight async runs complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Lookup returns a snapshot of an in-flight run.
func (e *Engine) Lookup(id string) (*model.Run, bool) {
	r := e.lookupActive(id)
	return r, r != nil
}

// begin registers a new pending run and returns a snapshot of it.
func (e *Engine) begin(req model.WorkRequest) *model.Run {
	run := &model.Run{
		ID:        model.NewID(),
		Status:    model.StatusPending,
		TaskCount: req.Tasks,
		CreatedAt: time.Now().UTC(),
	}

	e.mu.Lock()
	e.active[run.ID] = run
	e.mu.Unlock()

	snapshot := *run
	return &snapshot
}

// process runs the pending run through running to a terminal status.
func (e *Engine) process(ctx context.Context, runID string, taskCount int) (*model.WorkResponse, error) {
	defer e.broker.Close(runID)

	if err := e.transition(runID, model.StatusRunning, nil); err != nil {
		return nil, err
	}

	start := time.Now()
	logger := e.logger.With("run_id", runID)

	calls, err := e.dispatcher.Dispatch(ctx, taskCount)
	if err != nil {
		e.fail(runID, start, err)
		return nil, fmt.Errorf("dispatch: %w", err)
	}

	var succeeded, failed int
	var countMu sync.Mutex
	resp := e.aggregator.Collect(ctx, calls, func(o Outcome) {
		countMu.Lock()
		if o.Succeeded() {
			succeeded++
		} else {
			failed++
		}
		countMu.Unlock()

		e.broker.Publish(runID, TaskEvent{Index: o.Index, Status: o.Status(), Kind: o.Kind()})
	})

	durationMS := int(time.Since(start).Milliseconds())
	now := time.Now().UTC()
	err = e.transition(runID, model.StatusCompleted, func(r *model.Run) {
		r.Statuses = resp.Statuses
		r.Succeeded = succeeded
		r.Failed = failed
		r.DurationMS = &durationMS
		r.FinishedAt = &now
	})
	if err != nil {
		return nil, err
	}

	logger.Info("run completed",
		"tasks", taskCount,
		"succeeded", succeeded,
		"failed", failed,
		"duration_ms", durationMS,
	)
	return &resp, nil
}

// fail marks a run as failed because of a plumbing error.
func (e *Engine) fail(runID string, start time.Time, cause error) {
	durationMS := int(time.Since(start).Milliseconds())
	now := time.Now().UTC()
	err := e.transition(runID, model.StatusFailed, func(r *model.Run) {
		r.Error = cause.Error()
		r.DurationMS = &durationMS
		r.FinishedAt = &now
	})
	if err != nil {
		e.logger.Error("failed to mark run failed", "run_id", runID, "error", err)
	}
}

// transition moves an active run to status, applying mutate under the lock.
func (e *Engine) transition(runID, status string, mutate func(*model.Run)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.active[runID]
	if !ok {
		return fmt.Errorf("run %s is not active", runID)
	}
	if !model.ValidTransition(r.Status, status) {
		return fmt.Errorf("run %s %s→%s: %w", runID, r.Status, status, ErrInvalidTransition)
	}

	r.Status = status
	if mutate != nil {
		mutate(r)
	}
	return nil
}

// finish persists a terminal run and drops it from the active set. A run
// that never reached a terminal status is dropped without being stored.
func (e *Engine) finish(runID string) {
	r := e.lookupActive(runID)
	if r == nil {
		return
	}

	if model.IsTerminal(r.Status) {
		runsTotal.WithLabelValues(r.Status).Inc()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := e.store.SaveRun(ctx, r); err != nil {
			e.logger.Error("failed to persist run", "run_id", runID, "error", err)
		}
	}

	e.mu.Lock()
	delete(e.active, runID)
	e.mu.Unlock()
}

// lookupActive returns a copy of an active run, or nil.
func (e *Engine) lookupActive(id string) *model.Run {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.active[id]
	if !ok {
		return nil
	}
	snapshot := *r
	snapshot.Statuses = append([]string(nil), r.Statuses...)
	return &snapshot
}
