package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/seantiz/clusterwork/internal/model"
	"github.com/seantiz/clusterwork/internal/wire"
)

// Connection I/O limits. The router keeps its side open for the task's whole
// deadline; these bound how long a stalled peer can hold a handler.
const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// DefaultTaskTimeout bounds a single Execute call.
const DefaultTaskTimeout = 30 * time.Second

// Agent serves task records on a listener.
type Agent struct {
	listener    net.Listener
	executor    Executor
	taskTimeout time.Duration
	logger      *slog.Logger

	wg sync.WaitGroup
}

// New creates an agent that runs tasks from listener on executor. A
// non-positive taskTimeout selects DefaultTaskTimeout.
func New(listener net.Listener, executor Executor, taskTimeout time.Duration, logger *slog.Logger) *Agent {
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}
	return &Agent{
		listener:    listener,
		executor:    executor,
		taskTimeout: taskTimeout,
		logger:      logger,
	}
}

// Addr returns the listener's address.
func (a *Agent) Addr() net.Addr {
	return a.listener.Addr()
}

// Serve accepts connections and handles tasks. It blocks until the listener
// is closed, returning nil in that case.
func (a *Agent) Serve() error {
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		a.wg.Go(func() { a.handleConnection(conn) })
	}
}

// Close stops accepting connections and waits for in-flight tasks.
func (a *Agent) Close() error {
	err := a.listener.Close()
	a.wg.Wait()
	return err
}

// handleConnection processes a single task on conn.
func (a *Agent) handleConnection(conn net.Conn) {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		a.logger.Debug("set read deadline", "remote", conn.RemoteAddr().String(), "error", err)
	}
	task, err := wire.ReadTask(conn)
	if err != nil {
		a.logger.Warn("read task", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}

	res := a.execute(int(task.Index))

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		a.logger.Debug("set write deadline", "task_index", task.Index, "error", err)
	}
	if err := wire.WriteResult(conn, res); err != nil {
		a.logger.Warn("write result", "task_index", task.Index, "error", err)
	}
}

func (a *Agent) execute(index int) wire.Result {
	ctx, cancel := context.WithTimeout(context.Background(), a.taskTimeout)
	defer cancel()

	start := time.Now()
	res := wire.Result{Index: int32(index)}

	text, err := a.executor.Execute(ctx, model.TaskDescriptor{Index: index})
	if err != nil {
		res.Error = err.Error()
		workerTasksTotal.WithLabelValues(resultFailed).Inc()
		a.logger.Info("task failed", "task_index", index, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return res
	}

	res.Result = text
	workerTasksTotal.WithLabelValues(resultCompleted).Inc()
	a.logger.Debug("task completed", "task_index", index, "duration_ms", time.Since(start).Milliseconds())
	return res
}
