package cluster

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/seantiz/clusterwork/internal/model"
	"github.com/seantiz/clusterwork/internal/wire"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeWorker serves one task per connection on a loopback listener. reply
// decides the result record for each task.
type fakeWorker struct {
	ln    net.Listener
	reply func(task wire.Task) wire.Result
	wg    sync.WaitGroup
}

func startFakeWorker(t *testing.T, reply func(task wire.Task) wire.Result) *fakeWorker {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	w := &fakeWorker{ln: ln, reply: reply}
	w.wg.Go(w.serve)
	t.Cleanup(func() {
		ln.Close()
		w.wg.Wait()
	})
	return w
}

func (w *fakeWorker) addr() string { return w.ln.Addr().String() }

func (w *fakeWorker) serve() {
	for {
		conn, err := w.ln.Accept()
		if err != nil {
			return
		}
		w.wg.Go(func() {
			defer conn.Close()
			task, err := wire.ReadTask(conn)
			if err != nil {
				return
			}
			wire.WriteResult(conn, w.reply(task))
		})
	}
}

// echoReply answers every task with a success naming the task index.
func echoReply(task wire.Task) wire.Result {
	return wire.Result{Index: task.Index, Result: "done"}
}

// recordingCaller is a Caller double that records which member served each
// call.
type recordingCaller struct {
	mu    sync.Mutex
	calls []string
}

func (c *recordingCaller) Call(_ context.Context, m model.Member, _ model.TaskDescriptor) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, m.ID)
	return m.ID, nil
}

func (c *recordingCaller) served() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func testClient() *Client {
	c := NewClient()
	c.baseBackoff = time.Millisecond
	return c
}
