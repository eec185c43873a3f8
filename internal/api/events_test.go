package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/clusterwork/internal/dispatch"
	"github.com/seantiz/clusterwork/internal/model"
)

func TestStreamEventsNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/nonexistent/events")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStreamEventsFinishedRun(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, _ := postWork(t, ts.URL, "application/json", `{"tasks":1}`)
	id := resp.Header.Get("X-Run-Id")

	ev, err := http.Get(ts.URL + "/v1/runs/" + id + "/events")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer ev.Body.Close()

	if ev.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", ev.StatusCode)
	}
	if ct := ev.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body := readAll(t, ev)
	if !strings.Contains(body, "event: done") {
		t.Errorf("body = %q, want a done event", body)
	}
}

func TestStreamEventsReceivesTaskEvents(t *testing.T) {
	release := make(chan struct{})
	ch := dispatch.ChannelFunc(func(ctx context.Context, task model.TaskDescriptor) *dispatch.Future {
		f := dispatch.NewFuture()
		go func() {
			select {
			case <-release:
				f.Resolve(completed(task.Index))
			case <-ctx.Done():
				f.Reject(ctx.Err())
			}
		}()
		return f
	})
	srv := newTestServerWith(t, ch, 5*time.Second)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	run := submitRun(t, ts.URL, `{"tasks":2}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/runs/"+run.ID+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	// Headers are flushed once the subscription is in place.
	close(release)

	var events []dispatch.TaskEvent
	var sawDone bool
	scanner := bufio.NewScanner(resp.Body)
	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && event == "task":
			var ev dispatch.TaskEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				t.Fatalf("decode event %q: %v", line, err)
			}
			events = append(events, ev)
		case strings.HasPrefix(line, "data: ") && event == "done":
			sawDone = true
		}
	}

	if !sawDone {
		t.Error("stream ended without a done event")
	}
	if len(events) != 2 {
		t.Fatalf("got %d task events, want 2: %+v", len(events), events)
	}
	for _, ev := range events {
		if ev.Status != completed(ev.Index) || ev.Kind != dispatch.KindSuccess {
			t.Errorf("event = %+v", ev)
		}
	}
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteString("\n")
	}
	return sb.String()
}
