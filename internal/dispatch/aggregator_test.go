package dispatch_test

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/seantiz/clusterwork/internal/dispatch"
	"github.com/seantiz/clusterwork/internal/model"
)

func run(t *testing.T, ch dispatch.Channel, timeout time.Duration, n int) model.WorkResponse {
	t.Helper()
	d := dispatch.NewDispatcher(ch, timeout, discardLogger())
	calls, err := d.Dispatch(context.Background(), n)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	return dispatch.NewAggregator(discardLogger()).Aggregate(context.Background(), calls)
}

func TestAggregateLengthMatchesTaskCount(t *testing.T) {
	for _, n := range []int{0, 1, 2, 10, 100} {
		resp := run(t, &scriptedChannel{}, time.Second, n)
		if len(resp.Statuses) != n {
			t.Errorf("n=%d: len(statuses) = %d", n, len(resp.Statuses))
		}
	}
}

func TestAggregateZeroReturnsEmptyImmediately(t *testing.T) {
	start := time.Now()
	resp := dispatch.NewAggregator(discardLogger()).Aggregate(context.Background(), nil)
	if resp.Statuses == nil || len(resp.Statuses) != 0 {
		t.Errorf("statuses = %#v, want empty non-nil slice", resp.Statuses)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("empty aggregate took %v", elapsed)
	}
}

func TestAggregatePreservesOrderWhenSettlingInReverse(t *testing.T) {
	const n = 10
	ch := &scriptedChannel{
		delayFor: func(i int) time.Duration { return time.Duration(n-i) * 15 * time.Millisecond },
	}

	resp := run(t, ch, 5*time.Second, n)

	order := ch.completionOrder()
	if order[0] != n-1 || order[n-1] != 0 {
		t.Fatalf("test double did not settle in reverse: %v", order)
	}

	for i, s := range resp.Statuses {
		if s != resultText(i) {
			t.Errorf("statuses[%d] = %q, want %q", i, s, resultText(i))
		}
	}
}

func TestAggregatePreservesOrderWithRandomSettlement(t *testing.T) {
	const n = 50
	delays := make([]time.Duration, n)
	for i := range delays {
		delays[i] = time.Duration(rand.IntN(40)) * time.Millisecond
	}
	ch := &scriptedChannel{delayFor: func(i int) time.Duration { return delays[i] }}

	resp := run(t, ch, 5*time.Second, n)

	for i, s := range resp.Statuses {
		if s != resultText(i) {
			t.Errorf("statuses[%d] = %q, want %q", i, s, resultText(i))
		}
	}
}

func TestAggregateTimeoutIsIsolated(t *testing.T) {
	ch := &scriptedChannel{
		delayFor: func(int) time.Duration { return 10 * time.Millisecond },
		hang:     map[int]bool{2: true},
	}

	resp := run(t, ch, 200*time.Millisecond, 5)

	for i, s := range resp.Statuses {
		want := resultText(i)
		if i == 2 {
			want = "Task #2 failed"
		}
		if s != want {
			t.Errorf("statuses[%d] = %q, want %q", i, s, want)
		}
	}
}

func TestAggregateFailureDoesNotCancelSiblings(t *testing.T) {
	ch := &scriptedChannel{
		delayFor: func(i int) time.Duration {
			if i == 0 {
				return 0
			}
			return 50 * time.Millisecond
		},
		fail: map[int]bool{0: true},
	}

	resp := run(t, ch, time.Second, 4)

	if resp.Statuses[0] != "Task #0 failed" {
		t.Errorf("statuses[0] = %q, want failure", resp.Statuses[0])
	}
	for i := 1; i < 4; i++ {
		if resp.Statuses[i] != resultText(i) {
			t.Errorf("statuses[%d] = %q, want %q", i, resp.Statuses[i], resultText(i))
		}
	}
}

func TestAggregateAllFail(t *testing.T) {
	const n = 6
	fail := make(map[int]bool)
	for i := range n {
		fail[i] = true
	}
	resp := run(t, &scriptedChannel{fail: fail}, time.Second, n)

	if len(resp.Statuses) != n {
		t.Fatalf("len(statuses) = %d, want %d", len(resp.Statuses), n)
	}
	for i, s := range resp.Statuses {
		if s != model.FailureStatus(i) {
			t.Errorf("statuses[%d] = %q, want %q", i, s, model.FailureStatus(i))
		}
	}
}

func TestAggregateAllTimeOut(t *testing.T) {
	const n = 4
	hang := map[int]bool{0: true, 1: true, 2: true, 3: true}

	start := time.Now()
	resp := run(t, &scriptedChannel{hang: hang}, 100*time.Millisecond, n)
	elapsed := time.Since(start)

	for i, s := range resp.Statuses {
		if s != model.FailureStatus(i) {
			t.Errorf("statuses[%d] = %q, want failure", i, s)
		}
	}
	// All deadlines run concurrently: roughly one timeout, not n of them.
	if elapsed > 350*time.Millisecond {
		t.Errorf("aggregate took %v, want close to one timeout", elapsed)
	}
}

func TestAggregateIsConcurrent(t *testing.T) {
	const (
		n     = 20
		delay = 100 * time.Millisecond
	)
	ch := &scriptedChannel{delayFor: func(int) time.Duration { return delay }}

	start := time.Now()
	resp := run(t, ch, 5*time.Second, n)
	elapsed := time.Since(start)

	if len(resp.Statuses) != n {
		t.Fatalf("len(statuses) = %d", len(resp.Statuses))
	}
	if elapsed > 4*delay {
		t.Errorf("aggregate took %v for %d tasks of %v; want close to %v", elapsed, n, delay, delay)
	}
}

func TestAggregateLateResultAfterDeadlineIsFailure(t *testing.T) {
	f := dispatch.NewFuture()
	calls := []dispatch.PendingCall{{
		Index:    0,
		Handle:   f,
		Deadline: time.Now().Add(30 * time.Millisecond),
	}}

	go func() {
		time.Sleep(150 * time.Millisecond)
		f.Resolve("too late")
	}()

	resp := dispatch.NewAggregator(discardLogger()).Aggregate(context.Background(), calls)
	if resp.Statuses[0] != "Task #0 failed" {
		t.Errorf("statuses[0] = %q, want failure", resp.Statuses[0])
	}
}

func TestAggregateHandBuiltCallsInShuffledSliceOrder(t *testing.T) {
	// Calls need not be passed in index order; placement is by Index.
	deadline := time.Now().Add(time.Second)
	calls := []dispatch.PendingCall{
		{Index: 2, Handle: dispatch.Resolved("two"), Deadline: deadline},
		{Index: 0, Handle: dispatch.Resolved("zero"), Deadline: deadline},
		{Index: 1, Handle: dispatch.Rejected(errSentinel), Deadline: deadline},
	}

	resp := dispatch.NewAggregator(discardLogger()).Aggregate(context.Background(), calls)
	want := []string{"zero", "Task #1 failed", "two"}
	if !slices.Equal(resp.Statuses, want) {
		t.Errorf("statuses = %v, want %v", resp.Statuses, want)
	}
}

func TestCollectCallsOnSettleOncePerTask(t *testing.T) {
	const n = 12
	ch := &scriptedChannel{
		delayFor: func(i int) time.Duration { return time.Duration(i%3) * 5 * time.Millisecond },
		fail:     map[int]bool{4: true},
	}
	d := dispatch.NewDispatcher(ch, time.Second, discardLogger())
	calls, err := d.Dispatch(context.Background(), n)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	var mu sync.Mutex
	seen := make(map[int]int)
	dispatch.NewAggregator(discardLogger()).Collect(context.Background(), calls, func(o dispatch.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		seen[o.Index]++
		if o.Index == 4 && o.Kind() != dispatch.KindRemote {
			t.Errorf("task 4 kind = %q, want remote", o.Kind())
		}
	})

	if len(seen) != n {
		t.Fatalf("settled %d tasks, want %d", len(seen), n)
	}
	for i, count := range seen {
		if count != 1 {
			t.Errorf("task %d settled %d times", i, count)
		}
	}
}

func TestAggregateParentCancelFailsRemainingTasks(t *testing.T) {
	ch := &scriptedChannel{hang: map[int]bool{1: true}}
	d := dispatch.NewDispatcher(ch, 10*time.Second, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	calls, err := d.Dispatch(ctx, 2)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	time.AfterFunc(50*time.Millisecond, cancel)

	resp := dispatch.NewAggregator(discardLogger()).Aggregate(ctx, calls)
	if resp.Statuses[0] != resultText(0) {
		t.Errorf("statuses[0] = %q, want %q", resp.Statuses[0], resultText(0))
	}
	if resp.Statuses[1] != "Task #1 failed" {
		t.Errorf("statuses[1] = %q, want failure", resp.Statuses[1])
	}
}
