package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seantiz/clusterwork/internal/dispatch"
)

func TestFutureResolveOnce(t *testing.T) {
	f := dispatch.NewFuture()
	if !f.Resolve("first") {
		t.Fatal("first Resolve should settle the future")
	}
	if f.Resolve("second") {
		t.Error("second Resolve should be ignored")
	}
	if f.Reject(errSentinel) {
		t.Error("Reject after Resolve should be ignored")
	}

	got, err := f.Await(context.Background())
	if err != nil || got != "first" {
		t.Errorf("Await = (%q, %v), want (first, nil)", got, err)
	}
}

func TestFutureRejectNilError(t *testing.T) {
	f := dispatch.Rejected(nil)
	if _, err := f.Await(context.Background()); err == nil {
		t.Error("rejected future must report an error")
	}
}

func TestFutureAwaitContextExpires(t *testing.T) {
	f := dispatch.NewFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestFutureSettledResultWinsOverExpiredContext(t *testing.T) {
	f := dispatch.Resolved("ready")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := f.Await(ctx)
	if err != nil || got != "ready" {
		t.Errorf("Await = (%q, %v), want (ready, nil)", got, err)
	}
}

func TestFutureDoneClosesOnSettle(t *testing.T) {
	f := dispatch.NewFuture()
	select {
	case <-f.Done():
		t.Fatal("Done closed before settle")
	default:
	}

	go f.Reject(errSentinel)

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Reject")
	}
}
