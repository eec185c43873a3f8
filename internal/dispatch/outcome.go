package dispatch

import (
	"context"
	"errors"

	"github.com/seantiz/clusterwork/internal/model"
)

// Outcome kinds, used as metric labels and log attributes.
const (
	KindSuccess  = "success"
	KindTimeout  = "timeout"
	KindRouting  = "routing"
	KindRemote   = "remote"
	KindCanceled = "canceled"
	KindUnknown  = "unknown"
)

// Outcome is the settled result of one task. Err is nil on success.
type Outcome struct {
	Index  int
	Result string
	Err    error
}

// Succeeded reports whether the task produced a result.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Status renders the outcome for the work response: the remote result text on
// success, or the fixed failure marker for the task's index.
func (o Outcome) Status() string {
	if o.Err != nil {
		return model.FailureStatus(o.Index)
	}
	return o.Result
}

// Kind classifies the outcome. The classification is for diagnostics only;
// all failure kinds render the same Status.
func (o Outcome) Kind() string {
	var remote *RemoteError
	switch {
	case o.Err == nil:
		return KindSuccess
	case errors.Is(o.Err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(o.Err, context.Canceled):
		return KindCanceled
	case errors.As(o.Err, &remote):
		return KindRemote
	case errors.Is(o.Err, ErrRouting):
		return KindRouting
	default:
		return KindUnknown
	}
}
