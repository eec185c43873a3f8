package store

import (
	"context"
	"errors"

	"github.com/seantiz/clusterwork/internal/model"
)

// ErrNotFound is returned when a run is not found.
var ErrNotFound = errors.New("run not found")

// RunStats holds aggregate statistics over completed runs.
type RunStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	TasksTotal    int            `json:"tasks_total"`
	TasksFailed   int            `json:"tasks_failed"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for finished runs. In-flight runs
// are never written.
type Store interface {
	SaveRun(ctx context.Context, r *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, int, error)
	GetRunStats(ctx context.Context) (*RunStats, error)
	Close() error
}
