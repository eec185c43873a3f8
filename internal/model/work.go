package model

import (
	"fmt"
	"slices"
	"time"
)

// Run status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RoleCompute is the role tag carried by worker members that execute tasks.
const RoleCompute = "compute"

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether a run in the given status will never change again.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// TaskDescriptor identifies one subtask of a work request. Indices are
// zero-based and assigned in creation order.
type TaskDescriptor struct {
	Index int `json:"index"`
}

// FailureStatus renders the status reported for a task that errored or
// timed out. The underlying cause is deliberately not included.
func FailureStatus(index int) string {
	return fmt.Sprintf("Task #%d failed", index)
}

// WorkRequest is the inbound request: the number of independent tasks to run.
type WorkRequest struct {
	Tasks int `json:"tasks"`
}

// WorkResponse holds one rendered status per task, in task index order.
type WorkResponse struct {
	Statuses []string `json:"statuses"`
}

// Run is the persisted record of one work request.
type Run struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	TaskCount  int        `json:"task_count"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Statuses   []string   `json:"statuses,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMS *int       `json:"duration_ms,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Member is a worker node reachable through the cluster router.
type Member struct {
	ID       string    `json:"id"`
	Addr     string    `json:"addr"`
	Roles    []string  `json:"roles"`
	LastSeen time.Time `json:"last_seen,omitzero"`
}

// HasRole reports whether the member carries the given role tag.
func (m Member) HasRole(role string) bool {
	return slices.Contains(m.Roles, role)
}
