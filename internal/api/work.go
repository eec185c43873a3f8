package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/seantiz/clusterwork/internal/dispatch"
	"github.com/seantiz/clusterwork/internal/model"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB

	// responseGrace is added to the task timeout when extending the write
	// deadline of a synchronous /work response.
	responseGrace = 5 * time.Second
)

// decodeWorkRequest reads and validates a {"tasks": n} body. It writes the
// error response itself and reports whether the caller should continue.
func (s *Server) decodeWorkRequest(w http.ResponseWriter, r *http.Request) (model.WorkRequest, bool) {
	var req model.WorkRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if req.Tasks < 0 {
		s.writeError(w, http.StatusBadRequest, "tasks must not be negative")
		return req, false
	}
	if limit := s.engine.MaxTasks(); req.Tasks > limit {
		s.writeError(w, http.StatusBadRequest, "tasks must not exceed "+strconv.Itoa(limit))
		return req, false
	}
	observeRequestedTasks(r, req.Tasks)
	return req, true
}

// writeTaskCountError answers 400 for task counts the engine refused and
// reports whether it did.
func (s *Server) writeTaskCountError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, dispatch.ErrNegativeTaskCount):
		s.writeError(w, http.StatusBadRequest, "tasks must not be negative")
	case errors.Is(err, dispatch.ErrTooManyTasks):
		s.writeError(w, http.StatusBadRequest, "tasks must not exceed "+strconv.Itoa(s.engine.MaxTasks()))
	default:
		return false
	}
	return true
}

// handleWork fans the request out to the cluster and replies with one status
// per task, in task order, once every task has settled.
func (s *Server) handleWork(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeWorkRequest(w, r)
	if !ok {
		return
	}

	// The reply can legitimately take as long as the slowest task.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(s.engine.TaskTimeout() + responseGrace)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("extend write deadline for work", "error", err)
	}

	resp, run, err := s.engine.Execute(r.Context(), req)
	if s.writeTaskCountError(w, err) {
		return
	}
	if err != nil || resp == nil {
		attrs := []any{"tasks", req.Tasks, "error", err}
		if run != nil {
			attrs = append(attrs, "run_id", run.ID)
		}
		s.logger.Error("work produced no aggregate", attrs...)
		s.writeError(w, http.StatusInternalServerError, "failed to aggregate task results")
		return
	}

	if run != nil {
		w.Header().Set("X-Run-Id", run.ID)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
