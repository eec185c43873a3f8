package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	TasksTotal    int            `json:"tasks_total"`
	TasksFailed   int            `json:"tasks_failed"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
	Members       int            `json:"members"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetRunStats(r.Context())
	if err != nil {
		s.logger.Error("get run stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:         stats.Total,
		ByStatus:      stats.CountByStatus,
		TasksTotal:    stats.TasksTotal,
		TasksFailed:   stats.TasksFailed,
		AvgDurationMS: stats.AvgDurationMS,
		Members:       len(s.members.Members()),
	})
}
