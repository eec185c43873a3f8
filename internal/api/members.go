package api

import (
	"net/http"

	"github.com/seantiz/clusterwork/internal/model"
)

func (s *Server) handleListMembers(w http.ResponseWriter, _ *http.Request) {
	members := s.members.Members()
	if members == nil {
		members = []model.Member{}
	}
	s.writeJSON(w, http.StatusOK, members)
}
