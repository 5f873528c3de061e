package api

import "net/http"

type healthResponse struct {
	Status string `json:"status"`
}

// handleHealthz reports ok only when the schedule database answers; a
// scheduler that cannot reach its store cannot serve anything useful.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded"})
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
