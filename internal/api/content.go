package api

import "net/http"

// ─── GET /api/questions ───────────────────────────────────────────────────────

// handleQuestions serves the questionnaire catalog in display order.
func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.engine.Questions())
}

// ─── GET /api/report-config ───────────────────────────────────────────────────

// handleReportConfig serves the threshold configuration so the front end can
// render score bands next to the result.
func (s *Server) handleReportConfig(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.engine.Config())
}
