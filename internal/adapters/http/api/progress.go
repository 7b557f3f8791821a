package api

import "net/http"

// handleProgress handles GET /api/progress.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Progress(r.Context(), UserID(r.Context()))
	if err != nil {
		s.fail(w, r, "api.progress", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleHistory handles GET /api/xp/history?range=&tz=. The range defaults
// to weekly.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h, err := s.deps.History(r.Context(), UserID(r.Context()), q.Get("range"), q.Get("tz"))
	if err != nil {
		s.fail(w, r, "api.xp_history", err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}
