package api

import (
	"net/http"

	service "github.com/okian/profilequest/internal/app"
)

// handleSignup handles POST /api/auth/signup.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	const op = "api.signup"
	var req service.Credentials
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	sess, err := s.deps.Signup(r.Context(), req)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// handleLogin handles POST /api/auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.login"
	var req service.Credentials
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	sess, err := s.deps.Login(r.Context(), req)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleMe handles GET /api/auth/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Me(r.Context(), UserID(r.Context()))
	if err != nil {
		s.fail(w, r, "api.me", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": p})
}

// handleFindProfiles handles GET /api/profiles/by?email=&name=.
func (s *Server) handleFindProfiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ps, err := s.deps.FindProfiles(r.Context(), q.Get("email"), q.Get("name"))
	if err != nil {
		s.fail(w, r, "api.find_profiles", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": ps})
}
