package api

import (
	"net/http"

	service "github.com/okian/profilequest/internal/app"
	"github.com/okian/profilequest/internal/domain/questgen"
)

type personaGenerateRequest struct {
	questgen.PersonaInput
	ReferenceImage string `json:"referenceImage"`
}

// handleGeneratePersona handles POST /api/persona/generate.
func (s *Server) handleGeneratePersona(w http.ResponseWriter, r *http.Request) {
	const op = "api.persona_generate"
	var req personaGenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	res, err := s.deps.GeneratePersona(r.Context(), UserID(r.Context()), service.PersonaRequest{
		Input:     req.PersonaInput,
		Reference: req.ReferenceImage,
	})
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSavePersona handles POST /api/persona/save.
func (s *Server) handleSavePersona(w http.ResponseWriter, r *http.Request) {
	const op = "api.persona_save"
	var req service.PersonaUpdate
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	p, err := s.deps.SavePersona(r.Context(), UserID(r.Context()), req)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"persona": p})
}

// handleGetPersona handles GET /api/persona.
func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Persona(r.Context(), UserID(r.Context()))
	if err != nil {
		s.fail(w, r, "api.persona_get", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"persona": p})
}

type avatarRequest struct {
	questgen.PersonaInput
	Kind           string `json:"kind"`
	Style          string `json:"style"`
	ReferenceImage string `json:"referenceImage"`
}

// handleGenerateAvatar handles POST /api/avatar/generate.
func (s *Server) handleGenerateAvatar(w http.ResponseWriter, r *http.Request) {
	const op = "api.avatar_generate"
	var req avatarRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	a, err := s.deps.GenerateAvatar(r.Context(), UserID(r.Context()), service.AvatarInput{
		Kind:      req.Kind,
		Style:     req.Style,
		Input:     req.PersonaInput,
		Reference: req.ReferenceImage,
	})
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
