package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/okian/profilequest/internal/domain/model"
)

type questsGenerateRequest struct {
	PersonaType string `json:"persona_type"`
}

// handleGenerateQuests handles POST /api/quests/generate. The body is
// optional.
func (s *Server) handleGenerateQuests(w http.ResponseWriter, r *http.Request) {
	const op = "api.quests_generate"
	var req questsGenerateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.fail(w, r, op, err)
		return
	}
	res, err := s.deps.GenerateQuests(r.Context(), UserID(r.Context()), req.PersonaType)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type questsSaveRequest struct {
	Quests []model.QuestDraft `json:"quests"`
}

// handleSaveQuests handles POST /api/quests/save.
func (s *Server) handleSaveQuests(w http.ResponseWriter, r *http.Request) {
	const op = "api.quests_save"
	var req questsSaveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	qs, err := s.deps.SaveQuests(r.Context(), UserID(r.Context()), req.Quests)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quests": qs})
}

// handleListQuests handles GET /api/quests?status=available|completed|all.
func (s *Server) handleListQuests(w http.ResponseWriter, r *http.Request) {
	qs, err := s.deps.ListQuests(r.Context(), UserID(r.Context()), r.URL.Query().Get("status"))
	if err != nil {
		s.fail(w, r, "api.quests_list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quests": qs})
}

type questTitleRequest struct {
	Title string `json:"title"`
}

// handleDeleteQuest handles POST /api/quests/delete.
func (s *Server) handleDeleteQuest(w http.ResponseWriter, r *http.Request) {
	const op = "api.quests_delete"
	var req questTitleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	if err := requireField("title", req.Title); err != nil {
		s.fail(w, r, op, err)
		return
	}
	if err := s.deps.DeleteQuest(r.Context(), UserID(r.Context()), req.Title); err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleCompleteQuest handles POST /api/quests/complete.
func (s *Server) handleCompleteQuest(w http.ResponseWriter, r *http.Request) {
	const op = "api.quests_complete"
	var req questTitleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	if err := requireField("title", req.Title); err != nil {
		s.fail(w, r, op, err)
		return
	}
	res, err := s.deps.CompleteQuest(r.Context(), UserID(r.Context()), req.Title)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
