package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/drennalls/slotline/internal/model"
	"github.com/drennalls/slotline/internal/store"
)

const maxBodySize = 1 << 20 // 1 MB

// createSessionRequest is the JSON body for POST /v1/sessions.
type createSessionRequest struct {
	Name         string             `json:"name"`
	Priority     string             `json:"priority"`
	OSType       string             `json:"os_type"`
	Hardware     *model.HardwareRef `json:"hardware"`
	NormalCounts model.TestCounts   `json:"normal_counts"`
	ComboCounts  model.TestCounts   `json:"combo_counts"`
}

// listSessionsResponse wraps the session list response.
type listSessionsResponse struct {
	Sessions []*model.Session `json:"sessions"`
	Total    int              `json:"total"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sess, errMsg := sessionFromRequest(req)
	if errMsg != "" {
		s.writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if err := s.store.CreateSession(r.Context(), sess); err != nil {
		s.logger.Error("create session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	s.writeJSON(w, http.StatusCreated, sess)
}

// sessionFromRequest validates a create request and builds the session
// record. It returns a non-empty message describing the first problem found.
func sessionFromRequest(req createSessionRequest) (*model.Session, string) {
	if req.Name == "" {
		return nil, "name is required"
	}
	if req.OSType == "" {
		return nil, "os_type is required"
	}
	if req.Priority == "" {
		req.Priority = model.PriorityNormal
	}
	if !model.ValidPriority(req.Priority) {
		return nil, "unknown priority " + req.Priority
	}
	if req.Hardware != nil && (req.Hardware.Platform == "" || req.Hardware.Debugger == "") {
		return nil, "hardware requires both platform and debugger"
	}

	return &model.Session{
		ID:           model.NewID(),
		Name:         req.Name,
		Priority:     req.Priority,
		OSType:       req.OSType,
		Hardware:     req.Hardware,
		NormalCounts: req.NormalCounts,
		ComboCounts:  req.ComboCounts,
		Status:       model.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}, ""
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, err := s.store.GetSession(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.logger.Error("get session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	var sessions []*model.Session
	var err error

	if status := r.URL.Query().Get("status"); status != "" {
		sessions, err = s.store.ListSessionsByStatus(r.Context(), status)
	} else {
		sessions, err = s.store.ListSessions(r.Context())
	}
	if err != nil {
		s.logger.Error("list sessions", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	if sessions == nil {
		sessions = []*model.Session{}
	}

	s.writeJSON(w, http.StatusOK, listSessionsResponse{
		Sessions: sessions,
		Total:    len(sessions),
	})
}

// updateStatusRequest is the JSON body for PATCH /v1/sessions/{id}/status.
type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateSessionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.store.UpdateSessionStatus(r.Context(), id, req.Status)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	case errors.Is(err, store.ErrInvalidTransition):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.logger.Error("update session status", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update session")
		return
	}

	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		s.logger.Error("get updated session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve session")
		return
	}

	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("delete session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
