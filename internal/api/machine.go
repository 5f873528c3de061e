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

// createMachineRequest is the JSON body for POST /v1/machines.
type createMachineRequest struct {
	Name   string `json:"name"`
	OSType string `json:"os_type"`
	State  string `json:"state"`
}

type listMachinesResponse struct {
	Machines []*model.Machine `json:"machines"`
	Total    int              `json:"total"`
}

func (s *Server) handleCreateMachine(w http.ResponseWriter, r *http.Request) {
	var req createMachineRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.OSType == "" {
		s.writeError(w, http.StatusBadRequest, "os_type is required")
		return
	}
	if req.State == "" {
		req.State = model.MachineAvailable
	}
	if !model.ValidMachineState(req.State) {
		s.writeError(w, http.StatusBadRequest, "unknown state "+req.State)
		return
	}

	m := &model.Machine{
		ID:        model.NewID(),
		Name:      req.Name,
		OSType:    req.OSType,
		State:     req.State,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateMachine(r.Context(), m); err != nil {
		s.logger.Error("create machine", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create machine")
		return
	}

	s.writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGetMachine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m, err := s.store.GetMachine(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "machine not found")
		return
	}
	if err != nil {
		s.logger.Error("get machine", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get machine")
		return
	}

	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := s.store.ListMachines(r.Context())
	if err != nil {
		s.logger.Error("list machines", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list machines")
		return
	}

	if machines == nil {
		machines = []*model.Machine{}
	}

	s.writeJSON(w, http.StatusOK, listMachinesResponse{
		Machines: machines,
		Total:    len(machines),
	})
}

// updateMachineStateRequest is the JSON body for PATCH /v1/machines/{id}/state.
type updateMachineStateRequest struct {
	State string `json:"state"`
}

func (s *Server) handleUpdateMachineState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateMachineStateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !model.ValidMachineState(req.State) {
		s.writeError(w, http.StatusBadRequest, "unknown state "+req.State)
		return
	}

	err := s.store.UpdateMachineState(r.Context(), id, req.State)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "machine not found")
		return
	}
	if err != nil {
		s.logger.Error("update machine state", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update machine")
		return
	}

	m, err := s.store.GetMachine(r.Context(), id)
	if err != nil {
		s.logger.Error("get updated machine", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve machine")
		return
	}

	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMachine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteMachine(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "machine not found")
			return
		}
		s.logger.Error("delete machine", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete machine")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
