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

// createHardwareRequest is the JSON body for POST /v1/hardware. An empty
// hours_mask means the combination is usable around the clock.
type createHardwareRequest struct {
	Platform  string `json:"platform"`
	Debugger  string `json:"debugger"`
	Quantity  int    `json:"quantity"`
	HoursMask string `json:"hours_mask"`
}

type listHardwareResponse struct {
	Hardware []*model.HardwareCombination `json:"hardware"`
	Total    int                          `json:"total"`
}

func (s *Server) handleCreateHardware(w http.ResponseWriter, r *http.Request) {
	var req createHardwareRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Platform == "" {
		s.writeError(w, http.StatusBadRequest, "platform is required")
		return
	}
	if req.Debugger == "" {
		s.writeError(w, http.StatusBadRequest, "debugger is required")
		return
	}
	if req.Quantity < 0 {
		s.writeError(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}
	mask, err := model.ParseHourMask(req.HoursMask)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h := &model.HardwareCombination{
		ID:        model.NewID(),
		Platform:  req.Platform,
		Debugger:  req.Debugger,
		Quantity:  req.Quantity,
		Mask:      mask,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateHardware(r.Context(), h); err != nil {
		s.logger.Error("create hardware", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create hardware combination")
		return
	}

	s.writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleGetHardware(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h, err := s.store.GetHardware(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "hardware combination not found")
		return
	}
	if err != nil {
		s.logger.Error("get hardware", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get hardware combination")
		return
	}

	s.writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleListHardware(w http.ResponseWriter, r *http.Request) {
	hardware, err := s.store.ListHardware(r.Context())
	if err != nil {
		s.logger.Error("list hardware", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list hardware combinations")
		return
	}

	if hardware == nil {
		hardware = []*model.HardwareCombination{}
	}

	s.writeJSON(w, http.StatusOK, listHardwareResponse{
		Hardware: hardware,
		Total:    len(hardware),
	})
}

func (s *Server) handleDeleteHardware(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteHardware(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "hardware combination not found")
			return
		}
		s.logger.Error("delete hardware", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete hardware combination")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
