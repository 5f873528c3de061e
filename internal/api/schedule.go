package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/drennalls/slotline/internal/alloc"
	"github.com/drennalls/slotline/internal/engine"
	"github.com/drennalls/slotline/internal/model"
)

type scheduleResponse struct {
	Assignments []model.Assignment `json:"assignments"`
	Total       int                `json:"total"`
}

type queueResponse struct {
	Entries []model.QueueEntry `json:"entries"`
	Total   int                `json:"total"`
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	assignments, err := s.store.GetSchedule(r.Context())
	if err != nil {
		s.logger.Error("get schedule", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return
	}

	if assignments == nil {
		assignments = []model.Assignment{}
	}

	s.writeJSON(w, http.StatusOK, scheduleResponse{
		Assignments: assignments,
		Total:       len(assignments),
	})
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.GetQueue(r.Context())
	if err != nil {
		s.logger.Error("get queue", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get queue")
		return
	}

	if entries == nil {
		entries = []model.QueueEntry{}
	}

	s.writeJSON(w, http.StatusOK, queueResponse{
		Entries: entries,
		Total:   len(entries),
	})
}

// runScheduleResponse is returned by POST /v1/schedule/run. The run executes
// asynchronously; progress is streamed at /v1/schedule/runs/{id}/events.
type runScheduleResponse struct {
	RunID string `json:"run_id"`
}

func (s *Server) handleRunSchedule(w http.ResponseWriter, r *http.Request) {
	var opts alloc.Options
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	runID, err := s.engine.StartRun(r.Context(), opts)
	if errors.Is(err, engine.ErrRunInFlight) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("start scheduling run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start scheduling run")
		return
	}

	s.writeJSON(w, http.StatusAccepted, runScheduleResponse{RunID: runID})
}

func (s *Server) handleStreamRunEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	broker := s.engine.Broker()
	if !broker.Known(id) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Safe even if the run finished between the Known check and here: a
	// closed topic replays its terminal event and then closes the channel.
	ch, unsub := broker.Subscribe(id)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, ev); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeSSEEvent writes one run event as a named SSE event with a JSON
// payload (event: <type>\ndata: <json>\n\n).
func writeSSEEvent(w http.ResponseWriter, ev engine.Event) error {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", ev.Type); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
