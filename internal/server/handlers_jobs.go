package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/sentinel/internal/errkind"
)

func (s *Server) mountJobRoutes(r chi.Router) {
	r.Get("/{jobID}", s.handleGetJob)
}

func (s *Server) mountEventRoutes(r chi.Router) {
	r.Get("/jobs", s.handleJobEventsStream)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.cfg.Jobs.JobStatus(jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// handleJobEventsStream serves job lifecycle events as Server-Sent Events.
// Clients resume from a cursor (the durable job_events id, strictly
// increasing) via ?since=<id>, then stay subscribed to the live event bus
// for anything emitted after the catch-up read; a heartbeat keeps idle
// connections alive.
func (s *Server) handleJobEventsStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, errkind.New(errkind.Internal, "streaming not supported"))
		return
	}

	var cursor int64
	if since := r.URL.Query().Get("since"); since != "" {
		parsed, err := strconv.ParseInt(since, 10, 64)
		if err != nil {
			s.writeError(w, r, errkind.Wrap(errkind.Invalid, err, "invalid since cursor"))
			return
		}
		cursor = parsed
	}

	backlog, err := s.cfg.Jobs.EventsAfter(cursor, 500)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, evt := range backlog {
		writeSSE(w, "job_event", evt)
	}
	flusher.Flush()

	eventCh, cancel := s.cfg.Events.Subscribe()
	defer cancel()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case envelope, ok := <-eventCh:
			if !ok {
				return
			}
			writeSSE(w, "job_event", envelope)
			flusher.Flush()
		case <-heartbeat.C:
			writeSSE(w, "heartbeat", map[string]interface{}{"timestamp": time.Now().UTC().Format(time.RFC3339)})
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		body = []byte(`{"error":"failed to encode event"}`)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body)
}
