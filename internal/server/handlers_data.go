package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/aristath/sentinel/internal/queue"
)

func (s *Server) mountDataRoutes(r chi.Router) {
	r.Post("/ohlcv", s.handleIngestOHLCV)
	r.Post("/fundamentals", s.handleIngestFundamentals)
	r.Post("/corporate-actions", s.handleIngestCorporateActions)
	r.Post("/ratings", s.handleIngestRatings)
	r.Post("/technicals", s.handleBackfillTechnicals)
}

type ingestRequest struct {
	Path  string `json:"path"`
	Async bool   `json:"async"`
}

// submitOrRun either runs an ingest synchronously or, when async is
// requested, enqueues it as a job and returns the job immediately.
func (s *Server) submitOrRun(w http.ResponseWriter, r *http.Request, jobType queue.JobType, payload map[string]interface{}, async bool, run func() (interface{}, error)) {
	if async {
		job, err := s.cfg.Jobs.Submit(jobType, queue.PriorityMedium, payload)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, job)
		return
	}

	result, err := run()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleIngestOHLCV(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Path == "" {
		s.writeError(w, r, errkind.New(errkind.Invalid, "path is required"))
		return
	}
	traceID := uuid.NewString()
	s.submitOrRun(w, r, queue.JobTypeIngestOHLCV, map[string]interface{}{"path": req.Path, "trace_id": traceID}, req.Async, func() (interface{}, error) {
		return s.cfg.Ingest.ImportOHLCVFile(req.Path, traceID)
	})
}

func (s *Server) handleIngestFundamentals(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Path == "" {
		s.writeError(w, r, errkind.New(errkind.Invalid, "path is required"))
		return
	}
	traceID := uuid.NewString()
	s.submitOrRun(w, r, queue.JobTypeIngestFundamentals, map[string]interface{}{"path": req.Path, "trace_id": traceID}, req.Async, func() (interface{}, error) {
		return s.cfg.Ingest.ImportFundamentalsFile(req.Path, traceID)
	})
}

func (s *Server) handleIngestCorporateActions(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Path == "" {
		s.writeError(w, r, errkind.New(errkind.Invalid, "path is required"))
		return
	}
	traceID := uuid.NewString()
	s.submitOrRun(w, r, queue.JobTypeIngestCorporateActions, map[string]interface{}{"path": req.Path, "trace_id": traceID}, req.Async, func() (interface{}, error) {
		return s.cfg.Ingest.ImportCorporateActionsFile(req.Path, traceID)
	})
}

func (s *Server) handleIngestRatings(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Path == "" {
		s.writeError(w, r, errkind.New(errkind.Invalid, "path is required"))
		return
	}
	traceID := uuid.NewString()
	s.submitOrRun(w, r, queue.JobTypeIngestRatings, map[string]interface{}{"path": req.Path, "trace_id": traceID}, req.Async, func() (interface{}, error) {
		return s.cfg.Ingest.ImportRatingsFile(req.Path, traceID)
	})
}

type technicalsBackfillRequest struct {
	Universe    []string `json:"universe"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	ShortWindow int      `json:"short_window"`
	LongWindow  int      `json:"long_window"`
	Async       bool     `json:"async"`
}

func (s *Server) handleBackfillTechnicals(w http.ResponseWriter, r *http.Request) {
	var req technicalsBackfillRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Universe) == 0 {
		s.writeError(w, r, errkind.New(errkind.Invalid, "universe is required"))
		return
	}
	if req.ShortWindow == 0 {
		req.ShortWindow = 5
	}
	if req.LongWindow == 0 {
		req.LongWindow = 20
	}
	traceID := uuid.NewString()
	payload := map[string]interface{}{
		"universe": req.Universe, "start_date": req.StartDate, "end_date": req.EndDate,
		"short_window": req.ShortWindow, "long_window": req.LongWindow, "trace_id": traceID,
	}
	s.submitOrRun(w, r, queue.JobTypeIngestTechnicals, payload, req.Async, func() (interface{}, error) {
		return s.cfg.Ingest.BackfillTechnicals(req.Universe, req.StartDate, req.EndDate, req.ShortWindow, req.LongWindow, traceID)
	})
}
