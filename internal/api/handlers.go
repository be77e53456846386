package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"code-exec-service/internal/execution"
	"code-exec-service/internal/monitor"
)

type Handlers struct {
	pipeline *execution.Pipeline
	metrics  *monitor.Metrics
}

func NewHandlers(pipeline *execution.Pipeline, metrics *monitor.Metrics) *Handlers {
	return &Handlers{
		pipeline: pipeline,
		metrics:  metrics,
	}
}

// HandleExecute accepts a submission, runs it through the pipeline and
// returns the terminal execution record.
func (h *Handlers) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON: "+err.Error(), "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	h.metrics.CodeSizeBytes.Observe(float64(len(req.Code)))

	rec, err := h.pipeline.Submit(r.Context(), execution.Request{
		Code:     req.Code,
		Language: req.Language,
	}, SubmitterFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, execution.ErrInvalidRequest) {
			writeError(w, err.Error(), "INVALID_REQUEST", http.StatusBadRequest, r)
			return
		}
		log.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("submission failed")
		writeError(w, "execution failed", "EXECUTION_FAILED", http.StatusInternalServerError, r)
		return
	}

	h.metrics.OutputSizeBytes.Observe(float64(len(rec.Output) + len(rec.ErrorOutput)))

	writeJSON(w, http.StatusOK, rec)
}

// HandleGetExecution returns a single execution record by id.
func (h *Handlers) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, "execution ID required", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	rec, err := h.pipeline.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, execution.ErrNotFound) {
			writeError(w, "execution not found", "NOT_FOUND", http.StatusNotFound, r)
			return
		}
		writeError(w, "query failed", "INTERNAL", http.StatusInternalServerError, r)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// HandleHistory lists the caller's executions. Anonymous callers have no
// history to list, so a resolved identity is required.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	submitter := SubmitterFromContext(r.Context())
	if !submitter.Valid {
		writeError(w, "caller identity required", "IDENTITY_REQUIRED", http.StatusBadRequest, r)
		return
	}

	records, err := h.pipeline.History(r.Context(), submitter)
	if err != nil {
		writeError(w, "query failed", "INTERNAL", http.StatusInternalServerError, r)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, msg, code string, status int, r *http.Request) {
	resp := ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: RequestIDFromContext(r.Context()),
	}
	writeJSON(w, status, resp)
}
