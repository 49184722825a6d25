package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/fashion-scraper/internal/jobs"
	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/queue"
)

// RunStore serves runs no longer held in memory, such as the Postgres
// archive after a restart.
type RunStore interface {
	Records(ctx context.Context, runID string) ([]*models.ProductRecord, error)
	RecentRuns(ctx context.Context, limit int) ([]*models.Run, error)
}

// archivedRunsLimit caps archive reads when ?limit= is not given.
const archivedRunsLimit = 100

type Handlers struct {
	jobs    *jobs.Manager
	archive RunStore
	logger  *slog.Logger
}

// NewHandlers wires the run endpoints. archive may be nil.
func NewHandlers(jobs *jobs.Manager, archive RunStore, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		jobs:    jobs,
		archive: archive,
		logger:  logger.With("component", "api"),
	}
}

// CreateRunRequest represents the request to queue a scrape run
type CreateRunRequest = jobs.CreateRequest

// Health reports liveness and queue state
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"jobs":   h.jobs.GetStats(),
	})
}

// CreateRun queues a run and returns the pending job
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), req)
	switch {
	case err == nil:
		h.respondJSON(w, http.StatusAccepted, job)
	case errors.Is(err, models.ErrUnknownSite), errors.Is(err, models.ErrEmptyQuery), errors.Is(err, models.ErrListingOnlyUnsupported):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, queue.ErrQueueFull):
		h.respondError(w, http.StatusTooManyRequests, "run queue is full")
	default:
		h.logger.Error("failed to create run", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create run")
	}
}

// ListRuns lists runs newest first, archived runs included; ?limit= caps
// the result
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	list := h.jobs.ListJobs(0)
	if h.archive != nil {
		list = h.withArchived(r.Context(), list, limit)
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	h.respondJSON(w, http.StatusOK, list)
}

// withArchived adds archived runs the manager no longer tracks. An
// unreachable archive only drops them from the listing.
func (h *Handlers) withArchived(ctx context.Context, list []*jobs.Job, limit int) []*jobs.Job {
	if limit <= 0 {
		limit = archivedRunsLimit
	}
	runs, err := h.archive.RecentRuns(ctx, limit)
	if err != nil {
		h.logger.Warn("archive listing failed", "error", err)
		return list
	}

	known := make(map[string]struct{}, len(list))
	for _, job := range list {
		known[job.ID] = struct{}{}
	}
	for _, run := range runs {
		if _, ok := known[run.ID]; !ok {
			list = append(list, jobs.FromRun(run))
		}
	}
	jobs.SortNewestFirst(list)
	return list
}

// GetRun handles run status retrieval
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(chi.URLParam(r, "runID"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// GetRunRecords returns the extracted records of a run
func (h *Handlers) GetRunRecords(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	records, err := h.jobs.Records(runID)
	if err == nil {
		h.respondJSON(w, http.StatusOK, records)
		return
	}
	if !errors.Is(err, jobs.ErrJobNotFound) || h.archive == nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	records, err = h.archive.Records(r.Context(), runID)
	if err != nil {
		h.logger.Warn("archive lookup failed", "run_id", runID, "error", err)
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if len(records) == 0 {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	h.respondJSON(w, http.StatusOK, records)
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
