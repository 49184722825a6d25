package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/queue"
	"github.com/maltedev/fashion-scraper/internal/scraper"
	"github.com/maltedev/fashion-scraper/internal/site"
	"github.com/maltedev/fashion-scraper/internal/site/registry"
)

var ErrJobNotFound = errors.New("job not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// RunFunc executes one scrape run. *scraper.Runner.Run satisfies it.
type RunFunc func(ctx context.Context, req scraper.Request) (*models.Run, error)

// Job represents a queued scrape run
type Job struct {
	ID             string     `json:"id"`
	Site           string     `json:"site"`
	Queries        []string   `json:"queries"`
	MaxProducts    int        `json:"max_products"`
	ListingOnly    bool       `json:"listing_only"`
	Priority       int        `json:"priority"`
	Status         Status     `json:"status"`
	Collected      int        `json:"collected"`
	Extracted      int        `json:"extracted"`
	Skipped        int        `json:"skipped"`
	FieldFallbacks int        `json:"field_fallbacks"`
	CSVPath        string     `json:"csv_path,omitempty"`
	JSONPath       string     `json:"json_path,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// CreateRequest describes a run to queue. Higher Priority runs first;
// equal priorities run in submission order.
type CreateRequest struct {
	Site        string   `json:"site"`
	Queries     []string `json:"queries"`
	MaxProducts int      `json:"max_products"`
	ListingOnly bool     `json:"listing_only"`
	Priority    int      `json:"priority"`
}

// FromRun describes a finished run that is no longer tracked in memory,
// such as one read back from the archive.
func FromRun(run *models.Run) *Job {
	started := run.StartedAt
	finished := run.FinishedAt
	return &Job{
		ID:             run.ID,
		Site:           run.Site,
		Queries:        append([]string(nil), run.Queries...),
		Status:         StatusCompleted,
		Collected:      run.Collected,
		Extracted:      run.Extracted,
		Skipped:        run.Skipped,
		FieldFallbacks: run.FieldFallbacks,
		CSVPath:        run.CSVPath,
		JSONPath:       run.JSONPath,
		CreatedAt:      run.StartedAt,
		StartedAt:      &started,
		CompletedAt:    &finished,
	}
}

// SortNewestFirst orders jobs by creation time, newest first.
func SortNewestFirst(jobs []*Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}

// Stats represents job counts by status
type Stats struct {
	TotalJobs     int `json:"total_jobs"`
	PendingJobs   int `json:"pending_jobs"`
	RunningJobs   int `json:"running_jobs"`
	CompletedJobs int `json:"completed_jobs"`
	FailedJobs    int `json:"failed_jobs"`
	QueuedTasks   int `json:"queued_tasks"`
}

// Manager tracks jobs in memory and feeds them to a single worker through
// the queue.
type Manager struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	records  map[string][]*models.ProductRecord
	queue    queue.Queue
	run      RunFunc
	defaults scraper.Options
	logger   *slog.Logger
	now      func() time.Time
}

func NewManager(q queue.Queue, run RunFunc, defaults scraper.Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		jobs:     make(map[string]*Job),
		records:  make(map[string][]*models.ProductRecord),
		queue:    q,
		run:      run,
		defaults: defaults,
		logger:   logger.With("component", "job_manager"),
		now:      time.Now,
	}
}

// CreateJob validates req and queues a new job. MaxProducts of zero or
// less keeps the configured default.
func (m *Manager) CreateJob(ctx context.Context, req CreateRequest) (*Job, error) {
	adapter, err := registry.Get(req.Site)
	if err != nil {
		return nil, err
	}

	cleaned := make([]string, 0, len(req.Queries))
	for _, q := range req.Queries {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) == 0 {
		return nil, models.ErrEmptyQuery
	}

	if _, ok := adapter.(site.ListingExtractor); req.ListingOnly && !ok {
		return nil, fmt.Errorf("%s: %w", adapter.Name(), models.ErrListingOnlyUnsupported)
	}

	maxProducts := req.MaxProducts
	if maxProducts <= 0 {
		maxProducts = m.defaults.MaxProducts
	}

	job := &Job{
		ID:          uuid.New().String(),
		Site:        adapter.Name(),
		Queries:     cleaned,
		MaxProducts: maxProducts,
		ListingOnly: req.ListingOnly,
		Priority:    req.Priority,
		Status:      StatusPending,
		CreatedAt:   m.now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	err = m.queue.Push(&queue.Task{
		ID:          job.ID,
		Site:        job.Site,
		Queries:     job.Queries,
		MaxProducts: job.MaxProducts,
		ListingOnly: job.ListingOnly,
		Priority:    job.Priority,
		CreatedAt:   job.CreatedAt,
	})
	if err != nil {
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "site", job.Site, "queries", job.Queries, "priority", job.Priority)
	return m.snapshot(job), nil
}

// GetJob retrieves a job by ID
func (m *Manager) GetJob(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return m.snapshot(job), nil
}

// ListJobs returns jobs newest first, at most limit when limit > 0.
func (m *Manager) ListJobs(limit int) []*Job {
	m.mu.RLock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, m.snapshot(job))
	}
	m.mu.RUnlock()

	SortNewestFirst(jobs)
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}

// Records returns the records of a completed job held in memory.
func (m *Manager) Records(id string) ([]*models.ProductRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.jobs[id]; !ok {
		return nil, ErrJobNotFound
	}
	records := m.records[id]
	if records == nil {
		records = []*models.ProductRecord{}
	}
	return records, nil
}

// GetStats returns job counts by status
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{TotalJobs: len(m.jobs), QueuedTasks: m.queue.Size()}
	for _, job := range m.jobs {
		switch job.Status {
		case StatusPending:
			stats.PendingJobs++
		case StatusRunning:
			stats.RunningJobs++
		case StatusCompleted:
			stats.CompletedJobs++
		case StatusFailed:
			stats.FailedJobs++
		}
	}
	return stats
}

func (m *Manager) snapshot(job *Job) *Job {
	cp := *job
	cp.Queries = append([]string(nil), job.Queries...)
	return &cp
}
