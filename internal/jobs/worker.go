package jobs

import (
	"context"
	"errors"

	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/queue"
	"github.com/maltedev/fashion-scraper/internal/scraper"
)

// StartWorker runs queued jobs one at a time until ctx is done or the queue
// is closed. Each job owns its own browser session through the run func.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	for {
		task, err := m.queue.Pop(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrQueueClosed) && ctx.Err() == nil {
				m.logger.Error("failed to pop task", "error", err)
			}
			m.logger.Info("job worker stopping")
			return
		}
		m.processJob(ctx, task)
	}
}

func (m *Manager) processJob(ctx context.Context, task *queue.Task) {
	logger := m.logger.With("id", task.ID, "site", task.Site)
	logger.Info("processing job", "queries", task.Queries)

	m.update(task.ID, func(job *Job) {
		started := m.now()
		job.Status = StatusRunning
		job.StartedAt = &started
	})

	opts := m.defaults
	if task.MaxProducts > 0 {
		opts.MaxProducts = task.MaxProducts
	}
	if task.ListingOnly {
		opts.ListingOnly = true
	}

	run, err := m.run(ctx, scraper.Request{
		ID:      task.ID,
		Site:    task.Site,
		Queries: task.Queries,
		Options: opts,
	})

	m.mu.Lock()
	if run != nil {
		m.records[task.ID] = run.Records
	}
	m.mu.Unlock()

	m.update(task.ID, func(job *Job) {
		completed := m.now()
		job.CompletedAt = &completed
		if run != nil {
			job.Collected = run.Collected
			job.Extracted = run.Extracted
			job.Skipped = run.Skipped
			job.FieldFallbacks = run.FieldFallbacks
			job.CSVPath = run.CSVPath
			job.JSONPath = run.JSONPath
		}
		if err != nil {
			job.Status = StatusFailed
			job.Error = err.Error()
			return
		}
		job.Status = StatusCompleted
	})

	if err != nil {
		logger.Error("job failed", "kind", models.ErrorKind(err), "error", err)
		return
	}
	logger.Info("job completed", "extracted", run.Extracted)
}

func (m *Manager) update(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.jobs[id]; ok {
		fn(job)
	}
}
