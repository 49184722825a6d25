package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeRunCompleted is published once a run has been exported
	EventTypeRunCompleted EventType = "SCRAPE_RUN_COMPLETED"

	DefaultStream = "scraper:runs"
)

// RedisClient is the part of *redis.Client the publisher uses.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// RunCompletedPayload summarizes a run for downstream consumers. Records
// themselves stay in the export files and the archive.
type RunCompletedPayload struct {
	EventID        string        `json:"event_id"`
	EventType      string        `json:"event_type"`
	Timestamp      time.Time     `json:"timestamp"`
	RunID          string        `json:"run_id"`
	Site           string        `json:"site"`
	Queries        []string      `json:"queries"`
	Collected      int           `json:"collected"`
	Extracted      int           `json:"extracted"`
	Skipped        int           `json:"skipped"`
	FieldFallbacks int           `json:"field_fallbacks"`
	Duration       time.Duration `json:"duration_ns"`
	CSVPath        string        `json:"csv_path,omitempty"`
	JSONPath       string        `json:"json_path,omitempty"`
	Source         string        `json:"source"`
}

func NewRunCompletedPayload(run *models.Run) *RunCompletedPayload {
	return &RunCompletedPayload{
		EventID:        uuid.New().String(),
		EventType:      string(EventTypeRunCompleted),
		Timestamp:      time.Now(),
		RunID:          run.ID,
		Site:           run.Site,
		Queries:        run.Queries,
		Collected:      run.Collected,
		Extracted:      run.Extracted,
		Skipped:        run.Skipped,
		FieldFallbacks: run.FieldFallbacks,
		Duration:       run.Duration(),
		CSVPath:        run.CSVPath,
		JSONPath:       run.JSONPath,
		Source:         "fashion-scraper",
	}
}

// Publisher appends run events to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *Publisher) Name() string { return "redis" }

// Publish emits one SCRAPE_RUN_COMPLETED entry for run.
func (p *Publisher) Publish(ctx context.Context, run *models.Run) error {
	payload := NewRunCompletedPayload(run)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":         string(data),
			"type":         payload.EventType,
			"event_type":   payload.EventType,
			"timestamp":    fmt.Sprintf("%d", payload.Timestamp.UnixNano()),
			"event_id":     payload.EventID,
			"aggregate_id": run.ID,
			"site":         run.Site,
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("event published",
		"stream", p.stream,
		"stream_id", id,
		"event_type", payload.EventType,
		"run_id", run.ID)

	return nil
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}
