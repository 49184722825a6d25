package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamReader is the part of *redis.Client the consumer uses.
type StreamReader interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// RunHandler processes one completed run. A returned error leaves the
// message pending; it is redelivered when the consumer next starts.
type RunHandler func(ctx context.Context, payload *RunCompletedPayload) error

type Consumer struct {
	redis   StreamReader
	stream  string
	group   string
	name    string
	block   time.Duration
	handler RunHandler
	logger  *slog.Logger
	backoff time.Duration
}

func NewConsumer(client StreamReader, stream, group, name string, handler RunHandler, logger *slog.Logger) *Consumer {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		redis:   client,
		stream:  stream,
		group:   group,
		name:    name,
		block:   5 * time.Second,
		handler: handler,
		logger:  logger.With("component", "event_consumer"),
		backoff: time.Second,
	}
}

// Run reads the stream as part of the consumer group until ctx is done.
// Messages this consumer read earlier but never acknowledged are handled
// first.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.redis.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("starting consumer", "stream", c.stream, "group", c.group)

	if err := c.drainPending(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error("failed to read pending messages", "error", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{c.stream, ">"},
			Count:    10,
			Block:    c.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to read from stream", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				c.handle(ctx, message)
			}
		}
	}
}

// drainPending walks this consumer's pending entries list once. A message
// that fails again stays pending and the walk moves past it.
func (c *Consumer) drainPending(ctx context.Context) error {
	cursor := "0"
	for {
		streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{c.stream, cursor},
			Count:    10,
			Block:    -1,
		}).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		read := 0
		for _, stream := range streams {
			for _, message := range stream.Messages {
				c.logger.Info("redelivering pending message", "id", message.ID)
				c.handle(ctx, message)
				cursor = message.ID
				read++
			}
		}
		if read == 0 {
			return nil
		}
	}
}

func (c *Consumer) handle(ctx context.Context, message redis.XMessage) {
	if err := c.processMessage(ctx, message); err != nil {
		c.logger.Error("failed to process message", "id", message.ID, "error", err)
		return
	}
	if err := c.redis.XAck(ctx, c.stream, c.group, message.ID).Err(); err != nil {
		c.logger.Error("failed to acknowledge message", "id", message.ID, "error", err)
	}
}

// processMessage skips other event types; they are acknowledged unhandled.
func (c *Consumer) processMessage(ctx context.Context, msg redis.XMessage) error {
	eventType, _ := msg.Values["event_type"].(string)
	if eventType != string(EventTypeRunCompleted) {
		return nil
	}

	data, ok := msg.Values["data"].(string)
	if !ok {
		return fmt.Errorf("missing data in event")
	}

	var payload RunCompletedPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	return c.handler(ctx, &payload)
}
