/**
 * Asynq Queue Consumer for the Japanese OCR Worker
 *
 * Consumes ocr:extract tasks through Asynq, which adds scheduled retries
 * with backoff on top of Redis.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/errors"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/logging"
)

// Consumer handles job consumption through Asynq
type Consumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor JobProcessor
	config    *ConsumerConfig
	logger    *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Processor   JobProcessor
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger("asynq-queue")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10, // Priority 10 for main queue
				"default":     1,  // Priority 1 for fallback
			},
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error("Task processing error",
					"type", task.Type(),
					"retry", retried,
					"maxRetry", maxRetry,
					"code", errors.CodeOf(err),
					"error", err)
			}),
		},
	)

	consumer := &Consumer{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: cfg.Processor,
		config:    cfg,
		logger:    logger,
	}

	consumer.mux.HandleFunc(TaskTypeExtract, consumer.handleExtract)

	return consumer, nil
}

// retryDelay is exponential backoff: 5s, 10s, 20s ... capped at 60s
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > 60*time.Second || delay <= 0 {
		delay = 60 * time.Second
	}
	return delay
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting queue consumer",
		"concurrency", c.config.Concurrency,
		"queue", c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping queue consumer...")
	c.server.Shutdown()
	c.logger.Info("Queue consumer stopped")
	return nil
}

// handleExtract processes one ocr:extract task
func (c *Consumer) handleExtract(ctx context.Context, task *asynq.Task) error {
	var payload JobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %v: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" {
		if id, ok := asynq.GetTaskID(ctx); ok {
			payload.JobID = id
		}
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	log := c.logger.With("jobId", payload.JobID)
	log.Info("Processing job", "filename", payload.Filename, "bufferSize", len(payload.ImageBuffer))

	resp, err := c.processor.ProcessImage(ctx, payload.Request())
	if err != nil {
		if !retryable(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("ocr job failed: %w", err)
	}

	if w := task.ResultWriter(); w != nil {
		data, err := json.Marshal(resultSummary(resp))
		if err != nil {
			return fmt.Errorf("failed to marshal job result: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			log.Warn("Failed to write task result", "error", err)
		}
	}

	log.Info("Job completed", "success", resp.Result.Success, "durationMs", resp.ProcessingTimeMs)
	return nil
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
	}
}

// Enqueuer submits ocr:extract tasks through Asynq
type Enqueuer struct {
	client    *asynq.Client
	queueName string
}

// NewEnqueuer creates an Asynq producer for queueName
func NewEnqueuer(redisURL, queueName string) (*Enqueuer, error) {
	if queueName == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Enqueuer{client: asynq.NewClient(redisOpt), queueName: queueName}, nil
}

// NewExtractTask builds the task for payload
func NewExtractTask(payload JobPayload, maxRetries int) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	opts := []asynq.Option{asynq.MaxRetry(maxRetries), asynq.Retention(24 * time.Hour)}
	if payload.JobID != "" {
		opts = append(opts, asynq.TaskID(payload.JobID))
	}
	return asynq.NewTask(TaskTypeExtract, data, opts...), nil
}

// Enqueue submits payload and returns the task id
func (e *Enqueuer) Enqueue(ctx context.Context, payload JobPayload, maxRetries int) (string, error) {
	task, err := NewExtractTask(payload, maxRetries)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task, asynq.Queue(e.queueName))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}
	return info.ID, nil
}

// Close releases the client connection
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
