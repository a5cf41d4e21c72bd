/**
 * Direct Redis Queue Consumer for the Japanese OCR Worker
 *
 * Uses plain Redis LIST operations so any producer that can LPUSH a job id
 * and HSET its envelope can feed the worker.
 */

package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/errors"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/logging"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/processor"
)

// Job states
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var errNoJobs = stderrors.New("no jobs available")

// queueKeys names the Redis keys that belong to one queue
type queueKeys string

func (q queueKeys) list() string       { return string(q) }
func (q queueKeys) data() string       { return string(q) + ":data" }
func (q queueKeys) processing() string { return string(q) + ":processing" }
func (q queueKeys) completed() string  { return string(q) + ":completed" }
func (q queueKeys) failed() string     { return string(q) + ":failed" }
func (q queueKeys) results() string    { return string(q) + ":results" }
func (q queueKeys) errors() string     { return string(q) + ":errors" }
func (q queueKeys) events() string     { return string(q) + ":events" }

// RedisConsumer handles job consumption from Redis queue
type RedisConsumer struct {
	client    *redis.Client
	processor JobProcessor
	config    *RedisConsumerConfig
	keys      queueKeys
	logger    *logging.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Processor   JobProcessor
	PollTimeout time.Duration // BRPOP block time (default: 5s)
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = "jpocr:jobs"
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}

	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}

	client, err := dialRedis(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	consumerCtx, cancel := context.WithCancel(context.Background())

	return &RedisConsumer{
		client:    client,
		processor: cfg.Processor,
		config:    cfg,
		keys:      queueKeys(cfg.QueueName),
		logger:    logging.NewLogger("redis-queue"),
		ctx:       consumerCtx,
		cancel:    cancel,
	}, nil
}

func dialRedis(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start() error {
	c.logger.Info("Starting Redis queue consumer",
		"concurrency", c.config.Concurrency,
		"queue", c.config.QueueName)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	c.logger.Info("Queue consumer started successfully")
	return nil
}

// Stop gracefully stops the consumer, letting in-flight jobs finish
func (c *RedisConsumer) Stop() error {
	c.logger.Info("Stopping queue consumer...")
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

// worker is a goroutine that processes jobs
func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	c.logger.Debug("Worker started", "worker", id)

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Debug("Worker stopping", "worker", id)
			return
		default:
			if err := c.processNextJob(c.ctx); err != nil {
				if stderrors.Is(err, errNoJobs) || c.ctx.Err() != nil {
					continue
				}
				c.logger.Error("Worker error", "worker", id, "error", err)
				// Small delay before trying again
				select {
				case <-c.ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob(ctx context.Context) error {
	result, err := c.client.BRPop(ctx, c.config.PollTimeout, c.keys.list()).Result()
	if err != nil {
		if err == redis.Nil {
			return errNoJobs
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	id := result[1]

	jobData, err := c.client.HGet(ctx, c.keys.data(), id).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data for %s: %w", id, err)
	}

	var job RedisJobData
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		c.updateJobStatus(ctx, id, StatusFailed, map[string]interface{}{
			"error": fmt.Sprintf("malformed job: %v", err),
		})
		return fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}
	if job.Payload.JobID == "" {
		job.Payload.JobID = job.ID
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = DefaultMaxRetries
	}

	jobID := job.Payload.JobID
	log := c.logger.With("jobId", jobID)

	c.updateJobStatus(ctx, jobID, StatusProcessing, nil)
	log.Info("Processing job", "filename", job.Payload.Filename, "attempt", job.Attempts+1)

	resp, err := c.processJob(ctx, &job)
	if err != nil {
		log.Error("Job failed", "error", err, "code", errors.CodeOf(err))

		job.Attempts++
		if retryable(err) && job.Attempts < job.MaxRetries {
			// Re-queue for retry
			updatedData, merr := json.Marshal(job)
			if merr != nil {
				return fmt.Errorf("failed to marshal job %s for retry: %w", jobID, merr)
			}
			pipe := c.client.TxPipeline()
			pipe.HSet(ctx, c.keys.data(), job.ID, updatedData)
			pipe.SRem(ctx, c.keys.processing(), jobID)
			pipe.LPush(ctx, c.keys.list(), job.ID)
			if _, perr := pipe.Exec(ctx); perr != nil {
				return fmt.Errorf("failed to re-queue job %s: %w", jobID, perr)
			}
			log.Info("Job re-queued for retry", "attempt", job.Attempts, "maxRetries", job.MaxRetries)
			return nil
		}

		failure := failureMap(err)
		failure["attempts"] = job.Attempts
		c.updateJobStatus(ctx, jobID, StatusFailed, failure)
		return nil
	}

	c.updateJobStatus(ctx, jobID, StatusCompleted, resultSummary(resp))
	log.Info("Job completed", "success", resp.Result.Success, "durationMs", resp.ProcessingTimeMs)
	return nil
}

// processJob hands the job to the OCR service
func (c *RedisConsumer) processJob(ctx context.Context, job *RedisJobData) (*processor.ProcessResponse, error) {
	if err := job.Payload.Validate(); err != nil {
		return nil, err
	}
	return c.processor.ProcessImage(ctx, job.Payload.Request())
}

// updateJobStatus moves a job between status sets and publishes an event
func (c *RedisConsumer) updateJobStatus(ctx context.Context, jobID, status string, result interface{}) {
	pipe := c.client.TxPipeline()

	switch status {
	case StatusProcessing:
		pipe.SAdd(ctx, c.keys.processing(), jobID)
	case StatusCompleted:
		pipe.SRem(ctx, c.keys.processing(), jobID)
		pipe.SAdd(ctx, c.keys.completed(), jobID)
		if result != nil {
			if data, err := json.Marshal(result); err == nil {
				pipe.HSet(ctx, c.keys.results(), jobID, data)
			}
		}
	case StatusFailed:
		pipe.SRem(ctx, c.keys.processing(), jobID)
		pipe.SAdd(ctx, c.keys.failed(), jobID)
		if result != nil {
			if data, err := json.Marshal(result); err == nil {
				pipe.HSet(ctx, c.keys.errors(), jobID, data)
			}
		}
	}

	pipe.Publish(ctx, c.keys.events(), jobEvent(jobID, status))

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Failed to update job status", "jobId", jobID, "status", status, "error", err)
	}
}

func jobEvent(jobID, status string) []byte {
	event := map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	data, _ := json.Marshal(event)
	return data
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats(ctx context.Context) (map[string]int64, error) {
	return queueStats(ctx, c.client, c.keys)
}

func queueStats(ctx context.Context, client *redis.Client, keys queueKeys) (map[string]int64, error) {
	pipe := client.Pipeline()
	waiting := pipe.LLen(ctx, keys.list())
	processing := pipe.SCard(ctx, keys.processing())
	completed := pipe.SCard(ctx, keys.completed())
	failed := pipe.SCard(ctx, keys.failed())
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return map[string]int64{
		"waiting":    waiting.Val(),
		"processing": processing.Val(),
		"completed":  completed.Val(),
		"failed":     failed.Val(),
	}, nil
}

// RedisEnqueuer pushes jobs onto a Redis list queue
type RedisEnqueuer struct {
	client *redis.Client
	keys   queueKeys
}

// NewRedisEnqueuer connects a producer to the queue
func NewRedisEnqueuer(redisURL, queueName string) (*RedisEnqueuer, error) {
	if queueName == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	client, err := dialRedis(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisEnqueuer{client: client, keys: queueKeys(queueName)}, nil
}

// Enqueue stores the job envelope and pushes its id. A missing JobID is
// generated. maxRetries <= 0 uses DefaultMaxRetries.
func (e *RedisEnqueuer) Enqueue(ctx context.Context, payload JobPayload, maxRetries int) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", err
	}
	if payload.JobID == "" {
		payload.JobID = uuid.New().String()
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	job := RedisJobData{
		ID:         payload.JobID,
		Type:       TaskTypeExtract,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: maxRetries,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := e.client.TxPipeline()
	pipe.HSet(ctx, e.keys.data(), job.ID, data)
	pipe.LPush(ctx, e.keys.list(), job.ID)
	pipe.Publish(ctx, e.keys.events(), jobEvent(job.ID, StatusQueued))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job.ID, nil
}

// Result returns the stored outcome of a job: its result summary once
// completed, its error map once failed, or ok=false while it is pending.
func (e *RedisEnqueuer) Result(ctx context.Context, jobID string) (status string, data map[string]interface{}, ok bool, err error) {
	for _, probe := range []struct {
		status string
		key    string
	}{
		{StatusCompleted, e.keys.results()},
		{StatusFailed, e.keys.errors()},
	} {
		raw, herr := e.client.HGet(ctx, probe.key, jobID).Result()
		if herr == redis.Nil {
			continue
		}
		if herr != nil {
			return "", nil, false, fmt.Errorf("failed to read job %s: %w", jobID, herr)
		}
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return "", nil, false, fmt.Errorf("failed to decode job %s: %w", jobID, err)
		}
		return probe.status, data, true, nil
	}
	return "", nil, false, nil
}

// GetStats returns queue statistics
func (e *RedisEnqueuer) GetStats(ctx context.Context) (map[string]int64, error) {
	return queueStats(ctx, e.client, e.keys)
}

// Close releases the connection
func (e *RedisEnqueuer) Close() error {
	return e.client.Close()
}
