package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/errors"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/logging"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/processor"
)

type fakeProcessor struct {
	mu   sync.Mutex
	err  error
	reqs []*processor.ProcessRequest
}

func (f *fakeProcessor) ProcessImage(_ context.Context, req *processor.ProcessRequest) (*processor.ProcessResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &processor.ProcessResponse{
		JobID: req.JobID,
		Result: &processor.ProcessingResult{
			Success:      true,
			Results:      []processor.OCRResult{{Text: "日本", Confidence: 0.9, IsJapanese: true}},
			CombinedText: "日本",
		},
		Translation:      "Japan",
		TranslatedTo:     req.TranslateTo,
		ProcessingTimeMs: 12,
	}, nil
}

func (f *fakeProcessor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func TestJobPayloadUnmarshalBase64(t *testing.T) {
	var p JobPayload
	err := json.Unmarshal([]byte(`{"jobId":"j1","imageBuffer":"AQID","filename":"a.png","translateTo":"en","includeAll":true}`), &p)
	require.NoError(t, err)

	assert.Equal(t, "j1", p.JobID)
	assert.Equal(t, []byte{1, 2, 3}, p.ImageBuffer)
	assert.Equal(t, "a.png", p.Filename)
	assert.Equal(t, "en", p.TranslateTo)
	assert.True(t, p.IncludeAll)
}

func TestJobPayloadUnmarshalNodeBuffer(t *testing.T) {
	var p JobPayload
	err := json.Unmarshal([]byte(`{"jobId":"j2","imageBuffer":{"type":"Buffer","data":[137,80,78,71]}}`), &p)
	require.NoError(t, err)
	assert.Equal(t, []byte{137, 80, 78, 71}, p.ImageBuffer)
}

func TestJobPayloadUnmarshalRejects(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"bad base64", `{"imageBuffer":"!!!"}`},
		{"wrong buffer type", `{"imageBuffer":{"type":"Blob","data":[1]}}`},
		{"missing data", `{"imageBuffer":{"type":"Buffer"}}`},
		{"byte out of range", `{"imageBuffer":{"type":"Buffer","data":[256]}}`},
		{"number", `{"imageBuffer":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p JobPayload
			assert.Error(t, json.Unmarshal([]byte(tt.json), &p))
		})
	}
}

func TestJobPayloadMarshalUsesBase64(t *testing.T) {
	data, err := json.Marshal(JobPayload{JobID: "j3", ImageBuffer: []byte{1, 2, 3}})
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "AQID", raw["imageBuffer"])
	assert.Equal(t, "j3", raw["jobId"])
}

func TestRetryable(t *testing.T) {
	assert.False(t, retryable(errors.NewInvalidImageError("x.png", nil)))
	assert.False(t, retryable(errors.NewUnsupportedFormatError("j", "tiff")))
	assert.True(t, retryable(errors.NewTranslationFailedError("en", stderrors.New("503"))))
	assert.True(t, retryable(stderrors.New("connection reset")))
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 5*time.Second, retryDelay(0, nil, nil))
	assert.Equal(t, 20*time.Second, retryDelay(2, nil, nil))
	assert.Equal(t, 60*time.Second, retryDelay(10, nil, nil))
}

func newAsynqConsumer(p JobProcessor) *Consumer {
	return &Consumer{
		processor: p,
		config:    &ConsumerConfig{QueueName: "jpocr:jobs", Concurrency: 1},
		logger:    logging.NewNopLogger(),
	}
}

func TestHandleExtract(t *testing.T) {
	proc := &fakeProcessor{}
	c := newAsynqConsumer(proc)

	task, err := NewExtractTask(JobPayload{JobID: "t1", ImagePath: "/tmp/a.png", TranslateTo: "en"}, 0)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeExtract, task.Type())

	require.NoError(t, c.handleExtract(context.Background(), task))
	require.Equal(t, 1, proc.calls())
	assert.Equal(t, "t1", proc.reqs[0].JobID)
	assert.Equal(t, "/tmp/a.png", proc.reqs[0].ImagePath)
	assert.Equal(t, "en", proc.reqs[0].TranslateTo)
}

func TestHandleExtractSkipsRetryForBadInput(t *testing.T) {
	c := newAsynqConsumer(&fakeProcessor{})

	err := c.handleExtract(context.Background(), asynq.NewTask(TaskTypeExtract, []byte(`{not json`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = c.handleExtract(context.Background(), asynq.NewTask(TaskTypeExtract, []byte(`{"jobId":"t2"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	c = newAsynqConsumer(&fakeProcessor{err: errors.NewInvalidImageError("a.png", nil)})
	err = c.handleExtract(context.Background(), asynq.NewTask(TaskTypeExtract, []byte(`{"jobId":"t3","imagePath":"a.png"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleExtractRetriesTransientFailures(t *testing.T) {
	c := newAsynqConsumer(&fakeProcessor{err: errors.NewTranslationFailedError("en", stderrors.New("timeout"))})

	err := c.handleExtract(context.Background(), asynq.NewTask(TaskTypeExtract, []byte(`{"jobId":"t4","imagePath":"a.png"}`)))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.True(t, errors.HasCode(err, errors.ErrorTranslationFailed))
}

func TestNewExtractTaskRequiresImage(t *testing.T) {
	_, err := NewExtractTask(JobPayload{JobID: "empty"}, 1)
	assert.True(t, errors.HasCode(err, errors.ErrorInvalidImage))
}

func setupTestRedis(t *testing.T) string {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return "redis://" + mr.Addr()
}

func newRedisPair(t *testing.T, proc JobProcessor) (*RedisConsumer, *RedisEnqueuer) {
	t.Helper()
	redisURL := setupTestRedis(t)

	consumer, err := NewRedisConsumer(&RedisConsumerConfig{
		RedisURL:    redisURL,
		QueueName:   "test:jobs",
		Concurrency: 1,
		Processor:   proc,
		PollTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { consumer.client.Close() })

	enqueuer, err := NewRedisEnqueuer(redisURL, "test:jobs")
	require.NoError(t, err)
	t.Cleanup(func() { enqueuer.Close() })

	return consumer, enqueuer
}

func TestRedisConsumerCompletesJob(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{}
	consumer, enqueuer := newRedisPair(t, proc)

	id, err := enqueuer.Enqueue(ctx, JobPayload{ImageBuffer: []byte{1, 2, 3}, Filename: "a.png", TranslateTo: "en"}, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	stats, err := enqueuer.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["waiting"])

	require.NoError(t, consumer.processNextJob(ctx))

	require.Equal(t, 1, proc.calls())
	assert.Equal(t, id, proc.reqs[0].JobID)
	assert.Equal(t, []byte{1, 2, 3}, proc.reqs[0].ImageBuffer)

	status, data, ok, err := enqueuer.Result(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, status)
	assert.Equal(t, "日本", data["text"])
	assert.Equal(t, "Japan", data["translation"])
	assert.Equal(t, true, data["success"])

	stats, err = consumer.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats["waiting"])
	assert.Equal(t, int64(0), stats["processing"])
	assert.Equal(t, int64(1), stats["completed"])
}

func TestRedisConsumerRetriesThenFails(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{err: stderrors.New("engine crashed")}
	consumer, enqueuer := newRedisPair(t, proc)

	id, err := enqueuer.Enqueue(ctx, JobPayload{JobID: "retry-me", ImagePath: "/tmp/a.png"}, 2)
	require.NoError(t, err)

	require.NoError(t, consumer.processNextJob(ctx))
	stats, _ := consumer.GetStats(ctx)
	assert.Equal(t, int64(1), stats["waiting"], "first failure is re-queued")

	_, _, ok, err := enqueuer.Result(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, consumer.processNextJob(ctx))
	assert.Equal(t, 2, proc.calls())

	status, data, ok, err := enqueuer.Result(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, status)
	assert.Equal(t, "engine crashed", data["error"])
	assert.EqualValues(t, 2, data["attempts"])

	stats, _ = consumer.GetStats(ctx)
	assert.Equal(t, int64(0), stats["waiting"])
	assert.Equal(t, int64(1), stats["failed"])
}

func TestRedisConsumerDoesNotRetryBadInput(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{err: errors.NewInvalidImageError("/tmp/a.png", nil)}
	consumer, enqueuer := newRedisPair(t, proc)

	id, err := enqueuer.Enqueue(ctx, JobPayload{ImagePath: "/tmp/a.png"}, 5)
	require.NoError(t, err)

	require.NoError(t, consumer.processNextJob(ctx))
	assert.Equal(t, 1, proc.calls())

	status, data, ok, err := enqueuer.Result(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, status)
	assert.Equal(t, string(errors.ErrorInvalidImage), data["error_code"])
}

func TestRedisEnqueuerRejectsEmptyJob(t *testing.T) {
	_, enqueuer := newRedisPair(t, &fakeProcessor{})

	_, err := enqueuer.Enqueue(context.Background(), JobPayload{}, 0)
	assert.True(t, errors.HasCode(err, errors.ErrorInvalidImage))
}

func TestRedisConsumerStartStop(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{}
	consumer, enqueuer := newRedisPair(t, proc)

	_, err := enqueuer.Enqueue(ctx, JobPayload{ImagePath: "/tmp/a.png"}, 0)
	require.NoError(t, err)

	require.NoError(t, consumer.Start())
	assert.Eventually(t, func() bool { return proc.calls() == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.NoError(t, consumer.Stop())
}
