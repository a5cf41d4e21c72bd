package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/errors"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/processor"
)

// TaskTypeExtract is the asynq task type for OCR jobs
const TaskTypeExtract = "ocr:extract"

// DefaultMaxRetries applies when a queued job does not carry its own limit
const DefaultMaxRetries = 3

// JobProcessor runs one OCR job
type JobProcessor interface {
	ProcessImage(ctx context.Context, req *processor.ProcessRequest) (*processor.ProcessResponse, error)
}

// RedisJobData represents a job envelope stored in the Redis queue
type RedisJobData struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Payload    JobPayload `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"maxRetries"`
}

// JobPayload contains the actual job data
type JobPayload struct {
	JobID       string `json:"jobId"`
	ImagePath   string `json:"imagePath,omitempty"`
	ImageBuffer []byte `json:"-"` // set by UnmarshalJSON
	Filename    string `json:"filename,omitempty"`
	TranslateTo string `json:"translateTo,omitempty"`
	IncludeAll  bool   `json:"includeAll,omitempty"`
}

// MarshalJSON writes imageBuffer as a base64 string
func (p JobPayload) MarshalJSON() ([]byte, error) {
	type Alias JobPayload
	aux := struct {
		ImageBuffer string `json:"imageBuffer,omitempty"`
		Alias
	}{
		Alias: Alias(p),
	}
	if len(p.ImageBuffer) > 0 {
		aux.ImageBuffer = base64.StdEncoding.EncodeToString(p.ImageBuffer)
	}
	return json.Marshal(aux)
}

// UnmarshalJSON implements custom JSON unmarshaling for JobPayload to handle buffer serialization.
// Supports both base64 string format and Node.js Buffer object format
func (p *JobPayload) UnmarshalJSON(data []byte) error {
	// Alias type avoids recursion
	type Alias JobPayload
	aux := &struct {
		ImageBuffer interface{} `json:"imageBuffer,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal JobPayload: %w", err)
	}

	if aux.ImageBuffer == nil {
		return nil
	}

	switch v := aux.ImageBuffer.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("failed to decode base64 imageBuffer: %w", err)
		}
		p.ImageBuffer = decoded

	case map[string]interface{}:
		bufferType, ok := v["type"].(string)
		if !ok || bufferType != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		p.ImageBuffer = make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok || byteVal < 0 || byteVal > 255 {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			p.ImageBuffer[i] = byte(byteVal)
		}

	default:
		return fmt.Errorf("imageBuffer must be either base64 string or Buffer object, got %T", v)
	}

	return nil
}

// Request converts the payload into a service request
func (p *JobPayload) Request() *processor.ProcessRequest {
	return &processor.ProcessRequest{
		JobID:       p.JobID,
		ImagePath:   p.ImagePath,
		ImageBuffer: p.ImageBuffer,
		Filename:    p.Filename,
		TranslateTo: p.TranslateTo,
		IncludeAll:  p.IncludeAll,
	}
}

// Validate rejects payloads that can never succeed
func (p *JobPayload) Validate() error {
	if p.ImagePath == "" && len(p.ImageBuffer) == 0 {
		return errors.NewInvalidImageError("", fmt.Errorf("job %s has neither imagePath nor imageBuffer", p.JobID))
	}
	return nil
}

// retryable reports whether a failed job is worth another attempt. Bad
// input fails the same way every time.
func retryable(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrorInvalidImage, errors.ErrorUnsupportedFormat:
		return false
	}
	return true
}

// failureMap describes a failed job for the errors hash
func failureMap(err error) map[string]interface{} {
	var perr *errors.ProcessingError
	if stderrors.As(err, &perr) {
		return perr.ToMap()
	}
	return map[string]interface{}{"error": err.Error()}
}

// resultSummary is what gets stored in the results hash for a finished job
func resultSummary(resp *processor.ProcessResponse) map[string]interface{} {
	summary := map[string]interface{}{
		"jobId":            resp.JobID,
		"success":          resp.Result.Success,
		"text":             resp.Result.CombinedText,
		"results":          resp.Result.Results,
		"processingTimeMs": resp.ProcessingTimeMs,
	}
	if !resp.Result.Success {
		summary["errorCode"] = string(resp.Result.ErrorCode)
		summary["errorMessage"] = resp.Result.ErrorMessage
	}
	if resp.Translation != "" {
		summary["translation"] = resp.Translation
		summary["translatedTo"] = resp.TranslatedTo
	}
	if len(resp.AllResults) > 0 {
		summary["allResults"] = resp.AllResults
	}
	if resp.HistoryID != "" {
		summary["historyId"] = resp.HistoryID
	}
	return summary
}
