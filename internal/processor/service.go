package processor

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/errors"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/history"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/logging"
)

// ServiceConfig holds job-level configuration
type ServiceConfig struct {
	Pipeline    *Pipeline
	History     history.Store // optional
	SaveHistory bool
	TempDir     string        // where buffered images are written; empty uses os.TempDir
	Timeout     time.Duration // per job; zero disables
}

// ProcessRequest is one OCR job. Exactly one of ImagePath or ImageBuffer
// is used; ImagePath wins when both are set.
type ProcessRequest struct {
	JobID       string
	ImagePath   string
	ImageBuffer []byte
	Filename    string
	TranslateTo string // empty skips translation
	IncludeAll  bool   // also return non-Japanese results
}

// ProcessResponse is the outcome of one job
type ProcessResponse struct {
	JobID            string            `json:"jobId"`
	Result           *ProcessingResult `json:"result"`
	AllResults       []OCRResult       `json:"allResults,omitempty"`
	Translation      string            `json:"translation,omitempty"`
	TranslatedTo     string            `json:"translatedTo,omitempty"`
	HistoryID        string            `json:"historyId,omitempty"`
	ProcessingTimeMs int64             `json:"processingTimeMs"`
}

// Service runs whole jobs: materializes buffers, runs the pipeline,
// translates and records history
type Service struct {
	pipeline    *Pipeline
	history     history.Store
	saveHistory bool
	tempDir     string
	timeout     time.Duration
	logger      *logging.Logger
}

// NewService creates a job service
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg == nil || cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}

	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "jpocr")
	}

	return &Service{
		pipeline:    cfg.Pipeline,
		history:     cfg.History,
		saveHistory: cfg.SaveHistory && cfg.History != nil,
		tempDir:     tempDir,
		timeout:     cfg.Timeout,
		logger:      logging.NewLogger("service"),
	}, nil
}

// Pipeline returns the underlying pipeline
func (s *Service) Pipeline() *Pipeline {
	return s.pipeline
}

// ProcessImage runs one job. Recognition failures are reported in the
// response; the error is reserved for infrastructure failures such as a
// temp file that cannot be written, a failed translation or a timeout.
func (s *Service) ProcessImage(ctx context.Context, req *ProcessRequest) (*ProcessResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if req.JobID == "" {
		req.JobID = uuid.New().String()
	}
	start := time.Now()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log := s.logger.With("jobId", req.JobID)
	log.Info("Starting OCR job", "path", req.ImagePath, "bufferSize", len(req.ImageBuffer), "translateTo", req.TranslateTo)

	path := req.ImagePath
	if path == "" {
		if len(req.ImageBuffer) == 0 {
			return nil, errors.NewInvalidImageError("", fmt.Errorf("job has neither image path nor buffer"))
		}
		tmp, err := s.materialize(req)
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp)
		path = tmp
	}

	result, all := s.pipeline.process(ctx, path)

	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Error("OCR job timed out", "timeout", s.timeout)
		return nil, errors.NewProcessingTimeoutError(req.JobID, s.timeout, ctx.Err())
	}

	resp := &ProcessResponse{
		JobID:  req.JobID,
		Result: result,
	}
	if req.IncludeAll {
		resp.AllResults = all
	}

	if result.Success && req.TranslateTo != "" {
		translated, err := s.pipeline.Translate(ctx, result.CombinedText, req.TranslateTo)
		if err != nil {
			log.Error("Translation failed", "target", req.TranslateTo, "error", err)
			return nil, err
		}
		resp.Translation = translated
		resp.TranslatedTo = req.TranslateTo
	}

	if s.saveHistory {
		entry := s.historyEntry(req, result, resp.Translation)
		if err := s.history.Add(ctx, entry); err != nil {
			log.Warn("Failed to record history", "error", err)
		} else {
			resp.HistoryID = entry.ID
		}
	}

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	log.Info("OCR job complete",
		"success", result.Success,
		"results", len(result.Results),
		"errorCode", result.ErrorCode,
		"durationMs", resp.ProcessingTimeMs)

	return resp, nil
}

// materialize writes the request buffer to a temp file
func (s *Service) materialize(req *ProcessRequest) (string, error) {
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	ext := filepath.Ext(req.Filename)
	if ext == "" {
		ext = ".img"
	}
	f, err := os.CreateTemp(s.tempDir, "ocr-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(req.ImageBuffer); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return f.Name(), nil
}

func (s *Service) historyEntry(req *ProcessRequest, result *ProcessingResult, translation string) *history.Entry {
	imagePath := req.ImagePath
	if imagePath == "" {
		imagePath = req.Filename
	}
	entry := history.NewEntry(imagePath)
	entry.Text = result.CombinedText
	entry.Translation = translation
	entry.Success = result.Success
	entry.ProcessingTime = result.ProcessingTime
	entry.DetectionCount = len(result.Results)
	entry.ErrorMessage = result.ErrorMessage
	entry.Confidence = meanConfidence(result.Results)
	entry.Metadata = map[string]interface{}{
		"jobId":  req.JobID,
		"engine": s.pipeline.engineName(),
	}
	if result.ErrorCode != "" {
		entry.Metadata["errorCode"] = string(result.ErrorCode)
	}
	return entry
}

func meanConfidence(results []OCRResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Confidence
	}
	return sum / float64(len(results))
}

// SaveText writes text to path as UTF-8, creating parent directories
func SaveText(path, text string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to save text: %w", err)
	}
	return nil
}
