package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the Japanese OCR worker
 *
 * Every failure that crosses a stage boundary is a *ProcessingError carrying
 * one of the codes below, so callers can branch on the code instead of
 * matching message text.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Input errors
	ErrorInvalidImage      ErrorCode = "INVALID_IMAGE"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Pipeline errors
	ErrorEngineNotReady      ErrorCode = "ENGINE_NOT_READY"
	ErrorPreprocessingFailed ErrorCode = "PREPROCESSING_FAILED"
	ErrorOCRFailed           ErrorCode = "OCR_FAILED"
	ErrorNoJapaneseText      ErrorCode = "NO_JAPANESE_TEXT"
	ErrorProcessingTimeout   ErrorCode = "PROCESSING_TIMEOUT"

	// Collaborator errors
	ErrorTranslationFailed ErrorCode = "TRANSLATION_FAILED"
	ErrorStorageFailed     ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewInvalidImageError(path string, cause error) *ProcessingError {
	msg := fmt.Sprintf("Cannot load image: %s", path)
	if cause == nil {
		msg = fmt.Sprintf("Image file not found: %s", path)
	}
	return &ProcessingError{
		Code:      ErrorInvalidImage,
		Message:   msg,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"image_path": path,
		},
		Cause: cause,
	}
}

func NewEngineNotReadyError(engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEngineNotReady,
		Message:   "OCR engine not initialized",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"engine": engine,
		},
		Cause: cause,
	}
}

func NewPreprocessingError(strategy string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorPreprocessingFailed,
		Message:   fmt.Sprintf("Preprocessing failed with strategy: %s", strategy),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"strategy": strategy,
		},
		Cause: cause,
	}
}

func NewOCRFailedError(engine string, pass string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed on pass: %s", pass),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"engine": engine,
			"pass":   pass,
		},
		Cause: cause,
	}
}

func NewNoJapaneseTextError(path string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorNoJapaneseText,
		Message:   "No Japanese text detected",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"image_path": path,
		},
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewUnsupportedFormatError(jobID string, format string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported image format: %s", format),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"format": format,
		},
	}
}

func NewTranslationFailedError(targetLang string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorTranslationFailed,
		Message:   fmt.Sprintf("Translation to %q failed", targetLang),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"target_language": targetLang,
		},
		Cause: cause,
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store processing results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// CodeOf returns the code of the first ProcessingError in err's chain, or ""
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// HasCode reports whether err's chain contains a ProcessingError with code
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// ToMap converts error to map for result storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.JobID != "" {
		result["job_id"] = e.JobID
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
