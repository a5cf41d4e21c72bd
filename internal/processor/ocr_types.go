/**
 * OCR Types - Shared data structures for the extraction pipeline
 *
 * Common types used by every engine and by the pipeline stages.
 */

package processor

import (
	"encoding/json"
	"time"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/errors"
)

// Point is one vertex of a detection polygon, in source-image pixels
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RawDetection is one engine output unit
type RawDetection struct {
	Box        []Point // ordered polygon, clockwise from top-left
	Text       string
	Confidence float64 // in [0,1]
}

// QualityVerdict buckets how well the engine read an unmodified image
type QualityVerdict string

const (
	VerdictEmpty            QualityVerdict = "empty"
	VerdictLowConfidence    QualityVerdict = "low_confidence"
	VerdictMediumConfidence QualityVerdict = "medium_confidence"
	VerdictHighConfidence   QualityVerdict = "high_confidence"
)

// OCRResult is a cleaned, filtered detection
type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       []Point `json:"bbox"`
	IsJapanese bool    `json:"isJapanese"`
}

// ProcessingResult is the outcome of one image.
// Success is true iff Results holds at least one Japanese result; Results
// then holds only Japanese results and CombinedText is their texts joined
// without separator, in detection order.
type ProcessingResult struct {
	Success        bool             `json:"success"`
	Results        []OCRResult      `json:"results"`
	CombinedText   string           `json:"combinedText"`
	ErrorMessage   string           `json:"errorMessage,omitempty"`
	ErrorCode      errors.ErrorCode `json:"errorCode,omitempty"`
	ProcessingTime *time.Duration   `json:"processingTime,omitempty"`
}

// MarshalJSON writes ProcessingTime as wall-clock seconds
func (r ProcessingResult) MarshalJSON() ([]byte, error) {
	type plain ProcessingResult
	out := struct {
		plain
		ProcessingTime *float64 `json:"processingTime,omitempty"`
	}{plain: plain(r)}
	if r.ProcessingTime != nil {
		secs := r.ProcessingTime.Seconds()
		out.ProcessingTime = &secs
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads ProcessingTime back from seconds
func (r *ProcessingResult) UnmarshalJSON(data []byte) error {
	type plain ProcessingResult
	in := struct {
		*plain
		ProcessingTime *float64 `json:"processingTime,omitempty"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.ProcessingTime = nil
	if in.ProcessingTime != nil {
		d := time.Duration(*in.ProcessingTime * float64(time.Second))
		r.ProcessingTime = &d
	}
	return nil
}
