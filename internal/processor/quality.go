package processor

import (
	"context"
	"image"
	"strings"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/errors"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/imageproc"
)

// QualityProbe reads an unmodified grayscale image once and buckets how
// well the engine did
type QualityProbe struct {
	engine Engine
	policy Policy
}

// NewQualityProbe creates a probe over engine
func NewQualityProbe(engine Engine, policy Policy) *QualityProbe {
	return &QualityProbe{engine: engine, policy: policy}
}

// Classify grays img, reads it at the probe threshold and classifies the
// detections. It returns the detections alongside the verdict.
func (q *QualityProbe) Classify(ctx context.Context, img image.Image) (QualityVerdict, []RawDetection, error) {
	if img == nil {
		return VerdictEmpty, nil, errors.NewInvalidImageError("", errNilImage)
	}

	gray := imageproc.Grayscale(img)
	detections, err := q.engine.ReadImage(ctx, gray, ReadOptions{TextThreshold: q.policy.ProbeTextThreshold})
	if err != nil {
		return VerdictEmpty, nil, errors.NewOCRFailedError(q.engine.Name(), "quality probe", err)
	}

	return q.Verdict(detections), detections, nil
}

// Verdict classifies a detection batch. Bounds are half-open: low is
// [0,low), medium [low,high), high [high,1].
func (q *QualityProbe) Verdict(detections []RawDetection) QualityVerdict {
	n := len(detections)
	if n == 0 || (n == 1 && strings.TrimSpace(detections[0].Text) == "") {
		return VerdictEmpty
	}

	var sum float64
	for _, d := range detections {
		sum += d.Confidence
	}
	avg := sum / float64(n)

	switch {
	case avg < q.policy.LowConfidenceBound:
		return VerdictLowConfidence
	case avg < q.policy.HighConfidenceBound:
		return VerdictMediumConfidence
	default:
		return VerdictHighConfidence
	}
}
