package processor

import (
	"context"
	"image"
)

// ReadOptions are the numeric thresholds handed to an engine on each read
type ReadOptions struct {
	// TextThreshold is the minimum text-region score the detector keeps
	TextThreshold float64
	// LowText is the text-presence bound; zero means the engine default
	LowText float64
}

// Engine is the OCR capability the pipeline drives. Implementations return
// detections in reading order and must be deterministic for identical input.
// An Engine used by concurrent pipelines must be safe for concurrent use.
type Engine interface {
	Name() string
	Ready() bool
	ReadFile(ctx context.Context, path string, opts ReadOptions) ([]RawDetection, error)
	ReadImage(ctx context.Context, img image.Image, opts ReadOptions) ([]RawDetection, error)
}

// rectPolygon expresses an axis-aligned rectangle as a 4-point polygon
func rectPolygon(r image.Rectangle) []Point {
	return []Point{
		{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Max.Y)},
		{X: float64(r.Min.X), Y: float64(r.Max.Y)},
	}
}
