package processor

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/clients"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/imageproc"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/logging"
)

// RemoteOCR delegates detection to an OCR server
type RemoteOCR struct {
	client *clients.OCRServerClient
	useGPU bool
	ready  bool
	logger *logging.Logger
}

// RemoteOCRConfig holds remote engine configuration
type RemoteOCRConfig struct {
	ServerURL string
	UseGPU    bool
}

// NewRemoteOCR creates a remote engine. An unreachable server yields an
// engine that is not ready.
func NewRemoteOCR(ctx context.Context, cfg *RemoteOCRConfig) (*RemoteOCR, error) {
	if cfg == nil || cfg.ServerURL == "" {
		return nil, fmt.Errorf("OCR server URL is required")
	}

	r := &RemoteOCR{
		client: clients.NewOCRServerClient(cfg.ServerURL),
		useGPU: cfg.UseGPU,
		logger: logging.NewLogger("remote-ocr"),
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.client.HealthCheck(hctx); err != nil {
		r.logger.Warn("OCR server health check failed", "url", cfg.ServerURL, "error", err)
		return r, err
	}

	r.ready = true
	r.logger.Info("OCR server connection verified", "url", cfg.ServerURL, "gpu", cfg.UseGPU)
	return r, nil
}

// Name returns the engine name
func (r *RemoteOCR) Name() string {
	return "remote"
}

// Ready reports whether the server answered its health check
func (r *RemoteOCR) Ready() bool {
	return r != nil && r.ready
}

// ReadFile sends the file bytes as they are
func (r *RemoteOCR) ReadFile(ctx context.Context, path string, opts ReadOptions) ([]RawDetection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return r.read(ctx, data, opts)
}

// ReadImage encodes img as PNG and sends it
func (r *RemoteOCR) ReadImage(ctx context.Context, img image.Image, opts ReadOptions) ([]RawDetection, error) {
	data, err := imageproc.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return r.read(ctx, data, opts)
}

func (r *RemoteOCR) read(ctx context.Context, data []byte, opts ReadOptions) ([]RawDetection, error) {
	resp, err := r.client.RecognizeBytes(ctx, data, opts.TextThreshold, opts.LowText, r.useGPU)
	if err != nil {
		return nil, err
	}

	detections := make([]RawDetection, 0, len(resp.Items))
	for _, item := range resp.Items {
		box := make([]Point, 0, len(item.Box))
		for _, p := range item.Box {
			if len(p) < 2 {
				continue
			}
			box = append(box, Point{X: p[0], Y: p[1]})
		}
		detections = append(detections, RawDetection{
			Box:        box,
			Text:       item.Text,
			Confidence: clampConfidence(item.Confidence),
		})
	}
	return detections, nil
}
