/**
 * Tesseract OCR - Local engine for Japanese line detection
 *
 * Line-level OCR using Tesseract through gosseract. Each read uses its own
 * client, so one TesseractOCR may serve concurrent pipelines.
 */

package processor

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/imageproc"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/logging"
)

// TesseractOCR drives a local Tesseract installation
type TesseractOCR struct {
	languages []string
	ready     bool
	logger    *logging.Logger
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	// Languages are traineddata names, e.g. "jpn", "eng"
	Languages []string
}

// NewTesseractOCR creates a Tesseract engine and verifies the requested
// languages load. A failed verification yields an engine that is not ready.
func NewTesseractOCR(cfg *TesseractConfig) (*TesseractOCR, error) {
	if cfg == nil || len(cfg.Languages) == 0 {
		cfg = &TesseractConfig{Languages: []string{"jpn", "eng"}}
	}

	t := &TesseractOCR{
		languages: cfg.Languages,
		logger:    logging.NewLogger("tesseract"),
	}

	if err := t.verify(); err != nil {
		t.logger.Warn("Tesseract initialization failed", "languages", strings.Join(t.languages, "+"), "error", err)
		return t, err
	}

	t.ready = true
	t.logger.Info("Tesseract ready", "languages", strings.Join(t.languages, "+"), "version", gosseract.Version())
	return t, nil
}

// verify forces Tesseract to load its language data on a blank image
func (t *TesseractOCR) verify() error {
	blank := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range blank.Pix {
		blank.Pix[i] = 255
	}
	data, err := imageproc.EncodePNG(blank)
	if err != nil {
		return err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return fmt.Errorf("failed to set languages: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return fmt.Errorf("failed to set image: %w", err)
	}
	if _, err := client.Text(); err != nil {
		return fmt.Errorf("failed to initialize tesseract: %w", err)
	}
	return nil
}

// Name returns the engine name
func (t *TesseractOCR) Name() string {
	return "tesseract"
}

// Ready reports whether the language data loaded
func (t *TesseractOCR) Ready() bool {
	return t != nil && t.ready
}

// ReadFile runs line-level OCR on an image file
func (t *TesseractOCR) ReadFile(ctx context.Context, path string, opts ReadOptions) ([]RawDetection, error) {
	return t.read(ctx, opts, func(c *gosseract.Client) error {
		return c.SetImage(path)
	})
}

// ReadImage runs line-level OCR on an in-memory image
func (t *TesseractOCR) ReadImage(ctx context.Context, img image.Image, opts ReadOptions) ([]RawDetection, error) {
	data, err := imageproc.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return t.read(ctx, opts, func(c *gosseract.Client) error {
		return c.SetImageFromBytes(data)
	})
}

func (t *TesseractOCR) read(ctx context.Context, opts ReadOptions, setImage func(*gosseract.Client) error) ([]RawDetection, error) {
	type result struct {
		detections []RawDetection
		err        error
	}

	// Buffered so the worker never blocks after a cancelled caller left
	resultCh := make(chan result, 1)

	go func() {
		client := gosseract.NewClient()
		defer client.Close()

		if err := client.SetLanguage(t.languages...); err != nil {
			resultCh <- result{err: fmt.Errorf("failed to set languages: %w", err)}
			return
		}

		// Raising the text-presence bound asks for more recall: let
		// Tesseract hunt for scattered text instead of assuming a page
		if opts.LowText > 0 {
			if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
				resultCh <- result{err: fmt.Errorf("failed to set page segmentation mode: %w", err)}
				return
			}
		}

		if err := setImage(client); err != nil {
			resultCh <- result{err: fmt.Errorf("failed to set image: %w", err)}
			return
		}

		boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
		if err != nil {
			resultCh <- result{err: fmt.Errorf("tesseract OCR failed: %w", err)}
			return
		}

		detections := make([]RawDetection, 0, len(boxes))
		for _, b := range boxes {
			// Tesseract separates kana and kanji with spaces
			text := strings.TrimRight(b.Word, "\n")
			if strings.TrimSpace(text) == "" {
				continue
			}
			detections = append(detections, RawDetection{
				Box:        rectPolygon(b.Box),
				Text:       joinJapaneseRuns(text),
				Confidence: clampConfidence(b.Confidence / 100),
			})
		}
		resultCh <- result{detections: detections}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.detections, res.err
	}
}

// joinJapaneseRuns removes the spaces Tesseract inserts between Japanese
// characters while keeping spaces between Latin words
func joinJapaneseRuns(text string) string {
	if !strings.Contains(text, " ") {
		return text
	}
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i, r := range runes {
		if r == ' ' && i > 0 && i < len(runes)-1 && isJapaneseRune(runes[i-1]) && isJapaneseRune(runes[i+1]) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
