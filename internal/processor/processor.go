/**
 * Extraction Pipeline for Japanese OCR
 *
 * Drives the OCR engine through an adaptive, multi-pass read:
 * - Quality probe on the unmodified grayscale image
 * - Aggressive (binarizing) or gentle (equalizing) preprocessing by verdict
 * - Raw re-read for single-glyph images
 * - Low-text recall pass when the standard read finds only a few lines
 * - Script filter with a lowered-threshold retry
 */

package processor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/errors"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/imageproc"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/logging"
)

// SourceLanguage is the language OCR output is translated from
const SourceLanguage = "ja"

// Translator translates text between languages
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// PipelineConfig holds pipeline configuration
type PipelineConfig struct {
	Engine     Engine
	Translator Translator // optional
	Policy     *Policy    // nil uses DefaultPolicy
}

// Pipeline sequences the extraction stages for one image at a time. It holds
// no per-image state; concurrent use is safe when the engine is.
type Pipeline struct {
	engine     Engine
	translator Translator
	policy     Policy
	quality    *QualityProbe
	glyph      *SingleGlyphProbe
	filter     ScriptFilter
	logger     *logging.Logger
}

// NewPipeline creates a pipeline. A nil or unready engine is accepted;
// Process then reports the engine as not initialized.
func NewPipeline(cfg *PipelineConfig) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	policy := DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}

	return &Pipeline{
		engine:     cfg.Engine,
		translator: cfg.Translator,
		policy:     policy,
		quality:    NewQualityProbe(cfg.Engine, policy),
		glyph:      NewSingleGlyphProbe(cfg.Engine, policy),
		logger:     logging.NewLogger("pipeline"),
	}, nil
}

// Ready reports whether the pipeline has a usable engine
func (p *Pipeline) Ready() bool {
	return p.engine != nil && p.engine.Ready()
}

// Policy returns the thresholds in use
func (p *Pipeline) Policy() Policy {
	return p.policy
}

// Extract returns the filtered results for the image at path. Any failure
// degrades to an empty sequence.
func (p *Pipeline) Extract(ctx context.Context, path string) []OCRResult {
	results, err := p.extract(ctx, path)
	if err != nil {
		p.logger.Warn("Extraction failed, treating as no detections",
			"path", path,
			"code", errors.CodeOf(err),
			"error", err)
		return []OCRResult{}
	}
	return results
}

// extract runs the decision procedure. Errors are kept distinct from an
// empty read so callers can tell the two apart.
func (p *Pipeline) extract(ctx context.Context, path string) ([]OCRResult, error) {
	if !p.Ready() {
		return nil, errors.NewEngineNotReadyError(p.engineName(), nil)
	}

	img, err := imageproc.Decode(path)
	if err != nil {
		return nil, err
	}

	verdict, probe, err := p.quality.Classify(ctx, img)
	if err != nil {
		return nil, err
	}
	p.logDetections("probe", probe)

	single, err := p.glyph.IsSingleGlyph(ctx, path)
	if err != nil {
		return nil, err
	}

	rawOpts := ReadOptions{TextThreshold: p.policy.ReadTextThreshold}

	var standard []RawDetection
	if verdict == VerdictHighConfidence {
		p.logger.Info("High confidence detected, skipping preprocessing", "path", path)
		if standard, err = p.read(ctx, "standard", func() ([]RawDetection, error) {
			return p.engine.ReadFile(ctx, path, rawOpts)
		}); err != nil {
			return nil, err
		}
	} else {
		pre := PreprocessorFor(verdict, p.policy)
		p.logger.Info("Preprocessing image", "path", path, "verdict", verdict, "strategy", pre.Name())

		buf, err := pre.Apply(img)
		if err != nil {
			return nil, err
		}
		if standard, err = p.read(ctx, "preprocessed", func() ([]RawDetection, error) {
			return p.engine.ReadImage(ctx, buf, rawOpts)
		}); err != nil {
			return nil, err
		}

		if single && verdict != VerdictEmpty {
			p.logger.Info("Single character detected, re-reading without preprocessing", "path", path)
			if standard, err = p.read(ctx, "raw", func() ([]RawDetection, error) {
				return p.engine.ReadFile(ctx, path, rawOpts)
			}); err != nil {
				return nil, err
			}
		}

		if p.policy.needsEnhancedPass(len(standard)) {
			p.logger.Info("Few detections with standard read, trying enhanced", "count", len(standard))
			enhanced, err := p.read(ctx, "enhanced", func() ([]RawDetection, error) {
				return p.engine.ReadFile(ctx, path, ReadOptions{
					TextThreshold: p.policy.EnhancedTextThreshold,
					LowText:       p.policy.EnhancedLowText,
				})
			})
			if err != nil {
				return nil, err
			}

			if len(enhanced) > len(standard) {
				p.logger.Info("Enhanced read found more text, using enhanced",
					"standard", len(standard),
					"enhanced", len(enhanced))
				return p.filter.Filter(enhanced, p.policy.MinConfidence), nil
			}
			p.logger.Debug("Enhanced read did not improve", "standard", len(standard), "enhanced", len(enhanced))
		}
	}

	filtered := p.filter.Filter(standard, p.policy.MinConfidence)
	if len(filtered) == 0 && len(standard) > 0 {
		p.logger.Info("No results at standard confidence, retrying with lower threshold",
			"minConfidence", p.policy.RetryMinConfidence)
		filtered = p.filter.Filter(standard, p.policy.RetryMinConfidence)
	}
	return filtered, nil
}

// read runs one engine pass, wrapping failures with the pass name
func (p *Pipeline) read(ctx context.Context, pass string, fn func() ([]RawDetection, error)) ([]RawDetection, error) {
	detections, err := fn()
	if err != nil {
		return nil, errors.NewOCRFailedError(p.engine.Name(), pass, err)
	}
	p.logDetections(pass, detections)
	return detections, nil
}

func (p *Pipeline) logDetections(pass string, detections []RawDetection) {
	p.logger.Debug("Detections", "pass", pass, "count", len(detections))
	for i, d := range detections {
		p.logger.Debug("Detection",
			"pass", pass,
			"index", i,
			"text", d.Text,
			"confidence", fmt.Sprintf("%.3f", d.Confidence),
			"length", len([]rune(d.Text)))
	}
}

// Process extracts the Japanese text of the image at path. It never fails;
// every outcome is reported in the ProcessingResult.
func (p *Pipeline) Process(ctx context.Context, path string) *ProcessingResult {
	res, _ := p.process(ctx, path)
	return res
}

// process is Process that also hands back every extracted result,
// Japanese or not
func (p *Pipeline) process(ctx context.Context, path string) (*ProcessingResult, []OCRResult) {
	if !p.Ready() {
		return failedResult(errors.NewEngineNotReadyError(p.engineName(), nil), nil), nil
	}

	if _, err := os.Stat(path); err != nil {
		return failedResult(errors.NewInvalidImageError(path, nil), nil), nil
	}

	start := time.Now()
	all := p.Extract(ctx, path)
	results := JapaneseOnly(all)
	elapsed := time.Since(start)

	if len(results) == 0 {
		p.logger.Info("No Japanese text detected", "path", path, "duration", elapsed)
		return failedResult(errors.NewNoJapaneseTextError(path), &elapsed), all
	}

	combined := CombinedText(results)
	p.logger.Info("Extraction complete",
		"path", path,
		"results", len(results),
		"characters", len([]rune(combined)),
		"duration", elapsed)

	return &ProcessingResult{
		Success:        true,
		Results:        results,
		CombinedText:   combined,
		ProcessingTime: &elapsed,
	}, all
}

// Translate translates Japanese text into target. Failures are returned
// as TRANSLATION_FAILED errors.
func (p *Pipeline) Translate(ctx context.Context, text, target string) (string, error) {
	if p.translator == nil {
		return "", errors.NewTranslationFailedError(target, fmt.Errorf("no translator configured"))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.NewTranslationFailedError(target, fmt.Errorf("no text to translate"))
	}

	translated, err := p.translator.Translate(ctx, text, SourceLanguage, target)
	if err != nil {
		return "", errors.NewTranslationFailedError(target, err)
	}
	return translated, nil
}

func (p *Pipeline) engineName() string {
	if p.engine == nil {
		return "none"
	}
	return p.engine.Name()
}

func failedResult(err *errors.ProcessingError, elapsed *time.Duration) *ProcessingResult {
	return &ProcessingResult{
		Success:        false,
		Results:        []OCRResult{},
		CombinedText:   "",
		ErrorMessage:   err.Message,
		ErrorCode:      err.Code,
		ProcessingTime: elapsed,
	}
}
