package processor

import (
	stderrors "errors"
	"fmt"
	"image"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/errors"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/imageproc"
)

var errNilImage = stderrors.New("image is nil")

// Preprocessor transforms a decoded image into a buffer easier to read.
// The input is never modified.
type Preprocessor interface {
	Name() string
	Apply(img image.Image) (*image.Gray, error)
}

// AggressivePreprocessor binarizes noisy or low-contrast input
type AggressivePreprocessor struct {
	policy Policy
}

// NewAggressivePreprocessor creates the binarizing strategy
func NewAggressivePreprocessor(policy Policy) *AggressivePreprocessor {
	return &AggressivePreprocessor{policy: policy}
}

// Name returns the strategy name
func (p *AggressivePreprocessor) Name() string {
	return "aggressive"
}

// Apply runs contrast boost, blur and Otsu binarization. Output with more
// than InvertBlackRatio black pixels is inverted back to dark-on-light.
func (p *AggressivePreprocessor) Apply(img image.Image) (out *image.Gray, err error) {
	if img == nil {
		return nil, errors.NewPreprocessingError(p.Name(), errNilImage)
	}
	defer recoverPreprocessing(p.Name(), &err)

	gray := imageproc.Grayscale(img)
	boosted := imageproc.ContrastScale(gray, p.policy.ContrastAlpha, p.policy.ContrastBeta)
	blurred := imageproc.GaussianBlur(boosted, p.policy.BlurKernel)
	binary, err := imageproc.BinarizeOtsu(blurred)
	if err != nil {
		return nil, errors.NewPreprocessingError(p.Name(), err)
	}

	if imageproc.BlackRatio(binary) > p.policy.InvertBlackRatio {
		binary = imageproc.Invert(binary)
	}
	return binary, nil
}

// GentlePreprocessor normalizes readable input without destroying detail
type GentlePreprocessor struct {
	policy Policy
}

// NewGentlePreprocessor creates the contrast-equalizing strategy
func NewGentlePreprocessor(policy Policy) *GentlePreprocessor {
	return &GentlePreprocessor{policy: policy}
}

// Name returns the strategy name
func (p *GentlePreprocessor) Name() string {
	return "gentle"
}

// Apply normalizes polarity, equalizes local contrast, denoises and
// upscales small images
func (p *GentlePreprocessor) Apply(img image.Image) (out *image.Gray, err error) {
	if img == nil {
		return nil, errors.NewPreprocessingError(p.Name(), errNilImage)
	}
	defer recoverPreprocessing(p.Name(), &err)

	gray := imageproc.Grayscale(img)
	if imageproc.Mean(gray) < p.policy.InvertMeanBelow {
		gray = imageproc.Invert(gray)
	}
	equalized, err := imageproc.CLAHE(gray, p.policy.CLAHETiles, p.policy.CLAHETiles, p.policy.CLAHEClipLimit)
	if err != nil {
		return nil, errors.NewPreprocessingError(p.Name(), err)
	}
	denoised, err := imageproc.Denoise(equalized)
	if err != nil {
		return nil, errors.NewPreprocessingError(p.Name(), err)
	}
	out, err = imageproc.UpscaleToMax(denoised, p.policy.UpscaleTarget)
	if err != nil {
		return nil, errors.NewPreprocessingError(p.Name(), err)
	}
	return out, nil
}

// PreprocessorFor maps a quality verdict to its strategy
func PreprocessorFor(verdict QualityVerdict, policy Policy) Preprocessor {
	switch verdict {
	case VerdictEmpty, VerdictLowConfidence:
		return NewAggressivePreprocessor(policy)
	default:
		return NewGentlePreprocessor(policy)
	}
}

// recoverPreprocessing turns a panic inside an image transform into a
// PREPROCESSING_FAILED error
func recoverPreprocessing(strategy string, err *error) {
	if r := recover(); r != nil {
		*err = errors.NewPreprocessingError(strategy, fmt.Errorf("panic: %v", r))
	}
}
