package processor

import (
	"context"
	"unicode/utf8"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/errors"
)

// SingleGlyphProbe detects images holding exactly one character, such as
// flashcards, which read better without preprocessing
type SingleGlyphProbe struct {
	engine Engine
	policy Policy
}

// NewSingleGlyphProbe creates a probe over engine
func NewSingleGlyphProbe(engine Engine, policy Policy) *SingleGlyphProbe {
	return &SingleGlyphProbe{engine: engine, policy: policy}
}

// IsSingleGlyph reads the raw image and reports whether it produced exactly
// one detection whose text is one character
func (g *SingleGlyphProbe) IsSingleGlyph(ctx context.Context, path string) (bool, error) {
	detections, err := g.engine.ReadFile(ctx, path, ReadOptions{TextThreshold: g.policy.ProbeTextThreshold})
	if err != nil {
		return false, errors.NewOCRFailedError(g.engine.Name(), "single glyph probe", err)
	}
	return isSingleGlyph(detections), nil
}

func isSingleGlyph(detections []RawDetection) bool {
	return len(detections) == 1 && utf8.RuneCountInString(detections[0].Text) == 1
}
