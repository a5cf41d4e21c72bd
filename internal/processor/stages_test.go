package processor

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/errors"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/imageproc"
)

func TestQualityVerdictBoundaries(t *testing.T) {
	q := NewQualityProbe(nil, DefaultPolicy())

	tests := []struct {
		name       string
		detections []RawDetection
		want       QualityVerdict
	}{
		{"no detections", nil, VerdictEmpty},
		{"single blank detection", []RawDetection{det("  \t", 0.95)}, VerdictEmpty},
		{"just below low bound", []RawDetection{det("あ", 0.1999)}, VerdictLowConfidence},
		{"zero confidence", []RawDetection{det("あ", 0)}, VerdictLowConfidence},
		{"low bound is medium", []RawDetection{det("あ", 0.2)}, VerdictMediumConfidence},
		{"just below high bound", []RawDetection{det("あ", 0.7999)}, VerdictMediumConfidence},
		{"high bound is high", []RawDetection{det("あ", 0.8)}, VerdictHighConfidence},
		{"average of several", []RawDetection{det("a", 0.9), det("b", 0.1)}, VerdictMediumConfidence},
		{"two blanks are not empty", []RawDetection{det(" ", 0.9), det(" ", 0.9)}, VerdictHighConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, q.Verdict(tt.detections))
		})
	}
}

func TestQualityProbeClassify(t *testing.T) {
	engine := &fakeEngine{ready: true}
	q := NewQualityProbe(engine, DefaultPolicy())

	verdict, detections, err := q.Classify(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err)
	assert.Equal(t, VerdictEmpty, verdict)
	assert.Empty(t, detections)
	assert.Equal(t, []string{"probe"}, engine.calls)

	_, _, err = q.Classify(context.Background(), nil)
	assert.True(t, errors.HasCode(err, errors.ErrorInvalidImage))
}

func TestSingleGlyphRule(t *testing.T) {
	assert.True(t, isSingleGlyph([]RawDetection{det("あ", 0.9)}))
	assert.True(t, isSingleGlyph([]RawDetection{det("A", 0.9)}))
	assert.False(t, isSingleGlyph([]RawDetection{det("あい", 0.9)}))
	assert.False(t, isSingleGlyph([]RawDetection{det(" あ", 0.9)}))
	assert.False(t, isSingleGlyph([]RawDetection{det("あ", 0.9), det("い", 0.9)}))
	assert.False(t, isSingleGlyph(nil))
}

func TestContainsJapanese(t *testing.T) {
	for _, s := range []string{"ひらがな", "カタカナ", "漢字", "ｱ", "Ａ", "。", "abcあ"} {
		assert.True(t, ContainsJapanese(s), s)
	}
	for _, s := range []string{"", "Hello", "123", "Ünïcödé", "한국어"} {
		assert.False(t, ContainsJapanese(s), s)
	}
}

func TestScriptFilterDropsAndTrims(t *testing.T) {
	in := []RawDetection{
		det(" 世界 ", 0.9),
		det("Hello", 0.5),
		det("低い", 0.19),
		det("境界", 0.2),
	}
	out := ScriptFilter{}.Filter(in, 0.2)

	require.Len(t, out, 3)
	assert.Equal(t, "世界", out[0].Text)
	assert.True(t, out[0].IsJapanese)
	assert.Equal(t, "Hello", out[1].Text)
	assert.False(t, out[1].IsJapanese)
	assert.Equal(t, "境界", out[2].Text)
	assert.Equal(t, in[0].Box, out[0].BBox)
}

func toDetections(results []OCRResult) []RawDetection {
	out := make([]RawDetection, len(results))
	for i, r := range results {
		out[i] = RawDetection{Box: r.BBox, Text: r.Text, Confidence: r.Confidence}
	}
	return out
}

func TestScriptFilterIdempotentAndMonotonic(t *testing.T) {
	in := []RawDetection{
		det("日本", 0.95), det(" x ", 0.05), det("語", 0.3), det("テスト", 0.15),
		det("abc", 0.6), det("  ", 0.4), det("東京", 0.0),
	}
	f := ScriptFilter{}

	for _, threshold := range []float64{0, 0.1, 0.2, 0.5, 1} {
		once := f.Filter(in, threshold)
		twice := f.Filter(toDetections(once), threshold)
		assert.Equal(t, once, twice, "threshold %v", threshold)
	}

	prev := -1
	for _, threshold := range []float64{1, 0.9, 0.5, 0.3, 0.2, 0.1, 0} {
		n := len(f.Filter(in, threshold))
		assert.GreaterOrEqual(t, n, prev, "threshold %v", threshold)
		prev = n
	}
	assert.Len(t, f.Filter(in, 0), len(in))
}

func TestJoinJapaneseRuns(t *testing.T) {
	assert.Equal(t, "日本語です", joinJapaneseRuns("日 本 語 で す"))
	assert.Equal(t, "hello world", joinJapaneseRuns("hello world"))
	assert.Equal(t, "東京 Tower", joinJapaneseRuns("東 京 Tower"))
}

func TestPreprocessorForVerdict(t *testing.T) {
	policy := DefaultPolicy()
	assert.Equal(t, "aggressive", PreprocessorFor(VerdictEmpty, policy).Name())
	assert.Equal(t, "aggressive", PreprocessorFor(VerdictLowConfidence, policy).Name())
	assert.Equal(t, "gentle", PreprocessorFor(VerdictMediumConfidence, policy).Name())
	assert.Equal(t, "gentle", PreprocessorFor(VerdictHighConfidence, policy).Name())
}

func TestAggressiveInvertsMostlyBlackOutput(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	for i := range img.Pix {
		img.Pix[i] = 20
	}
	for y := 8; y < 12; y++ {
		for x := 8; x < 12; x++ {
			img.SetGray(x, y, color.Gray{Y: 230})
		}
	}

	out, err := NewAggressivePreprocessor(DefaultPolicy()).Apply(img)
	require.NoError(t, err)

	for _, v := range out.Pix {
		assert.True(t, v == 0 || v == 255)
	}
	assert.Less(t, imageproc.BlackRatio(out), 0.25)
	// source untouched
	assert.Equal(t, uint8(20), img.Pix[0])
}

// contrastEngine reports one detection whose confidence follows the pixel
// standard deviation of what it is shown, and nothing for a flat image
type contrastEngine struct{}

func (contrastEngine) Name() string { return "contrast" }

func (contrastEngine) Ready() bool { return true }

func (contrastEngine) ReadFile(context.Context, string, ReadOptions) ([]RawDetection, error) {
	return nil, nil
}

func (contrastEngine) ReadImage(_ context.Context, img image.Image, _ ReadOptions) ([]RawDetection, error) {
	gray := imageproc.Grayscale(img)
	mean := imageproc.Mean(gray)
	var sum float64
	for _, v := range gray.Pix {
		d := float64(v) - mean
		sum += d * d
	}
	sd := math.Sqrt(sum / float64(len(gray.Pix)))
	if sd < 1 {
		return nil, nil
	}
	return []RawDetection{det("十", math.Min(sd/128, 1))}, nil
}

// faintGlyph draws a cross 20 levels darker than its background
func faintGlyph() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 60, 40))
	for i := range img.Pix {
		img.Pix[i] = 120
	}
	for y := 18; y < 22; y++ {
		for x := 10; x < 50; x++ {
			img.SetGray(x, y, color.Gray{Y: 100})
		}
	}
	for y := 5; y < 35; y++ {
		for x := 28; x < 32; x++ {
			img.SetGray(x, y, color.Gray{Y: 100})
		}
	}
	return img
}

func TestAggressiveKeepsLowConfidenceGlyphReadable(t *testing.T) {
	ctx := context.Background()
	q := NewQualityProbe(contrastEngine{}, DefaultPolicy())
	img := faintGlyph()

	before, detections, err := q.Classify(ctx, img)
	require.NoError(t, err)
	require.Equal(t, VerdictLowConfidence, before)
	require.Len(t, detections, 1)

	out, err := NewAggressivePreprocessor(DefaultPolicy()).Apply(img)
	require.NoError(t, err)

	hist, _ := imageproc.Histogram(out)
	assert.Positive(t, hist[0])
	assert.Positive(t, hist[255])
	assert.Equal(t, len(out.Pix), hist[0]+hist[255], "output is two-level")
	ratio := imageproc.BlackRatio(out)
	assert.Greater(t, ratio, 0.0)
	assert.LessOrEqual(t, ratio, DefaultPolicy().InvertBlackRatio)

	after, detections, err := q.Classify(ctx, out)
	require.NoError(t, err)
	assert.NotEqual(t, VerdictEmpty, after)
	assert.NotEmpty(t, detections)
}

func TestGentleNormalizesDarkSmallImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 50))
	for i := range img.Pix {
		img.Pix[i] = 30
	}

	out, err := NewGentlePreprocessor(DefaultPolicy()).Apply(img)
	require.NoError(t, err)

	assert.Equal(t, image.Pt(800, 400), out.Bounds().Size())
	assert.Greater(t, imageproc.Mean(out), 127.0)
}

func TestPreprocessorsRejectNilImage(t *testing.T) {
	for _, p := range []Preprocessor{NewAggressivePreprocessor(DefaultPolicy()), NewGentlePreprocessor(DefaultPolicy())} {
		_, err := p.Apply(nil)
		assert.True(t, errors.HasCode(err, errors.ErrorPreprocessingFailed), p.Name())
	}
}

func TestNeedsEnhancedPassWindow(t *testing.T) {
	p := DefaultPolicy()
	want := map[int]bool{0: true, 1: false, 2: true, 3: true, 4: false, 10: false}
	for n, expected := range want {
		assert.Equal(t, expected, p.needsEnhancedPass(n), "n=%d", n)
	}
}
