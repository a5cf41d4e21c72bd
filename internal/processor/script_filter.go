package processor

import (
	"strings"
	"unicode"
)

// japaneseRanges covers hiragana, katakana, the CJK ideographs used in
// Japanese, half-width katakana, CJK punctuation and full-width forms
var japaneseRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3000, Hi: 0x303F, Stride: 1}, // CJK symbols and punctuation
		{Lo: 0x3040, Hi: 0x309F, Stride: 1}, // hiragana
		{Lo: 0x30A0, Hi: 0x30FF, Stride: 1}, // katakana
		{Lo: 0x4E00, Hi: 0x9FAF, Stride: 1}, // CJK unified ideographs
		{Lo: 0xFF00, Hi: 0xFFEF, Stride: 1}, // full-width forms, half-width katakana
	},
}

func isJapaneseRune(r rune) bool {
	return unicode.Is(japaneseRanges, r)
}

// ContainsJapanese reports whether text has at least one Japanese code point
func ContainsJapanese(text string) bool {
	return strings.IndexFunc(text, isJapaneseRune) >= 0
}

// ScriptFilter drops low-confidence detections and tags the rest by script
type ScriptFilter struct{}

// Filter keeps detections with confidence >= minConfidence, in input order.
// Japanese classification looks at the text as read; the emitted text is
// whitespace-trimmed.
func (ScriptFilter) Filter(detections []RawDetection, minConfidence float64) []OCRResult {
	results := make([]OCRResult, 0, len(detections))
	for _, d := range detections {
		if d.Confidence < minConfidence {
			continue
		}
		results = append(results, OCRResult{
			Text:       strings.TrimSpace(d.Text),
			Confidence: d.Confidence,
			BBox:       d.Box,
			IsJapanese: ContainsJapanese(d.Text),
		})
	}
	return results
}

// JapaneseOnly returns the Japanese-flagged results, in order
func JapaneseOnly(results []OCRResult) []OCRResult {
	out := make([]OCRResult, 0, len(results))
	for _, r := range results {
		if r.IsJapanese {
			out = append(out, r)
		}
	}
	return out
}

// CombinedText concatenates result texts without separator
func CombinedText(results []OCRResult) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(r.Text)
	}
	return b.String()
}
