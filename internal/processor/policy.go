package processor

// Policy holds the tuned thresholds of the extraction pipeline. The defaults
// were tuned empirically against photographed Japanese text; change them
// only with a corpus to compare against.
type Policy struct {
	// ProbeTextThreshold is used by the quality and single-glyph probes
	ProbeTextThreshold float64
	// LowConfidenceBound and HighConfidenceBound split average probe
	// confidence into low [0,low), medium [low,high) and high [high,1]
	LowConfidenceBound  float64
	HighConfidenceBound float64

	// ReadTextThreshold is used by the standard read
	ReadTextThreshold float64
	// EnhancedTextThreshold and EnhancedLowText drive the recall pass
	EnhancedTextThreshold float64
	EnhancedLowText       float64
	// FewDetectionsMin/Max bound the count window that triggers the
	// enhanced pass; zero detections always trigger it
	FewDetectionsMin int
	FewDetectionsMax int

	// MinConfidence is the script filter threshold; RetryMinConfidence is
	// used when nothing survives it
	MinConfidence      float64
	RetryMinConfidence float64

	// Aggressive preprocessing
	ContrastAlpha    float64
	ContrastBeta     float64
	BlurKernel       int
	InvertBlackRatio float64

	// Gentle preprocessing
	InvertMeanBelow float64
	CLAHETiles      int
	CLAHEClipLimit  float64
	UpscaleTarget   int
}

// DefaultPolicy returns the tuned defaults
func DefaultPolicy() Policy {
	return Policy{
		ProbeTextThreshold:  0.2,
		LowConfidenceBound:  0.2,
		HighConfidenceBound: 0.8,

		ReadTextThreshold:     0.2,
		EnhancedTextThreshold: 0.2,
		EnhancedLowText:       0.6,
		FewDetectionsMin:      2,
		FewDetectionsMax:      3,

		MinConfidence:      0.2,
		RetryMinConfidence: 0.0,

		ContrastAlpha:    1.5,
		ContrastBeta:     1,
		BlurKernel:       3,
		InvertBlackRatio: 0.75,

		InvertMeanBelow: 127,
		CLAHETiles:      8,
		CLAHEClipLimit:  2.0,
		UpscaleTarget:   800,
	}
}

// needsEnhancedPass reports whether n standard detections look like an
// incomplete segmentation. A single detection is trusted.
func (p Policy) needsEnhancedPass(n int) bool {
	return n < 1 || (n >= p.FewDetectionsMin && n <= p.FewDetectionsMax)
}
