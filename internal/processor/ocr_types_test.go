package processor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessingResultJSONUsesSeconds(t *testing.T) {
	elapsed := 1500 * time.Millisecond
	data, err := json.Marshal(&ProcessingResult{
		Success:        true,
		Results:        []OCRResult{{Text: "日本", Confidence: 0.9, IsJapanese: true}},
		CombinedText:   "日本",
		ProcessingTime: &elapsed,
	})
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 1.5, raw["processingTime"])
	assert.Equal(t, "日本", raw["combinedText"])
	assert.Equal(t, true, raw["success"])

	var back ProcessingResult
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.ProcessingTime)
	assert.Equal(t, elapsed, *back.ProcessingTime)
	assert.Equal(t, "日本", back.CombinedText)
}

func TestProcessingResultJSONOmitsMissingTime(t *testing.T) {
	data, err := json.Marshal(ProcessingResult{ErrorMessage: "OCR engine not initialized"})
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "processingTime")
	assert.Equal(t, "OCR engine not initialized", raw["errorMessage"])
}
