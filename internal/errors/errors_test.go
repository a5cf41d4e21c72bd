package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessingErrorMessageAndUnwrap(t *testing.T) {
	cause := stderrors.New("engine crashed")
	err := NewOCRFailedError("tesseract", "enhanced", cause)

	assert.Equal(t, "OCR_FAILED: OCR failed on pass: enhanced (caused by: engine crashed)", err.Error())
	assert.True(t, stderrors.Is(err, cause))
}

func TestCodeOfWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("extract: %w", NewPreprocessingError("gentle", nil))

	assert.Equal(t, ErrorPreprocessingFailed, CodeOf(wrapped))
	assert.True(t, HasCode(wrapped, ErrorPreprocessingFailed))
	assert.False(t, HasCode(wrapped, ErrorOCRFailed))
	assert.False(t, HasCode(nil, ErrorOCRFailed))
	assert.Equal(t, ErrorCode(""), CodeOf(stderrors.New("plain")))
}

func TestInvalidImageErrorMessages(t *testing.T) {
	missing := NewInvalidImageError("/tmp/none.png", nil)
	assert.Equal(t, "Image file not found: /tmp/none.png", missing.Message)

	undecodable := NewInvalidImageError("/tmp/bad.png", stderrors.New("unknown format"))
	assert.Equal(t, "Cannot load image: /tmp/bad.png", undecodable.Message)
}

func TestToMap(t *testing.T) {
	err := NewProcessingTimeoutError("job-1", 2*time.Second, stderrors.New("deadline"))
	m := err.ToMap()

	require.Equal(t, "PROCESSING_TIMEOUT", m["error_code"])
	assert.Equal(t, "job-1", m["job_id"])
	assert.Equal(t, "2s", m["timeout_duration"])
	assert.Equal(t, "deadline", m["cause"])
}
