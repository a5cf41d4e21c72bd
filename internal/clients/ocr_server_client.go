/**
 * OCR Server Client - Remote detection engine
 *
 * Talks to an EasyOCR/PaddleOCR style HTTP server. The server receives a
 * base64 image plus detector thresholds and answers with line boxes.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/logging"
)

// OCRServerCodeOK is the success code returned by the OCR server
const OCRServerCodeOK = 100

// OCRServerClient handles communication with the OCR server
type OCRServerClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// OCRServerRequest is the recognition request body
type OCRServerRequest struct {
	Image         string   `json:"image"` // Base64 encoded image
	Languages     []string `json:"languages,omitempty"`
	TextThreshold float64  `json:"text_threshold"`
	LowText       float64  `json:"low_text,omitempty"` // zero leaves the server default
	GPU           bool     `json:"gpu"`
}

// OCRServerItem is one recognized text line
type OCRServerItem struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Box        [][]float64 `json:"box"` // [[x1,y1], [x2,y2], [x3,y3], [x4,y4]]
}

// OCRServerResponse is the recognition response body
type OCRServerResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"msg"`
	Items   []OCRServerItem `json:"items"`
}

// NewOCRServerClient creates a new OCR server client
func NewOCRServerClient(baseURL string) *OCRServerClient {
	return &OCRServerClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // first GPU inference loads the model
		},
		logger: logging.NewLogger("OCRServerClient"),
	}
}

// Recognize sends an image to the OCR server
func (c *OCRServerClient) Recognize(ctx context.Context, req *OCRServerRequest) (*OCRServerResponse, error) {
	endpoint := fmt.Sprintf("%s/api/ocr", c.baseURL)

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", fmt.Sprintf("ocr-%d", time.Now().UnixNano()))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to OCR server failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCR server returned error status %d: %s", resp.StatusCode, string(body))
	}

	var ocrResp OCRServerResponse
	if err := json.Unmarshal(body, &ocrResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if ocrResp.Code != OCRServerCodeOK {
		return nil, fmt.Errorf("OCR server operation failed (code %d): %s", ocrResp.Code, ocrResp.Message)
	}

	c.logger.Debug("Recognition complete",
		"items", len(ocrResp.Items),
		"textThreshold", req.TextThreshold,
		"lowText", req.LowText)

	return &ocrResp, nil
}

// RecognizeBytes base64-encodes imageData and sends it
func (c *OCRServerClient) RecognizeBytes(ctx context.Context, imageData []byte, textThreshold, lowText float64, gpu bool) (*OCRServerResponse, error) {
	return c.Recognize(ctx, &OCRServerRequest{
		Image:         base64.StdEncoding.EncodeToString(imageData),
		Languages:     []string{"ja", "en"},
		TextThreshold: textThreshold,
		LowText:       lowText,
		GPU:           gpu,
	})
}

// HealthCheck checks if the OCR server is reachable
func (c *OCRServerClient) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/api/health", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
