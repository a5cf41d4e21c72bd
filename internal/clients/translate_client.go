/**
 * Translate Client - Best-effort machine translation
 *
 * Uses the public Google Translate web endpoint. The answer is a nested JSON
 * array whose first element lists [translated, source, ...] segments.
 */

package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/logging"
)

// TranslateClient handles communication with the translation endpoint
type TranslateClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewTranslateClient creates a new translation client
func NewTranslateClient(endpoint string, timeout time.Duration) *TranslateClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &TranslateClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.NewLogger("TranslateClient"),
	}
}

// Translate translates text from source to target language
func (c *TranslateClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text to translate")
	}
	if target == "" {
		return "", fmt.Errorf("target language is required")
	}

	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", source)
	params.Set("tl", target)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translation service returned error status %d: %s", resp.StatusCode, string(body))
	}

	translated, err := parseTranslation(body)
	if err != nil {
		return "", err
	}

	c.logger.Info("Translation complete",
		"source", source,
		"target", target,
		"inputLength", len([]rune(text)),
		"outputLength", len([]rune(translated)))

	return translated, nil
}

// parseTranslation joins the translated segments of a response body
func parseTranslation(body []byte) (string, error) {
	var raw []interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("empty translation response")
	}

	segments, ok := raw[0].([]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected translation response shape")
	}

	var b strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]interface{})
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("translation response contained no text")
	}
	return b.String(), nil
}
