/**
 * Configuration for the Japanese OCR Worker
 *
 * Loads configuration from environment variables (optionally seeded from .env)
 */

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Engine backends
const (
	EngineTesseract = "tesseract"
	EngineRemote    = "remote"
)

// Queue backends
const (
	QueueRedis = "redis"
	QueueAsynq = "asynq"
)

// Config holds worker configuration
type Config struct {
	// OCR engine configuration
	OCREngine          string
	TesseractLanguages []string
	OCRServerURL       string
	OCRUseGPU          bool

	// Redis / queue configuration
	RedisURL     string
	QueueBackend string
	QueueName    string

	// PostgreSQL configuration (optional, enables persistent history)
	DatabaseURL string

	// Worker configuration
	WorkerConcurrency int
	ProcessingTimeout int // milliseconds

	// Temporary directory for buffered job images
	TempDir string

	// Translation service
	TranslateURL     string
	TranslateTimeout int // milliseconds

	// Logging
	LogLevel string

	// History and settings
	MaxHistoryItems int
	SettingsPath    string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		OCREngine:          strings.ToLower(getEnvOrDefault("OCR_ENGINE", EngineTesseract)),
		TesseractLanguages: getEnvAsListOrDefault("TESSERACT_LANGUAGES", []string{"jpn", "eng"}),
		OCRServerURL:       getEnvOrDefault("OCR_SERVER_URL", "http://localhost:8866"),
		OCRUseGPU:          getEnvAsBoolOrDefault("OCR_USE_GPU", false),
		RedisURL:           getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueBackend:       strings.ToLower(getEnvOrDefault("QUEUE_BACKEND", QueueRedis)),
		QueueName:          getEnvOrDefault("QUEUE_NAME", "jpocr:jobs"),
		DatabaseURL:        getEnvOrDefault("DATABASE_URL", ""),
		WorkerConcurrency:  getEnvAsIntOrDefault("WORKER_CONCURRENCY", 2),
		ProcessingTimeout:  getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 120000), // 2 minutes
		TempDir:            getEnvOrDefault("TEMP_DIR", filepath.Join(os.TempDir(), "jpocr")),
		TranslateURL:       getEnvOrDefault("TRANSLATE_URL", "https://translate.googleapis.com/translate_a/single"),
		TranslateTimeout:   getEnvAsIntOrDefault("TRANSLATE_TIMEOUT", 15000),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		MaxHistoryItems:    getEnvAsIntOrDefault("MAX_HISTORY_ITEMS", 100),
		SettingsPath:       getEnvOrDefault("SETTINGS_PATH", ""),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	switch c.OCREngine {
	case EngineTesseract:
		if len(c.TesseractLanguages) == 0 {
			return fmt.Errorf("TESSERACT_LANGUAGES is required for the tesseract engine")
		}
	case EngineRemote:
		if c.OCRServerURL == "" {
			return fmt.Errorf("OCR_SERVER_URL is required for the remote engine")
		}
	default:
		return fmt.Errorf("OCR_ENGINE must be %q or %q, got %q", EngineTesseract, EngineRemote, c.OCREngine)
	}

	if c.QueueBackend != QueueRedis && c.QueueBackend != QueueAsynq {
		return fmt.Errorf("QUEUE_BACKEND must be %q or %q, got %q", QueueRedis, QueueAsynq, c.QueueBackend)
	}

	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.QueueName == "" {
		return fmt.Errorf("QUEUE_NAME is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.ProcessingTimeout <= 0 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be positive, got %d", c.ProcessingTimeout)
	}

	if c.TranslateTimeout <= 0 {
		return fmt.Errorf("TRANSLATE_TIMEOUT must be positive, got %d", c.TranslateTimeout)
	}

	if c.MaxHistoryItems < 1 {
		return fmt.Errorf("MAX_HISTORY_ITEMS must be at least 1, got %d", c.MaxHistoryItems)
	}

	return nil
}

// ProcessingTimeoutDuration returns the per-job timeout
func (c *Config) ProcessingTimeoutDuration() time.Duration {
	return time.Duration(c.ProcessingTimeout) * time.Millisecond
}

// TranslateTimeoutDuration returns the translation request timeout
func (c *Config) TranslateTimeoutDuration() time.Duration {
	return time.Duration(c.TranslateTimeout) * time.Millisecond
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsListOrDefault splits a comma separated environment variable
func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
