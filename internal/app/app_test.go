package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/config"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/settings"
)

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	return &config.Config{
		OCREngine:         config.EngineRemote,
		OCRServerURL:      serverURL,
		QueueBackend:      config.QueueRedis,
		QueueName:         "jpocr:jobs",
		RedisURL:          "redis://localhost:6379",
		WorkerConcurrency: 1,
		ProcessingTimeout: 1000,
		TempDir:           t.TempDir(),
		TranslateURL:      serverURL + "/translate",
		TranslateTimeout:  1000,
		MaxHistoryItems:   5,
		SettingsPath:      filepath.Join(t.TempDir(), settings.FileName),
	}
}

func TestNewWiresRemoteEngine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	prefs := settings.NewManager(cfg.SettingsPath)
	require.NoError(t, prefs.Update(func(s *settings.Settings) { s.ConfidenceThreshold = 0.5 }, true))

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.Pipeline.Ready())
	assert.Equal(t, "remote", a.Engine.Name())
	assert.Equal(t, 0.5, a.Pipeline.Policy().MinConfidence)
	assert.NotNil(t, a.Service)
}

func TestNewKeepsUnreadyEngine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a, err := New(context.Background(), testConfig(t, srv.URL))
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.Pipeline.Ready())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result := a.Pipeline.Process(ctx, "missing.png")
	assert.False(t, result.Success)
	assert.Equal(t, "OCR engine not initialized", result.ErrorMessage)
}

func TestNewEngineRejectsUnknown(t *testing.T) {
	cfg := testConfig(t, "http://unused")
	cfg.OCREngine = "paddle"

	engine, err := NewEngine(context.Background(), cfg, false)
	assert.Error(t, err)
	assert.Nil(t, engine)
}

func TestPolicyFor(t *testing.T) {
	s := settings.Defaults()
	assert.Equal(t, 0.2, PolicyFor(s).MinConfidence)

	s.ConfidenceThreshold = 0.7
	assert.Equal(t, 0.7, PolicyFor(s).MinConfidence)

	s.ConfidenceThreshold = 3
	assert.Equal(t, 0.2, PolicyFor(s).MinConfidence)
}
