// Package app assembles the OCR service from configuration: engine,
// translator, settings, history storage and the job service.
package app

import (
	"context"
	"fmt"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/clients"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/config"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/logging"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/processor"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/settings"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/storage"
)

// App holds the wired components
type App struct {
	Config   *config.Config
	Settings *settings.Manager
	Engine   processor.Engine
	Pipeline *processor.Pipeline
	Service  *processor.Service
	Storage  *storage.StorageManager
}

// New wires the service. An engine that fails to initialize is kept; the
// pipeline then reports it as not initialized on every request.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewLogger("app")

	prefs := settings.NewManager(cfg.SettingsPath)
	current := prefs.Get()
	logger.Info("Settings loaded", "path", prefs.Path(), "confidenceThreshold", current.ConfidenceThreshold)

	engine, err := NewEngine(ctx, cfg, current.UseGPU)
	if err != nil {
		logger.Warn("OCR engine not ready", "engine", cfg.OCREngine, "error", err)
	}

	policy := PolicyFor(current)

	pipeline, err := processor.NewPipeline(&processor.PipelineConfig{
		Engine:     engine,
		Translator: clients.NewTranslateClient(cfg.TranslateURL, cfg.TranslateTimeoutDuration()),
		Policy:     &policy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	store, err := storage.NewStorageManager(ctx, cfg.DatabaseURL, cfg.MaxHistoryItems)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history storage: %w", err)
	}

	service, err := processor.NewService(&processor.ServiceConfig{
		Pipeline:    pipeline,
		History:     store,
		SaveHistory: current.SaveHistory,
		TempDir:     cfg.TempDir,
		Timeout:     cfg.ProcessingTimeoutDuration(),
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return &App{
		Config:   cfg,
		Settings: prefs,
		Engine:   engine,
		Pipeline: pipeline,
		Service:  service,
		Storage:  store,
	}, nil
}

// NewEngine builds the configured OCR engine. The engine is returned
// alongside a non-nil error when it exists but failed its readiness check.
func NewEngine(ctx context.Context, cfg *config.Config, useGPU bool) (processor.Engine, error) {
	switch cfg.OCREngine {
	case config.EngineTesseract:
		return processor.NewTesseractOCR(&processor.TesseractConfig{Languages: cfg.TesseractLanguages})
	case config.EngineRemote:
		remote, err := processor.NewRemoteOCR(ctx, &processor.RemoteOCRConfig{
			ServerURL: cfg.OCRServerURL,
			UseGPU:    cfg.OCRUseGPU || useGPU,
		})
		if remote == nil {
			return nil, err
		}
		return remote, err
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.OCREngine)
	}
}

// PolicyFor applies user settings to the default pipeline policy
func PolicyFor(s settings.Settings) processor.Policy {
	policy := processor.DefaultPolicy()
	if s.ConfidenceThreshold >= 0 && s.ConfidenceThreshold <= 1 {
		policy.MinConfidence = s.ConfidenceThreshold
	}
	return policy
}

// Close releases storage connections
func (a *App) Close() error {
	if a.Storage == nil {
		return nil
	}
	return a.Storage.Close()
}
