// Package settings persists user preferences as a JSON file.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/logging"
)

// FileName is the settings file created next to the executable
const FileName = "jp_interpreter_settings.json"

// Settings are the user preferences
type Settings struct {
	// Appearance
	Theme           string `json:"theme"`
	WindowWidth     int    `json:"window_width"`
	WindowHeight    int    `json:"window_height"`
	WindowMaximized bool   `json:"window_maximized"`

	// OCR
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	IncludeNonJapanese  bool    `json:"include_non_japanese"`
	UseGPU              bool    `json:"use_gpu"`

	// Interface
	AutoCopy           bool `json:"auto_copy"`
	SaveHistory        bool `json:"save_history"`
	ShowConfidence     bool `json:"show_confidence"`
	ShowProcessingTime bool `json:"show_processing_time"`

	// Files
	LastBrowseDirectory string `json:"last_browse_directory"`
	DefaultSaveFormat   string `json:"default_save_format"`

	// Advanced
	MaxHistoryItems  int  `json:"max_history_items"`
	AutoClearResults bool `json:"auto_clear_results"`
	ShowTooltips     bool `json:"show_tooltips"`
}

// Defaults returns the factory settings
func Defaults() Settings {
	return Settings{
		Theme:               "cosmo",
		WindowWidth:         900,
		WindowHeight:        600,
		ConfidenceThreshold: 0.2,
		SaveHistory:         true,
		ShowProcessingTime:  true,
		DefaultSaveFormat:   "txt",
		MaxHistoryItems:     100,
		ShowTooltips:        true,
	}
}

// FileInfo describes the settings file on disk
type FileInfo struct {
	Path         string     `json:"file_path"`
	Exists       bool       `json:"exists"`
	SizeBytes    int64      `json:"size_bytes"`
	LastModified *time.Time `json:"last_modified"`
}

// Manager loads and saves settings at a fixed path
type Manager struct {
	mu      sync.RWMutex
	path    string
	current Settings
	logger  *logging.Logger
}

// DefaultPath places the settings file next to the running executable
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return FileName
	}
	return filepath.Join(filepath.Dir(exe), FileName)
}

// NewManager creates a manager for path and loads it. An empty path uses
// DefaultPath.
func NewManager(path string) *Manager {
	if path == "" {
		path = DefaultPath()
	}
	m := &Manager{
		path:    path,
		current: Defaults(),
		logger:  logging.NewLogger("settings"),
	}
	m.Load()
	return m
}

// Path returns the settings file path
func (m *Manager) Path() string {
	return m.path
}

// Load reads the file over the defaults. It returns false and keeps the
// defaults when the file is missing or malformed.
func (m *Manager) Load() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = Defaults()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("Failed to read settings, using defaults", "path", m.path, "error", err)
		}
		return false
	}

	loaded := Defaults()
	if err := json.Unmarshal(data, &loaded); err != nil {
		m.logger.Warn("Failed to parse settings, using defaults", "path", m.path, "error", err)
		return false
	}
	m.current = loaded
	return true
}

// Save writes the current settings as indented JSON
func (m *Manager) Save() error {
	m.mu.RLock()
	s := m.current
	m.mu.RUnlock()
	return writeFile(m.path, s)
}

// Get returns a copy of the current settings
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Update applies fn to the current settings and optionally saves
func (m *Manager) Update(fn func(*Settings), save bool) error {
	m.mu.Lock()
	fn(&m.current)
	m.mu.Unlock()

	if save {
		return m.Save()
	}
	return nil
}

// Reset restores the defaults and optionally saves
func (m *Manager) Reset(save bool) error {
	return m.Update(func(s *Settings) { *s = Defaults() }, save)
}

// Export writes the current settings to another file
func (m *Manager) Export(path string) error {
	return writeFile(path, m.Get())
}

// Import merges the known keys of another settings file into the current
// settings. Unknown keys are ignored.
func (m *Manager) Import(path string, save bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	m.mu.Lock()
	merged := m.current
	if err := json.Unmarshal(data, &merged); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to parse settings file: %w", err)
	}
	m.current = merged
	m.mu.Unlock()

	if save {
		return m.Save()
	}
	return nil
}

// FileInfo reports whether the settings file exists, its size and mtime
func (m *Manager) FileInfo() FileInfo {
	info := FileInfo{Path: m.path}
	st, err := os.Stat(m.path)
	if err != nil {
		return info
	}
	mod := st.ModTime()
	info.Exists = true
	info.SizeBytes = st.Size()
	info.LastModified = &mod
	return info
}

func writeFile(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
