// Package history records processed images.
package history

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxItems bounds the in-memory log when no limit is configured
const DefaultMaxItems = 100

// Entry is one processed image
type Entry struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	ImagePath      string         `json:"imagePath"`
	Filename       string         `json:"filename"`
	Text           string         `json:"text"`
	Translation    string         `json:"translation,omitempty"`
	Success        bool           `json:"success"`
	ProcessingTime *time.Duration `json:"processingTime,omitempty"`
	DetectionCount int            `json:"detectionCount"`
	Confidence     float64        `json:"confidence,omitempty"` // mean over results
	ErrorMessage   string         `json:"errorMessage,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewEntry fills ID, timestamp and filename for an image path
func NewEntry(imagePath string) *Entry {
	return &Entry{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		ImagePath: imagePath,
		Filename:  filepath.Base(imagePath),
	}
}

// Store persists history entries. List returns newest first.
type Store interface {
	Add(ctx context.Context, entry *Entry) error
	List(ctx context.Context, limit int) ([]*Entry, error)
	Clear(ctx context.Context) error
}

// MemoryStore is a bounded in-memory log; the oldest entries fall off
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []*Entry // oldest first
	maxItems int
}

// NewMemoryStore creates a log holding at most maxItems entries
func NewMemoryStore(maxItems int) *MemoryStore {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &MemoryStore{maxItems: maxItems}
}

// Add appends an entry, evicting the oldest beyond the bound
func (m *MemoryStore) Add(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	m.entries = append(m.entries, entry)
	if over := len(m.entries) - m.maxItems; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
	}
	return nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (m *MemoryStore) List(_ context.Context, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Entry, 0, n)
	for i := len(m.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

// Get finds an entry by ID
func (m *MemoryStore) Get(id string) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// Clear drops every entry
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return nil
}

// Len returns the number of entries held
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
