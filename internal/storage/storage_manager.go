/**
 * Storage Manager - History backend selection
 *
 * PostgreSQL when a database is configured, the bounded in-memory log
 * otherwise. The in-memory log also backs up Postgres writes so recent
 * history stays readable if the database goes away.
 */

package storage

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/errors"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/history"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/logging"
)

// StorageManager coordinates the history backends
type StorageManager struct {
	postgres *PostgresHistory // nil when no database is configured
	memory   *history.MemoryStore
	logger   *logging.Logger
}

// NewStorageManager creates the history backends. An empty databaseURL
// runs on the in-memory log alone.
func NewStorageManager(ctx context.Context, databaseURL string, maxItems int) (*StorageManager, error) {
	sm := &StorageManager{
		memory: history.NewMemoryStore(maxItems),
		logger: logging.NewLogger("storage"),
	}

	if databaseURL == "" {
		sm.logger.Info("No database configured, history kept in memory", "maxItems", maxItems)
		return sm, nil
	}

	pg, err := NewPostgresHistory(ctx, databaseURL, maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	sm.postgres = pg
	sm.logger.Info("PostgreSQL history store ready", "maxItems", maxItems)
	return sm, nil
}

// Add records an entry in memory and, when configured, in PostgreSQL
func (sm *StorageManager) Add(ctx context.Context, entry *history.Entry) error {
	if err := sm.memory.Add(ctx, entry); err != nil {
		return err
	}
	if sm.postgres == nil {
		return nil
	}
	if err := sm.postgres.Add(ctx, entry); err != nil {
		pe := errors.NewStorageFailedError(jobIDOf(entry), err)
		sm.logger.Error("Failed to persist history entry", "id", entry.ID, "error", err)
		return pe
	}
	return nil
}

// List reads from PostgreSQL when configured, falling back to memory
func (sm *StorageManager) List(ctx context.Context, limit int) ([]*history.Entry, error) {
	if sm.postgres != nil {
		entries, err := sm.postgres.List(ctx, limit)
		if err == nil {
			return entries, nil
		}
		sm.logger.Warn("PostgreSQL history unavailable, listing memory", "error", err)
	}
	return sm.memory.List(ctx, limit)
}

// Clear empties every backend
func (sm *StorageManager) Clear(ctx context.Context) error {
	if err := sm.memory.Clear(ctx); err != nil {
		return err
	}
	if sm.postgres != nil {
		if err := sm.postgres.Clear(ctx); err != nil {
			return errors.NewStorageFailedError("", err)
		}
	}
	return nil
}

// GetStats returns backend statistics
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{
		"memory": map[string]interface{}{
			"entries": sm.memory.Len(),
		},
	}

	if sm.postgres != nil {
		pgStats := sm.postgres.GetStats()
		stats["postgres"] = map[string]interface{}{
			"open_connections": pgStats.OpenConnections,
			"in_use":           pgStats.InUse,
			"idle":             pgStats.Idle,
			"wait_count":       pgStats.WaitCount,
		}
		if err := sm.postgres.Ping(ctx); err != nil {
			return stats, fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return stats, nil
}

// Close closes all storage connections
func (sm *StorageManager) Close() error {
	if sm.postgres != nil {
		if err := sm.postgres.Close(); err != nil {
			return fmt.Errorf("postgres close error: %w", err)
		}
	}
	return nil
}

func jobIDOf(entry *history.Entry) string {
	if id, ok := entry.Metadata["jobId"].(string); ok {
		return id
	}
	return ""
}

// sanitizeJSONForPostgres strips escapes PostgreSQL JSONB rejects:
// \u0000 is removed, other control characters become spaces
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := nullEscape.ReplaceAll(jsonBytes, []byte{})
	return controlEscape.ReplaceAll(result, []byte(" "))
}

var (
	nullEscape    = regexp.MustCompile(`\\u0000`)
	controlEscape = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)
