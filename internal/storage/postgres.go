/**
 * PostgreSQL History Store for the Japanese OCR Worker
 *
 * Persists processed-image history so it survives worker restarts.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/history"
)

// DefaultSchema holds the history table
const DefaultSchema = "jpocr"

// PostgresHistory stores history entries in PostgreSQL
type PostgresHistory struct {
	db       *sql.DB
	table    string // schema-qualified, quoted
	schema   string
	maxItems int
}

// sanitizeConfidence rounds confidence to 4 decimal places and clamps it to [0,1]
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresHistory connects to databaseURL and ensures the history table
// exists. maxItems > 0 trims older rows after each insert.
func NewPostgresHistory(ctx context.Context, databaseURL string, maxItems int) (*PostgresHistory, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &PostgresHistory{
		db:       db,
		schema:   pq.QuoteIdentifier(DefaultSchema),
		table:    pq.QuoteIdentifier(DefaultSchema) + "." + pq.QuoteIdentifier("history"),
		maxItems: maxItems,
	}

	if err := p.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresHistory) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + p.schema,
		`CREATE TABLE IF NOT EXISTS ` + p.table + ` (
			id              UUID PRIMARY KEY,
			created_at      TIMESTAMPTZ NOT NULL,
			image_path      TEXT NOT NULL,
			filename        TEXT NOT NULL,
			text            TEXT NOT NULL DEFAULT '',
			translation     TEXT NOT NULL DEFAULT '',
			success         BOOLEAN NOT NULL,
			processing_ms   BIGINT,
			detection_count INTEGER NOT NULL DEFAULT 0,
			confidence      NUMERIC(5,4),
			error_message   TEXT,
			metadata        JSONB NOT NULL DEFAULT '{}'::jsonb
		)`,
		`CREATE INDEX IF NOT EXISTS history_created_at_idx ON ` + p.table + ` (created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure history schema: %w", err)
		}
	}
	return nil
}

// Add inserts an entry, replacing any row with the same ID
func (p *PostgresHistory) Add(ctx context.Context, entry *history.Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("entry ID is required")
	}

	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	metadataJSON = sanitizeJSONForPostgres(metadataJSON)

	var processingMs sql.NullInt64
	if entry.ProcessingTime != nil {
		processingMs = sql.NullInt64{Int64: entry.ProcessingTime.Milliseconds(), Valid: true}
	}

	query := `
		INSERT INTO ` + p.table + ` (
			id, created_at, image_path, filename, text, translation,
			success, processing_ms, detection_count, confidence,
			error_message, metadata
		) VALUES (
			$1::uuid, $2, $3, $4, $5, $6,
			$7, $8, $9, NULLIF($10::NUMERIC(5,4), 0),
			NULLIF($11, ''), COALESCE($12::jsonb, '{}'::jsonb)
		)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			translation = EXCLUDED.translation,
			success = EXCLUDED.success,
			processing_ms = EXCLUDED.processing_ms,
			detection_count = EXCLUDED.detection_count,
			confidence = EXCLUDED.confidence,
			error_message = EXCLUDED.error_message,
			metadata = EXCLUDED.metadata
	`

	_, err = p.db.ExecContext(ctx, query,
		entry.ID,                              // $1
		entry.Timestamp,                       // $2
		entry.ImagePath,                       // $3
		entry.Filename,                        // $4
		entry.Text,                            // $5
		entry.Translation,                     // $6
		entry.Success,                         // $7
		processingMs,                          // $8
		entry.DetectionCount,                  // $9
		sanitizeConfidence(entry.Confidence),  // $10
		entry.ErrorMessage,                    // $11
		string(metadataJSON),                  // $12
	)
	if err != nil {
		return fmt.Errorf("failed to store history entry (id=%s): %w", entry.ID, err)
	}

	if p.maxItems > 0 {
		return p.trim(ctx)
	}
	return nil
}

// trim deletes all but the newest maxItems rows
func (p *PostgresHistory) trim(ctx context.Context) error {
	query := `
		DELETE FROM ` + p.table + `
		WHERE id IN (
			SELECT id FROM ` + p.table + `
			ORDER BY created_at DESC
			OFFSET $1
		)
	`
	if _, err := p.db.ExecContext(ctx, query, p.maxItems); err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (p *PostgresHistory) List(ctx context.Context, limit int) ([]*history.Entry, error) {
	query := `
		SELECT
			id, created_at, image_path, filename, text, translation,
			success, processing_ms, detection_count, confidence,
			error_message, metadata
		FROM ` + p.table + `
		ORDER BY created_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*history.Entry
	for rows.Next() {
		var (
			e            history.Entry
			processingMs sql.NullInt64
			confidence   sql.NullFloat64
			errorMessage sql.NullString
			metadataJSON []byte
		)
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.ImagePath, &e.Filename, &e.Text, &e.Translation,
			&e.Success, &processingMs, &e.DetectionCount, &confidence,
			&errorMessage, &metadataJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		if processingMs.Valid {
			d := time.Duration(processingMs.Int64) * time.Millisecond
			e.ProcessingTime = &d
		}
		if confidence.Valid {
			e.Confidence = confidence.Float64
		}
		e.ErrorMessage = errorMessage.String
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}

// Clear deletes every entry
func (p *PostgresHistory) Clear(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM `+p.table); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgresHistory) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresHistory) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresHistory) GetStats() sql.DBStats {
	return p.db.Stats()
}
