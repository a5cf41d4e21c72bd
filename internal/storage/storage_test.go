package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/history"
)

func TestSanitizeConfidence(t *testing.T) {
	assert.Equal(t, 0.9632, sanitizeConfidence(0.9632000000000001))
	assert.Equal(t, 0.0, sanitizeConfidence(-0.3))
	assert.Equal(t, 1.0, sanitizeConfidence(1.7))
}

func TestSanitizeJSONForPostgres(t *testing.T) {
	in := []byte(`{"text":"a\u0000b\u0007c"}`)
	assert.Equal(t, `{"text":"ab c"}`, string(sanitizeJSONForPostgres(in)))
}

func TestStorageManagerWithoutDatabase(t *testing.T) {
	ctx := context.Background()
	sm, err := NewStorageManager(ctx, "", 2)
	require.NoError(t, err)
	defer sm.Close()

	for _, name := range []string{"a.png", "b.png", "c.png"} {
		require.NoError(t, sm.Add(ctx, history.NewEntry(name)))
	}

	entries, err := sm.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c.png", entries[0].Filename)

	stats, err := sm.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats["memory"].(map[string]interface{})["entries"])
	assert.NotContains(t, stats, "postgres")

	require.NoError(t, sm.Clear(ctx))
	entries, err = sm.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewPostgresHistoryRequiresURL(t *testing.T) {
	_, err := NewPostgresHistory(context.Background(), "", 10)
	assert.Error(t, err)
}
