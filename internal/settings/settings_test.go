package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerWithoutFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	m := NewManager(path)

	assert.Equal(t, Defaults(), m.Get())
	assert.False(t, m.FileInfo().Exists)
	assert.Nil(t, m.FileInfo().LastModified)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"theme":"darkly","use_gpu":true,"unknown":1}`), 0o644))

	m := NewManager(path)
	s := m.Get()
	assert.Equal(t, "darkly", s.Theme)
	assert.True(t, s.UseGPU)
	assert.Equal(t, 0.2, s.ConfidenceThreshold)
	assert.Equal(t, 100, s.MaxHistoryItems)
}

func TestLoadMalformedFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"theme":`), 0o644))

	m := NewManager(path)
	assert.False(t, m.Load())
	assert.Equal(t, Defaults(), m.Get())
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	m := NewManager(path)

	require.NoError(t, m.Update(func(s *Settings) {
		s.LastBrowseDirectory = "/home/user/漫画"
		s.MaxHistoryItems = 25
	}, true))

	info := m.FileInfo()
	assert.True(t, info.Exists)
	assert.Positive(t, info.SizeBytes)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "漫画")

	reloaded := NewManager(path)
	assert.Equal(t, 25, reloaded.Get().MaxHistoryItems)
	assert.Equal(t, "/home/user/漫画", reloaded.Get().LastBrowseDirectory)

	require.NoError(t, reloaded.Reset(true))
	assert.Equal(t, Defaults(), NewManager(path).Get())
}

func TestImportAndExport(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, FileName))

	src := filepath.Join(dir, "import.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"auto_copy":true,"window_width":1280,"bogus":"x"}`), 0o644))
	require.NoError(t, m.Import(src, false))

	s := m.Get()
	assert.True(t, s.AutoCopy)
	assert.Equal(t, 1280, s.WindowWidth)
	assert.Equal(t, "cosmo", s.Theme)

	out := filepath.Join(dir, "export.json")
	require.NoError(t, m.Export(out))
	exported := NewManager(out)
	assert.Equal(t, s, exported.Get())

	assert.Error(t, m.Import(filepath.Join(dir, "missing.json"), false))
}
