package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dlqueue/dlq/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestLoadNoPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_concurrent":8,"max_concurrent_tasks":3,"chunk_size":1048576,"timeout":15,"user_agent":"custom/1.0"}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.MaxConcurrent)
	require.Equal(t, 3, cfg.MaxConcurrentTasks)
	require.EqualValues(t, 1048576, cfg.ChunkSize)
	require.Equal(t, "custom/1.0", cfg.UserAgent)
}

func TestLoadRejectsZeroValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_concurrent":0,"max_concurrent_tasks":1,"chunk_size":1024,"timeout":10}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.Config))
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
