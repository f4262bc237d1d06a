package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 40, cfg.DarkThreshold)
	assert.False(t, cfg.DiscardDarkFrames)
	assert.Equal(t, 30*time.Second, cfg.FlushInterval)
	assert.Equal(t, 3, cfg.ProcessingWorkers)
	assert.Equal(t, 1, cfg.ProcessingInterval)
	assert.Equal(t, filepath.Join("logs", "events.log"), cfg.EventLogPath())
	assert.NotNil(t, cfg.CameraNames)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DARK_THRESHOLD", "55")
	t.Setenv("DISCARD_DARK_FRAMES", "true")
	t.Setenv("FLUSH_INTERVAL", "5s")
	t.Setenv("CAMERA_NAMES", "10.0.0.5=front,10.0.0.6=rear")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 55, cfg.DarkThreshold)
	assert.True(t, cfg.DiscardDarkFrames)
	assert.Equal(t, 5*time.Second, cfg.FlushInterval)
	assert.Equal(t, "front", cfg.CameraName("10.0.0.5"))
	assert.Equal(t, "rear", cfg.CameraName("10.0.0.6"))
	assert.Equal(t, "unknown_10.0.0.7", cfg.CameraName("10.0.0.7"))
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	os.Unsetenv("BUFFER_LIMIT")
	t.Cleanup(func() { os.Unsetenv("BUFFER_LIMIT") })

	path := filepath.Join(dir, "dashcam.env")
	require.NoError(t, os.WriteFile(path, []byte("BUFFER_LIMIT=4\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.BufferLimit)
}

func TestLoad_MissingExplicitEnvFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PROCESSING_WORKERS", "0"},
		{"PROCESSING_INTERVAL", "0"},
		{"BUFFER_LIMIT", "-1"},
		{"FLUSH_INTERVAL", "0s"},
		{"EVENT_LOG", "../escape.log"},
		{"DARK_THRESHOLD", "dim"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
