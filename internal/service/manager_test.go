package service

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashcam/internal/config"
	"dashcam/internal/logger"
	"dashcam/internal/metrics"
	"dashcam/internal/service/darkness"
	"dashcam/internal/service/storage"
	"dashcam/internal/service/websocket"
)

// grayDecoder ignores the payload and returns a uniform frame whose gray
// level is the first byte.
func grayDecoder(data []byte) (darkness.PixelBuffer, int, int, error) {
	if len(data) == 0 {
		return nil, 0, 0, darkness.ErrEmptyFrame
	}
	v := uint32(data[0])
	p := 0xFF000000 | v<<16 | v<<8 | v
	return darkness.PixelBuffer{p, p, p, p}, 2, 2, nil
}

func newTestManager(t *testing.T, mutate func(*config.Config)) *Manager {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		ImageDirectory:     filepath.Join(dir, "images"),
		LogDirectory:       filepath.Join(dir, "logs"),
		EventLogName:       "events.log",
		DarkThreshold:      darkness.DefaultThreshold,
		BufferLimit:        10,
		ProcessingWorkers:  2,
		ProcessingInterval: 1,
	}
	if mutate != nil {
		mutate(cfg)
	}

	log := logger.NewNop()
	buffer := storage.NewBufferService(cfg, log, nil)
	hub := websocket.NewHubService(log)
	m := NewManager(buffer, hub, cfg, log, WithDecoder(grayDecoder))
	t.Cleanup(m.Stop)
	return m
}

func TestManager_ProcessFrame_BrightIsBuffered(t *testing.T) {
	m := newTestManager(t, nil)

	out, err := m.ProcessFrame([]byte{200}, "front")
	require.NoError(t, err)
	assert.False(t, out.Verdict.Dark)
	assert.Equal(t, 200, out.Verdict.Average)
	assert.True(t, out.Buffered)
	assert.NotEmpty(t, out.UID)
	assert.Equal(t, 1, m.GetBufferService().Pending())
}

func TestManager_ProcessFrame_DarkKeptByDefault(t *testing.T) {
	m := newTestManager(t, nil)

	out, err := m.ProcessFrame([]byte{10}, "rear")
	require.NoError(t, err)
	assert.True(t, out.Verdict.Dark)
	assert.True(t, out.Buffered)
	assert.Equal(t, 1, m.GetBufferService().Pending())
}

func TestManager_ProcessFrame_DarkDiscarded(t *testing.T) {
	m := newTestManager(t, func(c *config.Config) { c.DiscardDarkFrames = true })

	out, err := m.ProcessFrame([]byte{10}, "rear")
	require.NoError(t, err)
	assert.True(t, out.Verdict.Dark)
	assert.False(t, out.Buffered)
	assert.Equal(t, "dark", out.Reason)
	assert.Zero(t, m.GetBufferService().Pending())

	out, err = m.ProcessFrame([]byte{40}, "rear")
	require.NoError(t, err)
	assert.False(t, out.Verdict.Dark, "threshold value is not dark")
	assert.True(t, out.Buffered)
}

func TestManager_ProcessFrame_DecodeError(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.ProcessFrame(nil, "front")
	assert.True(t, errors.Is(err, darkness.ErrEmptyFrame))
	assert.Zero(t, m.GetBufferService().Pending())
}

func TestManager_ProcessFrame_BufferFull(t *testing.T) {
	m := newTestManager(t, func(c *config.Config) { c.BufferLimit = 1 })

	_, err := m.ProcessFrame([]byte{100}, "front")
	require.NoError(t, err)
	out, err := m.ProcessFrame([]byte{100}, "front")
	require.NoError(t, err)
	assert.False(t, out.Buffered)
	assert.Equal(t, "buffer_full", out.Reason)
}

func TestManager_HandleCameraImage_SamplesEveryNth(t *testing.T) {
	m := newTestManager(t, func(c *config.Config) { c.ProcessingInterval = 3 })

	for i := 0; i < 7; i++ {
		m.HandleCameraImage([]byte{150}, "front")
	}
	m.Stop()

	assert.Equal(t, 2, m.GetBufferService().Pending())
}

func TestManager_StopIsIdempotent(t *testing.T) {
	m := newTestManager(t, nil)

	m.HandleCameraImage([]byte{150}, "front")
	m.Stop()
	m.Stop()

	done := make(chan struct{})
	go func() {
		m.HandleCameraImage([]byte{150}, "front")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("HandleCameraImage blocked after Stop")
	}
	assert.Equal(t, 1, m.GetBufferService().Pending())
}

func TestManager_UnknownCamerasShareOneSeries(t *testing.T) {
	m := newTestManager(t, func(cfg *config.Config) {
		cfg.CameraNames = map[string]string{"10.0.0.5": "front"}
	})

	front := metrics.FramesClassifiedTotal.WithLabelValues("front", metrics.VerdictBright)
	other := metrics.FramesClassifiedTotal.WithLabelValues(metrics.OtherCamera, metrics.VerdictBright)
	frontBefore, otherBefore := testutil.ToFloat64(front), testutil.ToFloat64(other)

	_, err := m.ProcessFrame([]byte{200}, "front")
	require.NoError(t, err)
	for _, camera := range []string{"spoof-1", "spoof-2", "unknown_10.0.0.9"} {
		_, err := m.ProcessFrame([]byte{200}, camera)
		require.NoError(t, err)
	}

	assert.Equal(t, frontBefore+1, testutil.ToFloat64(front))
	assert.Equal(t, otherBefore+3, testutil.ToFloat64(other))
}
