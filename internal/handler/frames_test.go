package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashcam/internal/config"
	"dashcam/internal/dto"
	"dashcam/internal/logger"
	"dashcam/internal/model"
	"dashcam/internal/repository/sqlite"
	"dashcam/internal/service"
	"dashcam/internal/service/darkness"
	"dashcam/internal/service/storage"
	"dashcam/internal/service/websocket"
)

type testEnv struct {
	cfg     *config.Config
	repo    *sqlite.FrameRepository
	manager *service.Manager
	log     *logger.Logger
}

// grayDecoder returns a 2x2 uniform frame whose gray level is the first byte.
func grayDecoder(data []byte) (darkness.PixelBuffer, int, int, error) {
	if len(data) == 0 {
		return nil, 0, 0, darkness.ErrEmptyFrame
	}
	v := uint32(data[0])
	p := 0xFF000000 | v<<16 | v<<8 | v
	return darkness.PixelBuffer{p, p, p, p}, 2, 2, nil
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		ImageDirectory:     filepath.Join(dir, "images"),
		LogDirectory:       filepath.Join(dir, "logs"),
		EventLogName:       "events.log",
		DarkThreshold:      darkness.DefaultThreshold,
		BufferLimit:        10,
		ProcessingWorkers:  1,
		ProcessingInterval: 1,
	}

	db, err := sqlite.New(filepath.Join(dir, "frames.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewNop()
	repo := sqlite.NewFrameRepository(db)
	buffer := storage.NewBufferService(cfg, log, repo)
	m := service.NewManager(buffer, websocket.NewHubService(log), cfg, log, service.WithDecoder(grayDecoder))
	t.Cleanup(m.Stop)

	return &testEnv{cfg: cfg, repo: repo, manager: m, log: log}
}

func TestUploadFrameHandler(t *testing.T) {
	env := setupEnv(t)
	h := UploadFrameHandler(env.manager, env.log)

	req := httptest.NewRequest(http.MethodPost, "/api/frames?camera=front", bytes.NewReader([]byte{12, 0, 0}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)

	var out service.Outcome
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "front", out.Camera)
	assert.True(t, out.Verdict.Dark)
	assert.Equal(t, 12, out.Verdict.Average)
	assert.True(t, out.Buffered)

	require.Equal(t, 1, env.manager.GetBufferService().FlushFrames())

	frames, err := env.repo.GetAll(nil)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, out.UID, frames[0].UID)
}

func TestUploadFrameHandler_EmptyBody(t *testing.T) {
	env := setupEnv(t)
	rr := httptest.NewRecorder()
	UploadFrameHandler(env.manager, env.log).ServeHTTP(rr,
		httptest.NewRequest(http.MethodPost, "/api/frames", http.NoBody))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func seedFrames(t *testing.T, env *testEnv) {
	t.Helper()
	require.NoError(t, os.MkdirAll(env.cfg.ImageDirectory, 0o755))

	ts := time.Date(2024, 5, 1, 21, 15, 0, 0, time.UTC)
	for i, f := range []struct {
		camera string
		lum    int
	}{{"front", 10}, {"front", 90}, {"rear", 20}} {
		name := storage.FrameFilename(ts.Add(time.Duration(i)*time.Second), f.camera)
		path := filepath.Join(env.cfg.ImageDirectory, name)
		require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))
		_, err := env.repo.Insert(&model.Frame{
			UID:       name,
			Filename:  name,
			Camera:    f.camera,
			Timestamp: ts.Add(time.Duration(i) * time.Second),
			FilePath:  path,
			FileSize:  4,
			Luminance: f.lum,
			Dark:      f.lum < darkness.DefaultThreshold,
		})
		require.NoError(t, err)
	}
}

func TestListFramesHandler(t *testing.T) {
	env := setupEnv(t)
	seedFrames(t, env)
	h := ListFramesHandler(env.cfg, env.log, env.repo)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/frames?verdict=dark&limit=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var data struct {
		Frames []struct {
			Name      string `json:"name"`
			Date      string `json:"date"`
			Camera    string `json:"camera"`
			Luminance int    `json:"luminance"`
			Dark      bool   `json:"dark"`
		} `json:"frames"`
		Length     int `json:"length"`
		TotalPages int `json:"totalPages"`
		DarkFrames int `json:"darkFrames"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &data))

	assert.Equal(t, 2, data.Length)
	assert.Equal(t, 2, data.TotalPages)
	assert.Equal(t, 2, data.DarkFrames)
	require.Len(t, data.Frames, 1)
	assert.Equal(t, "rear", data.Frames[0].Camera)
	assert.Equal(t, "01-05-2024", data.Frames[0].Date)
	assert.True(t, data.Frames[0].Dark)
}

func TestListFramesHandler_BadVerdict(t *testing.T) {
	env := setupEnv(t)
	rr := httptest.NewRecorder()
	ListFramesHandler(env.cfg, env.log, env.repo).ServeHTTP(rr,
		httptest.NewRequest(http.MethodGet, "/api/frames?verdict=dim", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListFramesHandler_Paging(t *testing.T) {
	env := setupEnv(t)
	seedFrames(t, env)
	h := ListFramesHandler(env.cfg, env.log, env.repo)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/frames?limit=9223372036854775807", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var data struct {
		Frames      []json.RawMessage `json:"frames"`
		TotalPages  int               `json:"totalPages"`
		CurrentPage int               `json:"currentPage"`
		Limit       int               `json:"pageSize"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &data))
	assert.Equal(t, maxLimit, data.Limit)
	assert.Equal(t, 1, data.TotalPages)
	assert.Len(t, data.Frames, 3)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/frames?page=9223372036854775807&limit=24", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/frames?page=2&limit=2", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &data))
	assert.Len(t, data.Frames, 1)
	assert.Equal(t, 2, data.CurrentPage)
}

func TestDeleteFrameHandler(t *testing.T) {
	env := setupEnv(t)
	seedFrames(t, env)

	frames, err := env.repo.GetAll(&dto.FrameFilters{Camera: "rear"})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	name := frames[0].Filename

	rr := httptest.NewRecorder()
	DeleteFrameHandler(env.cfg, env.log, env.repo).ServeHTTP(rr,
		httptest.NewRequest(http.MethodDelete, "/api/frames?filename=../"+name, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	_, err = os.Stat(filepath.Join(env.cfg.ImageDirectory, name))
	assert.True(t, os.IsNotExist(err))

	got, err := env.repo.GetByFilename(name)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClearFramesHandler(t *testing.T) {
	env := setupEnv(t)
	seedFrames(t, env)

	rr := httptest.NewRecorder()
	ClearFramesHandler(env.cfg, env.log, env.repo).ServeHTTP(rr,
		httptest.NewRequest(http.MethodPost, "/api/frames/clear", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	entries, err := os.ReadDir(env.cfg.ImageDirectory)
	require.NoError(t, err)
	assert.Empty(t, entries)

	count, err := env.repo.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFrameName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"IMG_1.jpg", "IMG_1.jpg", true},
		{"../../etc/passwd", "passwd", true},
		{"a/b.jpg", "b.jpg", true},
		{"", "", false},
		{"..", "", false},
		{"/", "", false},
	}
	for _, tt := range tests {
		got, ok := frameName(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestShowAndClearLogs(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{LogDirectory: dir, LogLevel: "info", EventLogName: "events.log"}
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)
	defer log.Close()

	log.Warning("camera rear offline")
	log.Sync()

	rr := httptest.NewRecorder()
	ShowLogHandler(cfg, "warning.log").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "camera rear offline")

	rr = httptest.NewRecorder()
	ClearLogHandler(log, "warning.log").ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	ShowEventsHandler(cfg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logs/events", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
