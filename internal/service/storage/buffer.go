package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dashcam/internal/config"
	"dashcam/internal/dto"
	"dashcam/internal/durable"
	"dashcam/internal/logger"
	"dashcam/internal/metrics"
	"dashcam/internal/model"
	"dashcam/internal/repository"
	"dashcam/internal/service/darkness"
)

const (
	framePrefix = "IMG_"
	frameExt    = ".jpg"
	// frameTimeLayout is the timestamp part of a frame filename, in UTC.
	frameTimeLayout = "20060102_150405.000"
)

var ErrBadFrameName = errors.New("not a frame filename")

// FileWriter persists frames and event lines.
type FileWriter interface {
	WriteWhole(path string, data []byte) error
	AppendLine(path, line string) error
}

// Option customizes a BufferService.
type Option func(*BufferService)

// WithWriter replaces the durable writer.
func WithWriter(w FileWriter) Option {
	return func(s *BufferService) { s.writer = w }
}

// WithClock replaces the time source used to stamp frames.
func WithClock(now func() time.Time) Option {
	return func(s *BufferService) { s.now = now }
}

// BufferService buffers classified frames in memory and periodically flushes
// them to disk. A frame reaches the catalog only after both its image file
// and its event line were durably written.
type BufferService struct {
	imagesDir    string
	eventLogPath string
	limit        int

	frames      []dto.BufferedFrame
	bufferCount map[string]int
	lastStamp   map[string]time.Time
	mu          sync.Mutex

	// flushMu keeps one flush at a time; the event log has a single writer.
	flushMu sync.Mutex

	writer    FileWriter
	now       func() time.Time
	logger    *logger.Logger
	frameRepo repository.FrameRepository
}

// NewBufferService creates a BufferService writing under the configured image
// directory. frameRepo may be nil.
func NewBufferService(cfg *config.Config, logger *logger.Logger, frameRepo repository.FrameRepository, opts ...Option) *BufferService {
	s := &BufferService{
		imagesDir:    cfg.ImageDirectory,
		eventLogPath: cfg.EventLogPath(),
		limit:        cfg.BufferLimit,
		bufferCount:  make(map[string]int),
		lastStamp:    make(map[string]time.Time),
		writer:       durable.NewWriter(logger),
		now:          time.Now,
		logger:       logger,
		frameRepo:    frameRepo,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run flushes on every tick and once more when ctx is cancelled.
func (s *BufferService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.FlushFrames()
		case <-ctx.Done():
			s.FlushFrames()
			return
		}
	}
}

// AddFrame buffers a classified frame. It returns the frame UID and false
// when the camera's buffer is already full.
func (s *BufferService) AddFrame(data []byte, camera string, verdict darkness.Verdict) (string, bool) {
	camera = SanitizeCamera(camera)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferCount[camera] >= s.limit {
		metrics.FramesDiscardedTotal.WithLabelValues("buffer_full").Inc()
		return "", false
	}

	// Stamps are strictly increasing per camera so filenames never collide.
	ts := s.now().UTC().Truncate(time.Millisecond)
	if last, ok := s.lastStamp[camera]; ok && !ts.After(last) {
		ts = last.Add(time.Millisecond)
	}
	s.lastStamp[camera] = ts

	frame := dto.BufferedFrame{
		UID:       uuid.NewString(),
		Timestamp: ts,
		Camera:    camera,
		Luminance: verdict.Average,
		Dark:      verdict.Dark,
		Data:      data,
	}
	s.frames = append(s.frames, frame)
	s.bufferCount[camera]++
	metrics.BufferedFrames.Set(float64(len(s.frames)))

	s.logger.Debug("Buffer size for camera %s: %d/%d", camera, s.bufferCount[camera], s.limit)
	return frame.UID, true
}

// Pending returns the number of buffered frames.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// FlushFrames writes buffered frames to disk, appends their event lines and
// records them in the catalog. It returns how many frames were saved.
func (s *BufferService) FlushFrames() int {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	frames := s.frames
	s.frames = nil
	s.bufferCount = make(map[string]int)
	s.mu.Unlock()
	metrics.BufferedFrames.Set(0)

	if len(frames) == 0 {
		return 0
	}

	start := time.Now()
	defer func() { metrics.FlushDuration.Observe(time.Since(start).Seconds()) }()

	for _, dir := range []string{s.imagesDir, filepath.Dir(s.eventLogPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Error("Error creating directory %s: %v", dir, err)
			metrics.FramesDiscardedTotal.WithLabelValues("write_failed").Add(float64(len(frames)))
			return 0
		}
	}

	saved := 0
	for _, frame := range frames {
		if s.saveFrame(frame) {
			saved++
		}
	}

	s.logger.Info("Flushed %d/%d frames to disk", saved, len(frames))
	return saved
}

func (s *BufferService) saveFrame(frame dto.BufferedFrame) bool {
	filename := FrameFilename(frame.Timestamp, frame.Camera)
	fullpath := filepath.Join(s.imagesDir, filename)

	err := s.writer.WriteWhole(fullpath, frame.Data)
	metrics.ObserveWrite(durable.OpReplace, err)
	if err != nil {
		s.logger.Error("Error saving frame %s: %v", filename, err)
		metrics.FramesDiscardedTotal.WithLabelValues("write_failed").Inc()
		s.removePartial(fullpath)
		return false
	}

	err = s.writer.AppendLine(s.eventLogPath, EventLine(filename, frame))
	metrics.ObserveWrite(durable.OpAppend, err)
	if err != nil {
		s.logger.Error("Error appending event for %s: %v", filename, err)
		metrics.FramesDiscardedTotal.WithLabelValues("write_failed").Inc()
		s.removePartial(fullpath)
		return false
	}

	if s.frameRepo == nil {
		return true
	}

	_, err = s.frameRepo.Insert(&model.Frame{
		UID:       frame.UID,
		Filename:  filename,
		Camera:    frame.Camera,
		Timestamp: frame.Timestamp,
		FilePath:  fullpath,
		FileSize:  int64(len(frame.Data)),
		Luminance: frame.Luminance,
		Dark:      frame.Dark,
	})
	if err != nil {
		// The file and event line are already durable; reindex can recover the row.
		s.logger.Error("Error saving frame to database %s: %v", filename, err)
	}
	return true
}

// removePartial deletes a frame file whose save did not complete, so a later
// reindex cannot catalog it.
func (s *BufferService) removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warning("Unable to remove unsaved frame %s: %v", path, err)
	}
}

// EventLine formats the event log record for a saved frame:
// filename,epochMillis,camera,luminance,dark followed by a newline.
func EventLine(filename string, frame dto.BufferedFrame) string {
	return fmt.Sprintf("%s,%d,%s,%d,%t\n", filename, frame.Timestamp.UnixMilli(),
		frame.Camera, frame.Luminance, frame.Dark)
}

// FrameFilename names a frame file: IMG_<yyyyMMdd_HHmmss.mmm>_<camera>.jpg.
func FrameFilename(ts time.Time, camera string) string {
	return framePrefix + ts.UTC().Format(frameTimeLayout) + "_" + SanitizeCamera(camera) + frameExt
}

// ParseFrameFilename recovers the timestamp and camera from a name produced
// by FrameFilename.
func ParseFrameFilename(name string) (time.Time, string, error) {
	if !strings.HasPrefix(name, framePrefix) || !strings.HasSuffix(name, frameExt) {
		return time.Time{}, "", fmt.Errorf("%w: %s", ErrBadFrameName, name)
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(name, framePrefix), frameExt)
	if len(rest) < len(frameTimeLayout)+2 || rest[len(frameTimeLayout)] != '_' {
		return time.Time{}, "", fmt.Errorf("%w: %s", ErrBadFrameName, name)
	}

	ts, err := time.ParseInLocation(frameTimeLayout, rest[:len(frameTimeLayout)], time.UTC)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %s: %v", ErrBadFrameName, name, err)
	}
	return ts, rest[len(frameTimeLayout)+1:], nil
}

// SanitizeCamera makes a camera name safe to embed in a filename and an
// event line.
func SanitizeCamera(camera string) string {
	if camera == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ',', ' ', '\n', '\r', '\t', 0:
			return '-'
		}
		return r
	}, camera)
}
