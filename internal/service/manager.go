package service

import (
	"sync"
	"time"

	"dashcam/internal/config"
	"dashcam/internal/dto"
	"dashcam/internal/logger"
	"dashcam/internal/metrics"
	"dashcam/internal/service/darkness"
	"dashcam/internal/service/storage"
	"dashcam/internal/service/websocket"
)

const queueSize = 100

// DecodeFunc turns an encoded frame into ARGB pixels.
type DecodeFunc func(data []byte) (darkness.PixelBuffer, int, int, error)

// Outcome is the result of processing one frame.
type Outcome struct {
	Camera   string           `json:"camera"`
	Verdict  darkness.Verdict `json:"verdict"`
	UID      string           `json:"uid,omitempty"`
	Buffered bool             `json:"buffered"`
	Reason   string           `json:"reason,omitempty"`
}

type frameTask struct {
	Image  []byte
	Camera string
}

// Manager routes camera frames: every frame goes to live viewers, every Nth
// frame per camera is classified and, unless discarded, buffered for saving.
type Manager struct {
	bufferService    *storage.BufferService
	websocketService *websocket.HubService
	classifier       *darkness.Classifier
	decode           DecodeFunc
	logger           *logger.Logger
	knownCameras     map[string]struct{}

	discardDark     bool
	processEveryNth int
	numWorkers      int

	processingQueue chan frameTask
	frameCounters   map[string]int
	frameCounterMu  sync.Mutex

	stopMu   sync.RWMutex
	stopped  bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithDecoder replaces the frame decoder.
func WithDecoder(decode DecodeFunc) ManagerOption {
	return func(m *Manager) { m.decode = decode }
}

// NewManager starts the processing workers.
func NewManager(bufferService *storage.BufferService, websocketService *websocket.HubService, cfg *config.Config, logger *logger.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		bufferService:    bufferService,
		websocketService: websocketService,
		classifier:       darkness.NewClassifier(cfg.DarkThreshold, logger),
		decode:           darkness.DecodeFrame,
		logger:           logger,
		knownCameras:     make(map[string]struct{}, len(cfg.CameraNames)),
		discardDark:      cfg.DiscardDarkFrames,
		processEveryNth:  max(cfg.ProcessingInterval, 1),
		numWorkers:       max(cfg.ProcessingWorkers, 1),
		processingQueue:  make(chan frameTask, queueSize),
		frameCounters:    make(map[string]int),
	}
	for _, name := range cfg.CameraNames {
		m.knownCameras[storage.SanitizeCamera(name)] = struct{}{}
	}
	for _, opt := range opts {
		opt(m)
	}

	for i := 0; i < m.numWorkers; i++ {
		m.wg.Add(1)
		go m.processingWorker(i)
	}

	m.logger.Info("Manager started - classifying every %d frame(s), threshold %d, discard dark %t",
		m.processEveryNth, m.classifier.Threshold(), m.discardDark)
	return m
}

// HandleCameraImage forwards a complete frame to viewers and queues every
// Nth frame of the camera for classification. Frames are dropped when the
// queue is full.
func (m *Manager) HandleCameraImage(image []byte, camera string) {
	metrics.FramesReceivedTotal.WithLabelValues(m.cameraLabel(camera)).Inc()
	m.SendToViewers(image, camera)

	m.frameCounterMu.Lock()
	m.frameCounters[camera]++
	sample := m.frameCounters[camera] >= m.processEveryNth
	if sample {
		m.frameCounters[camera] = 0
	}
	m.frameCounterMu.Unlock()

	if !sample {
		return
	}

	m.stopMu.RLock()
	defer m.stopMu.RUnlock()
	if m.stopped {
		return
	}

	select {
	case m.processingQueue <- frameTask{Image: image, Camera: camera}:
		m.logger.Debug("Camera %s: frame queued for processing", camera)
	default:
		metrics.FramesDiscardedTotal.WithLabelValues("queue_full").Inc()
		m.logger.Warning("Processing queue full for camera %s - skipping frame", camera)
	}
}

func (m *Manager) cameraLabel(camera string) string {
	return metrics.CameraLabel(camera, m.knownCameras)
}

// SendToViewers broadcasts a raw frame to live viewers.
func (m *Manager) SendToViewers(image []byte, camera string) {
	if m.websocketService == nil {
		return
	}
	m.websocketService.BroadcastFrame(image, camera)
}

// ProcessFrame decodes and classifies one frame synchronously. Dark frames
// raise a low-light alert and are dropped when discarding is enabled; all
// other frames are buffered for saving.
func (m *Manager) ProcessFrame(image []byte, camera string) (Outcome, error) {
	out := Outcome{Camera: camera}

	pixels, width, height, err := m.decode(image)
	if err != nil {
		metrics.ClassificationErrorsTotal.Inc()
		return out, err
	}

	verdict, err := m.classifier.Classify(pixels, width, height)
	if err != nil {
		metrics.ClassificationErrorsTotal.Inc()
		return out, err
	}
	out.Verdict = verdict

	metrics.FramesClassifiedTotal.WithLabelValues(m.cameraLabel(camera), metrics.VerdictLabel(verdict.Dark)).Inc()
	metrics.FrameLuminance.Observe(float64(verdict.Average))

	if verdict.Dark && m.discardDark {
		metrics.FramesDiscardedTotal.WithLabelValues("dark").Inc()
		out.Reason = "dark"
		m.alert(out, true)
		return out, nil
	}

	if m.bufferService != nil {
		out.UID, out.Buffered = m.bufferService.AddFrame(image, camera, verdict)
		if !out.Buffered {
			out.Reason = "buffer_full"
		}
	}

	if verdict.Dark {
		m.alert(out, false)
	}
	return out, nil
}

func (m *Manager) alert(out Outcome, discarded bool) {
	m.logger.Warning("Low light detected on camera %s: luminance=%d threshold=%d",
		out.Camera, out.Verdict.Average, out.Verdict.Threshold)

	if m.websocketService == nil {
		return
	}
	m.websocketService.BroadcastAlert(dto.LowLightAlert{
		Type:      dto.AlertLowLight,
		Title:     "Low Light Detected",
		Camera:    out.Camera,
		UID:       out.UID,
		Luminance: out.Verdict.Average,
		Threshold: out.Verdict.Threshold,
		Discarded: discarded,
		Timestamp: time.Now().UTC(),
	})
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetBufferService() *storage.BufferService {
	return m.bufferService
}

func (m *Manager) Threshold() int {
	return m.classifier.Threshold()
}

func (m *Manager) processingWorker(workerID int) {
	defer m.wg.Done()

	m.logger.Debug("Processing worker %d started", workerID)
	for task := range m.processingQueue {
		if _, err := m.ProcessFrame(task.Image, task.Camera); err != nil {
			m.logger.Error("Error classifying frame from camera %s: %v", task.Camera, err)
		}
	}
	m.logger.Debug("Processing worker %d stopped", workerID)
}

// Stop closes the queue and waits for the workers to drain it. It is safe to
// call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.stopMu.Lock()
		m.stopped = true
		close(m.processingQueue)
		m.stopMu.Unlock()

		m.wg.Wait()
		m.logger.Info("All processing workers stopped")
	})
}
