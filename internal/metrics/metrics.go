package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dashcam/internal/durable"
)

var (
	FramesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashcam_frames_received_total",
		Help: "Total number of frames received from cameras",
	}, []string{"camera"})

	FramesClassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashcam_frames_classified_total",
		Help: "Total number of frames classified, by verdict",
	}, []string{"camera", "verdict"})

	FramesDiscardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashcam_frames_discarded_total",
		Help: "Total number of frames dropped before reaching disk, by reason",
	}, []string{"reason"})

	ClassificationErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashcam_classification_errors_total",
		Help: "Total number of frames that could not be decoded or classified",
	})

	FrameLuminance = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dashcam_frame_luminance",
		Help:    "Average luminance of classified frames",
		Buckets: []float64{10, 20, 30, 40, 60, 80, 120, 160, 200, 255},
	})

	DurableWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashcam_durable_writes_total",
		Help: "Total number of durable file writes, by operation and result",
	}, []string{"op", "result"})

	BufferedFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashcam_buffered_frames",
		Help: "Number of frames waiting for the next flush",
	})

	FlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dashcam_flush_duration_seconds",
		Help:    "Duration of a buffer flush to disk",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	ConnectedViewers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashcam_connected_viewers",
		Help: "Number of connected websocket viewers",
	})
)

// Verdict labels.
const (
	VerdictDark   = "dark"
	VerdictBright = "bright"
)

// VerdictLabel maps a classification result to its label value.
func VerdictLabel(dark bool) string {
	if dark {
		return VerdictDark
	}
	return VerdictBright
}

// OtherCamera is the label value for cameras outside the configured set.
const OtherCamera = "other"

// CameraLabel keeps the camera label bounded: names not in known fold into
// OtherCamera.
func CameraLabel(camera string, known map[string]struct{}) string {
	if _, ok := known[camera]; ok {
		return camera
	}
	return OtherCamera
}

// ResultLabel maps a durable write outcome to its label value.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, durable.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, durable.ErrOpen):
		return "open_failed"
	case errors.Is(err, durable.ErrShortWrite):
		return "short_write"
	case errors.Is(err, durable.ErrFlush):
		return "flush_failed"
	default:
		return "error"
	}
}

// ObserveWrite records one durable write.
func ObserveWrite(op durable.Op, err error) {
	DurableWritesTotal.WithLabelValues(string(op), ResultLabel(err)).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
