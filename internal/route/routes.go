package route

import (
	"net/http"

	"dashcam/internal/config"
	"dashcam/internal/handler"
	"dashcam/internal/logger"
	"dashcam/internal/metrics"
	"dashcam/internal/middleware"
	"dashcam/internal/repository"
	"dashcam/internal/service"
)

// SetupRoutes registers the API, log and operational endpoints. Everything
// except /healthz and /metrics sits behind the token middleware.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger,
	frameRepo repository.FrameRepository) http.Handler {
	api := http.NewServeMux()

	// Frames
	api.HandleFunc("POST /api/frames", handler.UploadFrameHandler(manager, logger))
	api.HandleFunc("GET /api/frames", handler.ListFramesHandler(cfg, logger, frameRepo))
	api.HandleFunc("DELETE /api/frames", handler.DeleteFrameHandler(cfg, logger, frameRepo))
	api.HandleFunc("GET /api/frames/view", handler.ViewFrameHandler(cfg))
	api.HandleFunc("GET /api/frames/stats", handler.FrameStatsHandler(logger, frameRepo))
	api.HandleFunc("POST /api/frames/clear", handler.ClearFramesHandler(cfg, logger, frameRepo))
	api.HandleFunc("GET /api/view", handler.ViewWebsocketHandler(manager, logger))

	// Logs
	for _, name := range []string{"info", "warning", "error"} {
		file := name + ".log"
		api.HandleFunc("GET /logs/"+name, handler.ShowLogHandler(cfg, file))
		api.HandleFunc("POST /logs/"+name+"/clear", handler.ClearLogHandler(logger, file))
	}
	api.HandleFunc("GET /logs/events", handler.ShowEventsHandler(cfg))

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", handler.HealthHandler())
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("/", middleware.TokenAuth(cfg.APIToken)(api))
	return mux
}
