package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dashcam/internal/config"
	"dashcam/internal/handler"
	"dashcam/internal/logger"
	"dashcam/internal/repository/sqlite"
	"dashcam/internal/route"
	"dashcam/internal/service"
	"dashcam/internal/service/storage"
	"dashcam/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	frameRepo     *sqlite.FrameRepository
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	manager       *service.Manager
}

// NewApp wires the logger, catalog, buffer, hub and manager.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, err
	}

	frameRepo := sqlite.NewFrameRepository(db)
	buffer := storage.NewBufferService(cfg, log, frameRepo)
	hub := websocket.NewHubService(log)
	mng := service.NewManager(buffer, hub, cfg, log)

	return &App{
		config:        cfg,
		logger:        log,
		db:            db,
		frameRepo:     frameRepo,
		bufferService: buffer,
		hubService:    hub,
		manager:       mng,
	}, nil
}

// Run serves HTTP and camera traffic until ctx is cancelled, then stops
// intake, drains the workers, flushes the buffer and closes the catalog.
func (a *App) Run(ctx context.Context) error {
	defer a.logger.Close()
	defer a.db.Close()

	flushCtx, stopFlush := context.WithCancel(context.Background())
	var flushWG sync.WaitGroup
	flushWG.Add(1)
	go func() {
		defer flushWG.Done()
		a.bufferService.Run(flushCtx, a.config.FlushInterval)
	}()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hubService.Run(hubCtx)

	udpCtx, stopUDP := context.WithCancel(ctx)
	defer stopUDP()
	udpDone := make(chan struct{})
	go func() {
		defer close(udpDone)
		handler.UDPCameraHandler(udpCtx, a.manager, a.logger, a.config)
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           route.SetupRoutes(a.manager, a.config, a.logger, a.frameRepo),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Dashcam server listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Frames: %s, events: %s, catalog: %s",
		a.config.ImageDirectory, a.config.EventLogPath(), a.config.DatabasePath)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case runErr = <-serveErr:
		a.logger.Error("HTTP server failed: %v", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP shutdown: %v", err)
	}

	stopUDP()
	<-udpDone

	a.manager.Stop()
	stopFlush()
	flushWG.Wait()
	stopHub()

	return runErr
}
