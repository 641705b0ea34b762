package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/videoflix/videoflix/config"
	"github.com/videoflix/videoflix/internal/adapter/converter/ffmpeg"
	HTTPAdapter "github.com/videoflix/videoflix/internal/adapter/http"
	sqlitestore "github.com/videoflix/videoflix/internal/adapter/storage/sqlite"
	"github.com/videoflix/videoflix/internal/hls"
	"github.com/videoflix/videoflix/internal/infrastructure/logger"
	"github.com/videoflix/videoflix/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infof("starting videoflix on port %d, storage root %s", cfg.Port, cfg.StorageRoot)

	if err := os.MkdirAll(cfg.StorageRoot, 0755); err != nil {
		logger.Errorf("failed to create storage root: %v", err)
		os.Exit(1)
	}

	store, err := sqlitestore.NewStore(cfg.StorageRoot)
	if err != nil {
		logger.Errorf("failed to create store: %v", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	layout := hls.NewLayout(cfg.StorageRoot)
	transcoder := ffmpeg.NewTranscoder(cfg.SegmentSeconds)
	jobQueue := sqlitestore.NewJobQueue(store)
	eventBus := service.NewEventBus()

	catalogSvc := service.NewCatalogService(store, jobQueue, layout, cfg.Resolutions)
	streamSvc := service.NewStreamingService(layout)
	tokenSvc := service.NewTokenService(cfg.JWTSecret)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	workerPool := service.NewWorkerPool(jobQueue, store, transcoder, layout, eventBus, cfg.TranscodeTimeout, cfg.Workers)
	workerPool.Start(workerCtx)

	server := HTTPAdapter.NewServer(tokenSvc, catalogSvc, streamSvc, eventBus, cfg.MaxUploadSizeMB)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Infof("received %s, shutting down", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("http shutdown error: %v", err)
		}

		// Stop workers (lets in-flight jobs finish; stalled ones are
		// requeued on the next start)
		workerCancel()

		logger.Infof("shutdown complete")
	}()

	logger.Infof("server listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Errorf("server failed: %v", err)
		os.Exit(1)
	}
}
