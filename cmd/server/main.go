package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"videoseg/internal/api"
	"videoseg/internal/config"
	"videoseg/internal/framesource"
	"videoseg/internal/job"
	"videoseg/internal/logger"
	"videoseg/internal/objects"
	"videoseg/internal/segmenter"
	"videoseg/internal/session"
)

func main() {
	// 1. Parse command-line arguments
	listenAddr := flag.String("l", ":8080", "HTTP listen address")
	logLevel := flag.String("L", "info", "Log level (error, warn, info, debug)")
	configFile := flag.String("c", "", "Path to the orchestrator config file (TOML); unset uses built-in defaults")
	framesDir := flag.String("frames-dir", "./scratch/frames", "Base directory for materialized session frames")
	flag.Parse()

	// 2. Initialize logger
	log := logger.NewLogger(*logLevel)
	log.Infof("Starting video segmentation orchestrator...")
	log.Infof("Log level set to: %s", *logLevel)

	// 3. Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	log.Infof("Configuration loaded: max_concurrent_sessions=%d max_workers=%d", cfg.MaxConcurrentSessions, cfg.MaxWorkers)

	// 4. Initialize services and managers
	seg := segmenter.NewSimulator()
	source := framesource.Default()
	store := framesource.NewFrameStore(*framesDir)

	sessionMgr := session.NewManager(log, source, store, seg, session.Config{
		SessionTimeout:        cfg.SessionTimeout(),
		MaxConcurrentSessions: cfg.MaxConcurrentSessions,
		MaxVideoFrames:        cfg.MaxVideoFrames,
		MaxFrameDimension:     cfg.MaxFrameDimension,
		FrameJPEGQuality:      cfg.FrameJPEGQuality,
	})
	objectSM := objects.New(seg, log)
	jobMgr := job.NewManager(cfg.MaxWorkers, log)
	propagator := job.NewPropagator(sessionMgr, seg, log, cfg.TouchEvery, cfg.ProgressLogEvery)

	stopSweep := startSweeper(sessionMgr, jobMgr, cfg.JobRetention(), log)

	// 5. Set up API router with dependencies
	router := api.New(sessionMgr, objectSM, jobMgr, propagator, log)

	// 6. Set up and run the HTTP server with graceful shutdown
	server := &http.Server{
		Addr:    *listenAddr,
		Handler: router,
	}

	go func() {
		log.Infof("Server starting on %s", *listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Could not listen on %s: %v", *listenAddr, err)
			os.Exit(1)
		}
	}()

	// Listen for shutdown signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Infof("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopSweep()
	// Stop admitting requests before draining jobs and closing sessions.
	shutdownErr := server.Shutdown(ctx)
	jobMgr.Shutdown()
	sessionMgr.Stop(ctx)

	if shutdownErr != nil {
		log.Errorf("Server shutdown failed: %v", shutdownErr)
		os.Exit(1)
	}

	log.Infof("Server exited gracefully")
}

// startSweeper runs the idle-session and terminal-job reaping loops on a
// fixed tick, returning a function that stops them.
func startSweeper(sessionMgr *session.Manager, jobMgr *job.Manager, jobRetention time.Duration, log logger.Logger) func() {
	ticker := time.NewTicker(30 * time.Second)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				ticker.Stop()
				return
			case <-ticker.C:
				if n := sessionMgr.SweepExpired(); n > 0 {
					log.Infof("swept %d expired sessions", n)
				}
				if n := jobMgr.SweepTerminal(jobRetention); n > 0 {
					log.Infof("swept %d terminal jobs", n)
				}
			}
		}
	}()

	return func() { close(done) }
}
