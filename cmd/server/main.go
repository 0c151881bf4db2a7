// Murmur server - captures microphone audio, transcribes it in chunks, and
// summarizes transcripts on a wall-clock-aligned schedule.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/murmurhq/murmur/internal/audio"
	"github.com/murmurhq/murmur/internal/config"
	"github.com/murmurhq/murmur/internal/engine"
	"github.com/murmurhq/murmur/internal/recorder"
	"github.com/murmurhq/murmur/internal/scheduler"
	"github.com/murmurhq/murmur/internal/server"
	"github.com/murmurhq/murmur/internal/store"
	"github.com/murmurhq/murmur/internal/summarizer"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg := config.Load()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	whisper := engine.NewWhisperClient(cfg.WhisperAddr)
	ollama := engine.NewOllamaClient(cfg.OllamaAddr, cfg.OllamaModel)

	capturer, err := audio.NewCapturer(cfg.SampleRate, cfg.Channels, cfg.AudioQueueSize, cfg.ExcludedAudioDevices)
	if err != nil {
		slog.Error("failed to initialize audio", "error", err)
		os.Exit(1)
	}
	defer capturer.Close()

	dispatcher := recorder.NewDispatcher(whisper, db, cfg.SampleRate, cfg.Channels, cfg.SilenceArtifacts)
	controller := recorder.NewController(capturer, dispatcher, cfg.SampleRate, cfg.Channels, cfg.ChunkDuration)

	interval := time.Duration(cfg.SummaryInterval) * time.Minute
	sum := summarizer.New(ollama, db, interval)
	sched := scheduler.New(interval, sum.Run)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := server.New(ctx, controller, db, dispatcher.Events())

	sched.Start(ctx)

	// Begin capturing immediately; a missing device is not fatal, recording
	// can be started over the API once one is available.
	if err := controller.Start(ctx); err != nil {
		slog.Warn("recording not started", "error", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("murmur server starting", "http", cfg.HTTPAddr, "whisper", cfg.WhisperAddr, "ollama", cfg.OllamaAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	// Stop recording first so the tail chunk is flushed and persisted before
	// the scheduler and store go away.
	if err := controller.Stop(); err != nil {
		slog.Debug("recording already stopped", "error", err)
	}
	sched.Stop()

	// One last summarization so the current partial window, including the
	// tail chunk just flushed, is not stranded until the next launch.
	finalCtx, finalCancel := context.WithTimeout(context.Background(), time.Minute)
	if err := sum.Run(finalCtx, time.Now()); err != nil {
		slog.Warn("final summarization failed", "error", err)
	}
	finalCancel()

	cancel()

	slog.Info("shutdown complete")
}
