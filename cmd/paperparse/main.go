// paperparse turns academic paper PDFs into structured documents.
//
// In serve mode it runs the ingestion HTTP service; in extract mode it
// processes a single file and prints the structured result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/scholarlab/paperparse/internal/api"
	"github.com/scholarlab/paperparse/internal/config"
	"github.com/scholarlab/paperparse/internal/layout"
	"github.com/scholarlab/paperparse/internal/pdfsource"
	"github.com/scholarlab/paperparse/internal/pipeline"
	"github.com/scholarlab/paperparse/internal/remoteparse"
	"github.com/scholarlab/paperparse/internal/store"
)

func main() {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	var remote *remoteparse.Client
	if cfg.RemoteEnabled() {
		rcfg := remoteparse.DefaultConfig(cfg.RemoteBaseURL, cfg.RemoteAPIKey)
		rcfg.PollInterval = cfg.PollInterval
		rcfg.PollBudget = cfg.PollBudget
		rcfg.MaxPollFailures = cfg.MaxPollFailures
		remote = remoteparse.NewClient(rcfg, nil, log)
	}

	source := pdfsource.New(cfg.MaxFileSize, log)
	classifier := layout.NewDefault()

	switch cfg.Mode {
	case config.ModeExtract:
		os.Exit(runExtract(cfg, source, remote, classifier, log))
	default:
		os.Exit(runServe(cfg, source, remote, classifier, log))
	}
}

// runExtract processes one PDF from the command line and prints JSON.
func runExtract(cfg *config.Config, source *pdfsource.Source, remote *remoteparse.Client, cls *layout.Classifier, log *slog.Logger) int {
	args := pflag.Args()
	if len(args) != 1 {
		log.Error("extract mode needs exactly one PDF path argument")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	doc, err := source.Load(args[0])
	if err != nil {
		log.Error("load failed", "path", args[0], "error", err)
		return 1
	}

	controller := pipeline.NewController(pipeline.DefaultStages(doc, remote, cls), log)
	result, err := controller.Extract(ctx)
	if err != nil {
		var allFailed *pipeline.AllMethodsFailedError
		if errors.As(err, &allFailed) {
			for _, a := range allFailed.Attempts {
				log.Error("attempt failed", "method", a.Method, "error", a.Error)
			}
		}
		log.Error("extraction failed", "error", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Error("encode failed", "error", err)
		return 1
	}
	return 0
}

// runServe runs the ingestion service until interrupted.
func runServe(cfg *config.Config, source *pdfsource.Source, remote *remoteparse.Client, cls *layout.Classifier, log *slog.Logger) int {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error("store open failed", "path", cfg.DBPath, "error", err)
		return 1
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := pipeline.NewRunner(source, remote, cls, st, pipeline.RunnerConfig{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.QueueSize,
	}, log)
	runner.Start(ctx)

	srv := api.NewServer(runner, st, api.Config{
		DataDir:        cfg.DataDir,
		MaxUploadBytes: cfg.MaxFileSize,
		APIKey:         cfg.APIKey,
	}, log)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		runner.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting paperparse",
		"addr", cfg.Address(),
		"remote_enabled", cfg.RemoteEnabled(),
		"workers", cfg.WorkerCount,
		"version", cfg.Version)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		return 1
	}
	return 0
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
