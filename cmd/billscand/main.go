// billscand is the billing-document processing daemon: it serves the HTTP
// API over the pipeline, storing uploads on local disk and jobs in the
// configured database.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/export"
	"github.com/billscan/billscan/internal/hybrid"
	"github.com/billscan/billscan/internal/ingest"
	"github.com/billscan/billscan/internal/jobs"
	"github.com/billscan/billscan/internal/llm"
	"github.com/billscan/billscan/internal/registry"
	"github.com/billscan/billscan/internal/repository"
	"github.com/billscan/billscan/internal/server"
	"github.com/billscan/billscan/internal/textextract"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	db, err := repository.Open(cfg.Database, logger)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}

	jobRepo := repository.NewJobRepository(db, logger)
	docRepo := repository.NewDocumentRepository(db, logger)
	fieldRepo := repository.NewExtractionRepository(db, logger)
	exportRepo := repository.NewExportRepository(db, logger)

	reg := registry.Default()

	extractor := textextract.NewExtractor(textextract.Config{
		Tesseract: cfg.OCR.Tesseract,
		Languages: cfg.OCR.Languages,
		DPI:       cfg.OCR.DPI,
		MaxPages:  cfg.OCR.MaxPages,
		Timeout:   cfg.OCR.Timeout,
	}, logger)

	var model hybrid.Strategy
	if cfg.Model.Enabled {
		client := llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL: cfg.Model.BaseURL,
			Model:   cfg.Model.Name,
			Timeout: cfg.Model.Timeout,
		}, logger)
		model = hybrid.NewModelExtractor(client, reg)
	}
	engine := hybrid.NewEngine(reg, hybrid.NewPatternExtractor(reg), model, hybrid.Config{
		PatternThreshold: cfg.Pipeline.PatternThreshold,
		ModelEnabled:     cfg.Model.Enabled,
	}, logger)

	exporter := export.NewService(jobRepo, exportRepo, cfg.App.ExportDir, logger)

	sink := jobs.NewChannelSink(cfg.Pipeline.EventBuffer)
	go func() {
		for ev := range sink.Events() {
			logger.Info("job event",
				"job_id", ev.JobID,
				"type", ev.Type,
				"stage", ev.Stage,
				"current", ev.Current,
				"total", ev.Total,
				"status", ev.Status,
			)
		}
	}()

	pipe := jobs.NewPipeline(jobRepo, docRepo, fieldRepo, exportRepo,
		extractor, engine, exporter, sink,
		jobs.Policy{
			DocWorkers:     cfg.Pipeline.DocWorkers,
			PartialSuccess: cfg.Pipeline.PartialSuccess,
		}, logger)

	srv := server.New(pipe, reg, exportRepo, cfg.App.UploadDir, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.App.WatchDir != "" {
		watcher := ingest.NewWatcher(ingest.Config{
			Dir:         cfg.App.WatchDir,
			StoreDir:    cfg.App.UploadDir,
			InitialScan: true,
		}, pipe, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("inbox watcher stopped", "error", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		logger.Info("shutting down")
		cancel()
		if err := srv.Shutdown(); err != nil {
			logger.Error("shutdown", "error", err)
		}
		sink.Close()
	}()

	logger.Info("billscand serving", "addr", cfg.App.Addr, "env", cfg.App.Env)
	if err := srv.Listen(cfg.App.Addr); err != nil {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
}
