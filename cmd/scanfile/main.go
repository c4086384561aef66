// scanfile runs the extraction pipeline over a single local document and
// prints the result as JSON, without touching a database. Useful for
// checking tesseract and pattern behavior on one file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/confidence"
	"github.com/billscan/billscan/internal/hybrid"
	"github.com/billscan/billscan/internal/llm"
	"github.com/billscan/billscan/internal/registry"
	"github.com/billscan/billscan/internal/textextract"
)

type output struct {
	File       string               `json:"file"`
	Engine     string               `json:"engine"`
	Pages      int                  `json:"pages"`
	Confidence float64              `json:"text_confidence"`
	Aggregate  int                  `json:"aggregate_confidence"`
	Fields     []hybrid.FieldResult `json:"fields"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	fieldsFlag := flag.String("fields", "", "comma-separated field keys (default: all)")
	withModel := flag.Bool("model", false, "enable the model fallback extractor")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "scanfile [-fields k1,k2] [-model] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	_ = godotenv.Load()
	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	extractor := textextract.NewExtractor(textextract.Config{
		Tesseract: cfg.OCR.Tesseract,
		Languages: cfg.OCR.Languages,
		DPI:       cfg.OCR.DPI,
		MaxPages:  cfg.OCR.MaxPages,
	}, logger)

	res, err := extractor.Extract(ctx, path)
	if err != nil {
		logger.Error("text extraction failed", "file", path, "error", err)
		os.Exit(1)
	}

	reg := registry.Default()
	var model hybrid.Strategy
	if *withModel {
		client := llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL: cfg.Model.BaseURL,
			Model:   cfg.Model.Name,
			Timeout: cfg.Model.Timeout,
		}, logger)
		model = hybrid.NewModelExtractor(client, reg)
	}
	engine := hybrid.NewEngine(reg, hybrid.NewPatternExtractor(reg), model, hybrid.Config{
		PatternThreshold: cfg.Pipeline.PatternThreshold,
		ModelEnabled:     *withModel,
	}, logger)

	var selected []string
	if *fieldsFlag != "" {
		selected = strings.Split(*fieldsFlag, ",")
	}
	fields := engine.Extract(ctx, res.Text, selected)

	confs := make([]float64, 0, len(fields))
	for _, f := range fields {
		confs = append(confs, f.Confidence)
	}
	out := output{
		File:       path,
		Engine:     res.Engine,
		Pages:      res.Pages,
		Confidence: res.Confidence,
		Aggregate:  confidence.RoundPercent(confidence.DocumentAggregate(res.Confidence, confs)),
		Fields:     fields,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}
