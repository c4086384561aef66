// Package textextract turns one stored document into normalized text plus a
// confidence value and engine tag. Digital documents with embedded
// selectable text take the native path (confidence 100); everything else
// goes through tesseract recognition.
package textextract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/common"
)

// Result is the text-extraction outcome for one document.
type Result struct {
	Text       string
	Confidence float64 // 0..100
	Engine     string  // constants.EngineNative or "ocr:<langs>"
	Pages      int
	Duration   time.Duration
	Warnings   []string
}

// TextExtractor is the stage-1 contract the state machine depends on.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

type Config struct {
	Tesseract string        // binary name or absolute path; if empty -> "tesseract"
	Languages string        // tesseract language set, default "eng"
	DPI       int           // rasterization DPI for scanned pages, default 300
	MaxPages  int           // 0 = no limit
	Timeout   time.Duration // per-document recognition budget, 0 = caller's context only
}

type Extractor struct {
	cfg    Config
	runner Runner
	open   OpenFunc
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Languages == "" {
		cfg.Languages = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, open: openFitz, logger: logger}
}

// Extract picks native vs recognition extraction for the file at path.
// Re-invocation is a full overwrite: the result never merges with a prior
// attempt.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	if _, err := os.Stat(path); err != nil {
		return Result{}, common.DecodeError(fmt.Sprintf("file not found: %s", filepath.Base(path)), err)
	}

	ext := constants.NormalizeExt(filepath.Ext(path))
	format := constants.MapExtToFormat(ext)

	var res Result
	var err error
	switch format {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, path)
	default:
		return Result{}, common.DecodeError(fmt.Sprintf("unsupported extension: %q", ext), nil)
	}
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}

	e.logger.Debug("text extraction done",
		"path", filepath.Base(path),
		"engine", res.Engine,
		"pages", res.Pages,
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	src, err := e.open(path)
	if err != nil {
		return Result{}, common.DecodeError(fmt.Sprintf("open document: %s", filepath.Base(path)), err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			e.logger.Warn("close document", "path", path, "error", cerr)
		}
	}()

	pages := src.PageCount()
	if pages == 0 {
		return Result{}, common.DecodeError("document has no pages", nil)
	}
	limit := pages
	if e.cfg.MaxPages > 0 && limit > e.cfg.MaxPages {
		limit = e.cfg.MaxPages
	}

	// Probe for embedded selectable text first. Presence is a structural
	// property of the file; when found, the text is ground truth and the
	// document is never OCR'd.
	var b strings.Builder
	hasNative := false
	for n := 0; n < limit; n++ {
		txt, terr := src.PageText(n)
		if terr != nil {
			return Result{}, common.DecodeError(fmt.Sprintf("read page %d", n+1), terr)
		}
		if strings.TrimSpace(txt) != "" {
			hasNative = true
		}
		if n > 0 {
			b.WriteString("\f")
		}
		b.WriteString(txt)
	}
	if hasNative {
		return Result{
			Text:       b.String(),
			Confidence: 100,
			Engine:     constants.EngineNative,
			Pages:      pages,
		}, nil
	}

	// Image-only PDF: rasterize and recognize page by page.
	var out strings.Builder
	var warnings []string
	var confSum float64
	var wordCount int
	for n := 0; n < limit; n++ {
		if err := ctx.Err(); err != nil {
			return Result{}, e.timeoutOr(err)
		}
		img, rerr := src.RenderPage(n, float64(e.cfg.DPI))
		if rerr != nil {
			return Result{}, common.DecodeError(fmt.Sprintf("render page %d", n+1), rerr)
		}
		tmp, werr := writeTempPNG(img)
		if werr != nil {
			return Result{}, common.InternalError("write page image", werr)
		}
		tsv, oerr := e.recognize(ctx, tmp)
		_ = os.Remove(tmp)
		if oerr != nil {
			return Result{}, oerr
		}
		if out.Len() > 0 {
			out.WriteString("\n\f\n") // keep a clear page break marker
		}
		out.WriteString(tsv.Text)
		confSum += tsv.ConfSum
		wordCount += tsv.WordCount
	}

	res := Result{
		Text:     out.String(),
		Engine:   constants.OCREngineTag(e.cfg.Languages),
		Pages:    pages,
		Warnings: warnings,
	}
	if wordCount > 0 {
		res.Confidence = confSum / float64(wordCount)
	}
	return res, nil
}

func (e *Extractor) extractImage(ctx context.Context, path string) (Result, error) {
	tsv, err := e.recognize(ctx, path)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Text:       tsv.Text,
		Confidence: tsv.meanConfidence(),
		Engine:     constants.OCREngineTag(e.cfg.Languages),
		Pages:      1,
	}, nil
}

// recognize runs one tesseract TSV pass and parses text plus the engine's
// own per-word confidences.
func (e *Extractor) recognize(ctx context.Context, imgPath string) (tsvResult, error) {
	args := []string{imgPath, "stdout", "-l", e.cfg.Languages, "tsv"}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	switch {
	case err == nil:
		return parseTSV(string(out)), nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return tsvResult{}, common.RecognitionTimeout("recognition exceeded its time budget", err)
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return tsvResult{}, err
	default:
		return tsvResult{}, common.DecodeError(
			fmt.Sprintf("recognition failed: %s", truncate(string(errb), 512)), err)
	}
}

func (e *Extractor) timeoutOr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return common.RecognitionTimeout("recognition exceeded its time budget", err)
	}
	return err
}

func writeTempPNG(img image.Image) (string, error) {
	f, err := os.CreateTemp("", "billscan-page-*.png")
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
