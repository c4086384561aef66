// Package ingest watches an inbox directory and submits every billing
// document dropped there as a single-document job, then runs it through the
// whole pipeline. It is an optional ingress next to HTTP upload.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/jobs"
)

type Config struct {
	// Dir is the inbox directory to watch. Files are moved out of it into
	// StoreDir once picked up.
	Dir      string
	StoreDir string
	// Debounce coalesces write bursts while a file is still being copied in.
	Debounce time.Duration
	// InitialScan submits files already sitting in the inbox at startup.
	InitialScan bool
}

// Watcher tails the inbox and feeds the pipeline.
type Watcher struct {
	cfg    Config
	pipe   *jobs.Pipeline
	logger *slog.Logger
}

func NewWatcher(cfg Config, pipe *jobs.Pipeline, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	return &Watcher{cfg: cfg, pipe: pipe, logger: logger}
}

// Run blocks until ctx is cancelled, submitting one job per stable file.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return err
	}
	if err := fw.Add(w.cfg.Dir); err != nil {
		return err
	}
	w.logger.Info("watching inbox", "dir", w.cfg.Dir)

	if w.cfg.InitialScan {
		entries, err := os.ReadDir(w.cfg.Dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !e.IsDir() {
				w.consider(ctx, filepath.Join(w.cfg.Dir, e.Name()))
			}
		}
	}

	// Debounce per path: the timer restarts on every write until the file
	// goes quiet.
	pending := map[string]*time.Timer{}
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
				continue
			}
			path := ev.Name
			if isHidden(path) || !constants.IsAllowedExt(filepath.Ext(path)) {
				continue
			}
			if t, ok := pending[path]; ok {
				t.Reset(w.cfg.Debounce)
				continue
			}
			pending[path] = time.AfterFunc(w.cfg.Debounce, func() {
				w.consider(ctx, path)
			})
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

// consider moves a stable inbox file into the store and runs the pipeline
// over it end to end.
func (w *Watcher) consider(ctx context.Context, path string) {
	if isHidden(path) || !constants.IsAllowedExt(filepath.Ext(path)) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return
	}

	in, err := w.store(path)
	if err != nil {
		w.logger.Error("failed to store inbox file", "path", path, "error", err)
		return
	}

	job, err := w.pipe.SubmitJob(ctx, "inbox", []jobs.DocumentInput{in})
	if err != nil {
		w.logger.Error("failed to submit inbox job", "path", path, "error", err)
		return
	}
	w.logger.Info("inbox file submitted", "job_id", job.ID, "file", in.OriginalName)

	if _, err := w.pipe.RunTextExtraction(ctx, job.ID); err != nil {
		w.logger.Error("inbox text extraction failed", "job_id", job.ID, "error", err)
		return
	}
	if _, err := w.pipe.RunExtraction(ctx, job.ID, nil); err != nil {
		w.logger.Error("inbox extraction failed", "job_id", job.ID, "error", err)
		return
	}
	if _, err := w.pipe.RunExport(ctx, job.ID); err != nil {
		w.logger.Error("inbox export failed", "job_id", job.ID, "error", err)
	}
}

// store hashes the file into the document store and removes it from the
// inbox so it is never picked up twice.
func (w *Watcher) store(path string) (jobs.DocumentInput, error) {
	src, err := os.Open(path)
	if err != nil {
		return jobs.DocumentInput{}, err
	}
	defer src.Close()

	if err := os.MkdirAll(w.cfg.StoreDir, 0o755); err != nil {
		return jobs.DocumentInput{}, err
	}
	ext := constants.NormalizeExt(filepath.Ext(path))
	dstPath := filepath.Join(w.cfg.StoreDir, uuid.NewString()+"."+ext)
	dst, err := os.Create(dstPath)
	if err != nil {
		return jobs.DocumentInput{}, err
	}
	defer dst.Close()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(dst, h), src)
	if err != nil {
		_ = os.Remove(dstPath)
		return jobs.DocumentInput{}, err
	}
	if err := os.Remove(path); err != nil {
		w.logger.Warn("could not remove inbox file", "path", path, "error", err)
	}

	return jobs.DocumentInput{
		OriginalName: filepath.Base(path),
		StoredPath:   dstPath,
		FileSize:     size,
		ContentHash:  hex.EncodeToString(h.Sum(nil)),
	}, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
