package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/entity"
	"github.com/billscan/billscan/internal/repository"
)

// Service assembles the workbook for a job, writes it under the export
// directory, and records an append-only export snapshot.
type Service struct {
	jobs    repository.JobRepository
	exports repository.ExportRepository
	dir     string
	logger  *slog.Logger
}

func NewService(jobs repository.JobRepository, exports repository.ExportRepository, dir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, exports: exports, dir: dir, logger: logger}
}

func (s *Service) Export(ctx context.Context, jobID uuid.UUID) (*entity.ExportRecord, error) {
	start := time.Now()

	job, err := s.jobs.GetWithDocuments(ctx, jobID)
	if err != nil {
		return nil, err
	}
	ds := BuildDataset(job.Documents)
	if ds.FieldCount() == 0 {
		return nil, common.ValidationError("job has no extraction results to export")
	}

	wb, err := Workbook(ds)
	if err != nil {
		return nil, common.InternalError("build workbook", err)
	}
	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, common.InternalError("encode workbook", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, common.InternalError("create export directory", err)
	}
	name := fmt.Sprintf("billscan_%s_%d.xlsx", shortID(jobID), time.Now().Unix())
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, common.InternalError("write export file", err)
	}

	rec := &entity.ExportRecord{
		JobID:         jobID,
		FilePath:      path,
		FileSize:      int64(buf.Len()),
		DocumentCount: len(ds.Rows),
		FieldCount:    ds.FieldCount(),
	}
	if err := s.exports.Record(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("export written",
		"job_id", jobID,
		"path", path,
		"documents", rec.DocumentCount,
		"fields", rec.FieldCount,
		"bytes", rec.FileSize,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
