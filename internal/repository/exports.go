package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/entity"
)

type ExportRepository interface {
	// Record appends an export snapshot; rows are never updated.
	Record(ctx context.Context, rec *entity.ExportRecord) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]entity.ExportRecord, error)
	Latest(ctx context.Context, jobID uuid.UUID) (*entity.ExportRecord, error)
}

type exportRepo struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewExportRepository(db *gorm.DB, logger *slog.Logger) ExportRepository {
	return &exportRepo{db: db, logger: logger}
}

func (r *exportRepo) Record(ctx context.Context, rec *entity.ExportRecord) error {
	if rec.ExportedAt.IsZero() {
		rec.ExportedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		r.logger.Error("failed to record export", "job_id", rec.JobID, "error", err)
		return common.InternalError("record export", err)
	}
	return nil
}

func (r *exportRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]entity.ExportRecord, error) {
	var rows []entity.ExportRecord
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("exported_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, common.InternalError("list exports", err)
	}
	return rows, nil
}

func (r *exportRepo) Latest(ctx context.Context, jobID uuid.UUID) (*entity.ExportRecord, error) {
	rows, err := r.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, common.NotFoundError("no exports for job")
	}
	return &rows[0], nil
}
