package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/entity"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	// CreateWithDocuments creates the job and its documents in one
	// transaction: a failed document insert leaves no partial job behind.
	CreateWithDocuments(ctx context.Context, job *entity.Job, docs []entity.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	// GetWithDocuments loads the job plus its documents and their fields.
	GetWithDocuments(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	List(ctx context.Context, ownerID string) ([]entity.Job, error)
	// UpdateStatus applies a state transition, validating it against the
	// lifecycle rules. errMsg is stored on failed, cleared otherwise.
	UpdateStatus(ctx context.Context, id uuid.UUID, to constants.JobStatus, errMsg *string) error
	SetProcessingTime(ctx context.Context, id uuid.UUID, elapsed time.Duration) error
	// SetExcelPath points the job at its latest export artifact; nil clears it.
	SetExcelPath(ctx context.Context, id uuid.UUID, path *string) error
	SetTotals(ctx context.Context, id uuid.UUID, documents, pages int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type jobRepo struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewJobRepository(db *gorm.DB, logger *slog.Logger) JobRepository {
	return &jobRepo{db: db, logger: logger}
}

func (r *jobRepo) Create(ctx context.Context, job *entity.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		r.logger.Error("failed to create job", "job_id", job.ID, "error", err)
		return common.InternalError("create job", err)
	}
	return nil
}

func (r *jobRepo) CreateWithDocuments(ctx context.Context, job *entity.Job, docs []entity.Document) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}
	now := time.Now().UTC()
	for i := range docs {
		if docs[i].ID == uuid.Nil {
			docs[i].ID = uuid.New()
		}
		docs[i].JobID = job.ID
		if docs[i].UploadedAt.IsZero() {
			docs[i].UploadedAt = now
		}
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		return tx.Create(&docs).Error
	})
	if err != nil {
		r.logger.Error("failed to create job with documents", "job_id", job.ID, "documents", len(docs), "error", err)
		return common.InternalError("create job", err)
	}
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var job entity.Job
	err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFoundError("job not found")
	}
	if err != nil {
		r.logger.Error("failed to get job", "job_id", id, "error", err)
		return nil, common.InternalError("get job", err)
	}
	return &job, nil
}

func (r *jobRepo) GetWithDocuments(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var job entity.Job
	err := r.db.WithContext(ctx).
		Preload("Documents", func(db *gorm.DB) *gorm.DB {
			return db.Order("documents.uploaded_at, documents.id")
		}).
		Preload("Documents.Fields").
		First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFoundError("job not found")
	}
	if err != nil {
		r.logger.Error("failed to get job with documents", "job_id", id, "error", err)
		return nil, common.InternalError("get job", err)
	}
	return &job, nil
}

func (r *jobRepo) List(ctx context.Context, ownerID string) ([]entity.Job, error) {
	var jobs []entity.Job
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	if err := q.Find(&jobs).Error; err != nil {
		r.logger.Error("failed to list jobs", "error", err)
		return nil, common.InternalError("list jobs", err)
	}
	return jobs, nil
}

func (r *jobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, to constants.JobStatus, errMsg *string) error {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !constants.CanTransition(job.Status, to) {
		return common.ValidationError("invalid status transition %s -> %s", job.Status, to)
	}
	updates := map[string]any{"status": to, "error": errMsg}
	if err := r.db.WithContext(ctx).Model(&entity.Job{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		r.logger.Error("failed to update job status", "job_id", id, "to", to, "error", err)
		return common.InternalError("update job status", err)
	}
	return nil
}

func (r *jobRepo) SetProcessingTime(ctx context.Context, id uuid.UUID, elapsed time.Duration) error {
	ms := elapsed.Milliseconds()
	err := r.db.WithContext(ctx).Model(&entity.Job{}).Where("id = ?", id).
		Update("processing_ms", ms).Error
	if err != nil {
		return common.InternalError("set processing time", err)
	}
	return nil
}

func (r *jobRepo) SetExcelPath(ctx context.Context, id uuid.UUID, path *string) error {
	err := r.db.WithContext(ctx).Model(&entity.Job{}).Where("id = ?", id).
		Update("excel_path", path).Error
	if err != nil {
		return common.InternalError("set excel path", err)
	}
	return nil
}

func (r *jobRepo) SetTotals(ctx context.Context, id uuid.UUID, documents, pages int) error {
	err := r.db.WithContext(ctx).Model(&entity.Job{}).Where("id = ?", id).
		Updates(map[string]any{"total_documents": documents, "total_pages": pages}).Error
	if err != nil {
		return common.InternalError("set job totals", err)
	}
	return nil
}

// Delete removes the job and, through the schema's cascades, its documents,
// extraction fields and export records.
func (r *jobRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var docIDs []uuid.UUID
		if err := tx.Model(&entity.Document{}).Where("job_id = ?", id).Pluck("id", &docIDs).Error; err != nil {
			return common.InternalError("collect job documents", err)
		}
		if len(docIDs) > 0 {
			if err := tx.Where("document_id IN ?", docIDs).Delete(&entity.ExtractionField{}).Error; err != nil {
				return common.InternalError("delete extraction fields", err)
			}
		}
		if err := tx.Where("job_id = ?", id).Delete(&entity.Document{}).Error; err != nil {
			return common.InternalError("delete documents", err)
		}
		if err := tx.Where("job_id = ?", id).Delete(&entity.ExportRecord{}).Error; err != nil {
			return common.InternalError("delete export records", err)
		}
		res := tx.Delete(&entity.Job{}, "id = ?", id)
		if res.Error != nil {
			return common.InternalError("delete job", res.Error)
		}
		if res.RowsAffected == 0 {
			return common.NotFoundError("job not found")
		}
		return nil
	})
}
