package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/entity"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]entity.Document, error)
	GetByJobAndHash(ctx context.Context, jobID uuid.UUID, hash string) (*entity.Document, error)
	// SetText stores the text-extraction result: all four text columns are
	// written together so they stay all-or-nothing.
	SetText(ctx context.Context, id uuid.UUID, text string, conf float64, engine string, pages int) error
	// ClearResults rewinds a document to its just-uploaded state: text
	// columns nulled and extraction rows removed.
	ClearResults(ctx context.Context, id uuid.UUID) error
}

type documentRepo struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewDocumentRepository(db *gorm.DB, logger *slog.Logger) DocumentRepository {
	return &documentRepo{db: db, logger: logger}
}

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		r.logger.Error("failed to create document", "job_id", doc.JobID, "name", doc.OriginalName, "error", err)
		return common.InternalError("create document", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	var doc entity.Document
	err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFoundError("document not found")
	}
	if err != nil {
		return nil, common.InternalError("get document", err)
	}
	return &doc, nil
}

func (r *documentRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]entity.Document, error) {
	var docs []entity.Document
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("uploaded_at, id").
		Find(&docs).Error
	if err != nil {
		r.logger.Error("failed to list documents", "job_id", jobID, "error", err)
		return nil, common.InternalError("list documents", err)
	}
	return docs, nil
}

func (r *documentRepo) GetByJobAndHash(ctx context.Context, jobID uuid.UUID, hash string) (*entity.Document, error) {
	var doc entity.Document
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND content_hash = ?", jobID, hash).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFoundError("document not found")
	}
	if err != nil {
		return nil, common.InternalError("get document by hash", err)
	}
	return &doc, nil
}

func (r *documentRepo) SetText(ctx context.Context, id uuid.UUID, text string, conf float64, engine string, pages int) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&entity.Document{}).Where("id = ?", id).
		Updates(map[string]any{
			"text":              text,
			"text_confidence":   conf,
			"engine":            engine,
			"page_count":        pages,
			"text_extracted_at": now,
		}).Error
	if err != nil {
		r.logger.Error("failed to store document text", "document_id", id, "error", err)
		return common.InternalError("store document text", err)
	}
	return nil
}

func (r *documentRepo) ClearResults(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&entity.ExtractionField{}).Error; err != nil {
			return common.InternalError("clear extraction fields", err)
		}
		err := tx.Model(&entity.Document{}).Where("id = ?", id).
			Updates(map[string]any{
				"text":              nil,
				"text_confidence":   nil,
				"engine":            nil,
				"text_extracted_at": nil,
			}).Error
		if err != nil {
			return common.InternalError("clear document text", err)
		}
		return nil
	})
}
