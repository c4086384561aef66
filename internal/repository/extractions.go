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

type ExtractionRepository interface {
	// Replace stores one extraction pass for a document: any prior rows for
	// the re-run field keys are removed first, so the (document, key) pair
	// stays unique.
	Replace(ctx context.Context, documentID uuid.UUID, fields []entity.ExtractionField) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]entity.ExtractionField, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]entity.ExtractionField, error)
}

type extractionRepo struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewExtractionRepository(db *gorm.DB, logger *slog.Logger) ExtractionRepository {
	return &extractionRepo{db: db, logger: logger}
}

func (r *extractionRepo) Replace(ctx context.Context, documentID uuid.UUID, fields []entity.ExtractionField) error {
	if len(fields) == 0 {
		return nil
	}
	now := time.Now().UTC()
	keys := make([]string, 0, len(fields))
	for i := range fields {
		fields[i].ID = 0
		fields[i].DocumentID = documentID
		fields[i].ExtractedAt = now
		keys = append(keys, fields[i].FieldKey)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ? AND field_key IN ?", documentID, keys).
			Delete(&entity.ExtractionField{}).Error; err != nil {
			return err
		}
		return tx.Create(&fields).Error
	})
	if err != nil {
		r.logger.Error("failed to store extraction fields", "document_id", documentID, "fields", len(fields), "error", err)
		return common.InternalError("store extraction fields", err)
	}
	return nil
}

func (r *extractionRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]entity.ExtractionField, error) {
	var rows []entity.ExtractionField
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("field_key").
		Find(&rows).Error
	if err != nil {
		return nil, common.InternalError("list extraction fields", err)
	}
	return rows, nil
}

func (r *extractionRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]entity.ExtractionField, error) {
	var rows []entity.ExtractionField
	err := r.db.WithContext(ctx).
		Joins("JOIN documents ON documents.id = extraction_fields.document_id").
		Where("documents.job_id = ?", jobID).
		Order("extraction_fields.document_id, extraction_fields.field_key").
		Find(&rows).Error
	if err != nil {
		r.logger.Error("failed to list job extraction fields", "job_id", jobID, "error", err)
		return nil, common.InternalError("list extraction fields", err)
	}
	return rows, nil
}
