package entity

import (
	"time"

	"github.com/google/uuid"
)

// ExportRecord is an immutable snapshot of one export event for a job.
// Rows are append-only; the job surfaces only the most recent artifact.
type ExportRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	JobID         uuid.UUID `gorm:"type:uuid;index" json:"job_id"`
	FilePath      string    `gorm:"size:500" json:"file_path"`
	FileSize      int64     `json:"file_size"`
	DocumentCount int       `json:"document_count"`
	FieldCount    int       `json:"field_count"`
	ExportedAt    time.Time `json:"exported_at"`
}

func (ExportRecord) TableName() string { return "export_records" }
