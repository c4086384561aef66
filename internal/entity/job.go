package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/billscan/billscan/constants"
)

// Job is a unit of work over one or more documents uploaded together.
// Mutated only by the pipeline state machine.
type Job struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID        string              `gorm:"size:255;index" json:"owner_id"`
	Status         constants.JobStatus `gorm:"size:20;default:pending" json:"status"`
	Error          *string             `gorm:"type:text" json:"error,omitempty"`
	ExcelPath      *string             `gorm:"size:500" json:"excel_path,omitempty"`
	TotalDocuments int                 `json:"total_documents"`
	TotalPages     int                 `json:"total_pages"`
	ProcessingMS   *int64              `json:"processing_time_ms,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`

	Documents []Document     `gorm:"constraint:OnDelete:CASCADE" json:"documents,omitempty"`
	Exports   []ExportRecord `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Job) TableName() string { return "jobs" }
