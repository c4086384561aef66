package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document is one uploaded file belonging to exactly one Job.
//
// The four text fields (Text, TextConfidence, Engine, TextExtractedAt) are
// all-or-nothing: either the text-extraction stage set all of them, or all
// are nil. Re-running the stage overwrites, never appends.
type Document struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID        uuid.UUID `gorm:"type:uuid;index" json:"job_id"`
	OriginalName string    `gorm:"size:255" json:"original_name"`
	StoredPath   string    `gorm:"size:500" json:"-"`
	FileSize     int64     `json:"file_size"`
	MIMEType     string    `gorm:"size:100" json:"mime_type,omitempty"`
	ContentHash  string    `gorm:"size:64" json:"content_hash,omitempty"` // SHA-256 hex
	PageCount    int       `gorm:"default:1" json:"page_count"`
	UploadedAt   time.Time `json:"uploaded_at"`

	Text            *string    `gorm:"type:text" json:"text,omitempty"`
	TextConfidence  *float64   `json:"text_confidence,omitempty"` // 0..100
	Engine          *string    `gorm:"size:50" json:"engine,omitempty"`
	TextExtractedAt *time.Time `json:"text_extracted_at,omitempty"`

	Fields []ExtractionField `gorm:"constraint:OnDelete:CASCADE" json:"extracted_fields,omitempty"`
}

func (Document) TableName() string { return "documents" }

// HasText reports whether the text-extraction stage has run for this document.
func (d *Document) HasText() bool {
	return d.Text != nil && d.TextConfidence != nil && d.Engine != nil && d.TextExtractedAt != nil
}
