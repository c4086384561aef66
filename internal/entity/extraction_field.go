package entity

import (
	"time"

	"github.com/google/uuid"
)

// ExtractionField is one extracted value for one (document, field key) pair.
// At most one row exists per pair: each extraction pass replaces prior rows
// for the fields re-run. A nil Value with confidence 0 is the first-class
// "not found" outcome, not an error.
type ExtractionField struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	DocumentID  uuid.UUID `gorm:"type:uuid;index:idx_doc_field,unique" json:"document_id"`
	FieldKey    string    `gorm:"size:100;index:idx_doc_field,unique" json:"key"`
	FieldLabel  string    `gorm:"size:100" json:"label"`
	Value       *string   `gorm:"type:text" json:"value"`
	Confidence  float64   `json:"confidence"` // 0..100
	Method      string    `gorm:"size:20;default:pattern" json:"method"`
	ExtractedAt time.Time `json:"extracted_at"`
}

func (ExtractionField) TableName() string { return "extraction_fields" }
