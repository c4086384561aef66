package llm

import "context"

// FieldSpec names one field the model should extract.
type FieldSpec struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ExtractRequest carries the document text and the fields to pull from it.
type ExtractRequest struct {
	Text   string
	Fields []FieldSpec
}

// ExtractedValue is one field's model answer. Value nil means the model
// reported the field absent. Confidence is whatever scale the model
// reported (0 when unreported); callers normalize it.
type ExtractedValue struct {
	Value      *string
	Confidence float64
}

// FieldExtractor is the model-based extraction strategy the hybrid engine
// falls back to. Implementations return one entry per requested field key.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (map[string]ExtractedValue, error)
}
