// Package hybrid runs field extraction as a primary pattern strategy with an
// optional model-based fallback, reconciled by confidence.
package hybrid

import "context"

// Candidate is one strategy's answer for a single field. A nil Value means
// the strategy found nothing.
type Candidate struct {
	Value      *string
	Confidence float64 // 0..100
}

// FieldResult is the reconciled outcome for one field. Value nil with
// confidence 0 and method "pattern" is the canonical "not found" row.
type FieldResult struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Value      *string `json:"value"`
	Confidence float64 `json:"confidence"` // 0..100
	Method     string  `json:"method"`     // constants.MethodPattern | constants.MethodModel
}

// Strategy extracts candidates for the requested field keys from text.
// Implementations return an entry per key they can answer; missing keys
// mean "nothing found".
type Strategy interface {
	Name() string
	Extract(ctx context.Context, text string, keys []string) (map[string]Candidate, error)
}
