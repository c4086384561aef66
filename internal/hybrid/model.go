package hybrid

import (
	"context"

	"github.com/billscan/billscan/internal/confidence"
	"github.com/billscan/billscan/internal/llm"
	"github.com/billscan/billscan/internal/registry"
)

const (
	// defaultModelConfidence is assigned when the model reports a value
	// without a usable confidence of its own.
	defaultModelConfidence = 92
	// modelConfidenceCap bounds model self-reported scores: they are never
	// assumed to be calibrated against the pattern strategy.
	modelConfidenceCap = 95
)

// ModelExtractor adapts a llm.FieldExtractor into the fallback strategy,
// normalizing model confidence into the shared 0..100 scale.
type ModelExtractor struct {
	client llm.FieldExtractor
	reg    *registry.Registry
}

func NewModelExtractor(client llm.FieldExtractor, reg *registry.Registry) *ModelExtractor {
	return &ModelExtractor{client: client, reg: reg}
}

func (m *ModelExtractor) Name() string { return "model" }

func (m *ModelExtractor) Extract(ctx context.Context, text string, keys []string) (map[string]Candidate, error) {
	specs := make([]llm.FieldSpec, 0, len(keys))
	for _, key := range keys {
		if def, ok := m.reg.Get(key); ok {
			specs = append(specs, llm.FieldSpec{Key: def.Key, Label: def.Label})
		}
	}
	if len(specs) == 0 {
		return map[string]Candidate{}, nil
	}

	values, err := m.client.ExtractFields(ctx, llm.ExtractRequest{Text: text, Fields: specs})
	if err != nil {
		return nil, err
	}

	out := make(map[string]Candidate, len(values))
	for key, v := range values {
		if v.Value == nil {
			continue
		}
		out[key] = Candidate{Value: v.Value, Confidence: normalizeModelConfidence(v.Confidence)}
	}
	return out, nil
}

// normalizeModelConfidence maps whatever scale the model reported onto
// 0..100 deterministically: values at or below 1 are treated as a 0..1
// scale, missing scores get the fixed default, and everything is capped.
func normalizeModelConfidence(raw float64) float64 {
	switch {
	case raw <= 0:
		return defaultModelConfidence
	case raw <= 1:
		raw *= 100
	}
	if raw > modelConfidenceCap {
		raw = modelConfidenceCap
	}
	return confidence.Clamp(raw)
}
