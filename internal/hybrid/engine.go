package hybrid

import (
	"context"
	"log/slog"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/registry"
)

// DefaultPatternThreshold is the pattern confidence below which the model
// fallback is consulted.
const DefaultPatternThreshold = 60

// Config holds the engine's policy knobs. ModelEnabled is the explicit
// capability flag for the fallback strategy; availability is never probed
// through global state.
type Config struct {
	PatternThreshold float64
	ModelEnabled     bool
}

// Engine composes the pattern strategy with an optional model fallback and
// reconciles their candidates into one result per selected field.
type Engine struct {
	reg       *registry.Registry
	pattern   Strategy
	model     Strategy // nil when the capability is off
	threshold float64
	logger    *slog.Logger
}

func NewEngine(reg *registry.Registry, pattern, model Strategy, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PatternThreshold <= 0 {
		cfg.PatternThreshold = DefaultPatternThreshold
	}
	if !cfg.ModelEnabled {
		model = nil
	}
	return &Engine{reg: reg, pattern: pattern, model: model, threshold: cfg.PatternThreshold, logger: logger}
}

// Extract runs the hybrid algorithm for every selected field and returns one
// result per registered key, in selection order. Unregistered keys are
// dropped; an empty selection means every registered field. Model-path
// failures degrade silently to the pattern-only result; they never fail the
// extraction.
func (e *Engine) Extract(ctx context.Context, text string, selected []string) []FieldResult {
	if len(selected) == 0 {
		selected = e.reg.Keys()
	}
	keys := make([]string, 0, len(selected))
	for _, k := range selected {
		if _, ok := e.reg.Get(k); ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	patternOut, _ := e.pattern.Extract(ctx, text, keys)

	// Fields whose pattern answer is missing or under threshold go to the
	// fallback in one batch.
	var needy []string
	for _, k := range keys {
		c, ok := patternOut[k]
		if !ok || c.Value == nil || c.Confidence < e.threshold {
			needy = append(needy, k)
		}
	}

	var modelOut map[string]Candidate
	if e.model != nil && len(needy) > 0 {
		var err error
		modelOut, err = e.model.Extract(ctx, text, needy)
		if err != nil {
			// Degraded, not fatal: pattern results stand, remaining
			// fields continue.
			e.logger.Warn("model fallback unavailable, using pattern-only results",
				"fields", len(needy), "error", err)
			modelOut = nil
		}
	}

	results := make([]FieldResult, 0, len(keys))
	for _, k := range keys {
		def, _ := e.reg.Get(k)
		results = append(results, reconcile(def, patternOut[k], modelOut[k]))
	}
	return results
}

// reconcile keeps the higher-confidence candidate and records its method
// tag. Equal confidence prefers the deterministic pattern strategy. Neither
// producing a value yields the canonical "not found" row.
func reconcile(def *registry.FieldDefinition, pattern, model Candidate) FieldResult {
	res := FieldResult{Key: def.Key, Label: def.Label, Method: constants.MethodPattern}
	switch {
	case pattern.Value != nil && (model.Value == nil || pattern.Confidence >= model.Confidence):
		res.Value = pattern.Value
		res.Confidence = pattern.Confidence
	case model.Value != nil:
		res.Value = model.Value
		res.Confidence = model.Confidence
		res.Method = constants.MethodModel
	}
	return res
}
