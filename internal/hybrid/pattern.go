package hybrid

import (
	"context"
	"regexp"
	"strings"

	"github.com/billscan/billscan/internal/confidence"
	"github.com/billscan/billscan/internal/registry"
)

const (
	// patternOrderBonus rewards earlier (more specific) value patterns:
	// max(0, patternOrderBonus - patternOrderStep*i).
	patternOrderBonus = 10
	patternOrderStep  = 3

	// ambiguityPenalty is charged per extra distinct candidate value,
	// capped at ambiguityPenaltyCap.
	ambiguityPenalty    = 3
	ambiguityPenaltyCap = 12

	// patternMaxConfidence keeps the pattern strategy below a perfect
	// score; only native text earns 100.
	patternMaxConfidence = 99
)

var wsCollapse = regexp.MustCompile(`\s+`)

// PatternExtractor is the primary, fully deterministic strategy: it applies
// each field's value patterns and scores matches by pattern specificity,
// proximity to the field's label anchor, and absence of ambiguity.
type PatternExtractor struct {
	reg *registry.Registry
}

func NewPatternExtractor(reg *registry.Registry) *PatternExtractor {
	return &PatternExtractor{reg: reg}
}

func (p *PatternExtractor) Name() string { return "pattern" }

func (p *PatternExtractor) Extract(_ context.Context, text string, keys []string) (map[string]Candidate, error) {
	out := make(map[string]Candidate, len(keys))
	for _, key := range keys {
		def, ok := p.reg.Get(key)
		if !ok {
			continue
		}
		if c, found := p.extractField(text, def); found {
			out[key] = c
		}
	}
	return out, nil
}

type match struct {
	value string
	pos   int
	score float64
}

func (p *PatternExtractor) extractField(text string, def *registry.FieldDefinition) (Candidate, bool) {
	var cands []match
	for i, vp := range def.Values {
		bonus := patternOrderBonus - patternOrderStep*i
		if bonus < 0 {
			bonus = 0
		}
		score := def.BaseConfidence + float64(bonus)
		if score > patternMaxConfidence {
			score = patternMaxConfidence
		}
		for _, m := range vp.FindAllStringSubmatchIndex(text, -1) {
			if len(m) < 4 || m[2] < 0 || m[2] == m[3] {
				continue
			}
			cands = append(cands, match{value: text[m[2]:m[3]], pos: m[2], score: score})
		}
	}
	if len(cands) == 0 {
		return Candidate{}, false
	}

	// Ambiguity: distinct competing values cost confidence.
	distinct := map[string]struct{}{}
	for _, c := range cands {
		distinct[normalizeValue(c.value, def)] = struct{}{}
	}
	penalty := float64((len(distinct) - 1) * ambiguityPenalty)
	if penalty > ambiguityPenaltyCap {
		penalty = ambiguityPenaltyCap
	}

	// Prefer the candidate nearest the label anchor (first detection
	// match); ties break to the earliest text position, then to the
	// higher-scoring pattern.
	anchor := -1
	if loc := def.Detect.FindStringIndex(text); loc != nil {
		anchor = loc[0]
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if closer(c, best, anchor) {
			best = c
		}
	}

	val := normalizeValue(best.value, def)
	if val == "" {
		return Candidate{}, false
	}
	conf := confidence.Clamp(best.score - penalty)
	return Candidate{Value: &val, Confidence: conf}, true
}

func closer(a, b match, anchor int) bool {
	if anchor >= 0 {
		da, db := absInt(a.pos-anchor), absInt(b.pos-anchor)
		if da != db {
			return da < db
		}
	}
	if a.pos != b.pos {
		return a.pos < b.pos
	}
	return a.score > b.score
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// normalizeValue applies the catalog post-processing rules: whitespace
// collapse, currency symbol mapping, and max-length truncation.
func normalizeValue(v string, def *registry.FieldDefinition) string {
	v = strings.TrimSpace(wsCollapse.ReplaceAllString(v, " "))
	if def.Key == "currency" {
		if iso, ok := registry.CurrencySymbols[v]; ok {
			v = iso
		}
	}
	if def.MaxLength > 0 {
		// Truncate by rune so a multibyte character is never split.
		if r := []rune(v); len(r) > def.MaxLength {
			v = string(r[:def.MaxLength])
		}
	}
	return v
}
