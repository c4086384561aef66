// Package registry holds the static catalog of extractable field
// definitions. The catalog is read-only after construction and safe to share
// across concurrent pipeline work.
package registry

import "regexp"

// FieldDefinition describes one extractable field.
//
// Detect is the loose presence pattern used only to flag that the field is
// likely in a document. Values are the stricter capture patterns, ordered
// from most to least specific; extraction scoring rewards earlier patterns.
type FieldDefinition struct {
	Key            string
	Label          string
	Detect         *regexp.Regexp
	Values         []*regexp.Regexp
	BaseConfidence float64 // 0..100, pattern-strategy starting score
	MaxLength      int     // 0 = unlimited; extracted values are truncated
}

// FieldInfo is the read-only projection exposed to field-selection UIs.
type FieldInfo struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Registry is an ordered, immutable set of field definitions.
type Registry struct {
	defs  []FieldDefinition
	byKey map[string]*FieldDefinition
}

// New builds a registry from definitions, preserving order.
func New(defs []FieldDefinition) *Registry {
	r := &Registry{defs: defs, byKey: make(map[string]*FieldDefinition, len(defs))}
	for i := range r.defs {
		r.byKey[r.defs[i].Key] = &r.defs[i]
	}
	return r
}

// Get returns the definition for key, if registered.
func (r *Registry) Get(key string) (*FieldDefinition, bool) {
	d, ok := r.byKey[key]
	return d, ok
}

// List enumerates {key, label} pairs in catalog order.
func (r *Registry) List() []FieldInfo {
	out := make([]FieldInfo, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, FieldInfo{Key: d.Key, Label: d.Label})
	}
	return out
}

// Keys returns all field keys in catalog order.
func (r *Registry) Keys() []string {
	out := make([]string, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d.Key)
	}
	return out
}

// Len returns the number of registered fields.
func (r *Registry) Len() int { return len(r.defs) }
