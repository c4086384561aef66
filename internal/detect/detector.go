// Package detect flags which registry fields are likely present in extracted
// text. The result is advisory: it seeds default field selection downstream
// but never blocks extraction of an undetected field.
package detect

import (
	"strings"

	"github.com/billscan/billscan/internal/registry"
)

// Detection is the presence flag for one catalog field.
type Detection struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Detected bool   `json:"detected"`
}

// Detect tests every field's detection pattern against text and returns one
// entry per catalog field, in catalog order. Empty or whitespace-only text
// yields all-false flags, never an error.
func Detect(text string, reg *registry.Registry) []Detection {
	out := make([]Detection, 0, reg.Len())
	blank := strings.TrimSpace(text) == ""
	for _, key := range reg.Keys() {
		def, _ := reg.Get(key)
		d := Detection{Key: def.Key, Label: def.Label}
		if !blank {
			d.Detected = def.Detect.MatchString(text)
		}
		out = append(out, d)
	}
	return out
}

// DetectedKeys returns just the keys flagged present, in catalog order.
func DetectedKeys(text string, reg *registry.Registry) []string {
	var keys []string
	for _, d := range Detect(text, reg) {
		if d.Detected {
			keys = append(keys, d.Key)
		}
	}
	return keys
}
