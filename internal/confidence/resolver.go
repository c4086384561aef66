// Package confidence normalizes and aggregates per-field and per-document
// confidence values. Internal math keeps full float precision; rounding to
// integer percentage points happens only at presentation boundaries.
package confidence

import "math"

// Clamp bounds a confidence value to [0,100].
func Clamp(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

// RoundPercent clamps and rounds for presentation.
func RoundPercent(v float64) int {
	return int(math.Round(Clamp(v)))
}

// FieldMean averages extracted-field confidences. "Not found" fields carry
// confidence 0 and still count: a document of mostly missing fields should
// aggregate low. No fields yields 0.
func FieldMean(fieldConfs []float64) float64 {
	if len(fieldConfs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range fieldConfs {
		sum += Clamp(c)
	}
	return sum / float64(len(fieldConfs))
}

// DocumentAggregate is the flat mean of a document's text-extraction
// confidence and every extracted-field confidence, "not found" zeros
// included. With text 92 and fields 85 and 0 the aggregate is 59.
func DocumentAggregate(textConf float64, fieldConfs []float64) float64 {
	total := Clamp(textConf)
	n := 1.0
	for _, c := range fieldConfs {
		total += Clamp(c)
		n++
	}
	return total / n
}

// JobAggregate is the mean of per-document aggregates; used for analytics,
// never stored per document. No documents yields 0.
func JobAggregate(docAggregates []float64) float64 {
	if len(docAggregates) == 0 {
		return 0
	}
	var sum float64
	for _, a := range docAggregates {
		sum += Clamp(a)
	}
	return sum / float64(len(docAggregates))
}
