package hybrid_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/hybrid"
	"github.com/billscan/billscan/internal/llm"
	"github.com/billscan/billscan/internal/registry"
)

type fakeStrategy struct {
	name  string
	out   map[string]hybrid.Candidate
	err   error
	calls int
	keys  []string
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Extract(_ context.Context, _ string, keys []string) (map[string]hybrid.Candidate, error) {
	f.calls++
	f.keys = append([]string(nil), keys...)
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func cand(v string, conf float64) hybrid.Candidate {
	return hybrid.Candidate{Value: &v, Confidence: conf}
}

func newEngine(pattern, model *fakeStrategy, enabled bool) *hybrid.Engine {
	return hybrid.NewEngine(registry.Default(), pattern, model,
		hybrid.Config{PatternThreshold: 60, ModelEnabled: enabled}, slog.Default())
}

func resultByKey(results []hybrid.FieldResult, key string) hybrid.FieldResult {
	for _, r := range results {
		if r.Key == key {
			return r
		}
	}
	return hybrid.FieldResult{}
}

func TestEngineConfidentPatternSkipsModel(t *testing.T) {
	pattern := &fakeStrategy{name: "pattern", out: map[string]hybrid.Candidate{
		"invoice_number": cand("INV-1", 88),
	}}
	model := &fakeStrategy{name: "model"}
	e := newEngine(pattern, model, true)

	results := e.Extract(context.Background(), "text", []string{"invoice_number"})
	require.Len(t, results, 1)
	assert.Equal(t, "INV-1", *results[0].Value)
	assert.Equal(t, constants.MethodPattern, results[0].Method)
	assert.Equal(t, 0, model.calls)
}

func TestEngineFallbackOnLowConfidence(t *testing.T) {
	pattern := &fakeStrategy{name: "pattern", out: map[string]hybrid.Candidate{
		"vendor_name": cand("AC", 40),
	}}
	model := &fakeStrategy{name: "model", out: map[string]hybrid.Candidate{
		"vendor_name": cand("ACME Supplies Ltd", 92),
	}}
	e := newEngine(pattern, model, true)

	results := e.Extract(context.Background(), "text", []string{"vendor_name"})
	require.Len(t, results, 1)
	assert.Equal(t, "ACME Supplies Ltd", *results[0].Value)
	assert.Equal(t, 92.0, results[0].Confidence)
	assert.Equal(t, constants.MethodModel, results[0].Method)
	assert.Equal(t, []string{"vendor_name"}, model.keys)
}

func TestEngineKeepsPatternWhenModelScoresLower(t *testing.T) {
	pattern := &fakeStrategy{name: "pattern", out: map[string]hybrid.Candidate{
		"vendor_name": cand("ACME", 55),
	}}
	model := &fakeStrategy{name: "model", out: map[string]hybrid.Candidate{
		"vendor_name": cand("Acme Co", 50),
	}}
	e := newEngine(pattern, model, true)

	results := e.Extract(context.Background(), "text", []string{"vendor_name"})
	require.Len(t, results, 1)
	assert.Equal(t, "ACME", *results[0].Value)
	assert.Equal(t, constants.MethodPattern, results[0].Method)
}

func TestEnginePatternWinsTies(t *testing.T) {
	pattern := &fakeStrategy{name: "pattern", out: map[string]hybrid.Candidate{
		"vendor_name": cand("ACME", 50),
	}}
	model := &fakeStrategy{name: "model", out: map[string]hybrid.Candidate{
		"vendor_name": cand("Acme Co", 50),
	}}
	e := newEngine(pattern, model, true)

	results := e.Extract(context.Background(), "text", []string{"vendor_name"})
	require.Len(t, results, 1)
	assert.Equal(t, "ACME", *results[0].Value)
	assert.Equal(t, constants.MethodPattern, results[0].Method)
}

func TestEngineNotFoundRow(t *testing.T) {
	pattern := &fakeStrategy{name: "pattern", out: map[string]hybrid.Candidate{}}
	model := &fakeStrategy{name: "model", out: map[string]hybrid.Candidate{}}
	e := newEngine(pattern, model, true)

	results := e.Extract(context.Background(), "text", []string{"po_number"})
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Value)
	assert.Equal(t, 0.0, results[0].Confidence)
	assert.Equal(t, constants.MethodPattern, results[0].Method)
	assert.Equal(t, "PO Number", results[0].Label)
}

func TestEngineModelFailureDegrades(t *testing.T) {
	pattern := &fakeStrategy{name: "pattern", out: map[string]hybrid.Candidate{
		"vendor_name": cand("ACME", 40),
	}}
	model := &fakeStrategy{name: "model", err: common.ModelUnavailable("endpoint down", nil)}
	e := newEngine(pattern, model, true)

	results := e.Extract(context.Background(), "text", []string{"vendor_name", "po_number"})
	require.Len(t, results, 2)

	vendor := resultByKey(results, "vendor_name")
	require.NotNil(t, vendor.Value)
	assert.Equal(t, "ACME", *vendor.Value)
	assert.Equal(t, constants.MethodPattern, vendor.Method)

	po := resultByKey(results, "po_number")
	assert.Nil(t, po.Value)
	assert.Equal(t, 0.0, po.Confidence)
}

func TestEngineModelDisabled(t *testing.T) {
	pattern := &fakeStrategy{name: "pattern", out: map[string]hybrid.Candidate{
		"vendor_name": cand("AC", 30),
	}}
	model := &fakeStrategy{name: "model", out: map[string]hybrid.Candidate{
		"vendor_name": cand("ACME Supplies Ltd", 92),
	}}
	e := newEngine(pattern, model, false)

	results := e.Extract(context.Background(), "text", []string{"vendor_name"})
	require.Len(t, results, 1)
	assert.Equal(t, "AC", *results[0].Value)
	assert.Equal(t, 0, model.calls)
}

func TestEngineDropsUnregisteredKeys(t *testing.T) {
	pattern := &fakeStrategy{name: "pattern", out: map[string]hybrid.Candidate{}}
	e := newEngine(pattern, &fakeStrategy{name: "model"}, false)

	results := e.Extract(context.Background(), "text", []string{"no_such_field"})
	assert.Empty(t, results)
}

func TestEnginePreservesSelectionOrder(t *testing.T) {
	pattern := &fakeStrategy{name: "pattern", out: map[string]hybrid.Candidate{}}
	e := newEngine(pattern, &fakeStrategy{name: "model"}, false)

	results := e.Extract(context.Background(), "text", []string{"date", "invoice_number", "currency"})
	require.Len(t, results, 3)
	assert.Equal(t, "date", results[0].Key)
	assert.Equal(t, "invoice_number", results[1].Key)
	assert.Equal(t, "currency", results[2].Key)
}

type fakeFieldExtractor struct {
	values map[string]llm.ExtractedValue
	err    error
	req    llm.ExtractRequest
}

func (f *fakeFieldExtractor) ExtractFields(_ context.Context, req llm.ExtractRequest) (map[string]llm.ExtractedValue, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.values, nil
}

func strptr(s string) *string { return &s }

func TestModelExtractorNormalizesConfidence(t *testing.T) {
	client := &fakeFieldExtractor{values: map[string]llm.ExtractedValue{
		"vendor_name":   {Value: strptr("ACME"), Confidence: 0.9},
		"customer_name": {Value: strptr("Jane"), Confidence: 0},
		"total_amount":  {Value: strptr("100.00"), Confidence: 250},
		"po_number":     {Value: nil, Confidence: 80},
	}}
	m := hybrid.NewModelExtractor(client, registry.Default())

	out, err := m.Extract(context.Background(), "text",
		[]string{"vendor_name", "customer_name", "total_amount", "po_number"})
	require.NoError(t, err)

	assert.Equal(t, 90.0, out["vendor_name"].Confidence)
	assert.Equal(t, 92.0, out["customer_name"].Confidence)
	assert.Equal(t, 95.0, out["total_amount"].Confidence)
	_, found := out["po_number"]
	assert.False(t, found, "nil values are dropped")

	require.Len(t, client.req.Fields, 4)
	assert.Equal(t, "Vendor / Company", client.req.Fields[0].Label)
}

func TestModelExtractorEmptyKeys(t *testing.T) {
	client := &fakeFieldExtractor{}
	m := hybrid.NewModelExtractor(client, registry.Default())

	out, err := m.Extract(context.Background(), "text", []string{"unknown"})
	require.NoError(t, err)
	assert.Empty(t, out)
}
