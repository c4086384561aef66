package hybrid_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billscan/billscan/internal/hybrid"
	"github.com/billscan/billscan/internal/registry"
)

const invoiceText = `ACME Supplies Ltd
Invoice Number: INV-2024-0042
Date: 15/03/2024
Subtotal: 90.00
Sales Tax: 10.00
Grand Total: $100.00
Currency: USD`

func patternCandidates(t *testing.T, text string, keys ...string) map[string]hybrid.Candidate {
	t.Helper()
	p := hybrid.NewPatternExtractor(registry.Default())
	out, err := p.Extract(context.Background(), text, keys)
	require.NoError(t, err)
	return out
}

func TestPatternExtract(t *testing.T) {
	out := patternCandidates(t, invoiceText, "invoice_number", "total_amount", "currency")

	require.NotNil(t, out["invoice_number"].Value)
	assert.Equal(t, "INV-2024-0042", *out["invoice_number"].Value)
	assert.GreaterOrEqual(t, out["invoice_number"].Confidence, 60.0)

	require.NotNil(t, out["total_amount"].Value)
	assert.Equal(t, "100.00", *out["total_amount"].Value)

	require.NotNil(t, out["currency"].Value)
	assert.Equal(t, "USD", *out["currency"].Value)
}

func TestPatternNotFound(t *testing.T) {
	out := patternCandidates(t, "nothing billing related here", "po_number")
	_, found := out["po_number"]
	assert.False(t, found)
}

func TestPatternDeterministic(t *testing.T) {
	keys := registry.Default().Keys()
	first := patternCandidates(t, invoiceText, keys...)
	for i := 0; i < 5; i++ {
		again := patternCandidates(t, invoiceText, keys...)
		require.Equal(t, len(first), len(again))
		for k, c := range first {
			assert.Equal(t, c.Confidence, again[k].Confidence, "field %s", k)
			require.NotNil(t, again[k].Value)
			assert.Equal(t, *c.Value, *again[k].Value, "field %s", k)
		}
	}
}

func TestPatternPrefersAnchorProximity(t *testing.T) {
	// A stray date appears long before the labeled one; the candidate
	// nearest the "Date" label anchor must win.
	text := "ref 01/01/2020 filler filler filler\nDate: 15/03/2024"
	out := patternCandidates(t, text, "date")
	require.NotNil(t, out["date"].Value)
	assert.Equal(t, "15/03/2024", *out["date"].Value)
}

func TestPatternAmbiguityPenalty(t *testing.T) {
	clean := patternCandidates(t, "Date: 15/03/2024", "date")
	noisy := patternCandidates(t, "Date: 15/03/2024 or 16/03/2024 or 17/03/2024", "date")

	require.NotNil(t, clean["date"].Value)
	require.NotNil(t, noisy["date"].Value)
	assert.Equal(t, "15/03/2024", *noisy["date"].Value)
	assert.Less(t, noisy["date"].Confidence, clean["date"].Confidence)
}

func TestPatternCurrencySymbolMapping(t *testing.T) {
	out := patternCandidates(t, "amount due € 300", "currency")
	require.NotNil(t, out["currency"].Value)
	assert.Equal(t, "EUR", *out["currency"].Value)
}

func TestPatternMaxLengthTruncation(t *testing.T) {
	long := "Payment Method: wire transfer via international correspondent banking network ref 0099887766554433"
	out := patternCandidates(t, long, "payment_method")
	require.NotNil(t, out["payment_method"].Value)
	assert.LessOrEqual(t, len([]rune(*out["payment_method"].Value)), 60)
}

func TestPatternMaxLengthKeepsRuneBoundaries(t *testing.T) {
	// Multibyte characters at the cut-off must survive truncation intact.
	long := "Payment Method: upi transfer " + strings.Repeat("₹", 50)
	out := patternCandidates(t, long, "payment_method")
	require.NotNil(t, out["payment_method"].Value)

	v := *out["payment_method"].Value
	assert.True(t, utf8.ValidString(v), "truncation split a rune: %q", v)
	assert.LessOrEqual(t, len([]rune(v)), 60)
}

func TestPatternConfidenceBounds(t *testing.T) {
	out := patternCandidates(t, invoiceText, registry.Default().Keys()...)
	for k, c := range out {
		assert.GreaterOrEqual(t, c.Confidence, 0.0, "field %s", k)
		assert.LessOrEqual(t, c.Confidence, 99.0, "field %s", k)
	}
}
