package billing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okiehn/rechnung-api/internal/domain"
	"github.com/okiehn/rechnung-api/internal/domain/billing"
)

// ──────────────────────────────────────────────────────────────────────────────
// TestComputeLines_RoundingVector pins the canonical rounding behavior:
// rounding happens per line (2 decimals, half up) and the invoice totals are
// plain sums of the already-rounded lines.
//
// Reference vector:
//
//	qty=3, unit_price=10.005, tax=19%
//	raw net   = 30.015  → rounds half-up to 30.02
//	tax       = 30.02 * 0.19 = 5.7038 → 5.70
//	gross     = 30.02 + 5.70 = 35.72
//
// If anyone switches to bankers rounding or to rounding at the total level,
// this test fails immediately.
// ──────────────────────────────────────────────────────────────────────────────

func line(desc string, qty, price, tax float64) billing.LineInput {
	return billing.LineInput{
		Description: desc,
		Quantity:    decimal.NewFromFloat(qty),
		Unit:        "Stk",
		UnitPrice:   decimal.NewFromFloat(price),
		TaxRate:     decimal.NewFromFloat(tax),
	}
}

func TestComputeLines_RoundingVector(t *testing.T) {
	lines, totals, err := billing.ComputeLines([]billing.LineInput{
		line("Beratungsleistung", 3, 10.005, 19),
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)

	assert.Equal(t, "30.02", lines[0].LineNet.StringFixed(2))
	assert.Equal(t, "5.70", lines[0].TaxAmount.StringFixed(2))
	assert.Equal(t, "35.72", lines[0].LineGross.StringFixed(2))

	assert.Equal(t, "30.02", totals.Net.StringFixed(2))
	assert.Equal(t, "5.70", totals.Tax.StringFixed(2))
	assert.Equal(t, "35.72", totals.Gross.StringFixed(2))
}

func TestComputeLines_TotalsAreSumOfRoundedLines(t *testing.T) {
	// Two lines whose raw amounts would round differently if summed first:
	// 0.005 + 0.005 = 0.01 raw, but per-line each rounds to 0.01 → total 0.02.
	lines, totals, err := billing.ComputeLines([]billing.LineInput{
		line("A", 1, 0.005, 0),
		line("B", 1, 0.005, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, "0.01", lines[0].LineNet.StringFixed(2))
	assert.Equal(t, "0.01", lines[1].LineNet.StringFixed(2))
	assert.Equal(t, "0.02", totals.Net.StringFixed(2))
	assert.Equal(t, "0.02", totals.Gross.StringFixed(2))
}

func TestComputeLines_Deterministic(t *testing.T) {
	inputs := []billing.LineInput{
		line("Position 1", 2.5, 19.99, 19),
		line("Position 2", 10, 0.07, 7),
		line("Position 3", 1, 1200, 0),
	}

	lines1, totals1, err1 := billing.ComputeLines(inputs)
	lines2, totals2, err2 := billing.ComputeLines(inputs)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, lines1, lines2, "same input must always produce the same lines")
	assert.True(t, totals1.Net.Equal(totals2.Net))
	assert.True(t, totals1.Tax.Equal(totals2.Tax))
	assert.True(t, totals1.Gross.Equal(totals2.Gross))
}

func TestComputeLines_PositionsAreSequential(t *testing.T) {
	lines, _, err := billing.ComputeLines([]billing.LineInput{
		line("first", 1, 1, 19),
		line("second", 1, 1, 19),
		line("third", 1, 1, 19),
	})
	require.NoError(t, err)
	for i, l := range lines {
		assert.Equal(t, i+1, l.Position)
	}
}

func TestComputeLines_Validation(t *testing.T) {
	cases := []struct {
		name  string
		input billing.LineInput
	}{
		{"empty description", line("", 1, 1, 19)},
		{"zero quantity", line("x", 0, 1, 19)},
		{"negative quantity", line("x", -1, 1, 19)},
		{"negative price", line("x", 1, -0.01, 19)},
		{"negative tax rate", line("x", 1, 1, -1)},
		{"tax rate above 100", line("x", 1, 1, 101)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := billing.ComputeLines([]billing.LineInput{tc.input})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestComputeLines_EmptyInvoiceRejected(t *testing.T) {
	_, _, err := billing.ComputeLines(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestComputeLines_ZeroTaxRateProducesZeroTax(t *testing.T) {
	lines, totals, err := billing.ComputeLines([]billing.LineInput{
		line("steuerfrei", 4, 25, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, "100.00", lines[0].LineNet.StringFixed(2))
	assert.Equal(t, "0.00", lines[0].TaxAmount.StringFixed(2))
	assert.True(t, totals.Net.Equal(totals.Gross))
}
