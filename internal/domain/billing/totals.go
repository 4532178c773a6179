package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/okiehn/rechnung-api/internal/domain"
	"github.com/okiehn/rechnung-api/internal/domain/entity"
)

// LineInput is the raw input for a single invoice line before any rounding.
type LineInput struct {
	Description string
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal
}

// Totals holds the invoice-level amounts, each the sum of already-rounded lines.
type Totals struct {
	Net   decimal.Decimal
	Tax   decimal.Decimal
	Gross decimal.Decimal
}

var (
	minTaxRate = decimal.Zero
	maxTaxRate = decimal.NewFromInt(100)
)

// ComputeLines derives the monetary amounts for every line and the invoice
// totals. Rounding happens per line (2 decimals, half up) and the totals are
// plain sums of the rounded lines, so recomputing over the same inputs always
// reproduces the same amounts.
func ComputeLines(inputs []LineInput) ([]entity.LineItem, Totals, error) {
	if len(inputs) == 0 {
		return nil, Totals{}, fmt.Errorf("%w: invoice requires at least one line item", domain.ErrValidation)
	}

	lines := make([]entity.LineItem, 0, len(inputs))
	totals := Totals{Net: decimal.Zero, Tax: decimal.Zero, Gross: decimal.Zero}

	for i, in := range inputs {
		if err := validateLine(i, in); err != nil {
			return nil, Totals{}, err
		}

		lineNet := in.Quantity.Mul(in.UnitPrice).Round(2)
		taxAmount := lineNet.Mul(in.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
		lineGross := lineNet.Add(taxAmount)

		lines = append(lines, entity.LineItem{
			Position:    i + 1,
			Description: in.Description,
			Quantity:    in.Quantity,
			Unit:        in.Unit,
			UnitPrice:   in.UnitPrice,
			LineNet:     lineNet,
			TaxRate:     in.TaxRate,
			TaxAmount:   taxAmount,
			LineGross:   lineGross,
		})

		totals.Net = totals.Net.Add(lineNet)
		totals.Tax = totals.Tax.Add(taxAmount)
		totals.Gross = totals.Gross.Add(lineGross)
	}

	return lines, totals, nil
}

func validateLine(idx int, in LineInput) error {
	if in.Description == "" {
		return fmt.Errorf("%w: line %d: description is required", domain.ErrValidation, idx+1)
	}
	if in.Quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: line %d: quantity must be greater than zero", domain.ErrValidation, idx+1)
	}
	if in.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: line %d: unit price cannot be negative", domain.ErrValidation, idx+1)
	}
	if in.TaxRate.LessThan(minTaxRate) || in.TaxRate.GreaterThan(maxTaxRate) {
		return fmt.Errorf("%w: line %d: tax rate must be between 0 and 100", domain.ErrValidation, idx+1)
	}
	return nil
}
