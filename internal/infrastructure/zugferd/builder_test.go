package zugferd_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okiehn/rechnung-api/internal/domain"
	"github.com/okiehn/rechnung-api/internal/domain/entity"
	"github.com/okiehn/rechnung-api/internal/infrastructure/zugferd"
)

// ──────────────────────────────────────────────────────────────────────────────
// Test fixtures
// ──────────────────────────────────────────────────────────────────────────────

func testInvoice() (*entity.Invoice, []entity.LineItem) {
	inv := &entity.Invoice{
		InvoiceNumber: "RE010001",
		IssueDate:     time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Seller: entity.Party{
			Name:    "Muster GmbH",
			Street:  "Hauptstraße 1",
			Zip:     "10115",
			City:    "Berlin",
			Country: "DE",
			TaxID:   "DE123456789",
		},
		Buyer: entity.Party{
			Name:    "Kunde AG",
			Street:  "Marktplatz 5",
			Zip:     "80331",
			City:    "München",
			Country: "DE",
		},
		Currency:     "EUR",
		NetTotal:     decimal.RequireFromString("30.02"),
		TaxTotal:     decimal.RequireFromString("5.70"),
		GrossTotal:   decimal.RequireFromString("35.72"),
		PaymentTerms: "Zahlbar innerhalb von 14 Tagen",
		Status:       entity.StatusIssued,
	}
	lines := []entity.LineItem{
		{
			Position:    1,
			Description: "Beratungsleistung",
			Quantity:    decimal.NewFromInt(3),
			Unit:        "HUR",
			UnitPrice:   decimal.RequireFromString("10.005"),
			LineNet:     decimal.RequireFromString("30.02"),
			TaxRate:     decimal.NewFromInt(19),
			TaxAmount:   decimal.RequireFromString("5.70"),
			LineGross:   decimal.RequireFromString("35.72"),
		},
	}
	return inv, lines
}

func TestBuild_Deterministic(t *testing.T) {
	b := zugferd.NewBuilder()
	inv, lines := testInvoice()

	out1, err1 := b.Build(inv, lines)
	out2, err2 := b.Build(inv, lines)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, out1, out2, "same invoice must serialize to identical bytes")
}

func TestBuild_ValidatesAgainstOwnChecks(t *testing.T) {
	b := zugferd.NewBuilder()
	inv, lines := testInvoice()

	out, err := b.Build(inv, lines)
	require.NoError(t, err)
	require.NoError(t, b.Validate(out))
}

func TestBuild_ContainsRequiredBusinessTerms(t *testing.T) {
	b := zugferd.NewBuilder()
	inv, lines := testInvoice()

	out, err := b.Build(inv, lines)
	require.NoError(t, err)
	xml := string(out)

	assert.Contains(t, xml, "urn:cen.eu:en16931:2017#compliant#urn:factur-x.eu:1p0:basic")
	assert.Contains(t, xml, "<ram:ID>RE010001</ram:ID>")
	assert.Contains(t, xml, "<ram:TypeCode>380</ram:TypeCode>")
	assert.Contains(t, xml, `<udt:DateTimeString format="102">20260315</udt:DateTimeString>`)
	assert.Contains(t, xml, "<ram:GrandTotalAmount>35.72</ram:GrandTotalAmount>")
	assert.Contains(t, xml, "<ram:DuePayableAmount>35.72</ram:DuePayableAmount>")
	assert.Contains(t, xml, `<ram:TaxTotalAmount currencyID="EUR">5.70</ram:TaxTotalAmount>`)
	assert.Contains(t, xml, `<ram:BilledQuantity unitCode="HUR">3</ram:BilledQuantity>`)
	assert.Contains(t, xml, `<ram:ID schemeID="VA">DE123456789</ram:ID>`)
}

func TestBuild_BuyerTaxRegistrationOnlyWhenPresent(t *testing.T) {
	b := zugferd.NewBuilder()
	inv, lines := testInvoice()

	out, err := b.Build(inv, lines)
	require.NoError(t, err)
	// The buyer has no tax id: exactly one SpecifiedTaxRegistration (seller).
	assert.Equal(t, 1, strings.Count(string(out), "<ram:SpecifiedTaxRegistration>"))

	inv.Buyer.TaxID = "DE987654321"
	out, err = b.Build(inv, lines)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(out), "<ram:SpecifiedTaxRegistration>"))
}

func TestBuild_RejectsEmptyInput(t *testing.T) {
	b := zugferd.NewBuilder()
	inv, _ := testInvoice()

	_, err := b.Build(nil, nil)
	assert.Error(t, err)

	_, err = b.Build(inv, nil)
	assert.Error(t, err)
}

func TestValidate_RejectsForeignDocuments(t *testing.T) {
	b := zugferd.NewBuilder()

	err := b.Validate([]byte("not xml at all <"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEncoding)

	err = b.Validate([]byte(`<?xml version="1.0"?><Invoice xmlns="urn:other"/>`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEncoding)
}

func TestFingerprint_StableAndContentSensitive(t *testing.T) {
	b := zugferd.NewBuilder()
	inv, lines := testInvoice()

	out, err := b.Build(inv, lines)
	require.NoError(t, err)

	h1, err := b.Fingerprint(out)
	require.NoError(t, err)
	h2, err := b.Fingerprint(out)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "hex SHA-256")

	inv.InvoiceNumber = "RE010002"
	out2, err := b.Build(inv, lines)
	require.NoError(t, err)
	h3, err := b.Fingerprint(out2)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3, "different content must fingerprint differently")
}
