// Package pdf renders the human-readable invoice document (German layout)
// with Maroto v2.
//
// A4 page layout:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Seller name  │  RECHNUNG + Nummer + Datum          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  Buyer address block (left)  │  Seller details (right)      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLE: Pos | Beschreibung | Menge | Einheit | Preis | MwSt │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALS: Nettobetrag / MwSt. / Gesamtbetrag                 │
//	│  ─────────────────────────────────────────────────────────  │
//	│  Zahlungsbedingungen / Hinweise / GoBD footer               │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	appbilling "github.com/okiehn/rechnung-api/internal/application/billing"
	"github.com/okiehn/rechnung-api/internal/domain/entity"
)

// ── Color palette ─────────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 30, Green: 60, Blue: 110}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ── Composer ──────────────────────────────────────────────────────────────────

var _ appbilling.PDFComposer = (*MarotoComposer)(nil)

// MarotoComposer implements billing.PDFComposer using Maroto v2.
type MarotoComposer struct{}

// NewMarotoComposer builds the composer.
func NewMarotoComposer() *MarotoComposer { return &MarotoComposer{} }

// Compose renders the invoice and returns the PDF bytes.
func (g *MarotoComposer) Compose(inv *entity.Invoice, lines []entity.LineItem) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(15).WithRightMargin(15).
		WithTopMargin(15).WithBottomMargin(15).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Rechnung "+inv.InvoiceNumber, true).
		WithAuthor(inv.Seller.Name, true).
		WithCreationDate(inv.IssueDate).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(inv))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(partiesRow(inv))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableLineRows(lines) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(inv))

	for _, r := range footerRows(inv) {
		m.AddRows(r)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generate document: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Sections ──────────────────────────────────────────────────────────────────

// headerRow: seller name (left), RECHNUNG banner with number and date (right).
func headerRow(inv *entity.Invoice) core.Row {
	return row.New(20).Add(
		col.New(7).Add(
			text.New(inv.Seller.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("USt-IdNr.: "+inv.Seller.TaxID, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("RECHNUNG", props.Text{
				Style: fontstyle.Bold, Size: 14, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(inv.InvoiceNumber, props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 9,
			}),
			text.New("Rechnungsdatum: "+inv.IssueDate.Format("02.01.2006"), props.Text{
				Size: 8, Align: align.Right, Top: 16, Color: colorGray,
			}),
		),
	)
}

// partiesRow: buyer address block on the left, seller contact on the right.
func partiesRow(inv *entity.Invoice) core.Row {
	buyerLines := []string{
		inv.Buyer.Name,
		inv.Buyer.Street,
		inv.Buyer.Zip + " " + inv.Buyer.City,
		inv.Buyer.Country,
	}
	h := 10.0
	buyerComponents := []core.Component{
		text.New("RECHNUNGSEMPFÄNGER", props.Text{
			Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
		}),
	}
	for i, l := range buyerLines {
		buyerComponents = append(buyerComponents, text.New(l, props.Text{
			Size: 9, Top: 7 + float64(i)*5,
		}))
		h += 5
	}

	sellerDetail := fmt.Sprintf("%s\n%s %s\n%s",
		inv.Seller.Street, inv.Seller.Zip, inv.Seller.City, inv.Seller.Country)
	if inv.Seller.Email != "" {
		sellerDetail += "\n" + inv.Seller.Email
	}
	if inv.Seller.Phone != "" {
		sellerDetail += "\nTel: " + inv.Seller.Phone
	}

	return row.New(h).Add(
		col.New(7).Add(buyerComponents...),
		col.New(5).Add(
			text.New("RECHNUNGSSTELLER", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(sellerDetail, props.Text{
				Size: 8, Align: align.Right, Top: 7, Color: colorGray,
			}),
		),
	)
}

// tableHeaderRow: line item table header.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Pos.", 1, align.Center),
		h("Beschreibung", 4, align.Left),
		h("Menge", 1, align.Right),
		h("Einheit", 1, align.Center),
		h("Einzelpreis", 2, align.Right),
		h("MwSt.", 1, align.Center),
		h("Gesamt", 2, align.Right),
	)
}

// tableLineRows: one row per invoice position.
func tableLineRows(lines []entity.LineItem) []core.Row {
	result := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				fmt.Sprintf("%d", l.Position),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(4).Add(text.New(
				l.Description,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(1).Add(text.New(
				l.Quantity.String(),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(1).Add(text.New(
				l.Unit,
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(2).Add(text.New(
				formatEUR(l.UnitPrice),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(1).Add(text.New(
				l.TaxRate.StringFixed(0)+" %",
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(2).Add(text.New(
				formatEUR(l.LineGross),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

// totalsRow: right-aligned totals block.
func totalsRow(inv *entity.Invoice) core.Row {
	label := func(s string, top float64) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: top,
		})
	}
	value := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1, Top: top})
	}

	return row.New(22).Add(
		col.New(6),
		col.New(3).Add(
			label("Nettobetrag:", 1),
			label("zzgl. MwSt.:", 7),
			text.New("Gesamtbetrag:", props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right,
				Color: colorPrimary, Right: 2, Top: 14,
			}),
		),
		col.New(3).Add(
			value(formatEUR(inv.NetTotal), 1),
			value(formatEUR(inv.TaxTotal), 7),
			text.New(formatEUR(inv.GrossTotal), props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right,
				Color: colorPrimary, Right: 1, Top: 14,
			}),
		),
	)
}

// footerRows: tax exemption note, payment terms, free-text notes and the
// retention notice.
func footerRows(inv *entity.Invoice) []core.Row {
	var rows []core.Row

	if inv.TaxExempt && inv.TaxExemptReason != "" {
		rows = append(rows, row.New(7).Add(col.New(12).Add(
			text.New(inv.TaxExemptReason, props.Text{
				Style: fontstyle.Italic, Size: 8, Top: 2,
			}),
		)))
	}

	if inv.PaymentTerms != "" {
		rows = append(rows, row.New(10).Add(col.New(12).Add(
			text.New("Zahlungsbedingungen", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 2,
			}),
			text.New(inv.PaymentTerms, props.Text{Size: 8, Top: 7}),
		)))
	}

	if inv.Notes != "" {
		rows = append(rows, row.New(10).Add(col.New(12).Add(
			text.New("Hinweise", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 2,
			}),
			text.New(inv.Notes, props.Text{Size: 8, Top: 7}),
		)))
	}

	rows = append(rows,
		row.New(4),
		line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}),
		row.New(8).Add(col.New(12).Add(
			text.New(
				"Dieses Dokument wurde elektronisch erstellt und ist ohne Unterschrift gültig. "+
					"Es ist gemäß GoBD unveränderbar archiviert und 10 Jahre aufzubewahren.",
				props.Text{Size: 6.5, Color: colorGray, Top: 2},
			),
		)),
	)
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

// formatEUR renders a decimal as a German-formatted amount, e.g. 1.234,56 €.
func formatEUR(d decimal.Decimal) string {
	s := d.StringFixed(2) // e.g. "1234.56"
	intPart, fracPart, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	n := len(intPart)
	var b strings.Builder
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteByte(c)
	}
	out := b.String() + "," + fracPart + " €"
	if neg {
		out = "-" + out
	}
	return out
}
