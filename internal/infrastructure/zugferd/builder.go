package zugferd

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/okiehn/rechnung-api/internal/domain/entity"
)

// ZUGFeRD 2.2 / Factur-X namespaces (CII syntax).
const (
	NsRsm = "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
	NsRam = "urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100"
	NsQdt = "urn:un:unece:uncefact:data:standard:QualifiedDataType:100"
	NsUdt = "urn:un:unece:uncefact:data:standard:UnqualifiedDataType:100"

	// EN 16931 guideline identifier, BASIC profile.
	guidelineID = "urn:cen.eu:en16931:2017#compliant#urn:factur-x.eu:1p0:basic"

	// UNTDID 1001: 380 = commercial invoice.
	typeCodeInvoice = "380"

	// UNTDID 2379: 102 = CCYYMMDD.
	dateFormat102 = "102"

	// UN/ECE rec 20: C62 = piece (fallback unit).
	defaultUnitCode = "C62"
)

// Builder produces the EN 16931 / ZUGFeRD CrossIndustryInvoice document.
//
// Elements are written with explicit prefixes (rsm:, ram:, udt:) and the
// namespace declarations once on the root, so the serialized form is stable
// byte-for-byte for identical input and downstream prefix-aware tooling
// (validation, canonicalization) sees the conventional layout.
type Builder struct{}

// NewBuilder creates the encoder service.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build generates the XML bytes for an issued invoice. The output is fully
// determined by the invoice and its lines: same input, same bytes.
func (b *Builder) Build(inv *entity.Invoice, lines []entity.LineItem) ([]byte, error) {
	if inv == nil {
		return nil, fmt.Errorf("zugferd: invoice is nil")
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("zugferd: invoice has no line items")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "rsm:CrossIndustryInvoice"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:rsm"}, Value: NsRsm},
			{Name: xml.Name{Local: "xmlns:ram"}, Value: NsRam},
			{Name: xml.Name{Local: "xmlns:qdt"}, Value: NsQdt},
			{Name: xml.Name{Local: "xmlns:udt"}, Value: NsUdt},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	// ---- rsm:ExchangedDocumentContext (guideline)
	open(enc, "rsm:ExchangedDocumentContext")
	open(enc, "ram:GuidelineSpecifiedDocumentContextParameter")
	writeText(enc, "ram:ID", guidelineID)
	closeEl(enc, "ram:GuidelineSpecifiedDocumentContextParameter")
	closeEl(enc, "rsm:ExchangedDocumentContext")

	// ---- rsm:ExchangedDocument (header)
	open(enc, "rsm:ExchangedDocument")
	writeText(enc, "ram:ID", inv.InvoiceNumber)
	writeText(enc, "ram:TypeCode", typeCodeInvoice)
	open(enc, "ram:IssueDateTime")
	writeDate102(enc, inv.IssueDate.Format("20060102"))
	closeEl(enc, "ram:IssueDateTime")
	closeEl(enc, "rsm:ExchangedDocument")

	// ---- rsm:SupplyChainTradeTransaction
	open(enc, "rsm:SupplyChainTradeTransaction")

	for _, line := range lines {
		b.writeLine(enc, line)
	}

	// ---- ram:ApplicableHeaderTradeAgreement (parties)
	open(enc, "ram:ApplicableHeaderTradeAgreement")
	b.writeParty(enc, "ram:SellerTradeParty", inv.Seller, true)
	b.writeParty(enc, "ram:BuyerTradeParty", inv.Buyer, false)
	closeEl(enc, "ram:ApplicableHeaderTradeAgreement")

	// ---- ram:ApplicableHeaderTradeDelivery
	open(enc, "ram:ApplicableHeaderTradeDelivery")
	if inv.DeliveryDateStart != nil || inv.DeliveryDateEnd != nil {
		deliveryDate := inv.DeliveryDateEnd
		if deliveryDate == nil {
			deliveryDate = inv.DeliveryDateStart
		}
		open(enc, "ram:ActualDeliverySupplyChainEvent")
		open(enc, "ram:OccurrenceDateTime")
		writeDate102(enc, deliveryDate.Format("20060102"))
		closeEl(enc, "ram:OccurrenceDateTime")
		closeEl(enc, "ram:ActualDeliverySupplyChainEvent")
	}
	closeEl(enc, "ram:ApplicableHeaderTradeDelivery")

	// ---- ram:ApplicableHeaderTradeSettlement (currency, tax, totals)
	open(enc, "ram:ApplicableHeaderTradeSettlement")
	writeText(enc, "ram:InvoiceCurrencyCode", inv.Currency)

	open(enc, "ram:ApplicableTradeTax")
	writeText(enc, "ram:CalculatedAmount", inv.TaxTotal.StringFixed(2))
	writeText(enc, "ram:TypeCode", "VAT")
	writeText(enc, "ram:BasisAmount", inv.NetTotal.StringFixed(2))
	writeText(enc, "ram:CategoryCode", "S")
	writeText(enc, "ram:RateApplicablePercent", lines[0].TaxRate.StringFixed(2))
	closeEl(enc, "ram:ApplicableTradeTax")

	if inv.PaymentTerms != "" {
		open(enc, "ram:SpecifiedTradePaymentTerms")
		writeText(enc, "ram:Description", inv.PaymentTerms)
		closeEl(enc, "ram:SpecifiedTradePaymentTerms")
	}

	open(enc, "ram:SpecifiedTradeSettlementHeaderMonetarySummation")
	writeText(enc, "ram:LineTotalAmount", inv.NetTotal.StringFixed(2))
	writeText(enc, "ram:TaxBasisTotalAmount", inv.NetTotal.StringFixed(2))
	writeTextAttr(enc, "ram:TaxTotalAmount", inv.TaxTotal.StringFixed(2), "currencyID", inv.Currency)
	writeText(enc, "ram:GrandTotalAmount", inv.GrossTotal.StringFixed(2))
	writeText(enc, "ram:DuePayableAmount", inv.GrossTotal.StringFixed(2))
	closeEl(enc, "ram:SpecifiedTradeSettlementHeaderMonetarySummation")

	closeEl(enc, "ram:ApplicableHeaderTradeSettlement")
	closeEl(enc, "rsm:SupplyChainTradeTransaction")

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *Builder) writeLine(enc *xml.Encoder, line entity.LineItem) {
	open(enc, "ram:IncludedSupplyChainTradeLineItem")

	open(enc, "ram:AssociatedDocumentLineDocument")
	writeText(enc, "ram:LineID", strconv.Itoa(line.Position))
	closeEl(enc, "ram:AssociatedDocumentLineDocument")

	open(enc, "ram:SpecifiedTradeProduct")
	writeText(enc, "ram:Name", line.Description)
	closeEl(enc, "ram:SpecifiedTradeProduct")

	open(enc, "ram:SpecifiedLineTradeAgreement")
	open(enc, "ram:NetPriceProductTradePrice")
	writeText(enc, "ram:ChargeAmount", line.UnitPrice.StringFixed(2))
	closeEl(enc, "ram:NetPriceProductTradePrice")
	closeEl(enc, "ram:SpecifiedLineTradeAgreement")

	unit := line.Unit
	if unit == "" {
		unit = defaultUnitCode
	}
	open(enc, "ram:SpecifiedLineTradeDelivery")
	writeTextAttr(enc, "ram:BilledQuantity", line.Quantity.String(), "unitCode", unit)
	closeEl(enc, "ram:SpecifiedLineTradeDelivery")

	open(enc, "ram:SpecifiedLineTradeSettlement")
	open(enc, "ram:ApplicableTradeTax")
	writeText(enc, "ram:TypeCode", "VAT")
	writeText(enc, "ram:CategoryCode", "S")
	writeText(enc, "ram:RateApplicablePercent", line.TaxRate.StringFixed(2))
	closeEl(enc, "ram:ApplicableTradeTax")
	open(enc, "ram:SpecifiedTradeSettlementLineMonetarySummation")
	writeText(enc, "ram:LineTotalAmount", line.LineNet.StringFixed(2))
	closeEl(enc, "ram:SpecifiedTradeSettlementLineMonetarySummation")
	closeEl(enc, "ram:SpecifiedLineTradeSettlement")

	closeEl(enc, "ram:IncludedSupplyChainTradeLineItem")
}

// writeParty emits a trade party block. The tax registration is mandatory
// for the seller; for the buyer it is written only when present.
func (b *Builder) writeParty(enc *xml.Encoder, local string, p entity.Party, taxIDRequired bool) {
	open(enc, local)
	writeText(enc, "ram:Name", p.Name)
	open(enc, "ram:PostalTradeAddress")
	writeText(enc, "ram:PostcodeCode", p.Zip)
	writeText(enc, "ram:LineOne", p.Street)
	writeText(enc, "ram:CityName", p.City)
	writeText(enc, "ram:CountryID", p.Country)
	closeEl(enc, "ram:PostalTradeAddress")
	if taxIDRequired || p.TaxID != "" {
		open(enc, "ram:SpecifiedTaxRegistration")
		// schemeID VA = VAT registration number.
		writeTextAttr(enc, "ram:ID", p.TaxID, "schemeID", "VA")
		closeEl(enc, "ram:SpecifiedTaxRegistration")
	}
	closeEl(enc, local)
}

func open(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
}

func closeEl(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func writeText(enc *xml.Encoder, local, value string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func writeTextAttr(enc *xml.Encoder, local, value, attrLocal, attrValue string) {
	_ = enc.EncodeToken(xml.StartElement{
		Name: xml.Name{Local: local},
		Attr: []xml.Attr{{Name: xml.Name{Local: attrLocal}, Value: attrValue}},
	})
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func writeDate102(enc *xml.Encoder, yyyymmdd string) {
	writeTextAttr(enc, "udt:DateTimeString", yyyymmdd, "format", dateFormat102)
}
