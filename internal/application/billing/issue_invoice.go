package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/okiehn/rechnung-api/internal/application/dto"
	"github.com/okiehn/rechnung-api/internal/domain"
	"github.com/okiehn/rechnung-api/internal/domain/billing"
	"github.com/okiehn/rechnung-api/internal/domain/entity"
	"github.com/okiehn/rechnung-api/internal/domain/repository"
	"github.com/okiehn/rechnung-api/internal/infrastructure/archive"
	"github.com/okiehn/rechnung-api/pkg/config"
	"github.com/okiehn/rechnung-api/pkg/logger"
)

// Step identifies where in the issuance pipeline a failure happened.
type Step string

const (
	StepComputing  Step = "computing"
	StepAllocating Step = "allocating"
	StepEncoding   Step = "encoding"
	StepComposing  Step = "composing"
	StepProving    Step = "proving"
	StepStoring    Step = "storing"
	StepPersisting Step = "persisting"
	StepDone       Step = "done"
)

// StepError wraps a pipeline failure with the step it occurred in.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("issuance step %s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

func stepErr(step Step, err error) *StepError { return &StepError{Step: step, Err: err} }

// Attachment filenames and PDF/A-3 relationships.
const (
	xmlAttachmentName = "zugferd-invoice.xml"
	tsrAttachmentName = "timestamp.tsr"

	relationshipAlternative = "Alternative"
	relationshipSupplement  = "Supplement"

	contentTypePDF = "application/pdf"
	contentTypeXML = "text/xml"
)

// IssueInvoiceUseCase runs the full issuance pipeline:
//
//	compute → allocate number → encode XML → compose PDF → embed XML →
//	timestamp proof → embed token → archive both documents → persist + audit
//
// The number allocation commits its own transaction before any document is
// built; a failure afterwards burns the number, which is logged and accepted
// (the alternative, holding the counter lock across external calls, would
// serialize all issuance behind the slowest TSA round trip).
type IssueInvoiceUseCase struct {
	tx          TxRunner
	encoder     StructuredEncoder
	composer    PDFComposer
	embedder    Embedder
	timestamper Timestamper
	store       archive.Store
	cfg         config.InvoiceConfig
	log         *logger.Logger
}

// NewIssueInvoiceUseCase wires the pipeline.
func NewIssueInvoiceUseCase(
	tx TxRunner,
	encoder StructuredEncoder,
	composer PDFComposer,
	embedder Embedder,
	timestamper Timestamper,
	store archive.Store,
	cfg config.InvoiceConfig,
	log *logger.Logger,
) *IssueInvoiceUseCase {
	return &IssueInvoiceUseCase{
		tx:          tx,
		encoder:     encoder,
		composer:    composer,
		embedder:    embedder,
		timestamper: timestamper,
		store:       store,
		cfg:         cfg,
		log:         log,
	}
}

// Execute issues a new invoice for the authenticated user and returns the
// persisted record.
func (uc *IssueInvoiceUseCase) Execute(ctx context.Context, req dto.CreateInvoiceRequest, userID int64) (*entity.Invoice, []entity.LineItem, error) {
	attemptID := uuid.New().String()
	log := uc.log.With().Str("attempt_id", attemptID).Logger()

	// ── 1. Compute: validate input and derive all amounts ────────────────────
	if err := validateParty("seller", req.Seller, true); err != nil {
		return nil, nil, stepErr(StepComputing, err)
	}
	if err := validateParty("buyer", req.Buyer, false); err != nil {
		return nil, nil, stepErr(StepComputing, err)
	}
	cur, err := resolveCurrency(req.Currency)
	if err != nil {
		return nil, nil, stepErr(StepComputing, err)
	}
	if req.DeliveryDateStart != nil && req.DeliveryDateEnd != nil && req.DeliveryDateEnd.Before(*req.DeliveryDateStart) {
		return nil, nil, stepErr(StepComputing, fmt.Errorf("%w: delivery period end before start", domain.ErrValidation))
	}
	if req.TaxExempt && req.TaxExemptReason == "" {
		return nil, nil, stepErr(StepComputing, fmt.Errorf("%w: tax exemption requires a reason", domain.ErrValidation))
	}

	inputs := make([]billing.LineInput, 0, len(req.Items))
	for _, it := range req.Items {
		inputs = append(inputs, billing.LineInput{
			Description: it.Description,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
		})
	}
	lines, totals, err := billing.ComputeLines(inputs)
	if err != nil {
		return nil, nil, stepErr(StepComputing, err)
	}

	// ── 2. Allocate: gapless number in its own short transaction ────────────
	var number string
	err = uc.tx.RunSequence(ctx, func(seqRepo repository.SequenceRepository) error {
		n, err := seqRepo.Allocate(ctx, uc.cfg.NumberPrefix, uc.cfg.NumberStart)
		if err != nil {
			return err
		}
		number = fmt.Sprintf("%s%06d", uc.cfg.NumberPrefix, n)
		return nil
	})
	if err != nil {
		return nil, nil, stepErr(StepAllocating, err)
	}
	log = log.With().Str("invoice_number", number).Logger()
	log.Info().Msg("invoice number allocated")

	now := time.Now().UTC()
	inv := &entity.Invoice{
		InvoiceNumber:     number,
		IssueDate:         now,
		DeliveryDateStart: req.DeliveryDateStart,
		DeliveryDateEnd:   req.DeliveryDateEnd,
		Seller:            req.Seller.ToParty(),
		Buyer:             req.Buyer.ToParty(),
		Currency:          cur,
		NetTotal:          totals.Net,
		TaxTotal:          totals.Tax,
		GrossTotal:        totals.Gross,
		TaxExempt:         req.TaxExempt,
		TaxExemptReason:   req.TaxExemptReason,
		Notes:             req.Notes,
		PaymentTerms:      req.PaymentTerms,
		Status:            entity.StatusIssued,
		Version:           1,
		IsImmutable:       true,
		CreatedBy:         userID,
	}

	// From here on a failure burns the allocated number. Log loudly so the
	// gap is explainable in an audit.
	fail := func(step Step, err error) (*entity.Invoice, []entity.LineItem, error) {
		log.Error().Err(err).Str("step", string(step)).Msg("issuance failed after number allocation, number burned")
		return nil, nil, stepErr(step, err)
	}

	// ── 3. Encode: structured XML, validate, fingerprint ─────────────────────
	xmlBytes, err := uc.encoder.Build(inv, lines)
	if err != nil {
		return fail(StepEncoding, err)
	}
	if err := uc.encoder.Validate(xmlBytes); err != nil {
		return fail(StepEncoding, err)
	}
	xmlHash, err := uc.encoder.Fingerprint(xmlBytes)
	if err != nil {
		return fail(StepEncoding, err)
	}
	inv.XMLHash = xmlHash

	// ── 4. Compose: visual PDF with the XML embedded ─────────────────────────
	pdfBytes, err := uc.composer.Compose(inv, lines)
	if err != nil {
		return fail(StepComposing, err)
	}
	pdfBytes, err = uc.embedder.Embed(pdfBytes, xmlBytes, xmlAttachmentName, relationshipAlternative)
	if err != nil {
		return fail(StepComposing, err)
	}

	// ── 5. Prove: RFC 3161 timestamp over the composed document ─────────────
	proof, err := uc.timestamper.ObtainProof(ctx, pdfBytes, now)
	if err != nil {
		return fail(StepProving, err)
	}
	if proof.Genuine() {
		pdfBytes, err = uc.embedder.Embed(pdfBytes, proof.Token, tsrAttachmentName, relationshipSupplement)
		if err != nil {
			return fail(StepProving, err)
		}
		finalSum := sha256.Sum256(pdfBytes)
		proof.FinalHash = hex.EncodeToString(finalSum[:])
	} else {
		log.Warn().Msg("timestamp proof degraded, invoice carries a mock token")
	}
	inv.Proof = proof

	pdfSum := sha256.Sum256(pdfBytes)
	inv.PDFHash = hex.EncodeToString(pdfSum[:])

	// ── 6. Store: both artifacts into the revision-safe archive ──────────────
	year := inv.IssueDate.Year()
	inv.XMLPath = fmt.Sprintf("invoices/%d/%s.xml", year, number)
	inv.PDFPath = fmt.Sprintf("invoices/%d/%s.pdf", year, number)

	meta := map[string]string{"invoice_number": number, "attempt_id": attemptID}
	if _, err := uc.store.Put(ctx, inv.XMLPath, xmlBytes, archive.PutOptions{ContentType: contentTypeXML, Metadata: meta}); err != nil {
		return fail(StepStoring, err)
	}
	if _, err := uc.store.Put(ctx, inv.PDFPath, pdfBytes, archive.PutOptions{ContentType: contentTypePDF, Metadata: meta}); err != nil {
		return fail(StepStoring, err)
	}

	// ── 7. Persist: metadata row + audit entry, atomically ───────────────────
	err = uc.tx.RunIssuance(ctx, func(invoiceRepo repository.InvoiceRepository, auditRepo repository.AuditRepository) error {
		if err := invoiceRepo.Create(ctx, inv, lines); err != nil {
			return err
		}
		return auditRepo.Append(ctx, &entity.AuditEntry{
			ActorID:    userID,
			EntityType: "invoice",
			EntityID:   inv.ID,
			Action:     entity.AuditActionCreate,
			Details: map[string]any{
				"invoice_number": number,
				"gross_total":    inv.GrossTotal.StringFixed(2),
				"pdf_hash":       inv.PDFHash,
				"xml_hash":       inv.XMLHash,
				"proof_degraded": proof.Degraded,
				"attempt_id":     attemptID,
			},
		})
	})
	if err != nil {
		return fail(StepPersisting, err)
	}

	log.Info().
		Int64("invoice_id", inv.ID).
		Bool("proof_degraded", proof.Degraded).
		Str("step", string(StepDone)).
		Msg("invoice issued")
	return inv, lines, nil
}

func validateParty(which string, p dto.PartyRequest, taxIDRequired bool) error {
	required := map[string]string{
		"name":    p.Name,
		"street":  p.Street,
		"zip":     p.Zip,
		"city":    p.City,
		"country": p.Country,
	}
	for field, v := range required {
		if v == "" {
			return fmt.Errorf("%w: %s %s is required", domain.ErrValidation, which, field)
		}
	}
	if taxIDRequired && p.TaxID == "" {
		return fmt.Errorf("%w: %s tax_id is required", domain.ErrValidation, which)
	}
	if len(p.Country) != 2 {
		return fmt.Errorf("%w: %s country must be an ISO 3166-1 alpha-2 code", domain.ErrValidation, which)
	}
	return nil
}

// resolveCurrency defaults to EUR and rejects unknown ISO 4217 codes.
func resolveCurrency(code string) (string, error) {
	if code == "" {
		return "EUR", nil
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("%w: unknown currency %q", domain.ErrValidation, code)
	}
	return unit.String(), nil
}
