package billing_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appbilling "github.com/okiehn/rechnung-api/internal/application/billing"
	"github.com/okiehn/rechnung-api/internal/application/dto"
	"github.com/okiehn/rechnung-api/internal/domain"
	"github.com/okiehn/rechnung-api/internal/domain/entity"
	"github.com/okiehn/rechnung-api/internal/domain/repository"
	"github.com/okiehn/rechnung-api/internal/infrastructure/archive"
	"github.com/okiehn/rechnung-api/internal/infrastructure/zugferd"
	"github.com/okiehn/rechnung-api/pkg/config"
	"github.com/okiehn/rechnung-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// In-memory fakes. The sequence fake reproduces the row-lock semantics of the
// real repository: the runner mutex is held for the whole callback, so
// concurrent allocations serialize exactly like FOR UPDATE does.
// ──────────────────────────────────────────────────────────────────────────────

type fakeSeqRepo struct {
	counters map[string]int64
}

func (f *fakeSeqRepo) Allocate(_ context.Context, prefix string, start int64) (int64, error) {
	if _, ok := f.counters[prefix]; !ok {
		f.counters[prefix] = start - 1
	}
	f.counters[prefix]++
	return f.counters[prefix], nil
}

func (f *fakeSeqRepo) Current(_ context.Context, prefix string) (int64, error) {
	return f.counters[prefix], nil
}

type fakeInvoiceRepo struct {
	invoices []*entity.Invoice
	lines    map[int64][]entity.LineItem
	nextID   int64
	failNext bool
}

func (f *fakeInvoiceRepo) Create(_ context.Context, inv *entity.Invoice, lines []entity.LineItem) error {
	if f.failNext {
		return fmt.Errorf("%w: injected", domain.ErrStorage)
	}
	f.nextID++
	inv.ID = f.nextID
	inv.CreatedAt = time.Now()
	f.invoices = append(f.invoices, inv)
	if f.lines == nil {
		f.lines = map[int64][]entity.LineItem{}
	}
	f.lines[inv.ID] = lines
	return nil
}

func (f *fakeInvoiceRepo) GetByID(_ context.Context, id int64) (*entity.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.ID == id {
			return inv, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeInvoiceRepo) GetByNumber(_ context.Context, number string) (*entity.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.InvoiceNumber == number {
			return inv, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeInvoiceRepo) GetLines(_ context.Context, id int64) ([]entity.LineItem, error) {
	return f.lines[id], nil
}

func (f *fakeInvoiceRepo) List(_ context.Context, _ repository.InvoiceFilter) ([]*entity.Invoice, int, error) {
	return f.invoices, len(f.invoices), nil
}

func (f *fakeInvoiceRepo) MarkCancelled(_ context.Context, id int64) error {
	for _, inv := range f.invoices {
		if inv.ID == id {
			if inv.Status != entity.StatusIssued {
				return domain.ErrConflict
			}
			inv.Status = entity.StatusCancelled
			inv.Version++
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeAuditRepo struct {
	entries []*entity.AuditEntry
}

func (f *fakeAuditRepo) Append(_ context.Context, e *entity.AuditEntry) error {
	e.ID = int64(len(f.entries) + 1)
	e.Timestamp = time.Now()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAuditRepo) ListByEntity(_ context.Context, entityType string, entityID int64) ([]*entity.AuditEntry, error) {
	var out []*entity.AuditEntry
	for _, e := range f.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeTxRunner holds one mutex across each callback, mirroring transaction
// isolation; RunIssuance rolls back the audit append when Create fails by
// snapshotting first.
type fakeTxRunner struct {
	mu    sync.Mutex
	seq   *fakeSeqRepo
	inv   *fakeInvoiceRepo
	audit *fakeAuditRepo
}

func newFakeTxRunner() *fakeTxRunner {
	return &fakeTxRunner{
		seq:   &fakeSeqRepo{counters: map[string]int64{}},
		inv:   &fakeInvoiceRepo{},
		audit: &fakeAuditRepo{},
	}
}

func (r *fakeTxRunner) RunSequence(ctx context.Context, fn func(repository.SequenceRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.seq)
}

func (r *fakeTxRunner) RunIssuance(ctx context.Context, fn func(repository.InvoiceRepository, repository.AuditRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	invBefore := len(r.inv.invoices)
	auditBefore := len(r.audit.entries)
	if err := fn(r.inv, r.audit); err != nil {
		r.inv.invoices = r.inv.invoices[:invBefore]
		r.audit.entries = r.audit.entries[:auditBefore]
		return err
	}
	return nil
}

// fakeComposer emits distinguishable pseudo-PDF bytes.
type fakeComposer struct{}

func (fakeComposer) Compose(inv *entity.Invoice, _ []entity.LineItem) ([]byte, error) {
	return []byte("%PDF-fake " + inv.InvoiceNumber), nil
}

// fakeEmbedder appends the attachment, so every embed changes the bytes.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(doc, attachment []byte, filename, relationship string) ([]byte, error) {
	out := append(append([]byte{}, doc...), []byte("\n--"+relationship+":"+filename+"--\n")...)
	return append(out, attachment...), nil
}

// fakeTimestamper returns genuine or degraded tokens on demand.
type fakeTimestamper struct {
	degraded bool
}

func (f fakeTimestamper) ObtainProof(_ context.Context, doc []byte, at time.Time) (*entity.ProofToken, error) {
	sum := sha256.Sum256(doc)
	p := &entity.ProofToken{
		TSAURL:        "http://tsa.test",
		HashAlgorithm: "SHA256",
		DocumentHash:  hex.EncodeToString(sum[:]),
		FinalHash:     hex.EncodeToString(sum[:]),
		Timestamp:     at.UTC(),
	}
	if f.degraded {
		p.Degraded = true
		p.Warning = entity.DegradedProofWarning
	} else {
		p.Token = []byte{0x30, 0x03, 0x02, 0x01, 0x2a}
	}
	return p, nil
}

// failingEncoder breaks the pipeline after number allocation.
type failingEncoder struct{}

func (failingEncoder) Build(*entity.Invoice, []entity.LineItem) ([]byte, error) {
	return nil, fmt.Errorf("%w: injected", domain.ErrEncoding)
}
func (failingEncoder) Validate([]byte) error              { return nil }
func (failingEncoder) Fingerprint([]byte) (string, error) { return "", nil }

// ──────────────────────────────────────────────────────────────────────────────
// Harness
// ──────────────────────────────────────────────────────────────────────────────

type harness struct {
	uc    *appbilling.IssueInvoiceUseCase
	tx    *fakeTxRunner
	store *archive.FsStore
}

func newHarness(t *testing.T, opts ...func(*harnessConfig)) *harness {
	t.Helper()
	hc := &harnessConfig{
		encoder:     zugferd.NewBuilder(),
		timestamper: fakeTimestamper{},
	}
	for _, o := range opts {
		o(hc)
	}
	tx := newFakeTxRunner()
	store := archive.NewFsStore(afero.NewMemMapFs(), "/archive")
	log := logger.New(logger.Config{Env: "test", Level: "error"})
	uc := appbilling.NewIssueInvoiceUseCase(
		tx, hc.encoder, fakeComposer{}, fakeEmbedder{}, hc.timestamper, store,
		config.InvoiceConfig{NumberPrefix: "RE", NumberStart: 10000},
		log,
	)
	return &harness{uc: uc, tx: tx, store: store}
}

type harnessConfig struct {
	encoder     appbilling.StructuredEncoder
	timestamper appbilling.Timestamper
}

func withEncoder(e appbilling.StructuredEncoder) func(*harnessConfig) {
	return func(hc *harnessConfig) { hc.encoder = e }
}

func withDegradedTSA() func(*harnessConfig) {
	return func(hc *harnessConfig) { hc.timestamper = fakeTimestamper{degraded: true} }
}

func validRequest() dto.CreateInvoiceRequest {
	return dto.CreateInvoiceRequest{
		Seller: dto.PartyRequest{
			Name: "Muster GmbH", Street: "Hauptstraße 1", Zip: "10115",
			City: "Berlin", Country: "DE", TaxID: "DE123456789",
		},
		Buyer: dto.PartyRequest{
			Name: "Kunde AG", Street: "Marktplatz 5", Zip: "80331",
			City: "München", Country: "DE",
		},
		Items: []dto.LineItemRequest{
			{
				Description: "Beratungsleistung",
				Quantity:    decimal.NewFromInt(3),
				Unit:        "HUR",
				UnitPrice:   decimal.RequireFromString("10.005"),
				TaxRate:     decimal.NewFromInt(19),
			},
		},
		PaymentTerms: "Zahlbar innerhalb von 14 Tagen",
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestIssue_FullPipeline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inv, lines, err := h.uc.Execute(ctx, validRequest(), 7)
	require.NoError(t, err)
	require.NotNil(t, inv)

	// Numbering: prefix + zero-padded counter starting at start+1.
	assert.Equal(t, "RE010001", inv.InvoiceNumber)
	assert.Equal(t, entity.StatusIssued, inv.Status)
	assert.Equal(t, 1, inv.Version)
	assert.True(t, inv.IsImmutable)
	assert.Equal(t, int64(7), inv.CreatedBy)

	// Deterministic amounts.
	assert.Equal(t, "30.02", inv.NetTotal.StringFixed(2))
	assert.Equal(t, "5.70", inv.TaxTotal.StringFixed(2))
	assert.Equal(t, "35.72", inv.GrossTotal.StringFixed(2))
	require.Len(t, lines, 1)

	// Artifacts recorded and archived.
	year := inv.IssueDate.Year()
	assert.Equal(t, fmt.Sprintf("invoices/%d/RE010001.pdf", year), inv.PDFPath)
	assert.Equal(t, fmt.Sprintf("invoices/%d/RE010001.xml", year), inv.XMLPath)
	assert.Len(t, inv.XMLHash, 64)
	assert.Len(t, inv.PDFHash, 64)

	pdfData, info, err := h.store.Get(ctx, inv.PDFPath)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", info.ContentType)
	sum := sha256.Sum256(pdfData)
	assert.Equal(t, inv.PDFHash, hex.EncodeToString(sum[:]), "stored bytes must match the persisted hash")

	_, xmlInfo, err := h.store.Get(ctx, inv.XMLPath)
	require.NoError(t, err)
	assert.Equal(t, "text/xml", xmlInfo.ContentType)
	assert.Equal(t, "RE010001", xmlInfo.Metadata["invoice_number"])

	// Genuine proof with final hash over the token-embedded bytes.
	require.NotNil(t, inv.Proof)
	assert.True(t, inv.Proof.Genuine())
	assert.Equal(t, inv.PDFHash, inv.Proof.FinalHash)
	assert.NotEqual(t, inv.Proof.DocumentHash, inv.Proof.FinalHash,
		"embedding the token must change the document hash")

	// Audit entry in the same transaction.
	require.Len(t, h.tx.audit.entries, 1)
	e := h.tx.audit.entries[0]
	assert.Equal(t, entity.AuditActionCreate, e.Action)
	assert.Equal(t, inv.ID, e.EntityID)
	assert.Equal(t, "RE010001", e.Details["invoice_number"])
}

func TestIssue_DegradedProofStillIssues(t *testing.T) {
	h := newHarness(t, withDegradedTSA())

	inv, _, err := h.uc.Execute(context.Background(), validRequest(), 1)
	require.NoError(t, err)

	require.NotNil(t, inv.Proof)
	assert.True(t, inv.Proof.Degraded)
	assert.False(t, inv.Proof.Genuine())
	assert.Equal(t, entity.DegradedProofWarning, inv.Proof.Warning)
	// Without a token there is no second embed: final == document hash.
	assert.Equal(t, inv.Proof.DocumentHash, inv.Proof.FinalHash)
	assert.Equal(t, entity.StatusIssued, inv.Status)
}

func TestIssue_NumbersAreContiguousUnderConcurrency(t *testing.T) {
	h := newHarness(t)
	const n = 20

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, _, err := h.uc.Execute(context.Background(), validRequest(), 1)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, inv.InvoiceNumber)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)

	require.Len(t, numbers, n)
	sort.Strings(numbers)
	for i := 0; i < n; i++ {
		want := fmt.Sprintf("RE%06d", 10001+i)
		assert.Equal(t, want, numbers[i], "numbers must be unique and contiguous")
	}
}

func TestIssue_ValidationFailsBeforeAllocation(t *testing.T) {
	h := newHarness(t)

	req := validRequest()
	req.Seller.TaxID = ""
	_, _, err := h.uc.Execute(context.Background(), req, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	var stepErr *appbilling.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, appbilling.StepComputing, stepErr.Step)

	// No number may be consumed by a rejected request.
	assert.Equal(t, int64(0), h.tx.seq.counters["RE"])
}

func TestIssue_EncoderFailureBurnsTheNumber(t *testing.T) {
	h := newHarness(t, withEncoder(failingEncoder{}))

	_, _, err := h.uc.Execute(context.Background(), validRequest(), 1)
	require.Error(t, err)
	var stepErr *appbilling.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, appbilling.StepEncoding, stepErr.Step)

	// The allocation committed before the failure: 10001 is burned.
	assert.Equal(t, int64(10001), h.tx.seq.counters["RE"])
	assert.Empty(t, h.tx.inv.invoices, "no invoice row for a failed issuance")
	assert.Empty(t, h.tx.audit.entries)
}

func TestIssue_PersistFailureLeavesNoAuditEntry(t *testing.T) {
	h := newHarness(t)
	h.tx.inv.failNext = true

	_, _, err := h.uc.Execute(context.Background(), validRequest(), 1)
	require.Error(t, err)
	var stepErr *appbilling.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, appbilling.StepPersisting, stepErr.Step)

	assert.Empty(t, h.tx.inv.invoices)
	assert.Empty(t, h.tx.audit.entries, "metadata and audit must commit atomically")
}

func TestIssue_RejectsUnknownCurrency(t *testing.T) {
	h := newHarness(t)
	req := validRequest()
	req.Currency = "EURO"

	_, _, err := h.uc.Execute(context.Background(), req, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCancel_TransitionsAndAudits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inv, _, err := h.uc.Execute(ctx, validRequest(), 1)
	require.NoError(t, err)

	log := logger.New(logger.Config{Env: "test", Level: "error"})
	cancel := appbilling.NewCancelInvoiceUseCase(h.tx, log)

	require.NoError(t, cancel.Execute(ctx, inv.ID, "Betrag falsch", 2))
	assert.Equal(t, entity.StatusCancelled, inv.Status)
	assert.Equal(t, 2, inv.Version)

	// Second cancellation conflicts.
	err = cancel.Execute(ctx, inv.ID, "nochmal", 2)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Audit: one create + one cancel.
	entries, err := h.tx.audit.ListByEntity(ctx, "invoice", inv.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entity.AuditActionCancel, entries[1].Action)
	assert.Equal(t, "Betrag falsch", entries[1].Details["reason"])
}

func TestCancel_RequiresReason(t *testing.T) {
	h := newHarness(t)
	log := logger.New(logger.Config{Env: "test", Level: "error"})
	cancel := appbilling.NewCancelInvoiceUseCase(h.tx, log)

	err := cancel.Execute(context.Background(), 1, "", 2)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
