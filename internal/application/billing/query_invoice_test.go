package billing_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appbilling "github.com/okiehn/rechnung-api/internal/application/billing"
	"github.com/okiehn/rechnung-api/internal/domain"
	"github.com/okiehn/rechnung-api/internal/domain/entity"
	"github.com/okiehn/rechnung-api/internal/infrastructure/archive"
	"github.com/okiehn/rechnung-api/pkg/logger"
)

// issueOne runs the issuance pipeline once and returns a query use case bound
// to the same fakes and archive store, so reads operate on real stored bytes.
func issueOne(t *testing.T) (*appbilling.QueryInvoiceUseCase, *harness, *entity.Invoice) {
	t.Helper()
	h := newHarness(t)
	inv, _, err := h.uc.Execute(context.Background(), validRequest(), 1)
	require.NoError(t, err)

	log := logger.New(logger.Config{Env: "test", Level: "error"})
	q := appbilling.NewQueryInvoiceUseCase(h.tx.inv, h.tx.audit, h.store, log)
	return q, h, inv
}

func TestQuery_PreviewReturnsVerifiedPDF(t *testing.T) {
	q, _, issued := issueOne(t)

	pdf, inv, err := q.Preview(context.Background(), issued.ID)
	require.NoError(t, err)
	assert.Equal(t, issued.InvoiceNumber, inv.InvoiceNumber)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")), "preview must stream the stored PDF")
}

func TestQuery_PreviewDetectsTampering(t *testing.T) {
	q, h, issued := issueOne(t)
	ctx := context.Background()

	// A newer archive version with different bytes no longer matches the
	// hash persisted at issuance; the document must be withheld.
	_, err := h.store.Put(ctx, issued.PDFPath, []byte("tampered"), archive.PutOptions{})
	require.NoError(t, err)

	_, _, err = q.Preview(ctx, issued.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestQuery_DownloadPackage(t *testing.T) {
	q, _, issued := issueOne(t)

	data, filename, err := q.Download(context.Background(), issued.ID)
	require.NoError(t, err)
	assert.Equal(t, issued.InvoiceNumber+".zip", filename)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entries := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries[f.Name] = content
	}

	require.Len(t, entries, 4)
	assert.Contains(t, entries, issued.InvoiceNumber+".pdf")
	assert.Contains(t, entries, issued.InvoiceNumber+".xml")
	assert.Contains(t, entries, "tsa_token.json")
	assert.Contains(t, entries, "metadata.json")

	assert.True(t, bytes.HasPrefix(entries[issued.InvoiceNumber+".pdf"], []byte("%PDF-")))
	assert.Contains(t, string(entries[issued.InvoiceNumber+".xml"]), "CrossIndustryInvoice")
	meta := string(entries["metadata.json"])
	assert.Contains(t, meta, issued.InvoiceNumber)
	assert.Contains(t, meta, `"buyer": "Kunde AG"`)
	assert.Contains(t, meta, `"created_at"`)
	assert.Contains(t, string(entries["tsa_token.json"]), issued.Proof.DocumentHash)
}

func TestQuery_VersionsListsBothDocuments(t *testing.T) {
	q, _, issued := issueOne(t)

	byKey, err := q.Versions(context.Background(), issued.ID)
	require.NoError(t, err)
	require.Len(t, byKey, 2)
	require.Len(t, byKey[issued.PDFPath], 1)
	require.Len(t, byKey[issued.XMLPath], 1)
	assert.Equal(t, 1, byKey[issued.PDFPath][0].Version)
	assert.False(t, byKey[issued.PDFPath][0].Tombstone)
}

func TestQuery_UnknownInvoiceIsNotFound(t *testing.T) {
	q, _, _ := issueOne(t)
	ctx := context.Background()

	_, _, err := q.Get(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = q.AuditTrail(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
