package billing

import (
	"context"
	"time"

	"github.com/okiehn/rechnung-api/internal/domain/entity"
	"github.com/okiehn/rechnung-api/internal/domain/repository"
)

// TxRunner runs callbacks inside PostgreSQL transactions. The pipeline uses
// two distinct transaction boundaries on purpose:
//
//   - RunSequence commits before any document is built, so the row lock on
//     the number counter is held only for the allocation itself. A pipeline
//     failure after commit burns the number (an acceptable, logged gap);
//     holding the lock across PDF composition and TSA round-trips would
//     serialize all issuance behind the slowest external call.
//   - RunIssuance persists the invoice metadata and its audit entry
//     atomically at the end of the pipeline.
type TxRunner interface {
	RunSequence(ctx context.Context, fn func(seqRepo repository.SequenceRepository) error) error
	RunIssuance(ctx context.Context, fn func(
		invoiceRepo repository.InvoiceRepository,
		auditRepo repository.AuditRepository,
	) error) error
}

// StructuredEncoder builds the machine-readable invoice document (CII XML),
// validates candidate bytes and fingerprints the canonical form.
type StructuredEncoder interface {
	Build(inv *entity.Invoice, lines []entity.LineItem) ([]byte, error)
	Validate(xml []byte) error
	// Fingerprint returns the hex SHA-256 of the canonicalized document, so
	// semantically identical XML always hashes the same.
	Fingerprint(xml []byte) (string, error)
}

// PDFComposer renders the human-readable invoice document.
type PDFComposer interface {
	Compose(inv *entity.Invoice, lines []entity.LineItem) ([]byte, error)
}

// Embedder attaches a file to a finished PDF (structured XML, timestamp
// token) with the given embedding relationship.
type Embedder interface {
	Embed(doc []byte, attachment []byte, filename, relationship string) ([]byte, error)
}

// Timestamper obtains an existence proof for the given document bytes. It
// must not fail the pipeline: when the authority is unreachable it returns a
// degraded token carrying an explicit warning instead of an error.
type Timestamper interface {
	ObtainProof(ctx context.Context, doc []byte, at time.Time) (*entity.ProofToken, error)
}
