package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okiehn/rechnung-api/internal/application/billing"
	"github.com/okiehn/rechnung-api/internal/domain/repository"
)

var _ billing.TxRunner = (*TxRunner)(nil)

// TxRunner executes callbacks inside PostgreSQL transactions.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner builds the runner on the pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunSequence begins a transaction, runs fn with a tx-bound sequence
// repository and commits. The FOR UPDATE lock taken by Allocate is released
// on commit, so keep fn short: allocate, format the number, return.
func (r *TxRunner) RunSequence(ctx context.Context, fn func(seqRepo repository.SequenceRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewSequenceRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RunIssuance begins a transaction with invoice and audit repositories bound
// to it, so the metadata row and its audit entry land atomically.
func (r *TxRunner) RunIssuance(ctx context.Context, fn func(
	invoiceRepo repository.InvoiceRepository,
	auditRepo repository.AuditRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewInvoiceRepository(tx), NewAuditRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
