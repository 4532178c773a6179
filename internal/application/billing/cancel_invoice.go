package billing

import (
	"context"
	"fmt"

	"github.com/okiehn/rechnung-api/internal/domain"
	"github.com/okiehn/rechnung-api/internal/domain/entity"
	"github.com/okiehn/rechnung-api/internal/domain/repository"
	"github.com/okiehn/rechnung-api/pkg/logger"
)

// CancelInvoiceUseCase flips an issued invoice to cancelled. Nothing else
// changes: the archived documents, hashes and proof stay untouched, the
// cancellation is a status transition plus an audit entry. There is no
// un-cancel.
type CancelInvoiceUseCase struct {
	tx  TxRunner
	log *logger.Logger
}

// NewCancelInvoiceUseCase builds the use case.
func NewCancelInvoiceUseCase(tx TxRunner, log *logger.Logger) *CancelInvoiceUseCase {
	return &CancelInvoiceUseCase{tx: tx, log: log}
}

// Execute cancels the invoice. reason is recorded in the audit trail and
// must not be empty.
func (uc *CancelInvoiceUseCase) Execute(ctx context.Context, id int64, reason string, userID int64) error {
	if reason == "" {
		return fmt.Errorf("%w: cancellation requires a reason", domain.ErrValidation)
	}

	err := uc.tx.RunIssuance(ctx, func(invoiceRepo repository.InvoiceRepository, auditRepo repository.AuditRepository) error {
		if err := invoiceRepo.MarkCancelled(ctx, id); err != nil {
			return err
		}
		return auditRepo.Append(ctx, &entity.AuditEntry{
			ActorID:    userID,
			EntityType: "invoice",
			EntityID:   id,
			Action:     entity.AuditActionCancel,
			Details:    map[string]any{"reason": reason},
		})
	})
	if err != nil {
		return err
	}

	uc.log.Info().Int64("invoice_id", id).Int64("actor_id", userID).Msg("invoice cancelled")
	return nil
}
