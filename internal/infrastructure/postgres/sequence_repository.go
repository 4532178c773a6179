package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/okiehn/rechnung-api/internal/domain"
	"github.com/okiehn/rechnung-api/internal/domain/repository"
)

var _ repository.SequenceRepository = (*SequenceRepo)(nil)

// SequenceRepo implements the gapless counter over PostgreSQL. Pass a pool or
// tx (Querier); Allocate is only safe inside a transaction.
type SequenceRepo struct {
	q Querier
}

// NewSequenceRepository builds the adapter. Pass pool or tx (Querier).
func NewSequenceRepository(q Querier) *SequenceRepo {
	return &SequenceRepo{q: q}
}

// Allocate returns the next number for the prefix. The counter row is created
// lazily at start-1; concurrent first-time creators race on the unique prefix
// and the loser simply reads the winner's row. SELECT ... FOR UPDATE holds the
// row lock until the surrounding transaction commits, which serializes
// concurrent allocations without ever handing out the same value twice.
func (r *SequenceRepo) Allocate(ctx context.Context, prefix string, start int64) (int64, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO invoice_number_sequence (prefix, current_number)
		VALUES ($1, $2)
		ON CONFLICT (prefix) DO NOTHING`,
		prefix, start-1,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: init sequence: %v", domain.ErrAllocation, err)
	}

	var current int64
	err = r.q.QueryRow(ctx, `
		SELECT current_number FROM invoice_number_sequence
		WHERE prefix = $1
		FOR UPDATE`,
		prefix,
	).Scan(&current)
	if err != nil {
		return 0, fmt.Errorf("%w: lock sequence: %v", domain.ErrAllocation, err)
	}

	next := current + 1
	_, err = r.q.Exec(ctx, `
		UPDATE invoice_number_sequence
		SET current_number = $1, updated_at = NOW()
		WHERE prefix = $2`,
		next, prefix,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: advance sequence: %v", domain.ErrAllocation, err)
	}
	return next, nil
}

// Current returns the last allocated number for the prefix (0 if none).
func (r *SequenceRepo) Current(ctx context.Context, prefix string) (int64, error) {
	var current int64
	err := r.q.QueryRow(ctx,
		`SELECT current_number FROM invoice_number_sequence WHERE prefix = $1`,
		prefix,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read sequence: %w", err)
	}
	return current, nil
}
