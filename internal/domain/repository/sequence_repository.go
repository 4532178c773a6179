package repository

import "context"

// SequenceRepository defines the persistence port for the gapless invoice
// number counter.
type SequenceRepository interface {
	// Allocate returns the next number for the given prefix, creating the
	// counter row at start-1 on first use. The implementation must hold a row
	// lock for the duration of the surrounding transaction so that two
	// concurrent issuances can never observe the same value.
	Allocate(ctx context.Context, prefix string, start int64) (int64, error)

	// Current returns the last allocated number without advancing the counter
	// (0 if the prefix has never allocated).
	Current(ctx context.Context, prefix string) (int64, error)
}
