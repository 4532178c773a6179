package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okiehn/rechnung-api/internal/domain"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore keeps archived documents in the archive_objects table,
// versioned by a unique (key, version) constraint. The version number is
// computed as MAX+1 inside the insert; a concurrent writer losing that race
// hits the unique constraint and simply retries with the next number.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore builds the store on the shared pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Name identifies the backend.
func (s *PostgresStore) Name() string { return "postgres" }

const putRetries = 3

// Put stores data as the next version of key.
func (s *PostgresStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) (VersionInfo, error) {
	meta, err := marshalMeta(opts.Metadata)
	if err != nil {
		return VersionInfo{}, err
	}

	var lastErr error
	for attempt := 0; attempt < putRetries; attempt++ {
		info := VersionInfo{
			Size:        int64(len(data)),
			ContentType: opts.ContentType,
			Metadata:    opts.Metadata,
		}
		err := s.pool.QueryRow(ctx, `
			INSERT INTO archive_objects (key, version, data, content_type, metadata, tombstone)
			SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3, $4, FALSE
			FROM archive_objects WHERE key = $1
			RETURNING version, created_at`,
			key, data, opts.ContentType, meta,
		).Scan(&info.Version, &info.CreatedAt)
		if err == nil {
			return info, nil
		}
		if !isUniqueViolation(err) {
			return VersionInfo{}, fmt.Errorf("%w: put %s: %v", domain.ErrStorage, key, err)
		}
		lastErr = err
	}
	return VersionInfo{}, fmt.Errorf("%w: put %s: version conflict persisted: %v", domain.ErrStorage, key, lastErr)
}

// Get returns the newest version of key.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, VersionInfo, error) {
	data, info, err := s.fetch(ctx, key, 0)
	if err != nil {
		return nil, VersionInfo{}, err
	}
	if info.Tombstone {
		return nil, VersionInfo{}, fmt.Errorf("%w: %s (deleted)", domain.ErrNotFound, key)
	}
	return data, info, nil
}

// GetVersion returns one specific revision.
func (s *PostgresStore) GetVersion(ctx context.Context, key string, version int) ([]byte, VersionInfo, error) {
	return s.fetch(ctx, key, version)
}

func (s *PostgresStore) fetch(ctx context.Context, key string, version int) ([]byte, VersionInfo, error) {
	query := `
		SELECT version, data, content_type, metadata, tombstone, created_at
		FROM archive_objects WHERE key = $1`
	args := []any{key}
	if version > 0 {
		query += ` AND version = $2`
		args = append(args, version)
	}
	query += ` ORDER BY version DESC LIMIT 1`

	var (
		data []byte
		meta []byte
		info VersionInfo
	)
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&info.Version, &data, &info.ContentType, &meta, &info.Tombstone, &info.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, VersionInfo{}, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		return nil, VersionInfo{}, fmt.Errorf("%w: get %s: %v", domain.ErrStorage, key, err)
	}
	info.Size = int64(len(data))
	if info.Metadata, err = unmarshalMeta(meta); err != nil {
		return nil, VersionInfo{}, err
	}
	return data, info, nil
}

// ListVersions returns all revisions of key, oldest first.
func (s *PostgresStore) ListVersions(ctx context.Context, key string) ([]VersionInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT version, octet_length(data), content_type, metadata, tombstone, created_at
		FROM archive_objects WHERE key = $1 ORDER BY version`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list versions of %s: %v", domain.ErrStorage, key, err)
	}
	defer rows.Close()

	var list []VersionInfo
	for rows.Next() {
		var (
			info VersionInfo
			meta []byte
		)
		if err := rows.Scan(&info.Version, &info.Size, &info.ContentType, &meta, &info.Tombstone, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan version: %v", domain.ErrStorage, err)
		}
		if info.Metadata, err = unmarshalMeta(meta); err != nil {
			return nil, err
		}
		list = append(list, info)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	return list, rows.Err()
}

// Delete appends a tombstone version; earlier versions stay readable through
// ListVersions and GetVersion.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, _, err := s.Get(ctx, key); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < putRetries; attempt++ {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO archive_objects (key, version, data, content_type, metadata, tombstone)
			SELECT $1, COALESCE(MAX(version), 0) + 1, ''::bytea, '', '{}', TRUE
			FROM archive_objects WHERE key = $1`,
			key,
		)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("%w: tombstone %s: %v", domain.ErrStorage, key, err)
		}
		lastErr = err
	}
	return fmt.Errorf("%w: tombstone %s: version conflict persisted: %v", domain.ErrStorage, key, lastErr)
}

func marshalMeta(m map[string]string) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal metadata: %v", domain.ErrStorage, err)
	}
	return b, nil
}

func unmarshalMeta(b []byte) (map[string]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: unmarshal metadata: %v", domain.ErrStorage, err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
