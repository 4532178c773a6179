// Package archive implements the revision-safe document store. Documents are
// written once and never overwritten: every Put creates a new version, every
// Delete writes a tombstone version, and all prior versions stay readable
// through ListVersions. Two backends exist, PostgreSQL for production and an
// afero filesystem for small deployments and tests.
package archive

import (
	"context"
	"time"
)

// PutOptions carries per-object metadata.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// VersionInfo describes one stored revision of a key.
type VersionInfo struct {
	Version     int
	Size        int64
	ContentType string
	Metadata    map[string]string
	Tombstone   bool
	CreatedAt   time.Time
}

// Store is the archival port. Implementations must be append-only: Put always
// creates version max+1 for the key, never mutates an existing version.
type Store interface {
	// Put stores data as the next version of key and returns its info.
	Put(ctx context.Context, key string, data []byte, opts PutOptions) (VersionInfo, error)

	// Get returns the newest version of key. A key whose newest version is a
	// tombstone behaves like a missing key (domain.ErrNotFound).
	Get(ctx context.Context, key string) ([]byte, VersionInfo, error)

	// GetVersion returns one specific revision, tombstones included.
	GetVersion(ctx context.Context, key string, version int) ([]byte, VersionInfo, error)

	// ListVersions returns all revisions of key, oldest first.
	ListVersions(ctx context.Context, key string) ([]VersionInfo, error)

	// Delete appends a tombstone version. The data of earlier versions is
	// retained; nothing is ever physically removed.
	Delete(ctx context.Context, key string) error

	// Name identifies the backend ("postgres", "local").
	Name() string
}
