package archive_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okiehn/rechnung-api/internal/domain"
	"github.com/okiehn/rechnung-api/internal/infrastructure/archive"
)

func newStore() *archive.FsStore {
	return archive.NewFsStore(afero.NewMemMapFs(), "/archive")
}

func TestFsStore_PutAndGet(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	info, err := s.Put(ctx, "invoices/2026/RE010001.pdf", []byte("%PDF-"), archive.PutOptions{
		ContentType: "application/pdf",
		Metadata:    map[string]string{"invoice_number": "RE010001"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, info.Version)
	assert.Equal(t, int64(5), info.Size)

	data, got, err := s.Get(ctx, "invoices/2026/RE010001.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-"), data)
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, "RE010001", got.Metadata["invoice_number"])
}

func TestFsStore_PutNeverOverwrites(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	key := "invoices/2026/RE010001.xml"

	_, err := s.Put(ctx, key, []byte("first"), archive.PutOptions{ContentType: "text/xml"})
	require.NoError(t, err)
	info2, err := s.Put(ctx, key, []byte("second"), archive.PutOptions{ContentType: "text/xml"})
	require.NoError(t, err)
	assert.Equal(t, 2, info2.Version)

	// Newest wins on Get, but version 1 is still fully readable.
	data, _, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	old, oldInfo, err := s.GetVersion(ctx, key, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), old)
	assert.Equal(t, 1, oldInfo.Version)

	versions, err := s.ListVersions(ctx, key)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)
}

func TestFsStore_DeleteIsATombstone(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	key := "invoices/2026/RE010002.pdf"

	_, err := s.Put(ctx, key, []byte("payload"), archive.PutOptions{ContentType: "application/pdf"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, key))

	// The key now behaves like a missing one...
	_, _, err = s.Get(ctx, key)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// ...but nothing was physically removed.
	versions, err := s.ListVersions(ctx, key)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.False(t, versions[0].Tombstone)
	assert.True(t, versions[1].Tombstone)

	data, _, err := s.GetVersion(ctx, key, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestFsStore_DeleteMissingKey(t *testing.T) {
	s := newStore()
	err := s.Delete(context.Background(), "invoices/2026/nope.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFsStore_GetMissingKey(t *testing.T) {
	s := newStore()
	_, _, err := s.Get(context.Background(), "invoices/2026/nope.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.ListVersions(context.Background(), "invoices/2026/nope.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFsStore_KeysAreIndependent(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	_, err := s.Put(ctx, "invoices/2026/RE010001.pdf", []byte("a"), archive.PutOptions{})
	require.NoError(t, err)
	info, err := s.Put(ctx, "invoices/2026/RE010002.pdf", []byte("b"), archive.PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, info.Version, "versions count per key, not globally")
}
