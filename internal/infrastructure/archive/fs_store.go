package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/okiehn/rechnung-api/internal/domain"
)

var _ Store = (*FsStore)(nil)

// FsStore keeps archived documents on a filesystem. Each key maps to a
// "<key>.versions" directory holding one "NNNNNN.bin" payload plus a
// "NNNNNN.json" sidecar per revision; tombstones are sidecar-only revisions.
// Written files are chmodded read-only, so the layout stays append-only even
// against casual shell access.
//
// Backed by afero: the OS filesystem in production, an in-memory one in tests.
type FsStore struct {
	fs   afero.Afero
	base string

	mu sync.Mutex // serializes version allocation per process
}

type fsSidecar struct {
	Version     int               `json:"version"`
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Tombstone   bool              `json:"tombstone,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewFsStore builds the store rooted at base.
func NewFsStore(fs afero.Fs, base string) *FsStore {
	return &FsStore{fs: afero.Afero{Fs: fs}, base: base}
}

// Name identifies the backend.
func (s *FsStore) Name() string { return "local" }

// Put stores data as the next version of key.
func (s *FsStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) (VersionInfo, error) {
	return s.write(key, data, opts, false)
}

// Delete appends a tombstone version.
func (s *FsStore) Delete(ctx context.Context, key string) error {
	if _, _, err := s.Get(ctx, key); err != nil {
		return err
	}
	_, err := s.write(key, nil, PutOptions{}, true)
	return err
}

func (s *FsStore) write(key string, data []byte, opts PutOptions, tombstone bool) (VersionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.versionDir(key)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return VersionInfo{}, fmt.Errorf("%w: mkdir %s: %v", domain.ErrStorage, dir, err)
	}

	versions, err := s.versionNumbers(dir)
	if err != nil {
		return VersionInfo{}, err
	}
	next := 1
	if n := len(versions); n > 0 {
		next = versions[n-1] + 1
	}

	info := VersionInfo{
		Version:     next,
		Size:        int64(len(data)),
		ContentType: opts.ContentType,
		Metadata:    opts.Metadata,
		Tombstone:   tombstone,
		CreatedAt:   time.Now().UTC(),
	}

	if !tombstone {
		binPath := filepath.Join(dir, versionFileName(next, "bin"))
		if err := s.fs.WriteFile(binPath, data, 0o444); err != nil {
			return VersionInfo{}, fmt.Errorf("%w: write %s: %v", domain.ErrStorage, binPath, err)
		}
	}

	sidecar := fsSidecar{
		Version:     info.Version,
		Size:        info.Size,
		ContentType: info.ContentType,
		Metadata:    info.Metadata,
		Tombstone:   tombstone,
		CreatedAt:   info.CreatedAt,
	}
	raw, err := json.Marshal(sidecar)
	if err != nil {
		return VersionInfo{}, fmt.Errorf("%w: marshal sidecar: %v", domain.ErrStorage, err)
	}
	metaPath := filepath.Join(dir, versionFileName(next, "json"))
	if err := s.fs.WriteFile(metaPath, raw, 0o444); err != nil {
		return VersionInfo{}, fmt.Errorf("%w: write %s: %v", domain.ErrStorage, metaPath, err)
	}
	return info, nil
}

// Get returns the newest version of key.
func (s *FsStore) Get(ctx context.Context, key string) ([]byte, VersionInfo, error) {
	dir := s.versionDir(key)
	versions, err := s.versionNumbers(dir)
	if err != nil || len(versions) == 0 {
		return nil, VersionInfo{}, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	data, info, err := s.read(dir, versions[len(versions)-1])
	if err != nil {
		return nil, VersionInfo{}, err
	}
	if info.Tombstone {
		return nil, VersionInfo{}, fmt.Errorf("%w: %s (deleted)", domain.ErrNotFound, key)
	}
	return data, info, nil
}

// GetVersion returns one specific revision, tombstones included.
func (s *FsStore) GetVersion(ctx context.Context, key string, version int) ([]byte, VersionInfo, error) {
	dir := s.versionDir(key)
	data, info, err := s.read(dir, version)
	if err != nil {
		return nil, VersionInfo{}, fmt.Errorf("%w: %s version %d", domain.ErrNotFound, key, version)
	}
	return data, info, nil
}

// ListVersions returns all revisions of key, oldest first.
func (s *FsStore) ListVersions(ctx context.Context, key string) ([]VersionInfo, error) {
	dir := s.versionDir(key)
	versions, err := s.versionNumbers(dir)
	if err != nil || len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	list := make([]VersionInfo, 0, len(versions))
	for _, v := range versions {
		_, info, err := s.read(dir, v)
		if err != nil {
			return nil, err
		}
		list = append(list, info)
	}
	return list, nil
}

func (s *FsStore) read(dir string, version int) ([]byte, VersionInfo, error) {
	raw, err := s.fs.ReadFile(filepath.Join(dir, versionFileName(version, "json")))
	if err != nil {
		return nil, VersionInfo{}, fmt.Errorf("%w: read sidecar v%d: %v", domain.ErrStorage, version, err)
	}
	var sc fsSidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, VersionInfo{}, fmt.Errorf("%w: parse sidecar v%d: %v", domain.ErrStorage, version, err)
	}
	info := VersionInfo{
		Version:     sc.Version,
		Size:        sc.Size,
		ContentType: sc.ContentType,
		Metadata:    sc.Metadata,
		Tombstone:   sc.Tombstone,
		CreatedAt:   sc.CreatedAt,
	}
	if sc.Tombstone {
		return nil, info, nil
	}
	data, err := s.fs.ReadFile(filepath.Join(dir, versionFileName(version, "bin")))
	if err != nil {
		return nil, VersionInfo{}, fmt.Errorf("%w: read payload v%d: %v", domain.ErrStorage, version, err)
	}
	return data, info, nil
}

// versionNumbers scans the version dir and returns the revision numbers in
// ascending order (empty when the dir does not exist).
func (s *FsStore) versionNumbers(dir string) ([]int, error) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read dir %s: %v", domain.ErrStorage, dir, err)
	}
	var versions []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}

func (s *FsStore) versionDir(key string) string {
	return filepath.Join(s.base, filepath.FromSlash(key)+".versions")
}

func versionFileName(version int, ext string) string {
	return fmt.Sprintf("%06d.%s", version, ext)
}
