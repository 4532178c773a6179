package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/afero"

	"github.com/okiehn/rechnung-api/pkg/config"
	"github.com/okiehn/rechnung-api/pkg/logger"
)

// Probe selects the archive backend at startup. "postgres" and "local" force
// one backend; "auto" prefers PostgreSQL when the pool answers a ping and
// falls back to the local filesystem otherwise, so a developer box without a
// database still archives documents.
func Probe(ctx context.Context, cfg config.ArchiveConfig, pool *pgxpool.Pool, log *logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("archive: backend postgres requires a database pool")
		}
		return NewPostgresStore(pool), nil

	case "local":
		return newLocalStore(cfg, log), nil

	case "", "auto":
		if pool != nil {
			if err := pool.Ping(ctx); err == nil {
				log.Info().Str("backend", "postgres").Msg("archive backend selected")
				return NewPostgresStore(pool), nil
			}
			log.Warn().Msg("archive probe: database unreachable, falling back to local storage")
		}
		return newLocalStore(cfg, log), nil

	default:
		return nil, fmt.Errorf("archive: unknown backend %q", cfg.Backend)
	}
}

func newLocalStore(cfg config.ArchiveConfig, log *logger.Logger) *FsStore {
	dir := cfg.LocalDir
	if dir == "" {
		dir = "./storage"
	}
	log.Info().Str("backend", "local").Str("dir", dir).Msg("archive backend selected")
	return NewFsStore(afero.NewOsFs(), dir)
}
