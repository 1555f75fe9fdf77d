// Package resultcache holds resolved labels: an in-process LRU (tier 1) in
// front of a persistent store (tier 2) backed by SQLite, PostgreSQL or Redis.
package resultcache

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoattr/internal/config"
)

// ErrUnknownDriver is returned by Open for an unsupported store driver.
var ErrUnknownDriver = eris.New("unknown store driver")

// Key identifies a resolved label. Coordinates compare by exact float
// equality.
type Key struct {
	X        float64
	Y        float64
	Variable string
}

// Store is the persistent tier. Entries are never overwritten: Put reports
// false when the key already held a label and leaves it unchanged.
type Store interface {
	Get(ctx context.Context, key Key) (string, bool, error)
	Put(ctx context.Context, key Key, label string) (bool, error)
	Count(ctx context.Context) (int64, error)
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects the store selected by cfg.Driver and migrates it. For the
// sqlite driver an empty DatabaseURL means <configDir>/lookup_database.db.
func Open(ctx context.Context, cfg config.StoreConfig, configDir string) (Store, error) {
	var (
		st  Store
		err error
	)

	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = filepath.Join(configDir, config.LookupDatabaseName)
		}
		st, err = NewSQLite(dsn)
	case "postgres", "postgresql":
		st, err = NewPostgres(ctx, cfg.DatabaseURL)
	case "redis":
		st = NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, eris.Wrapf(ErrUnknownDriver, "resultcache: %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	zap.L().Debug("resultcache: store ready", zap.String("driver", cfg.Driver))
	return st, nil
}
