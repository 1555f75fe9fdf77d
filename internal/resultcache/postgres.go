package resultcache

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geoattr/internal/db"
)

// PostgresStore implements Store on a PostgreSQL Locations table.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to dsn and returns a store over the pool.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return NewPostgresWithPool(pool), nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `CREATE TABLE IF NOT EXISTS locations (
	id       BIGSERIAL PRIMARY KEY,
	x_pos    DOUBLE PRECISION,
	y_pos    DOUBLE PRECISION,
	variable TEXT,
	name     TEXT,
	UNIQUE (x_pos, y_pos, variable)
)`

// Migrate creates the locations table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Get(ctx context.Context, key Key) (string, bool, error) {
	var name string
	err := s.pool.QueryRow(ctx,
		`SELECT name FROM locations WHERE x_pos = $1 AND y_pos = $2 AND variable = $3`,
		key.X, key.Y, key.Variable,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "postgres: get location")
	}
	return name, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, key Key, label string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO locations (x_pos, y_pos, variable, name) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (x_pos, y_pos, variable) DO NOTHING`,
		key.X, key.Y, key.Variable, label,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: put location")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM locations`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count locations")
	}
	return n, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
