package resultcache

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS Locations (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	x_pos    REAL,
	y_pos    REAL,
	variable TEXT,
	name     TEXT,
	UNIQUE (x_pos, y_pos, variable)
);
`

// Migrate creates the Locations table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Get(ctx context.Context, key Key) (string, bool, error) {
	var name sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM Locations WHERE x_pos = ? AND y_pos = ? AND variable = ?`,
		key.X, key.Y, key.Variable,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "sqlite: get location")
	}
	if !name.Valid {
		return "", false, nil
	}
	return name.String, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key Key, label string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO Locations (x_pos, y_pos, variable, name) VALUES (?, ?, ?, ?)
		 ON CONFLICT (x_pos, y_pos, variable) DO NOTHING`,
		key.X, key.Y, key.Variable, label,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: put location")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Locations`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count locations")
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
