package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"agora/internal/protocol"
)

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA cache_size = -64000",
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	key     TEXT PRIMARY KEY,
	record  BLOB NOT NULL,
	updated TEXT NOT NULL
)`

// SQLiteStore is the shared medium for agents coordinating through one
// SQLite database file. WAL mode plus the busy timeout lets multiple agent
// processes write concurrently; each Put is a single upsert, which satisfies
// the atomic per-key replace contract.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the shared database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, protocol.Storagef("sql open: %v", err)
	}

	database.SetMaxOpenConns(10)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(0)
	database.SetConnMaxIdleTime(30 * time.Minute)

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, protocol.Storagef("ping: %v", err)
	}

	for _, pragma := range sqlitePragmas {
		if _, err := database.Exec(pragma); err != nil {
			_ = database.Close()
			return nil, protocol.Storagef("apply pragma %q: %v", pragma, err)
		}
	}

	if _, err := database.Exec(sqliteSchema); err != nil {
		_ = database.Close()
		return nil, protocol.Storagef("create schema: %v", err)
	}

	return &SQLiteStore{db: database}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, key string, record []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO records (key, record, updated) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET record = excluded.record, updated = excluded.updated`,
		key, record, protocol.Now())
	if err != nil {
		return protocol.Storagef("put %s: %v", key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	var record []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM records WHERE key = ?`, key).Scan(&record)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, protocol.NotFoundf("record %s", key)
		}
		return nil, protocol.Storagef("get %s: %v", key, err)
	}
	return record, nil
}

func (s *SQLiteStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, record FROM records WHERE key LIKE ? ESCAPE '\'`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, protocol.Storagef("list %s: %v", prefix, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var (
			key    string
			record []byte
		)
		if err := rows.Scan(&key, &record); err != nil {
			return nil, protocol.Storagef("list %s: %v", prefix, err)
		}
		out[key] = record
	}
	if err := rows.Err(); err != nil {
		return nil, protocol.Storagef("list %s: %v", prefix, err)
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
