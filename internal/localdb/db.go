// Package localdb is the process-local bookkeeping store: a small embedded
// sqlite database, adapted from a generic collection/key/value cache, now
// scoped to one job — recording which profile_<name> DDL script has
// already been applied to which datastore table, so EnsureTables can
// skip re-running idempotent-but-not-free DDL on every process start.
//
// This is not the primary document store (that is internal/datastore over
// PostgreSQL); it is local-only state that is safe to lose (EnsureTables
// falls back to re-running the DDL, which is itself idempotent).
package localdb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a sqlite database used as a simple key/value store of JSON
// blobs, keyed by (collection, key).
type DB struct{ db *sql.DB }

// Open opens or creates the sqlite database file under stateDir.
func Open(stateDir string) (*DB, error) {
	if stateDir == "" {
		stateDir = "."
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, err
	}
	path := filepath.Join(stateDir, "pyonstore.sqlite")
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		// non-fatal: WAL mode is an optimization, not a correctness requirement
	}
	schema := `CREATE TABLE IF NOT EXISTS kv (
		collection TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      BLOB,
		PRIMARY KEY(collection, key)
	)`
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("localdb: init schema: %w", err)
	}
	return &DB{db: sqlDB}, nil
}

func (d *DB) Close() error { return d.db.Close() }

// Put upserts v (marshaled as JSON) under (collection, key).
func (d *DB) Put(collection, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(
		`INSERT INTO kv(collection,key,value) VALUES(?,?,?) ON CONFLICT(collection,key) DO UPDATE SET value=excluded.value`,
		collection, key, b)
	return err
}

// ErrNotFound is returned by Get when no row matches.
var ErrNotFound = errors.New("localdb: not found")

// Get unmarshals the value stored under (collection, key) into out.
func (d *DB) Get(collection, key string, out any) error {
	row := d.db.QueryRow(`SELECT value FROM kv WHERE collection=? AND key=?`, collection, key)
	var b []byte
	if err := row.Scan(&b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(b, out)
}

// Delete removes the value stored under (collection, key), if any.
func (d *DB) Delete(collection, key string) error {
	_, err := d.db.Exec(`DELETE FROM kv WHERE collection=? AND key=?`, collection, key)
	return err
}

// List unmarshals every value in collection into out, which must be a
// pointer to a slice.
func (d *DB) List(collection string, out any) error {
	rows, err := d.db.Query(`SELECT value FROM kv WHERE collection=?`, collection)
	if err != nil {
		return err
	}
	defer rows.Close()
	arr := make([]json.RawMessage, 0)
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return err
		}
		arr = append(arr, append([]byte(nil), b...))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	bb, err := json.Marshal(arr)
	if err != nil {
		return err
	}
	return json.Unmarshal(bb, out)
}
