// Package datastore implements the base datastore (C5), the profile
// dispatcher (C6), and the view query planner (C7): CRUD over a single
// PostgreSQL-backed document table plus its profile-specific sidecars,
// with optimistic-concurrency revisions and the SQLSTATE-based error
// classification from §7.
//
// Grounded on the original implementation's base_store.py: _create_doc,
// _update_doc, _get_extra_cols, create_doc_mult's per-row SAVEPOINT retry,
// and read_doc_mult's id-ordered reassembly are all carried over in shape,
// translated from psycopg2 cursors to pgx.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/docxology/pyonstore/internal/localdb"
	"github.com/docxology/pyonstore/internal/pool"
	"github.com/docxology/pyonstore/internal/tracer"
)

// Document is a document body as stored and returned by the datastore: a
// JSON object carrying at least "_id" and "_rev" once created.
type Document map[string]any

// ID returns the document's "_id", or "" if absent.
func (d Document) ID() string {
	s, _ := d["_id"].(string)
	return s
}

// Rev returns the document's "_rev", or "" if absent.
func (d Document) Rev() string {
	s, _ := d["_rev"].(string)
	return s
}

// Store is a single datastore's primary table plus its profile sidecars.
type Store struct {
	pool     *pool.Pool
	table    string
	profile  Profile
	ddl      *DDLSet
	tracer   *tracer.Tracer
	ddlCache *localdb.Manager
}

// NewStore returns a Store over table, gated by profile's sidecar rules.
// table must already be a validated, scope-prefixed identifier (see
// config.Config.DatastoreName).
func NewStore(p *pool.Pool, table string, profile Profile, ddl *DDLSet, tr *tracer.Tracer) (*Store, error) {
	if !validIdentifier(table) {
		return nil, newErr(KindBadRequest, "invalid datastore name %q", table)
	}
	return &Store{pool: p, table: table, profile: profile, ddl: ddl, tracer: tr}, nil
}

// SetDDLCache attaches the process-local bookkeeping cache that lets
// EnsureTables skip re-running a DDL script it has already applied to this
// table. Optional: a Store with no cache attached just runs the script
// every time, which is itself idempotent.
func (s *Store) SetDDLCache(m *localdb.Manager) { s.ddlCache = m }

// EnsureTables creates the primary table and every sidecar table/function
// the configured profile needs, idempotently. When a DDL cache is attached
// (SetDDLCache), a script already recorded as applied to this table is
// skipped.
func (s *Store) EnsureTables(ctx context.Context) error {
	script, err := s.ddl.ProfileScript(s.profile)
	if err != nil {
		return err
	}
	hash := sha256.Sum256([]byte(script))
	scriptHash := hex.EncodeToString(hash[:])

	if s.ddlCache != nil {
		applied, err := s.ddlCache.IsDDLApplied(s.table, scriptHash)
		if err != nil {
			return fmt.Errorf("datastore: check ddl cache: %w", err)
		}
		if applied {
			return nil
		}
	}

	rendered := renderTable(script, s.table)
	if err := s.pool.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, rendered)
		if err != nil {
			return classifyPGError(err, false)
		}
		return nil
	}); err != nil {
		return err
	}

	if s.ddlCache != nil {
		if err := s.ddlCache.MarkDDLApplied(s.table, scriptHash, time.Now()); err != nil {
			return fmt.Errorf("datastore: mark ddl applied: %w", err)
		}
	}
	return nil
}

func (s *Store) trace(statement string, rowCount int64) {
	if s.tracer != nil {
		s.tracer.Record(statement, rowCount)
	}
}

// Create inserts doc as a new document, assigning "_id" (if absent) and
// setting "_rev" to "1". It returns the assigned id and revision.
func (s *Store) Create(ctx context.Context, doc Document) (id, rev string, err error) {
	var result struct{ id, rev string }
	execErr := s.pool.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		id, rev, err := s.createTx(ctx, tx, doc)
		if err != nil {
			return err
		}
		result.id, result.rev = id, rev
		return nil
	})
	if execErr != nil {
		return "", "", execErr
	}
	return result.id, result.rev, nil
}

func (s *Store) createTx(ctx context.Context, tx pgx.Tx, doc Document) (id, rev string, err error) {
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = uuid.NewString()
	}
	doc["_rev"] = "1"

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return "", "", fmt.Errorf("datastore: marshal document: %w", err)
	}

	cols, table := extraColumns(doc, s.table, s.profile)
	colNames := []string{"id", "rev", "doc"}
	args := []any{doc["_id"], 1, docJSON}
	for _, col := range cols {
		v, ok := doc[col]
		if !ok || (v == nil) {
			continue
		}
		colNames = append(colNames, col)
		args = append(args, v)
	}

	stmt := buildInsert(table, colNames)
	_, err = tx.Exec(ctx, stmt, args...)
	s.trace(stmt, 1)
	if err != nil {
		return "", "", classifyPGError(err, false)
	}
	return doc.ID(), doc.Rev(), nil
}

func buildInsert(table string, cols []string) string {
	placeholders := ""
	colList := ""
	for i, c := range cols {
		if i > 0 {
			placeholders += ", "
			colList += ", "
		}
		placeholders += fmt.Sprintf("$%d", i+1)
		colList += c
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, colList, placeholders)
}

// BulkResult is one row's outcome from CreateMult.
type BulkResult struct {
	ID      string
	Rev     string
	Updated bool // true if the row already existed and was updated instead
}

// CreateMult inserts docs, each under its own savepoint so a unique-key
// collision on one row falls back to an update of that row without
// aborting the rest of the batch (mirrors create_doc_mult's SAVEPOINT
// bulk_update / ROLLBACK TO SAVEPOINT retry). Any other per-row error is
// not swallowed: the savepoint is left un-rolled-back, so the whole batch
// is aborted and reported as a single error, matching create_doc_mult's
// own behavior of letting a DatabaseError other than a unique-key
// collision propagate out of the whole call.
func (s *Store) CreateMult(ctx context.Context, docs []Document) ([]BulkResult, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	results := make([]BulkResult, len(docs))
	err := s.pool.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for i, doc := range docs {
			if _, err := tx.Exec(ctx, "SAVEPOINT bulk_create"); err != nil {
				return fmt.Errorf("datastore: savepoint: %w", err)
			}
			id, rev, err := s.createTx(ctx, tx, doc)
			if err != nil {
				if !IsKind(err, KindAlreadyExists) {
					return err
				}
				if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT bulk_create"); rbErr != nil {
					return fmt.Errorf("datastore: rollback to savepoint: %w", rbErr)
				}
				id, rev, err = s.updateTx(ctx, tx, doc)
				if err != nil {
					return err
				}
				results[i] = BulkResult{ID: id, Rev: rev, Updated: true}
				continue
			}
			if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT bulk_create"); err != nil {
				return fmt.Errorf("datastore: release savepoint: %w", err)
			}
			results[i] = BulkResult{ID: id, Rev: rev}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Read fetches a document's current body by id.
func (s *Store) Read(ctx context.Context, id string) (Document, error) {
	var doc Document
	err := s.pool.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		stmt := fmt.Sprintf("SELECT doc FROM %s WHERE id=$1", s.table)
		row := tx.QueryRow(ctx, stmt, id)
		var raw []byte
		err := row.Scan(&raw)
		s.trace(stmt, 1)
		if err != nil {
			if err == pgx.ErrNoRows {
				return newErr(KindNotFound, "object with id %s does not exist", id)
			}
			return classifyPGError(err, false)
		}
		return json.Unmarshal(raw, &doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ReadMulti fetches several documents by id in one round trip, returning
// results in the same order as ids with a nil entry for any id not found
// (mirrors read_doc_mult's id-keyed reassembly).
func (s *Store) ReadMulti(ctx context.Context, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	byID := make(map[string]Document, len(ids))
	err := s.pool.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		stmt := fmt.Sprintf("SELECT id, doc FROM %s WHERE id = ANY($1)", s.table)
		rows, err := tx.Query(ctx, stmt, ids)
		s.trace(stmt, int64(len(ids)))
		if err != nil {
			return classifyPGError(err, false)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			var raw []byte
			if err := rows.Scan(&id, &raw); err != nil {
				return err
			}
			var doc Document
			if err := json.Unmarshal(raw, &doc); err != nil {
				return err
			}
			byID[id] = doc
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	out := make([]Document, len(ids))
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out, nil
}

// Update writes doc's current body, bumping "_rev". The write is rejected
// with Conflict if doc's "_rev" does not match the current stored revision.
func (s *Store) Update(ctx context.Context, doc Document) (id, rev string, err error) {
	var result struct{ id, rev string }
	execErr := s.pool.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		id, rev, err := s.updateTx(ctx, tx, doc)
		if err != nil {
			return err
		}
		result.id, result.rev = id, rev
		return nil
	})
	if execErr != nil {
		return "", "", execErr
	}
	return result.id, result.rev, nil
}

func (s *Store) updateTx(ctx context.Context, tx pgx.Tx, doc Document) (id, rev string, err error) {
	if doc.ID() == "" {
		return "", "", newErr(KindBadRequest, "document must have _id")
	}
	if doc.Rev() == "" {
		return "", "", newErr(KindBadRequest, "document must have _rev")
	}
	oldRev, err := parseRev(doc.Rev())
	if err != nil {
		return "", "", newErr(KindBadRequest, "invalid _rev %q", doc.Rev())
	}
	newRev := oldRev + 1
	doc["_rev"] = revString(newRev)

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return "", "", fmt.Errorf("datastore: marshal document: %w", err)
	}

	cols, table := extraColumns(doc, s.table, s.profile)
	setCols := "doc=$1, rev=$2"
	args := []any{docJSON, newRev}
	n := 3
	for _, col := range cols {
		v, ok := doc[col]
		if !ok || v == nil {
			continue
		}
		setCols += fmt.Sprintf(", %s=$%d", col, n)
		args = append(args, v)
		n++
	}
	args = append(args, doc.ID(), oldRev)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id=$%d AND rev=$%d", table, setCols, n, n+1)

	tag, err := tx.Exec(ctx, stmt, args...)
	s.trace(stmt, tag.RowsAffected())
	if err != nil {
		return "", "", classifyPGError(err, false)
	}
	if tag.RowsAffected() == 0 {
		return "", "", newErr(KindConflict, "object with id %s revision conflict", doc.ID())
	}
	return doc.ID(), doc.Rev(), nil
}

// Delete removes a document by id. Deletion is rejected with Conflict if
// rev does not match the current stored revision; pass "" to delete
// unconditionally.
func (s *Store) Delete(ctx context.Context, id, rev string) error {
	return s.pool.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var stmt string
		var args []any
		if rev == "" {
			stmt = fmt.Sprintf("DELETE FROM %s WHERE id=$1", s.table)
			args = []any{id}
		} else {
			r, err := parseRev(rev)
			if err != nil {
				return newErr(KindBadRequest, "invalid rev %q", rev)
			}
			stmt = fmt.Sprintf("DELETE FROM %s WHERE id=$1 AND rev=$2", s.table)
			args = []any{id, r}
		}
		tag, err := tx.Exec(ctx, stmt, args...)
		s.trace(stmt, tag.RowsAffected())
		if err != nil {
			return classifyPGError(err, false)
		}
		if tag.RowsAffected() == 0 {
			if rev == "" {
				return newErr(KindNotFound, "object with id %s does not exist", id)
			}
			if _, err := s.Read(ctx, id); err != nil {
				return err
			}
			return newErr(KindConflict, "object with id %s revision conflict", id)
		}
		return nil
	})
}

func parseRev(rev string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(rev, "%d", &n)
	return n, err
}

func revString(n int64) string { return fmt.Sprintf("%d", n) }
