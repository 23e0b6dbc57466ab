package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/docxology/pyonstore/internal/pool"
)

// EnsureDatabase connects to cfg.Database; if that fails because the
// database does not exist, it connects instead to defaultDatabase, issues
// CREATE DATABASE, retries the original connection, and runs ddl's init
// script against the new database. This is the same "try, fall back,
// retry" shape as the teacher's address-discovery precedence chain,
// applied to database bootstrap instead.
func EnsureDatabase(ctx context.Context, cfg pool.Config, defaultDatabase string, ddl *DDLSet) (*pool.Pool, error) {
	p, err := pool.Open(ctx, cfg)
	if err == nil {
		return p, nil
	}
	if !isMissingDatabase(err) {
		return nil, err
	}

	bootCfg := cfg
	bootCfg.Database = defaultDatabase
	bootPool, err := pool.Open(ctx, bootCfg)
	if err != nil {
		return nil, fmt.Errorf("datastore: connect to default database %q: %w", defaultDatabase, err)
	}
	defer bootPool.Close()

	if !validIdentifier(cfg.Database) {
		return nil, newErr(KindBadRequest, "invalid database name %q", cfg.Database)
	}
	createStmt := fmt.Sprintf("CREATE DATABASE %s", cfg.Database)
	if _, err := bootPool.Raw().Exec(ctx, createStmt); err != nil {
		return nil, fmt.Errorf("datastore: create database %q: %w", cfg.Database, err)
	}

	p, err = pool.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("datastore: connect after create: %w", err)
	}

	initScript, err := ddl.InitScript()
	if err != nil {
		p.Close()
		return nil, err
	}
	if _, err := p.Raw().Exec(ctx, initScript); err != nil {
		p.Close()
		return nil, fmt.Errorf("datastore: run db_init script: %w", err)
	}

	return p, nil
}

// isMissingDatabase reports whether err is PostgreSQL's "database does not
// exist" error (SQLSTATE 3D000).
func isMissingDatabase(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "3D000"
	}
	return false
}
