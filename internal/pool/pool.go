// Package pool implements the connection pool (C3): a fixed-capacity pool
// of PostgreSQL connections with two lease patterns, a connection lease
// for callers that manage their own transaction boundary, and a cursor
// lease that begins and automatically commits or rolls back a transaction
// around the caller's function.
//
// It is built on pgx/pgxpool directly rather than through database/sql,
// following the postgres store pattern in the reference pack: a small
// struct wrapping a *pgxpool.Pool behind a sync.RWMutex-guarded closed
// flag. Lease admission is gated by a buffered channel of permits, the
// same bounded-concurrency idiom the teacher's job runner uses for its
// per-kind work queues.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultCapacity is the connection_pool_max default (§6).
const DefaultCapacity = 5

// Pool leases connections and cursors against a single PostgreSQL
// database, bounded to a fixed capacity.
type Pool struct {
	pgpool  *pgxpool.Pool
	permits chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Config supplies the connection parameters and pool sizing (§6).
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	Database    string
	Capacity    int
	DialTimeout time.Duration
}

func (c Config) connString() string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		c.Host, port, c.Database, c.Username, c.Password,
	)
}

// Open connects to cfg.Database and returns a ready Pool. The caller must
// call Close when done.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("pool: parse config: %w", err)
	}
	poolCfg.MaxConns = int32(capacity)
	if cfg.DialTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.DialTimeout
	}

	pgpool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pool: connect: %w", err)
	}
	if err := pgpool.Ping(ctx); err != nil {
		pgpool.Close()
		return nil, fmt.Errorf("pool: ping: %w", err)
	}

	permits := make(chan struct{}, capacity)
	for i := 0; i < capacity; i++ {
		permits <- struct{}{}
	}

	return &Pool{pgpool: pgpool, permits: permits}, nil
}

// Close releases all connections. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.pgpool.Close()
}

func (p *Pool) acquirePermit(ctx context.Context) error {
	select {
	case <-p.permits:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) releasePermit() {
	p.permits <- struct{}{}
}

// Connection is an explicit-commit/rollback lease: the caller owns the
// transaction boundary and must call Commit or Rollback exactly once.
type Connection struct {
	pool *Pool
	conn *pgxpool.Conn
	tx   pgx.Tx
}

// Acquire leases a Connection from the pool, blocking until one is
// available or ctx is cancelled.
func (p *Pool) Acquire(ctx context.Context) (*Connection, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, fmt.Errorf("pool: closed")
	}
	p.mu.RUnlock()

	if err := p.acquirePermit(ctx); err != nil {
		return nil, err
	}
	conn, err := p.pgpool.Acquire(ctx)
	if err != nil {
		p.releasePermit()
		return nil, fmt.Errorf("pool: acquire connection: %w", err)
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		p.releasePermit()
		return nil, fmt.Errorf("pool: begin transaction: %w", err)
	}
	return &Connection{pool: p, conn: conn, tx: tx}, nil
}

// Tx exposes the underlying transaction for issuing statements.
func (c *Connection) Tx() pgx.Tx { return c.tx }

// Commit commits the leased transaction and returns the connection to the
// pool.
func (c *Connection) Commit(ctx context.Context) error {
	defer c.release()
	return c.tx.Commit(ctx)
}

// Rollback rolls back the leased transaction and returns the connection
// to the pool.
func (c *Connection) Rollback(ctx context.Context) error {
	defer c.release()
	return c.tx.Rollback(ctx)
}

func (c *Connection) release() {
	c.conn.Release()
	c.pool.releasePermit()
}

// WithCursor leases a connection, begins a transaction, runs fn, and
// commits on success or rolls back if fn returns an error or panics.
// This is the auto-commit/rollback lease pattern (§4.2's "cursor").
func (p *Pool) WithCursor(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("pool: closed")
	}
	p.mu.RUnlock()

	if err := p.acquirePermit(ctx); err != nil {
		return err
	}
	defer p.releasePermit()

	conn, err := p.pgpool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("pool: acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pool: begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

// Raw exposes the underlying pgxpool.Pool for callers (the database
// bootstrap path) that need to issue statements outside a leased
// connection/cursor, such as CREATE DATABASE against a maintenance
// connection.
func (p *Pool) Raw() *pgxpool.Pool { return p.pgpool }
