package localdb

import (
	"context"
	"fmt"
	"time"
)

// Manager owns the process-wide bookkeeping sqlite handle, opened once at
// startup under the configured state directory (config.StateDir).
type Manager struct {
	DB *DB
}

// OpenManager opens or creates the bookkeeping database under stateDir,
// retrying briefly since the directory may be on a network filesystem that
// needs a moment after MkdirAll before sqlite can open a file there.
func OpenManager(ctx context.Context, stateDir string) (*Manager, error) {
	var (
		db  *DB
		err error
	)
	for i := 0; i < 5; i++ {
		db, err = Open(stateDir)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(200*(i+1)) * time.Millisecond):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("localdb: open bookkeeping db: %w", err)
	}
	return &Manager{DB: db}, nil
}

// Close releases the underlying sqlite handle.
func (m *Manager) Close() error {
	if m == nil || m.DB == nil {
		return nil
	}
	return m.DB.Close()
}

const appliedDDLCollection = "applied_ddl"

// appliedDDLRecord marks one table's DDL script as applied, by content
// hash, so a byte-identical script is not re-executed on every startup.
type appliedDDLRecord struct {
	ScriptHash string    `json:"script_hash"`
	AppliedAt  time.Time `json:"applied_at"`
}

// IsDDLApplied reports whether scriptHash has already been recorded as
// applied to table.
func (m *Manager) IsDDLApplied(table, scriptHash string) (bool, error) {
	var rec appliedDDLRecord
	err := m.DB.Get(appliedDDLCollection, table, &rec)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.ScriptHash == scriptHash, nil
}

// MarkDDLApplied records that scriptHash has been applied to table.
func (m *Manager) MarkDDLApplied(table, scriptHash string, appliedAt time.Time) error {
	return m.DB.Put(appliedDDLCollection, table, appliedDDLRecord{ScriptHash: scriptHash, AppliedAt: appliedAt})
}
