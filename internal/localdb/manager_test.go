package localdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenManager(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	m, err := OpenManager(ctx, dir)
	if err != nil {
		t.Fatalf("open manager: %v", err)
	}
	if m == nil || m.DB == nil {
		t.Fatalf("nil manager/db")
	}
	defer m.Close()

	if _, err := os.Stat(filepath.Join(dir, "pyonstore.sqlite")); err != nil {
		t.Fatalf("db file missing: %v", err)
	}
}

func TestAppliedDDLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := OpenManager(context.Background(), dir)
	if err != nil {
		t.Fatalf("open manager: %v", err)
	}
	defer m.Close()

	applied, err := m.IsDDLApplied("resource", "hash-1")
	if err != nil {
		t.Fatalf("IsDDLApplied: %v", err)
	}
	if applied {
		t.Fatalf("expected not applied before MarkDDLApplied")
	}

	if err := m.MarkDDLApplied("resource", "hash-1", time.Now()); err != nil {
		t.Fatalf("MarkDDLApplied: %v", err)
	}

	applied, err = m.IsDDLApplied("resource", "hash-1")
	if err != nil {
		t.Fatalf("IsDDLApplied: %v", err)
	}
	if !applied {
		t.Fatalf("expected applied after MarkDDLApplied")
	}

	applied, err = m.IsDDLApplied("resource", "hash-2")
	if err != nil {
		t.Fatalf("IsDDLApplied: %v", err)
	}
	if applied {
		t.Fatalf("expected hash mismatch to report not applied")
	}
}
