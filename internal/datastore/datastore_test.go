package datastore

import (
	"context"
	"os"
	"testing"

	"github.com/docxology/pyonstore/internal/pool"
	"github.com/docxology/pyonstore/internal/tracer"
)

// newTestStore connects to PYONSTORE_TEST_DSN and ensures a scratch table,
// skipping the test when no live database is configured. The CRUD,
// bulk-create, read-multi and attachment tests below run against a real
// PostgreSQL instance rather than a fake, since the behavior under test is
// largely SQL itself (savepoint retry, revision-guarded UPDATE, SQLSTATE
// classification).
func newTestStore(t *testing.T, profile Profile, table string) *Store {
	t.Helper()
	host := os.Getenv("PYONSTORE_TEST_DSN")
	if host == "" {
		t.Skip("PYONSTORE_TEST_DSN not set")
	}
	ctx := context.Background()
	p, err := pool.Open(ctx, pool.Config{Host: host, Database: os.Getenv("PYONSTORE_TEST_DB"), Capacity: 2})
	if err != nil {
		t.Fatalf("pool.Open: %v", err)
	}
	t.Cleanup(p.Close)

	s, err := NewStore(p, table, profile, NewDDLSet(""), tracer.New(true, 100))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.EnsureTables(ctx); err != nil {
		t.Fatalf("EnsureTables: %v", err)
	}
	return s
}

func TestCreateReadUpdateDelete(t *testing.T) {
	s := newTestStore(t, ProfileBasic, "t_crud")
	ctx := context.Background()

	id, rev, err := s.Create(ctx, Document{"name": "widget"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" || rev != "1" {
		t.Fatalf("got id=%q rev=%q", id, rev)
	}

	doc, err := s.Read(ctx, id)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc["name"] != "widget" {
		t.Fatalf("doc = %v", doc)
	}

	doc["name"] = "widget2"
	_, newRev, err := s.Update(ctx, doc)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if newRev != "2" {
		t.Fatalf("newRev = %q, want 2", newRev)
	}

	// stale revision is rejected
	doc["_rev"] = "1"
	if _, _, err := s.Update(ctx, doc); !IsKind(err, KindConflict) {
		t.Fatalf("stale update: got %v, want Conflict", err)
	}

	if err := s.Delete(ctx, id, "2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read(ctx, id); !IsKind(err, KindNotFound) {
		t.Fatalf("read after delete: got %v, want NotFound", err)
	}
}

func TestCreateMultFallsBackToUpdateOnCollision(t *testing.T) {
	s := newTestStore(t, ProfileBasic, "t_bulk")
	ctx := context.Background()

	id, _, err := s.Create(ctx, Document{"_id": "fixed-id", "name": "v1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	results, err := s.CreateMult(ctx, []Document{
		{"_id": id, "name": "v2"},
		{"name": "fresh"},
	})
	if err != nil {
		t.Fatalf("CreateMult: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !results[0].Updated {
		t.Fatalf("expected first row to fall back to update: %+v", results[0])
	}
	if results[1].Updated {
		t.Fatalf("expected second row to be a fresh insert: %+v", results[1])
	}
}

func TestReadMultPreservesOrderAndMissing(t *testing.T) {
	s := newTestStore(t, ProfileBasic, "t_readmulti")
	ctx := context.Background()

	idA, _, _ := s.Create(ctx, Document{"name": "a"})
	idB, _, _ := s.Create(ctx, Document{"name": "b"})

	docs, err := s.ReadMulti(ctx, []string{idB, "missing", idA})
	if err != nil {
		t.Fatalf("ReadMulti: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d docs, want 3", len(docs))
	}
	if docs[0]["name"] != "b" || docs[1] != nil || docs[2]["name"] != "a" {
		t.Fatalf("docs = %v", docs)
	}
}

func TestAttachmentLifecycle(t *testing.T) {
	s := newTestStore(t, ProfileBasic, "t_att")
	ctx := context.Background()

	id, _, err := s.Create(ctx, Document{"name": "has-attachment"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.CreateAttachment(ctx, id, Attachment{Name: "f.txt", ContentType: "text/plain", Data: []byte("hello")}); err != nil {
		t.Fatalf("CreateAttachment: %v", err)
	}
	data, err := s.ReadAttachment(ctx, id, "f.txt")
	if err != nil {
		t.Fatalf("ReadAttachment: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("data = %q", data)
	}

	if err := s.CreateAttachment(ctx, "no-such-doc", Attachment{Name: "x", Data: []byte("x")}); !IsKind(err, KindNotFound) {
		t.Fatalf("attach to missing parent: got %v, want NotFound", err)
	}

	if err := s.DeleteAttachment(ctx, id, "f.txt"); err != nil {
		t.Fatalf("DeleteAttachment: %v", err)
	}
	if _, err := s.ReadAttachment(ctx, id, "f.txt"); !IsKind(err, KindNotFound) {
		t.Fatalf("read after delete: got %v, want NotFound", err)
	}
}
