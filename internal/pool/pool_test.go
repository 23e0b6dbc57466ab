package pool

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestConfigConnString(t *testing.T) {
	cfg := Config{Host: "db.internal", Database: "widgets", Username: "u", Password: "p"}
	cs := cfg.connString()
	for _, want := range []string{"host=db.internal", "port=5432", "dbname=widgets", "user=u", "password=p"} {
		if !strings.Contains(cs, want) {
			t.Fatalf("connString() = %q, missing %q", cs, want)
		}
	}
}

func TestConfigConnStringCustomPort(t *testing.T) {
	cfg := Config{Host: "db.internal", Port: 6543, Database: "widgets"}
	cs := cfg.connString()
	if !strings.Contains(cs, "port=6543") {
		t.Fatalf("connString() = %q, expected custom port", cs)
	}
}

// TestOpenAgainstLiveDatabase only runs when PYONSTORE_TEST_DSN names a
// reachable PostgreSQL instance; it is skipped otherwise since the package
// test suite must not require a live database.
func TestOpenAgainstLiveDatabase(t *testing.T) {
	dsn := os.Getenv("PYONSTORE_TEST_DSN")
	if dsn == "" {
		t.Skip("PYONSTORE_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := Open(ctx, Config{Host: dsn, Capacity: 2})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	err = p.WithCursor(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "select 1")
		return err
	})
	if err != nil {
		t.Fatalf("WithCursor: %v", err)
	}
}
