package datastore

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyPGErrorUniqueViolation(t *testing.T) {
	err := classifyPGError(&pgconn.PgError{Code: "23505", Message: "duplicate key"}, false)
	if !IsKind(err, KindAlreadyExists) {
		t.Fatalf("got %v, want AlreadyExists", err)
	}
}

func TestClassifyPGErrorForeignKeyOnAttachment(t *testing.T) {
	err := classifyPGError(&pgconn.PgError{Code: "23503", Message: "fk violation"}, true)
	if !IsKind(err, KindNotFound) {
		t.Fatalf("got %v, want NotFound", err)
	}
}

func TestClassifyPGErrorForeignKeyNotAttachment(t *testing.T) {
	err := classifyPGError(&pgconn.PgError{Code: "23503", Message: "fk violation"}, false)
	if !IsKind(err, KindBadRequest) {
		t.Fatalf("got %v, want BadRequest", err)
	}
}

func TestClassifyPGErrorConnectionClass(t *testing.T) {
	for _, code := range []string{"08000", "08006", "57P03"} {
		err := classifyPGError(&pgconn.PgError{Code: code, Message: "conn"}, false)
		if !IsKind(err, KindUnavailable) {
			t.Fatalf("code %s: got %v, want Unavailable", code, err)
		}
	}
}

func TestClassifyPGErrorDefault(t *testing.T) {
	err := classifyPGError(&pgconn.PgError{Code: "42601", Message: "syntax error"}, false)
	if !IsKind(err, KindBadRequest) {
		t.Fatalf("got %v, want BadRequest", err)
	}
}

func TestClassifyPGErrorUnclassified(t *testing.T) {
	err := classifyPGError(errNotPG{}, false)
	if !IsKind(err, KindBadRequest) {
		t.Fatalf("got %v, want BadRequest", err)
	}
}

type errNotPG struct{}

func (errNotPG) Error() string { return "not a postgres error" }
