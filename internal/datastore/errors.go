package datastore

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind enumerates the error taxonomy (§7).
type Kind int

const (
	KindBadRequest Kind = iota
	KindNotFound
	KindConflict
	KindAlreadyExists
	KindInconsistent
	KindUnavailable
	KindMessageTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "BadRequest"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindInconsistent:
		return "Inconsistent"
	case KindUnavailable:
		return "Unavailable"
	case KindMessageTooLarge:
		return "MessageTooLarge"
	default:
		return "Unknown"
	}
}

// Error is the datastore's classified error type (§7): every error surfaced
// to a caller carries one of the Kind values above.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapErr(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// SQLSTATE classes below are the subset lib/pq's error.go enumerates that
// matter to the datastore: unique/foreign-key violations and the
// connection-exception class. The codes are hand-ported as constants here
// (see DESIGN.md) rather than importing lib/pq, since pgx is the driver
// actually in use and only needs the bare code strings to switch on.
const (
	sqlstateUniqueViolation     = "23505"
	sqlstateForeignKeyViolation = "23503"
)

// isConnectionClass reports whether code belongs to SQLSTATE class 08
// (connection exception) or is 57P01 (admin_shutdown) or 57P03
// (cannot_connect_now), all treated as Unavailable.
func isConnectionClass(code string) bool {
	if len(code) >= 2 && code[:2] == "08" {
		return true
	}
	return code == "57P03" || code == "57P01"
}

// classifyPGError maps a PostgreSQL error to the taxonomy per §7. attachment
// indicates the failing statement was an attachment write, in which case a
// foreign-key violation means the parent document does not exist.
func classifyPGError(err error, attachment bool) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return wrapErr(KindBadRequest, err, "unclassified database error")
	}
	switch {
	case pgErr.Code == sqlstateUniqueViolation:
		return wrapErr(KindAlreadyExists, err, "unique constraint violated")
	case pgErr.Code == sqlstateForeignKeyViolation && attachment:
		return wrapErr(KindNotFound, err, "parent document does not exist")
	case isConnectionClass(pgErr.Code):
		return wrapErr(KindUnavailable, err, "database unavailable")
	default:
		return wrapErr(KindBadRequest, err, pgErr.Message)
	}
}
