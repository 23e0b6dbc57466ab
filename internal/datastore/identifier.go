package datastore

import "regexp"

var identifierRE = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// validIdentifier reports whether name is safe to splice directly into SQL
// as a table name. Every table name reaching the datastore is derived from
// configuration (scope + datastore name), never raw end-user input, but
// this guard keeps a malformed configuration from producing an injectable
// query instead of a clear error.
func validIdentifier(name string) bool {
	return identifierRE.MatchString(name) && len(name) <= 63
}
