package datastore

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed ddl/*.sql
var defaultDDL embed.FS

// DDLSet loads the DDL scripts (db_init.sql and profile_<name>.sql) used to
// bootstrap a new database and to create a datastore's tables. A configured
// resource directory (§6's ddl_dir) is checked first, so operators can
// override any script; the scripts embedded under ddl/ serve as the
// built-in defaults when the directory has no override.
type DDLSet struct {
	dir string
}

// NewDDLSet returns a DDLSet preferring scripts from dir, falling back to
// the embedded defaults.
func NewDDLSet(dir string) *DDLSet {
	return &DDLSet{dir: dir}
}

// InitScript returns the contents of db_init.sql, run once against a
// freshly created database.
func (d *DDLSet) InitScript() (string, error) {
	return d.read("db_init.sql")
}

// ProfileScript returns the contents of profile_<name>.sql for the given
// profile, applying the DIRECTORY→RESOURCES fallback when neither the
// configured directory nor the embedded defaults carry a
// profile_directory.sql script.
func (d *DDLSet) ProfileScript(profile Profile) (string, error) {
	directoryName := fmt.Sprintf("profile_%s.sql", toLowerASCII(string(ProfileDirectory)))
	resolved := ddlScriptProfile(profile, d.exists(directoryName))
	name := fmt.Sprintf("profile_%s.sql", toLowerASCII(string(resolved)))
	return d.read(name)
}

func (d *DDLSet) exists(name string) bool {
	if d.dir != "" {
		if _, err := os.Stat(filepath.Join(d.dir, name)); err == nil {
			return true
		}
	}
	if _, err := defaultDDL.ReadFile("ddl/" + name); err == nil {
		return true
	}
	return false
}

func (d *DDLSet) read(name string) (string, error) {
	if d.dir != "" {
		b, err := os.ReadFile(filepath.Join(d.dir, name))
		if err == nil {
			return string(b), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("datastore: read ddl %s: %w", name, err)
		}
	}
	b, err := defaultDDL.ReadFile("ddl/" + name)
	if err != nil {
		return "", fmt.Errorf("datastore: no ddl script %s in %q or embedded defaults", name, d.dir)
	}
	return string(b), nil
}

// renderTable substitutes the __TABLE__ placeholder in a DDL script with
// table, which is validated elsewhere as a safe SQL identifier before it
// ever reaches this substitution (see validIdentifier).
func renderTable(script, table string) string {
	return strings.ReplaceAll(script, "__TABLE__", table)
}

func toLowerASCII(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'A' && c <= 'Z' {
			out[i] = c + ('a' - 'A')
		}
	}
	return string(out)
}
