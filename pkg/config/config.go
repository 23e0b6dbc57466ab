// Package config loads and validates the datastore's externally supplied
// configuration (§6 of the spec): connection parameters, profile selection,
// and the ambient knobs the codec/tracer/pool need at construction time.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Profile selects which sidecar tables and indexed columns a datastore
// carries. The legacy alias DIRECTORY is preserved as its own profile;
// the aliasing only affects which DDL script name is resolved at create
// time (ddlScriptProfile in internal/datastore).
type Profile string

const (
	ProfileBasic     Profile = "BASIC"
	ProfileResources Profile = "RESOURCES"
	ProfileDirectory Profile = "DIRECTORY"
	ProfileEvents    Profile = "EVENTS"
)

func (p Profile) Valid() bool {
	switch p {
	case ProfileBasic, ProfileResources, ProfileDirectory, ProfileEvents:
		return true
	}
	return false
}

// Config is the datastore configuration (§6).
type Config struct {
	Host              string  `json:"host"`
	Username          string  `json:"username"`
	Password          string  `json:"password"`
	Database          string  `json:"database"`
	DefaultDatabase   string  `json:"default_database"`
	ConnectionPoolMax int     `json:"connection_pool_max"`
	Scope             string  `json:"scope,omitempty"`
	Profile           Profile `json:"profile"`

	// Ambient knobs the teacher would carry alongside connection settings.
	MaxMessageSize int    `json:"max_message_size,omitempty"`
	TracerEnabled  bool   `json:"tracer_enabled,omitempty"`
	TracerCapacity int    `json:"tracer_capacity,omitempty"`
	DDLDir         string `json:"ddl_dir"`
	DialTimeoutMS  int    `json:"dial_timeout_ms,omitempty"`
}

// DialTimeout returns DialTimeoutMS as a time.Duration, defaulting to 5s.
func (c *Config) DialTimeout() time.Duration {
	if c.DialTimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.DialTimeoutMS) * time.Millisecond
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return "."
}

func baseDir() string { return filepath.Join(homeDir(), ".pyonstore") }

// StateDir returns the directory used for local bookkeeping state (the
// applied-DDL cache in internal/localdb).
func StateDir() string { return filepath.Join(baseDir(), "state") }

// ConfigPath returns the default on-disk location for a saved Config.
func ConfigPath() string { return filepath.Join(baseDir(), "config.json") }

// Load reads a Config from ConfigPath.
func Load() (*Config, error) {
	b, err := os.ReadFile(ConfigPath())
	if err != nil {
		return nil, err
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	return &c, nil
}

// Save writes c to ConfigPath, creating the containing directory.
func Save(c *Config) error {
	if err := os.MkdirAll(baseDir(), 0o700); err != nil {
		return err
	}
	b, _ := json.MarshalIndent(c, "", "  ")
	return os.WriteFile(ConfigPath(), b, 0o600)
}

func (c *Config) applyDefaults() {
	if c.ConnectionPoolMax <= 0 {
		c.ConnectionPoolMax = 5
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 20_000_000
	}
	if c.TracerCapacity <= 0 {
		c.TracerCapacity = 5000
	}
}

// Validate checks the configuration is internally consistent. It is called
// before a datastore is constructed from the config.
func (c *Config) Validate() error {
	c.applyDefaults()
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("host required")
	}
	if strings.TrimSpace(c.Database) == "" {
		return errors.New("database required")
	}
	if strings.TrimSpace(c.DefaultDatabase) == "" {
		return errors.New("default_database required")
	}
	if !c.Profile.Valid() {
		return fmt.Errorf("invalid profile %q", c.Profile)
	}
	if c.ConnectionPoolMax <= 0 || c.ConnectionPoolMax > 1000 {
		return fmt.Errorf("connection_pool_max out of range: %d", c.ConnectionPoolMax)
	}
	if c.Scope != "" && c.Scope != strings.ToLower(c.Scope) {
		return fmt.Errorf("scope must be lowercase: %q", c.Scope)
	}
	if strings.TrimSpace(c.DDLDir) == "" {
		return errors.New("ddl_dir required")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max_message_size out of range: %d", c.MaxMessageSize)
	}
	return nil
}

// DatastoreName applies the configured scope prefix, per §3's Datastore
// invariant: every datastore name is transparently prefixed "<scope>_"
// when a scope is configured.
func (c *Config) DatastoreName(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", errors.New("datastore name must be non-empty")
	}
	if c.Scope == "" {
		return name, nil
	}
	return strings.ToLower(c.Scope) + "_" + name, nil
}
