/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package config provides configuration management for the logdb tools.

The configuration system supports multiple sources with clear precedence:
 1. Command-line flags (highest priority)
 2. Environment variables
 3. Configuration file
 4. Default values (lowest priority)

Configuration File Format:
The configuration file uses a small subset of TOML: one key = value pair
per line, # comments, quoted or bare values.

Example configuration file:

	# logdb configuration
	db_path = "/var/lib/logdb/data.ldb"
	sync_writes = true
	collation = "unicode"
	collation_locale = "de"
	encryption_enabled = false
	log_level = "info"
	log_json = false
	history_file = "$HOME/.logdb_history"

Encryption:
The passphrase is never read from or written to the configuration file. Set
LOGDB_ENCRYPTION_PASSPHRASE, or let the shell prompt for it.

Environment Variables:
  - LOGDB_DB_PATH: Path to the database file
  - LOGDB_SYNC_WRITES: fsync after every write (true/false)
  - LOGDB_COLLATION: String collation (default, binary, nocase, unicode)
  - LOGDB_COLLATION_LOCALE: Locale for the unicode collation
  - LOGDB_ENCRYPTION_ENABLED: Seal values with AES-GCM (true/false)
  - LOGDB_ENCRYPTION_PASSPHRASE: Passphrase for key derivation
  - LOGDB_LOG_LEVEL: Log level (debug, info, warn, error)
  - LOGDB_LOG_JSON: Enable JSON logging (true/false)
  - LOGDB_HISTORY_FILE: Shell history file
  - LOGDB_CONFIG_FILE: Path to configuration file
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Environment variable names for configuration.
const (
	EnvDBPath               = "LOGDB_DB_PATH"
	EnvSyncWrites           = "LOGDB_SYNC_WRITES"
	EnvCollation            = "LOGDB_COLLATION"
	EnvCollationLocale      = "LOGDB_COLLATION_LOCALE"
	EnvEncryptionEnabled    = "LOGDB_ENCRYPTION_ENABLED"
	EnvEncryptionPassphrase = "LOGDB_ENCRYPTION_PASSPHRASE"
	EnvLogLevel             = "LOGDB_LOG_LEVEL"
	EnvLogJSON              = "LOGDB_LOG_JSON"
	EnvHistoryFile          = "LOGDB_HISTORY_FILE"
	EnvConfigFile           = "LOGDB_CONFIG_FILE"
)

// Default configuration file paths (searched in order).
var DefaultConfigPaths = []string{
	"/etc/logdb/logdb.conf",
	"$HOME/.config/logdb/logdb.conf",
	"./logdb.conf",
}

// Config holds all configuration values for logdb.
type Config struct {
	// Storage configuration
	DBPath     string `toml:"db_path" json:"db_path"`
	SyncWrites bool   `toml:"sync_writes" json:"sync_writes"`

	// Query configuration
	Collation       string `toml:"collation" json:"collation"`
	CollationLocale string `toml:"collation_locale" json:"collation_locale"`

	// Encryption configuration for values at rest
	EncryptionEnabled    bool   `toml:"encryption_enabled" json:"encryption_enabled"`
	EncryptionPassphrase string `toml:"-" json:"-"` // Not persisted to file

	// Logging configuration
	LogLevel string `toml:"log_level" json:"log_level"`
	LogJSON  bool   `toml:"log_json" json:"log_json"`

	// Shell
	HistoryFile string `toml:"history_file" json:"history_file"`

	// Metadata
	ConfigFile string `toml:"-" json:"-"` // Path to loaded config file
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		DBPath:            "logdb.ldb",
		SyncWrites:        false,
		Collation:         "default",
		CollationLocale:   "en",
		EncryptionEnabled: false,
		LogLevel:          "info",
		LogJSON:           false,
		HistoryFile:       defaultHistoryFile(),
	}
}

func defaultHistoryFile() string {
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".logdb_history")
	}
	return ""
}

// Manager handles configuration loading, validation, and access.
type Manager struct {
	config *Config
	mu     sync.RWMutex
}

// NewManager creates a new configuration manager with default values.
func NewManager() *Manager {
	return &Manager{config: DefaultConfig()}
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	return &cfg
}

// Set replaces the configuration.
func (m *Manager) Set(cfg *Config) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.DBPath == "" {
		errs = append(errs, "db_path cannot be empty")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	switch strings.ToLower(c.Collation) {
	case "default", "binary", "nocase", "unicode":
	default:
		errs = append(errs, fmt.Sprintf("invalid collation: %s (must be default, binary, nocase, or unicode)", c.Collation))
	}

	// The passphrase is checked when the store is opened, where the shell
	// can still prompt for it.

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LoadFromFile loads configuration from a TOML file.
func (m *Manager) LoadFromFile(path string) error {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := parseTOML(string(data), cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ConfigFile = path
	m.Set(cfg)
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment values override file values.
func (m *Manager) LoadFromEnv() {
	cfg := m.Get()

	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvSyncWrites); v != "" {
		cfg.SyncWrites = parseBool(v)
	}
	if v := os.Getenv(EnvCollation); v != "" {
		cfg.Collation = v
	}
	if v := os.Getenv(EnvCollationLocale); v != "" {
		cfg.CollationLocale = v
	}
	if v := os.Getenv(EnvEncryptionEnabled); v != "" {
		cfg.EncryptionEnabled = parseBool(v)
	}
	if v := os.Getenv(EnvEncryptionPassphrase); v != "" {
		cfg.EncryptionPassphrase = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogJSON); v != "" {
		cfg.LogJSON = parseBool(v)
	}
	if v := os.Getenv(EnvHistoryFile); v != "" {
		cfg.HistoryFile = v
	}

	m.Set(cfg)
}

// FindConfigFile searches for a configuration file in default locations.
// Returns the path to the first file found, or empty string if none found.
func FindConfigFile() string {
	if envPath := os.Getenv(EnvConfigFile); envPath != "" {
		if _, err := os.Stat(os.ExpandEnv(envPath)); err == nil {
			return os.ExpandEnv(envPath)
		}
	}

	for _, path := range DefaultConfigPaths {
		expandedPath := os.ExpandEnv(path)
		if _, err := os.Stat(expandedPath); err == nil {
			return expandedPath
		}
	}
	return ""
}

// Load loads configuration from all sources with proper precedence.
// Order: defaults -> config file -> environment variables.
// An explicit path wins over the default search. Command-line flags
// should be applied after calling this function.
func (m *Manager) Load(path string) error {
	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		if err := m.LoadFromFile(path); err != nil {
			return err
		}
	}
	m.LoadFromEnv()
	return nil
}

// parseTOML is a simple TOML parser for our configuration format.
func parseTOML(data string, cfg *Config) error {
	lines := strings.Split(data, "\n")

	for lineNum, line := range lines {
		if idx := strings.Index(line, "#"); idx != -1 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("line %d: invalid syntax: %s", lineNum+1, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		applyConfigValue(cfg, key, value)
	}
	return nil
}

// applyConfigValue applies a key-value pair to the configuration.
func applyConfigValue(cfg *Config, key, value string) {
	switch key {
	case "db_path":
		cfg.DBPath = value
	case "sync_writes":
		cfg.SyncWrites = parseBool(value)
	case "collation":
		cfg.Collation = value
	case "collation_locale":
		cfg.CollationLocale = value
	case "encryption_enabled":
		cfg.EncryptionEnabled = parseBool(value)
	case "log_level":
		cfg.LogLevel = value
	case "log_json":
		cfg.LogJSON = parseBool(value)
	case "history_file":
		cfg.HistoryFile = os.ExpandEnv(value)
	default:
		// Ignore unknown keys for forward compatibility
	}
}

func parseBool(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}

// String returns a string representation of the configuration.
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("logdb configuration:\n")
	sb.WriteString(fmt.Sprintf("  DB Path:          %s\n", c.DBPath))
	sb.WriteString(fmt.Sprintf("  Sync Writes:      %v\n", c.SyncWrites))
	sb.WriteString(fmt.Sprintf("  Collation:        %s (%s)\n", c.Collation, c.CollationLocale))
	sb.WriteString(fmt.Sprintf("  Encryption:       %v\n", c.EncryptionEnabled))
	sb.WriteString(fmt.Sprintf("  Log Level:        %s\n", c.LogLevel))
	sb.WriteString(fmt.Sprintf("  Log JSON:         %v\n", c.LogJSON))
	if c.ConfigFile != "" {
		sb.WriteString(fmt.Sprintf("  Config File:      %s\n", c.ConfigFile))
	}
	return sb.String()
}

// ToTOML returns the configuration as a TOML string.
func (c *Config) ToTOML() string {
	var sb strings.Builder
	sb.WriteString("# logdb configuration file\n\n")
	sb.WriteString("# Storage\n")
	sb.WriteString(fmt.Sprintf("db_path = \"%s\"\n", c.DBPath))
	sb.WriteString(fmt.Sprintf("sync_writes = %v\n\n", c.SyncWrites))
	sb.WriteString("# String comparison: default, binary, nocase, or unicode\n")
	sb.WriteString(fmt.Sprintf("collation = \"%s\"\n", c.Collation))
	sb.WriteString(fmt.Sprintf("collation_locale = \"%s\"\n\n", c.CollationLocale))
	sb.WriteString("# Value encryption. The passphrase comes from LOGDB_ENCRYPTION_PASSPHRASE.\n")
	sb.WriteString(fmt.Sprintf("encryption_enabled = %v\n\n", c.EncryptionEnabled))
	sb.WriteString("# Logging\n")
	sb.WriteString(fmt.Sprintf("log_level = \"%s\"\n", c.LogLevel))
	sb.WriteString(fmt.Sprintf("log_json = %v\n\n", c.LogJSON))
	sb.WriteString("# Shell\n")
	sb.WriteString(fmt.Sprintf("history_file = \"%s\"\n", c.HistoryFile))
	return sb.String()
}

// SaveToFile saves the configuration to a file.
func (c *Config) SaveToFile(path string) error {
	path = os.ExpandEnv(path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(c.ToTOML()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
