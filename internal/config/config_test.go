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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DBPath != "logdb.ldb" {
		t.Errorf("Expected default db_path 'logdb.ldb', got '%s'", cfg.DBPath)
	}
	if cfg.SyncWrites {
		t.Errorf("Expected default sync_writes false, got %v", cfg.SyncWrites)
	}
	if cfg.Collation != "default" {
		t.Errorf("Expected default collation 'default', got '%s'", cfg.Collation)
	}
	if cfg.EncryptionEnabled {
		t.Errorf("Expected default encryption_enabled false, got %v", cfg.EncryptionEnabled)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log_level 'info', got '%s'", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty db_path", func(c *Config) { c.DBPath = "" }, true},
		{"invalid log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"upper case log level", func(c *Config) { c.LogLevel = "DEBUG" }, false},
		{"unicode collation", func(c *Config) { c.Collation = "unicode" }, false},
		{"invalid collation", func(c *Config) { c.Collation = "klingon" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseTOML(t *testing.T) {
	content := `
# logdb configuration
db_path = "/data/test.ldb"
sync_writes = true
collation = 'nocase'   # inline comment
collation_locale = de
encryption_enabled = 1
log_level = "debug"
log_json = true
unknown_key = "ignored"
`
	cfg := DefaultConfig()
	if err := parseTOML(content, cfg); err != nil {
		t.Fatalf("parseTOML failed: %v", err)
	}

	if cfg.DBPath != "/data/test.ldb" {
		t.Errorf("Expected db_path '/data/test.ldb', got '%s'", cfg.DBPath)
	}
	if !cfg.SyncWrites {
		t.Error("Expected sync_writes true")
	}
	if cfg.Collation != "nocase" {
		t.Errorf("Expected collation 'nocase', got '%s'", cfg.Collation)
	}
	if cfg.CollationLocale != "de" {
		t.Errorf("Expected collation_locale 'de', got '%s'", cfg.CollationLocale)
	}
	if !cfg.EncryptionEnabled {
		t.Error("Expected encryption_enabled true")
	}
	if cfg.LogLevel != "debug" || !cfg.LogJSON {
		t.Errorf("Expected debug JSON logging, got %s/%v", cfg.LogLevel, cfg.LogJSON)
	}
}

func TestParseTOMLInvalidLine(t *testing.T) {
	cfg := DefaultConfig()
	err := parseTOML("db_path\n", cfg)
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Errorf("Expected line 1 syntax error, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(EnvDBPath, "/env/path.ldb")
	t.Setenv(EnvSyncWrites, "true")
	t.Setenv(EnvCollation, "unicode")
	t.Setenv(EnvEncryptionPassphrase, "secret")
	t.Setenv(EnvLogJSON, "1")

	mgr := NewManager()
	mgr.LoadFromEnv()
	cfg := mgr.Get()

	if cfg.DBPath != "/env/path.ldb" {
		t.Errorf("Expected db_path from env, got '%s'", cfg.DBPath)
	}
	if !cfg.SyncWrites || !cfg.LogJSON {
		t.Errorf("Expected sync_writes and log_json from env, got %v/%v", cfg.SyncWrites, cfg.LogJSON)
	}
	if cfg.Collation != "unicode" {
		t.Errorf("Expected collation from env, got '%s'", cfg.Collation)
	}
	if cfg.EncryptionPassphrase != "secret" {
		t.Error("Expected passphrase from env")
	}
}

func TestLoadPrecedence(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "logdb_config_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "logdb.conf")
	content := "db_path = \"/file/path.ldb\"\nlog_level = \"warn\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv(EnvLogLevel, "error")

	mgr := NewManager()
	if err := mgr.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := mgr.Get()

	if cfg.DBPath != "/file/path.ldb" {
		t.Errorf("Expected db_path from file, got '%s'", cfg.DBPath)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("Expected env to override file log_level, got '%s'", cfg.LogLevel)
	}
	if cfg.ConfigFile != path {
		t.Errorf("Expected ConfigFile %s, got %s", path, cfg.ConfigFile)
	}
}

func TestLoadMissingFile(t *testing.T) {
	mgr := NewManager()
	if err := mgr.Load("/nonexistent/logdb.conf"); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestManagerGetReturnsCopy(t *testing.T) {
	mgr := NewManager()
	cfg := mgr.Get()
	cfg.DBPath = "changed"

	if mgr.Get().DBPath == "changed" {
		t.Error("Expected Get to return a copy")
	}

	mgr.Set(cfg)
	if mgr.Get().DBPath != "changed" {
		t.Error("Expected Set to replace the configuration")
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "logdb_config_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := DefaultConfig()
	cfg.DBPath = "/saved/path.ldb"
	cfg.Collation = "unicode"
	cfg.CollationLocale = "sv"
	cfg.SyncWrites = true
	cfg.EncryptionPassphrase = "never-written"

	path := filepath.Join(tmpDir, "sub", "logdb.conf")
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if strings.Contains(string(data), "never-written") {
		t.Error("Expected passphrase to be left out of the file")
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	loaded := mgr.Get()
	if loaded.DBPath != cfg.DBPath || loaded.Collation != "unicode" ||
		loaded.CollationLocale != "sv" || !loaded.SyncWrites {
		t.Errorf("Reloaded config differs: %+v", loaded)
	}
}
