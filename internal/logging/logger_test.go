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

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func captureLogs(t *testing.T, level Level, jsonMode bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	SetGlobalLevel(level)
	SetJSONMode(jsonMode)
	t.Cleanup(func() {
		cfg := DefaultConfig()
		SetGlobalOutput(cfg.Output)
		SetGlobalLevel(cfg.Level)
		SetJSONMode(cfg.JSONMode)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"Warning": WARN,
		"error":   ERROR,
		"bogus":   INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	buf := captureLogs(t, WARN, false)
	logger := NewLogger("storage")

	logger.Info("hidden")
	logger.Warn("shown", "offset", 42)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("INFO entry written at WARN level: %q", out)
	}
	if !strings.Contains(out, "[storage] shown offset=42") {
		t.Errorf("Expected WARN entry with field, got %q", out)
	}
}

func TestLoggerTextFieldsSorted(t *testing.T) {
	buf := captureLogs(t, DEBUG, false)
	NewLogger("wal").With("seq", 7).Debug("frame", "bytes", 12, "kind", "commit")

	out := buf.String()
	if !strings.Contains(out, "bytes=12 kind=commit seq=7") {
		t.Errorf("Expected sorted fields, got %q", out)
	}
}

func TestLoggerJSONMode(t *testing.T) {
	buf := captureLogs(t, INFO, true)
	NewLogger("engine").Error("open failed", "error", errors.New("disk gone"))

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Invalid JSON log line %q: %v", buf.String(), err)
	}
	if entry.Level != "ERROR" || entry.Component != "engine" {
		t.Errorf("Unexpected entry: %+v", entry)
	}
	if entry.Fields["error"] != "disk gone" {
		t.Errorf("Expected error rendered as string, got %v", entry.Fields["error"])
	}
}

func TestStatementTrace(t *testing.T) {
	buf := captureLogs(t, DEBUG, false)
	trace := StartStatement("SELECT")
	trace.LogComplete(NewLogger("sql"), 3)

	if !strings.Contains(buf.String(), "statement=SELECT") || !strings.Contains(buf.String(), "rows=3") {
		t.Errorf("Unexpected trace output: %q", buf.String())
	}
}
