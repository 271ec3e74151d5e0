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

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"logdb/internal/storage"
)

func setupDumpTest(t *testing.T, opts storage.Options) (*storage.KVStore, string, func()) {
	tmpDir, err := os.MkdirTemp("", "logdb_dump_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	path := filepath.Join(tmpDir, "test.ldb")
	kv, err := storage.Open(path, opts)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to open store: %v", err)
	}
	cleanup := func() {
		kv.Close()
		os.RemoveAll(tmpDir)
	}
	return kv, path, cleanup
}

func TestDumpListsRecordsInWriteOrder(t *testing.T) {
	kv, path, cleanup := setupDumpTest(t, storage.Options{})
	defer cleanup()

	kv.Put("a", []byte("1"))
	kv.Put("b", []byte("2"))
	kv.Delete("a")
	kv.Close()

	var buf bytes.Buffer
	sum, err := dump(&buf, path, dumpOptions{Values: true})
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if sum.Records != 3 || sum.Puts != 2 || sum.Deletes != 1 {
		t.Errorf("Expected 3 records (2 puts, 1 delete), got %d (%d, %d)", sum.Records, sum.Puts, sum.Deletes)
	}
	if sum.Log.State != "complete" {
		t.Errorf("Expected complete log, got %s", sum.Log.State)
	}
	if sum.Log.ValidEnd != sum.Log.Size {
		t.Errorf("Expected valid end %d, got %d", sum.Log.Size, sum.Log.ValidEnd)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "PUT") || !strings.Contains(lines[0], "a (1 bytes) = 1") {
		t.Errorf("Unexpected first line: %q", lines[0])
	}
	if !strings.Contains(lines[2], "DELETE  a") {
		t.Errorf("Unexpected last line: %q", lines[2])
	}
}

func TestDumpJSON(t *testing.T) {
	kv, path, cleanup := setupDumpTest(t, storage.Options{})
	defer cleanup()

	kv.Put("row:t:1", []byte(`{"id":1}`))
	kv.Close()

	var buf bytes.Buffer
	if _, err := dump(&buf, path, dumpOptions{JSON: true, Values: true}); err != nil {
		t.Fatalf("dump failed: %v", err)
	}

	var line recordLine
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("Expected one JSON line, got %q: %v", buf.String(), err)
	}
	if line.File != "log" || line.Kind != "put" || line.Key != "row:t:1" {
		t.Errorf("Unexpected record %+v", line)
	}
	if line.Value != `{"id":1}` {
		t.Errorf("Expected value {\"id\":1}, got %q", line.Value)
	}
}

func TestDumpVerifyWritesNothing(t *testing.T) {
	kv, path, cleanup := setupDumpTest(t, storage.Options{})
	defer cleanup()

	kv.Put("a", []byte("1"))
	kv.Close()

	var buf bytes.Buffer
	sum, err := dump(&buf, path, dumpOptions{Verify: true})
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}
	if sum.Corrupt() {
		t.Error("Expected healthy files")
	}
}

func TestDumpReportsTornTail(t *testing.T) {
	kv, path, cleanup := setupDumpTest(t, storage.Options{})
	defer cleanup()

	kv.Put("a", []byte("1"))
	kv.Put("b", []byte("2"))
	kv.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-3], 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	var buf bytes.Buffer
	sum, err := dump(&buf, path, dumpOptions{})
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if sum.Records != 1 {
		t.Errorf("Expected 1 record before the torn tail, got %d", sum.Records)
	}
	if sum.Log.State != "torn-tail" {
		t.Errorf("Expected torn-tail, got %s", sum.Log.State)
	}
	if sum.Corrupt() {
		t.Error("Expected a torn tail not to count as corruption")
	}

	after, _ := os.ReadFile(path)
	if len(after) != len(data)-3 {
		t.Errorf("Expected file to be left untouched, size %d -> %d", len(data)-3, len(after))
	}
}

func TestDumpReportsCorruption(t *testing.T) {
	kv, path, cleanup := setupDumpTest(t, storage.Options{})
	defer cleanup()

	kv.Put("a", []byte("1"))
	kv.Put("b", []byte("2"))
	kv.Close()

	data, _ := os.ReadFile(path)
	data[0] ^= 0xFF
	os.WriteFile(path, data, 0644)

	var buf bytes.Buffer
	sum, err := dump(&buf, path, dumpOptions{Verify: true})
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if !sum.Corrupt() {
		t.Errorf("Expected corruption, got state %s", sum.Log.State)
	}
	if sum.Log.Reason == "" {
		t.Error("Expected a stop reason")
	}
}

func TestDumpShowsUncommittedWALFrames(t *testing.T) {
	kv, path, cleanup := setupDumpTest(t, storage.Options{})
	defer cleanup()

	if err := kv.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	kv.Put("pending", []byte("x"))

	// Close discards the staged frames, so snapshot the files first.
	snapshot := filepath.Join(filepath.Dir(path), "snapshot.ldb")
	for _, suffix := range []string{"", storage.WALSuffix} {
		data, err := os.ReadFile(path + suffix)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if err := os.WriteFile(snapshot+suffix, data, 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	var buf bytes.Buffer
	sum, err := dump(&buf, snapshot, dumpOptions{})
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if sum.WAL == nil {
		t.Fatal("Expected a WAL summary")
	}
	if sum.Frames != 1 || sum.Committed != 0 {
		t.Errorf("Expected 1 uncommitted frame, got %d frames, %d commits", sum.Frames, sum.Committed)
	}
	if sum.WAL.ValidEnd != sum.WAL.Size {
		t.Errorf("Expected WAL valid end %d, got %d", sum.WAL.Size, sum.WAL.ValidEnd)
	}
	if !strings.Contains(buf.String(), "wal") || !strings.Contains(buf.String(), "pending") {
		t.Errorf("Expected the staged record in the output, got %q", buf.String())
	}
}

func TestDumpDecryptsValues(t *testing.T) {
	enc := storage.EncryptionConfig{Enabled: true, Passphrase: "secret"}
	kv, path, cleanup := setupDumpTest(t, storage.Options{Encryption: enc})
	defer cleanup()

	kv.Put("k", []byte("plain text"))
	kv.Close()

	var raw bytes.Buffer
	if _, err := dump(&raw, path, dumpOptions{Values: true}); err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if strings.Contains(raw.String(), "plain text") {
		t.Error("Expected sealed value without a passphrase")
	}

	e, err := storage.NewEncryptor(enc)
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	var buf bytes.Buffer
	if _, err := dump(&buf, path, dumpOptions{Values: true, Decrypt: e}); err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if !strings.Contains(buf.String(), "= plain text") {
		t.Errorf("Expected decrypted value, got %q", buf.String())
	}
}
