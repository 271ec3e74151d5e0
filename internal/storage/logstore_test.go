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

package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	lerrors "logdb/internal/errors"
)

func setupTestLogStore(t *testing.T) (*LogStore, string, func()) {
	tmpDir, err := os.MkdirTemp("", "logdb_log_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	path := filepath.Join(tmpDir, "test.ldb")
	ls, err := OpenLogStore(path)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to open log store: %v", err)
	}

	cleanup := func() {
		ls.Close()
		os.RemoveAll(tmpDir)
	}
	return ls, path, cleanup
}

func appendN(t *testing.T, ls *LogStore, n int) []int64 {
	t.Helper()
	offsets := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		off, err := ls.Append(&Record{Op: OpPut, Key: []byte(fmt.Sprintf("key%d", i)), Value: []byte(fmt.Sprintf("value%d", i))})
		if err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
		offsets = append(offsets, off)
	}
	return offsets
}

func TestLogStoreAppendAndReadAt(t *testing.T) {
	ls, _, cleanup := setupTestLogStore(t)
	defer cleanup()

	offsets := appendN(t, ls, 3)
	if offsets[0] != 0 {
		t.Errorf("Expected first offset 0, got %d", offsets[0])
	}

	for i, off := range offsets {
		rec, err := ls.ReadAt(off)
		if err != nil {
			t.Fatalf("ReadAt(%d) failed: %v", off, err)
		}
		if want := fmt.Sprintf("value%d", i); string(rec.Value) != want {
			t.Errorf("Expected %q, got %q", want, rec.Value)
		}
	}
}

func TestLogStoreReadAtBadOffset(t *testing.T) {
	ls, _, cleanup := setupTestLogStore(t)
	defer cleanup()

	offsets := appendN(t, ls, 2)

	if _, err := ls.ReadAt(offsets[1] + 1); !errors.Is(err, lerrors.ErrCorruptRecord) {
		t.Errorf("Expected ErrCorruptRecord for misaligned offset, got %v", err)
	}
	if _, err := ls.ReadAt(ls.Size()); !errors.Is(err, ErrShortRecord) {
		t.Errorf("Expected ErrShortRecord at EOF, got %v", err)
	}
}

func TestLogStorePersistsAcrossReopen(t *testing.T) {
	ls, path, cleanup := setupTestLogStore(t)
	defer cleanup()

	appendN(t, ls, 5)
	if err := ls.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	size := ls.Size()
	ls.Close()

	reopened, err := OpenLogStore(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	if reopened.Size() != size {
		t.Errorf("Expected size %d, got %d", size, reopened.Size())
	}

	sc := reopened.Scanner()
	count := 0
	for sc.Next() {
		count++
	}
	if count != 5 || sc.State() != ScanComplete {
		t.Errorf("Expected 5 records and complete scan, got %d and %v", count, sc.State())
	}
}

func TestScannerYieldsWriteOrder(t *testing.T) {
	ls, _, cleanup := setupTestLogStore(t)
	defer cleanup()

	offsets := appendN(t, ls, 4)

	sc := ls.Scanner()
	i := 0
	for sc.Next() {
		if sc.Offset() != offsets[i] {
			t.Errorf("Record %d: expected offset %d, got %d", i, offsets[i], sc.Offset())
		}
		if want := fmt.Sprintf("key%d", i); string(sc.Record().Key) != want {
			t.Errorf("Record %d: expected key %q, got %q", i, want, sc.Record().Key)
		}
		i++
	}
	if sc.Err() != nil {
		t.Fatalf("Unexpected scan error: %v", sc.Err())
	}
	if sc.ValidEnd() != ls.Size() {
		t.Errorf("Expected ValidEnd %d, got %d", ls.Size(), sc.ValidEnd())
	}
}

func TestScannerTornTailAtEveryOffset(t *testing.T) {
	ls, path, cleanup := setupTestLogStore(t)
	defer cleanup()

	offsets := appendN(t, ls, 3)
	ls.Flush()
	full, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	for cut := 0; cut <= len(full); cut++ {
		data := full[:cut]
		sc := newScanner(bytes.NewReader(data), int64(len(data)))
		n := 0
		for sc.Next() {
			n++
		}

		wantRecords := 0
		for i, off := range offsets {
			end := int64(len(full))
			if i+1 < len(offsets) {
				end = offsets[i+1]
			}
			if end <= int64(cut) && off < int64(cut) {
				wantRecords++
			}
		}
		if n != wantRecords {
			t.Fatalf("cut %d: expected %d records, got %d", cut, wantRecords, n)
		}

		onBoundary := cut == 0 || cut == len(full)
		for _, off := range offsets {
			if int64(cut) == off {
				onBoundary = true
			}
		}
		if onBoundary && sc.State() != ScanComplete {
			t.Errorf("cut %d: expected complete scan, got %v", cut, sc.State())
		}
		if !onBoundary && sc.State() != ScanTornTail {
			t.Errorf("cut %d: expected torn tail, got %v", cut, sc.State())
		}
	}
}

func TestScannerMidFileCorruption(t *testing.T) {
	ls, path, cleanup := setupTestLogStore(t)
	defer cleanup()

	offsets := appendN(t, ls, 3)
	ls.Flush()

	data, _ := os.ReadFile(path)
	data[offsets[1]+RecordHeaderSize] ^= 0xFF

	sc := newScanner(bytes.NewReader(data), int64(len(data)))
	n := 0
	for sc.Next() {
		n++
	}
	if n != 1 {
		t.Errorf("Expected 1 record before corruption, got %d", n)
	}
	if sc.State() != ScanCorrupt {
		t.Errorf("Expected corrupt state, got %v", sc.State())
	}
	if sc.ValidEnd() != offsets[1] {
		t.Errorf("Expected ValidEnd %d, got %d", offsets[1], sc.ValidEnd())
	}
	if !errors.Is(sc.StopReason(), lerrors.ErrChecksumMismatch) {
		t.Errorf("Expected checksum mismatch stop reason, got %v", sc.StopReason())
	}
}

func TestScannerZeroFilledTailIsTorn(t *testing.T) {
	ls, path, cleanup := setupTestLogStore(t)
	defer cleanup()

	appendN(t, ls, 2)
	ls.Flush()

	data, _ := os.ReadFile(path)
	data = append(data, make([]byte, 100)...)

	sc := newScanner(bytes.NewReader(data), int64(len(data)))
	for sc.Next() {
	}
	if sc.State() != ScanTornTail {
		t.Errorf("Expected torn tail for zero padding, got %v", sc.State())
	}
}

func TestLogStoreTruncateTo(t *testing.T) {
	ls, _, cleanup := setupTestLogStore(t)
	defer cleanup()

	offsets := appendN(t, ls, 3)
	if err := ls.TruncateTo(offsets[2]); err != nil {
		t.Fatalf("TruncateTo failed: %v", err)
	}
	if ls.Size() != offsets[2] {
		t.Errorf("Expected size %d, got %d", offsets[2], ls.Size())
	}

	off, err := ls.Append(&Record{Op: OpDelete, Key: []byte("key0")})
	if err != nil {
		t.Fatalf("Append after truncate failed: %v", err)
	}
	if off != offsets[2] {
		t.Errorf("Expected append at %d, got %d", offsets[2], off)
	}

	if err := ls.TruncateTo(ls.Size() + 1); !errors.Is(err, lerrors.ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue for truncate past end, got %v", err)
	}
}

func TestLogStoreRejectsInvalidRecordWithoutIO(t *testing.T) {
	ls, _, cleanup := setupTestLogStore(t)
	defer cleanup()

	_, err := ls.Append(&Record{Op: OpPut, Key: make([]byte, MaxKeyLen+1)})
	if !errors.Is(err, lerrors.ErrKeyTooLarge) {
		t.Errorf("Expected ErrKeyTooLarge, got %v", err)
	}
	if ls.Size() != 0 {
		t.Errorf("Expected empty log, got %d bytes", ls.Size())
	}
}
