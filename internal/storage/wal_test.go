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
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	lerrors "logdb/internal/errors"
)

func setupTestWAL(t *testing.T) (*WAL, string, func()) {
	tmpDir, err := os.MkdirTemp("", "logdb_wal_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	path := filepath.Join(tmpDir, "test.ldb"+WALSuffix)
	wal, err := OpenWAL(path)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to open WAL: %v", err)
	}

	cleanup := func() {
		wal.Close()
		os.RemoveAll(tmpDir)
	}
	return wal, path, cleanup
}

// recordingApplier collects applied records. failAt > 0 makes the
// failAt-th Apply call fail.
type recordingApplier struct {
	applied []*Record
	flushes int
	failAt  int
}

func (a *recordingApplier) Apply(rec *Record) error {
	if a.failAt > 0 && len(a.applied)+1 == a.failAt {
		return lerrors.IOError("apply", errors.New("disk full"))
	}
	a.applied = append(a.applied, rec)
	return nil
}

func (a *recordingApplier) Flush() error {
	a.flushes++
	return nil
}

func putRec(key, value string) *Record {
	return &Record{Op: OpPut, Key: []byte(key), Value: []byte(value)}
}

func TestWALStateMachineErrors(t *testing.T) {
	wal, _, cleanup := setupTestWAL(t)
	defer cleanup()

	if err := wal.Stage(putRec("a", "1")); !errors.Is(err, lerrors.ErrNoActiveTx) {
		t.Errorf("Stage while idle: expected ErrNoActiveTx, got %v", err)
	}
	if err := wal.Commit(&recordingApplier{}); !errors.Is(err, lerrors.ErrNoActiveTx) {
		t.Errorf("Commit while idle: expected ErrNoActiveTx, got %v", err)
	}
	if err := wal.Rollback(); !errors.Is(err, lerrors.ErrNoActiveTx) {
		t.Errorf("Rollback while idle: expected ErrNoActiveTx, got %v", err)
	}

	if err := wal.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if wal.State() != TxActive {
		t.Errorf("Expected active state, got %v", wal.State())
	}
	if err := wal.Begin(); !errors.Is(err, lerrors.ErrTxAlreadyActive) {
		t.Errorf("Second Begin: expected ErrTxAlreadyActive, got %v", err)
	}
}

func TestWALCommitAppliesInOrder(t *testing.T) {
	wal, _, cleanup := setupTestWAL(t)
	defer cleanup()

	wal.Begin()
	wal.Stage(putRec("a", "1"))
	wal.Stage(&Record{Op: OpDelete, Key: []byte("b")})
	wal.Stage(putRec("c", "3"))
	if wal.Size() == 0 {
		t.Error("Expected staged frames on disk")
	}

	applier := &recordingApplier{}
	if err := wal.Commit(applier); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if len(applier.applied) != 3 {
		t.Fatalf("Expected 3 applied records, got %d", len(applier.applied))
	}
	if string(applier.applied[0].Key) != "a" || applier.applied[1].Op != OpDelete || string(applier.applied[2].Key) != "c" {
		t.Errorf("Records applied out of order: %+v", applier.applied)
	}
	if applier.flushes != 1 {
		t.Errorf("Expected 1 flush, got %d", applier.flushes)
	}
	if wal.Size() != 0 {
		t.Errorf("Expected WAL truncated after commit, got %d bytes", wal.Size())
	}
	if wal.State() != TxIdle {
		t.Errorf("Expected idle state, got %v", wal.State())
	}
}

func TestWALRollbackDiscards(t *testing.T) {
	wal, _, cleanup := setupTestWAL(t)
	defer cleanup()

	wal.Begin()
	wal.Stage(putRec("a", "1"))
	if err := wal.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if wal.Size() != 0 || len(wal.Staged()) != 0 {
		t.Errorf("Expected empty WAL after rollback, got %d bytes, %d staged", wal.Size(), len(wal.Staged()))
	}

	applier := &recordingApplier{}
	result, err := wal.Recover(applier)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if result.Applied != 0 || len(applier.applied) != 0 {
		t.Errorf("Expected nothing recovered after rollback, got %+v", result)
	}
}

// writeCommittedWAL leaves a WAL that holds a committed but unapplied
// transaction, as if the process died right after the commit fsync.
func writeCommittedWAL(t *testing.T, path string, recs ...*Record) {
	t.Helper()
	wal, err := OpenWAL(path)
	if err != nil {
		t.Fatalf("OpenWAL failed: %v", err)
	}
	if err := wal.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	for _, rec := range recs {
		if err := wal.Stage(rec); err != nil {
			t.Fatalf("Stage failed: %v", err)
		}
	}
	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, uint32(len(recs)))
	if err := wal.writeFrame(FrameCommit, count); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}
	if err := wal.sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	wal.file.Close()
}

func TestWALRecoverCommitted(t *testing.T) {
	wal, path, cleanup := setupTestWAL(t)
	wal.file.Close()
	defer cleanup()

	writeCommittedWAL(t, path, putRec("a", "1"), putRec("b", "2"))

	reopened, err := OpenWAL(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	applier := &recordingApplier{}
	result, err := reopened.Recover(applier)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if result.Applied != 2 || len(applier.applied) != 2 {
		t.Errorf("Expected 2 applied, got %+v", result)
	}
	if reopened.Size() != 0 {
		t.Errorf("Expected WAL truncated after recovery, got %d bytes", reopened.Size())
	}

	again := &recordingApplier{}
	result, err = reopened.Recover(again)
	if err != nil {
		t.Fatalf("Second Recover failed: %v", err)
	}
	if result.Applied != 0 {
		t.Errorf("Expected second recovery to be a no-op, got %+v", result)
	}
}

func TestWALRecoverUncommittedDiscards(t *testing.T) {
	wal, path, cleanup := setupTestWAL(t)
	defer cleanup()

	wal.Begin()
	wal.Stage(putRec("a", "1"))
	wal.Stage(putRec("b", "2"))
	wal.file.Close()

	reopened, err := OpenWAL(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	applier := &recordingApplier{}
	result, err := reopened.Recover(applier)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if len(applier.applied) != 0 {
		t.Errorf("Expected no records applied, got %d", len(applier.applied))
	}
	if result.Discarded != 2 {
		t.Errorf("Expected 2 discarded, got %d", result.Discarded)
	}
}

func TestWALRecoverTornCommitFrame(t *testing.T) {
	wal, path, cleanup := setupTestWAL(t)
	wal.file.Close()
	defer cleanup()

	writeCommittedWAL(t, path, putRec("a", "1"))

	stat, _ := os.Stat(path)
	if err := os.Truncate(path, stat.Size()-2); err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}

	reopened, err := OpenWAL(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	applier := &recordingApplier{}
	result, err := reopened.Recover(applier)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if len(applier.applied) != 0 || !result.TornTail {
		t.Errorf("Expected torn commit to discard everything, got %+v", result)
	}
}

func TestWALRecoverCountMismatch(t *testing.T) {
	wal, path, cleanup := setupTestWAL(t)
	defer cleanup()

	wal.Begin()
	wal.Stage(putRec("a", "1"))
	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, 2)
	wal.writeFrame(FrameCommit, count)
	wal.file.Close()

	reopened, err := OpenWAL(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	applier := &recordingApplier{}
	if _, err := reopened.Recover(applier); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if len(applier.applied) != 0 {
		t.Errorf("Expected commit with wrong count to be ignored, got %d records", len(applier.applied))
	}
}

func TestWALCommitApplyFailureKeepsFrames(t *testing.T) {
	wal, _, cleanup := setupTestWAL(t)
	defer cleanup()

	wal.Begin()
	wal.Stage(putRec("a", "1"))
	wal.Stage(putRec("b", "2"))

	if err := wal.Commit(&recordingApplier{failAt: 2}); !errors.Is(err, lerrors.ErrIO) {
		t.Fatalf("Expected ErrIO from failing applier, got %v", err)
	}
	if wal.Size() == 0 {
		t.Fatal("Expected committed frames kept for recovery")
	}
	if err := wal.Begin(); err == nil {
		t.Error("Expected Begin to be refused until recovery")
	}

	applier := &recordingApplier{}
	result, err := wal.Recover(applier)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if result.Applied != 2 {
		t.Errorf("Expected 2 records re-applied, got %d", result.Applied)
	}
	if err := wal.Begin(); err != nil {
		t.Errorf("Begin after recovery failed: %v", err)
	}
}

func TestScanFramesStopsAtCorruption(t *testing.T) {
	wal, path, cleanup := setupTestWAL(t)
	defer cleanup()

	wal.Begin()
	wal.Stage(putRec("a", "1"))
	wal.Stage(putRec("b", "2"))
	wal.file.Sync()

	data, _ := os.ReadFile(path)
	data[WALFrameHeaderSize+2] ^= 0xFF

	f, _ := os.CreateTemp(filepath.Dir(path), "frames")
	f.Write(data)
	defer f.Close()

	frames, state, err := ScanFrames(f, int64(len(data)))
	if err != nil {
		t.Fatalf("ScanFrames failed: %v", err)
	}
	if len(frames) != 0 || state != ScanCorrupt {
		t.Errorf("Expected corruption at first frame, got %d frames and %v", len(frames), state)
	}
}
