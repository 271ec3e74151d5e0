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
KVStore Overview:
=================

KVStore is logdb's storage engine. Values live only on disk, in the log;
memory holds just the index of where each key's newest value starts.

Write Path:
===========

 1. Acquire the lock
 2. Validate key and value bounds (no I/O on failure)
 3. Seal the value if encryption is enabled
 4. Append the record to the log, or stage it in the WAL inside a transaction
 5. Update the index only after the append succeeded
 6. Fsync if SyncWrites is set

Read Path:
==========

 1. Acquire the lock
 2. Consult the transaction overlay, if any
 3. Look up the key in the index, then read exactly one record at its offset

Get never scans the log.

Startup/Recovery:
=================

 1. Scan the log and classify its end: a torn tail is truncated with a
    warning, mid-file corruption aborts the open with CorruptStore
 2. Recover the WAL: a committed transaction is re-applied, anything else
    is discarded
 3. Flush the log
 4. Rebuild the index from offset 0
*/
package storage

import (
	"os"
	"sync"

	lerrors "logdb/internal/errors"
	"logdb/internal/logging"
)

// CompactSuffix names the temporary file compaction writes to.
const CompactSuffix = ".compact"

// KVStore is a log-structured key-value store. It implements Engine and
// TxEngine.
//
// Thread Safety: All methods are safe for concurrent use.
type KVStore struct {
	mu sync.Mutex

	path   string
	opts   Options
	log    *LogStore
	index  *Index
	wal    *WAL
	enc    *Encryptor
	tx     *txOverlay
	logger *logging.Logger

	closed bool

	// failed is set when a commit reached the WAL but could not be applied.
	// Writes are refused until the store is reopened and recovery runs.
	failed error
}

// Open opens or creates the store at path.
//
// Example:
//
//	store, err := storage.Open("/var/lib/logdb/data.ldb", storage.Options{SyncWrites: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
func Open(path string, opts Options) (*KVStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger("storage")
	}

	enc, err := NewEncryptor(opts.Encryption)
	if err != nil {
		return nil, err
	}

	ls, err := OpenLogStore(path)
	if err != nil {
		return nil, err
	}

	s := &KVStore{
		path:   path,
		opts:   opts,
		log:    ls,
		index:  NewIndex(),
		enc:    enc,
		logger: logger,
	}

	if err := s.validateLog(); err != nil {
		ls.Close()
		return nil, err
	}
	s.removeStaleCompaction()

	wal, err := OpenWAL(path + WALSuffix)
	if err != nil {
		ls.Close()
		return nil, err
	}
	wal.SetLogger(logging.NewLogger("wal"))
	s.wal = wal

	if _, err := wal.Recover(logApplier{s}); err != nil {
		wal.Close()
		ls.Close()
		return nil, err
	}
	if err := ls.Flush(); err != nil {
		wal.Close()
		ls.Close()
		return nil, err
	}
	if err := s.index.Rebuild(ls); err != nil {
		wal.Close()
		ls.Close()
		return nil, err
	}

	logger.Info("Store opened",
		"path", path,
		"keys", s.index.Len(),
		"log_bytes", ls.Size(),
		"encrypted", enc != nil)
	return s, nil
}

// validateLog establishes the valid prefix of the log.
func (s *KVStore) validateLog() error {
	sc := s.log.Scanner()
	records := 0
	for sc.Next() {
		records++
	}
	if err := sc.Err(); err != nil {
		return err
	}

	switch sc.State() {
	case ScanTornTail:
		end := sc.ValidEnd()
		s.logger.Warn("Discarding torn record at end of log",
			"offset", end,
			"bytes", s.log.Size()-end,
			"reason", sc.StopReason())
		if err := s.log.TruncateTo(end); err != nil {
			return err
		}
		return s.log.Flush()
	case ScanCorrupt:
		s.logger.Error("Log is corrupt", "offset", sc.ValidEnd(), "reason", sc.StopReason())
		return lerrors.CorruptStore(s.path, sc.ValidEnd()).WithCause(sc.StopReason())
	}

	s.logger.Debug("Log validated", "records", records, "bytes", s.log.Size())
	return nil
}

// removeStaleCompaction deletes a compaction output left by a crash before
// its rename. The original log is still authoritative in that case.
func (s *KVStore) removeStaleCompaction() {
	tmp := s.path + CompactSuffix
	if _, err := os.Stat(tmp); err == nil {
		s.logger.Warn("Removing incomplete compaction output", "path", tmp)
		os.Remove(tmp)
	}
}

// logApplier writes committed WAL records to the log and the index.
// The caller already holds the store lock.
type logApplier struct {
	s *KVStore
}

func (a logApplier) Apply(rec *Record) error {
	off, err := a.s.log.Append(rec)
	if err != nil {
		return err
	}
	a.s.index.apply(rec, off)
	return nil
}

func (a logApplier) Flush() error {
	return a.s.log.Flush()
}

func (s *KVStore) checkOpen() error {
	if s.closed {
		return lerrors.StoreClosed()
	}
	return nil
}

func (s *KVStore) checkWritable() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.failed
}

// Path returns the log file path.
func (s *KVStore) Path() string {
	return s.path
}

// IsEncrypted reports whether values are sealed.
func (s *KVStore) IsEncrypted() bool {
	return s.enc != nil
}

// Put stores value under key. Bounds are checked before any I/O, and the
// index changes only after the record has been appended.
func (s *KVStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWritable(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if len(value) > MaxValueLen {
		return lerrors.ValueTooLarge(len(value), MaxValueLen)
	}

	stored := value
	if s.enc != nil {
		sealed, err := s.enc.Seal([]byte(key), value)
		if err != nil {
			return err
		}
		if len(sealed) > MaxValueLen {
			return lerrors.ValueTooLarge(len(value), MaxValueLen-SealOverhead)
		}
		stored = sealed
	}

	rec := &Record{Op: OpPut, Key: []byte(key), Value: stored}
	if s.tx != nil {
		if err := s.wal.Stage(rec); err != nil {
			return err
		}
		s.tx.put(key, value)
		return nil
	}

	off, err := s.log.Append(rec)
	if err != nil {
		return err
	}
	if err := s.syncAppend(off); err != nil {
		return err
	}
	s.index.Put(key, off, uint32(len(stored)))
	s.logger.Debug("Put", "key", key, "offset", off, "bytes", len(stored))
	return nil
}

// Get returns the newest value of key, or ErrNotFound.
func (s *KVStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if s.tx != nil {
		if v, deleted, found := s.tx.lookup(key); found {
			if deleted {
				return nil, ErrNotFound
			}
			return append([]byte{}, v...), nil
		}
	}
	return s.readLocked(key)
}

// readLocked reads the committed value of key through the index.
func (s *KVStore) readLocked(key string) ([]byte, error) {
	entry, ok := s.index.Get(key)
	if !ok {
		return nil, ErrNotFound
	}

	rec, err := s.log.ReadAt(entry.Offset)
	if err != nil {
		return nil, err
	}
	if rec.Op != OpPut || string(rec.Key) != key {
		return nil, lerrors.CorruptRecord(entry.Offset, "index entry points at a different record")
	}

	if s.enc != nil {
		return s.enc.Open(rec.Key, rec.Value)
	}
	return rec.Value, nil
}

// Delete removes key. It returns false without any I/O if the key is absent.
func (s *KVStore) Delete(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWritable(); err != nil {
		return false, err
	}
	if err := validateKey(key); err != nil {
		return false, err
	}
	if !s.existsLocked(key) {
		return false, nil
	}

	rec := &Record{Op: OpDelete, Key: []byte(key)}
	if s.tx != nil {
		if err := s.wal.Stage(rec); err != nil {
			return false, err
		}
		s.tx.delete(key)
		return true, nil
	}

	off, err := s.log.Append(rec)
	if err != nil {
		return false, err
	}
	if err := s.syncAppend(off); err != nil {
		return false, err
	}
	s.index.Delete(key)
	s.logger.Debug("Delete", "key", key)
	return true, nil
}

func (s *KVStore) existsLocked(key string) bool {
	if s.tx != nil {
		if _, deleted, found := s.tx.lookup(key); found {
			return !deleted
		}
	}
	_, ok := s.index.Get(key)
	return ok
}

// syncAppend makes the record appended at off durable when SyncWrites is
// set. If the fsync fails the record is cut off again, so the index is only
// updated for writes that reached disk.
func (s *KVStore) syncAppend(off int64) error {
	err := s.syncIfNeeded()
	if err == nil {
		return nil
	}
	if terr := s.log.TruncateTo(off); terr != nil {
		s.failed = terr
		s.logger.Error("Could not roll back unsynced record", "offset", off, "error", terr)
	}
	return err
}

func (s *KVStore) syncIfNeeded() error {
	if s.opts.SyncWrites {
		return s.log.Flush()
	}
	return nil
}

func validateKey(key string) error {
	if len(key) == 0 {
		return lerrors.InvalidValue("key", "must not be empty")
	}
	if len(key) > MaxKeyLen {
		return lerrors.KeyTooLarge(len(key), MaxKeyLen)
	}
	return nil
}

// Keys returns the live keys starting with prefix, sorted. Inside a
// transaction staged writes and deletes are included.
func (s *KVStore) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.keysLocked(prefix), nil
}

func (s *KVStore) keysLocked(prefix string) []string {
	keys := s.index.Keys(prefix)
	if s.tx != nil {
		keys = s.tx.mergeKeys(keys, prefix)
	}
	return keys
}

// Scan returns all key-value pairs whose key starts with prefix.
//
// Example:
//
//	rows, err := store.Scan("row:users:")
func (s *KVStore) Scan(prefix string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	result := make(map[string][]byte)
	for _, k := range s.keysLocked(prefix) {
		if s.tx != nil {
			if v, _, found := s.tx.lookup(k); found {
				result[k] = append([]byte{}, v...)
				continue
			}
		}
		v, err := s.readLocked(k)
		if err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, nil
}

// Begin starts a transaction. Writes until Commit or Rollback are staged
// in the WAL; reads see them.
func (s *KVStore) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWritable(); err != nil {
		return err
	}
	if err := s.wal.Begin(); err != nil {
		return err
	}
	s.tx = newTxOverlay()
	return nil
}

// Commit applies every staged write to the log atomically.
func (s *KVStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.tx == nil {
		return lerrors.NoActiveTransaction()
	}

	n := len(s.wal.Staged())
	err := s.wal.Commit(logApplier{s})
	s.tx = nil
	if err != nil {
		if s.wal.pending {
			s.failed = err
			s.logger.Error("Commit durable but not applied; reopen to recover", "error", err)
		}
		return err
	}
	s.logger.Debug("Commit", "records", n)
	return nil
}

// Rollback discards every staged write.
func (s *KVStore) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.tx == nil {
		return lerrors.NoActiveTransaction()
	}
	s.tx = nil
	return s.wal.Rollback()
}

// InTransaction reports whether a transaction is active.
func (s *KVStore) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

// Flush fsyncs the log.
func (s *KVStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.log.Flush()
}

// Stats returns a snapshot of the store's size and state.
func (s *KVStore) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return Stats{}, err
	}
	live := s.index.LiveBytes()
	return Stats{
		LiveKeys:         s.index.Len(),
		LogBytes:         s.log.Size(),
		LiveBytes:        live,
		ReclaimableBytes: s.log.Size() - live,
		WALBytes:         s.wal.Size(),
		InTransaction:    s.tx != nil,
		Encrypted:        s.enc != nil,
	}, nil
}

// Close flushes the log and closes both files. An active transaction is
// rolled back. Calling Close twice is a no-op.
func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.tx != nil {
		s.logger.Warn("Closing with an active transaction; staged writes discarded",
			"records", len(s.wal.Staged()))
		s.tx = nil
	}

	flushErr := s.log.Flush()
	walErr := s.wal.Close()
	logErr := s.log.Close()
	for _, err := range []error{flushErr, walErr, logErr} {
		if err != nil {
			return err
		}
	}
	s.logger.Debug("Store closed", "path", s.path)
	return nil
}
