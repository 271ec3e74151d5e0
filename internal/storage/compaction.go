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
	"os"
	"path/filepath"
	"time"

	lerrors "logdb/internal/errors"
)

// syncDirFunc is replaced in tests.
var syncDirFunc = syncDir

// Compact rewrites the log so that it holds exactly one Put record per live
// key. Overwritten values and delete records are dropped.
//
// The new log is written to <path>.compact, fsynced, renamed over the old
// log, and the directory is fsynced. A crash before the rename leaves the
// old log untouched; a crash after it leaves the new one. Once the rename
// has happened the store switches to the new log even if the directory
// fsync fails, and that error is returned. Compact is refused while a
// transaction is active.
func (s *KVStore) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWritable(); err != nil {
		return err
	}
	if s.tx != nil {
		return lerrors.TransactionAlreadyActive().WithDetail("compaction is not allowed during a transaction")
	}

	start := time.Now()
	before := s.log.Size()
	tmpPath := s.path + CompactSuffix
	os.Remove(tmpPath)

	written, err := s.writeCompacted(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return wrapPathError(err, s.path, "replace log with compacted log")
	}
	syncErr := syncDirFunc(filepath.Dir(s.path))

	// The old handle now refers to the unlinked file.
	s.log.Close()
	ls, err := OpenLogStore(s.path)
	if err != nil {
		s.failed = err
		return err
	}
	s.log = ls
	if err := s.index.Rebuild(ls); err != nil {
		s.failed = err
		return err
	}
	if syncErr != nil {
		s.logger.Warn("Compacted log installed but directory fsync failed", "error", syncErr)
		return syncErr
	}

	s.logger.Info("Compaction complete",
		"records", written,
		"bytes_before", before,
		"bytes_after", ls.Size(),
		"duration", time.Since(start))
	return nil
}

// writeCompacted copies the newest record of every live key into a new log
// at path, in key order, and fsyncs it.
func (s *KVStore) writeCompacted(path string) (int, error) {
	out, err := OpenLogStore(path)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	keys := s.index.Keys("")
	for _, key := range keys {
		entry, _ := s.index.Get(key)
		rec, err := s.log.ReadAt(entry.Offset)
		if err != nil {
			return 0, err
		}
		if _, err := out.Append(rec); err != nil {
			return 0, err
		}
	}
	if err := out.Flush(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// syncDir fsyncs a directory so that a rename inside it is durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return wrapPathError(err, dir, "open directory")
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return lerrors.IOError("fsync directory", err)
	}
	return nil
}
