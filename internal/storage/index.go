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
In-Memory Index
===============

The Index maps every live key to the offset of its most recent Put record.
It is derived state: it is never persisted and is rebuilt from offset 0 of
the log every time the store is opened.

Replay rules:
  - Put:    insert or overwrite the entry for the key
  - Delete: remove the entry for the key

Because replay follows log order, the last record for a key wins.
*/
package storage

import (
	"sort"
	"strings"
)

// IndexEntry locates the latest value of a key in the log.
type IndexEntry struct {
	Offset   int64
	ValueLen uint32
}

// Index is the key → latest-offset map. It is not safe for concurrent use.
type Index struct {
	entries map[string]IndexEntry
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]IndexEntry)}
}

// Rebuild clears the index and replays the log from offset 0.
// Replay stops at the first record the scanner cannot decode; callers that
// need the tail classified should validate the log first.
func (idx *Index) Rebuild(ls *LogStore) error {
	idx.entries = make(map[string]IndexEntry)

	sc := ls.Scanner()
	for sc.Next() {
		idx.apply(sc.Record(), sc.Offset())
	}
	return sc.Err()
}

func (idx *Index) apply(rec *Record, off int64) {
	switch rec.Op {
	case OpPut:
		idx.Put(string(rec.Key), off, uint32(len(rec.Value)))
	case OpDelete:
		idx.Delete(string(rec.Key))
	}
}

// Get returns the entry for key.
func (idx *Index) Get(key string) (IndexEntry, bool) {
	e, ok := idx.entries[key]
	return e, ok
}

// Put records that key's latest value starts at offset.
func (idx *Index) Put(key string, offset int64, valueLen uint32) {
	idx.entries[key] = IndexEntry{Offset: offset, ValueLen: valueLen}
}

// Delete removes key. It is a no-op if the key is absent.
func (idx *Index) Delete(key string) {
	delete(idx.entries, key)
}

// Len returns the number of live keys.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Keys returns the live keys that start with prefix, in byte order.
func (idx *Index) Keys(prefix string) []string {
	keys := make([]string, 0)
	for k := range idx.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// LiveBytes returns the encoded size of the records the index points at.
// The rest of the log is reclaimable by compaction.
func (idx *Index) LiveBytes() int64 {
	var total int64
	for k, e := range idx.entries {
		total += RecordHeaderSize + int64(len(k)) + int64(e.ValueLen)
	}
	return total
}
