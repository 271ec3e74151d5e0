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
Transaction Overlay
===================

While a transaction is active its writes live in the WAL, not the log, so
the index does not know about them. The overlay keeps the plaintext of the
staged writes in memory so that reads inside the transaction see them:

  - Reads check the delete set, then the write cache, then the store
  - Scans merge the write cache over the store and drop deleted keys

The overlay is discarded on Commit (the writes are now in the log) and on
Rollback (the writes never happened).
*/
package storage

import (
	"sort"
	"strings"
)

type txOverlay struct {
	writes  map[string][]byte
	deletes map[string]bool
}

func newTxOverlay() *txOverlay {
	return &txOverlay{
		writes:  make(map[string][]byte),
		deletes: make(map[string]bool),
	}
}

func (tx *txOverlay) put(key string, value []byte) {
	tx.writes[key] = append([]byte{}, value...)
	delete(tx.deletes, key)
}

func (tx *txOverlay) delete(key string) {
	delete(tx.writes, key)
	tx.deletes[key] = true
}

// lookup reports what the transaction knows about key. found is false
// when the store must be consulted.
func (tx *txOverlay) lookup(key string) (value []byte, deleted bool, found bool) {
	if tx.deletes[key] {
		return nil, true, true
	}
	if v, ok := tx.writes[key]; ok {
		return v, false, true
	}
	return nil, false, false
}

// mergeKeys applies the overlay to a sorted key list from the index.
func (tx *txOverlay) mergeKeys(base []string, prefix string) []string {
	set := make(map[string]struct{}, len(base)+len(tx.writes))
	for _, k := range base {
		if !tx.deletes[k] {
			set[k] = struct{}{}
		}
	}
	for k := range tx.writes {
		if strings.HasPrefix(k, prefix) {
			set[k] = struct{}{}
		}
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
