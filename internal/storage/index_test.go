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
	"reflect"
	"testing"
)

func TestIndexRebuildLastWriterWins(t *testing.T) {
	ls, _, cleanup := setupTestLogStore(t)
	defer cleanup()

	records := []*Record{
		{Op: OpPut, Key: []byte("a"), Value: []byte("1")},
		{Op: OpPut, Key: []byte("b"), Value: []byte("2")},
		{Op: OpDelete, Key: []byte("a")},
		{Op: OpPut, Key: []byte("b"), Value: []byte("three")},
		{Op: OpPut, Key: []byte("c"), Value: []byte("4")},
		{Op: OpDelete, Key: []byte("c")},
		{Op: OpPut, Key: []byte("c"), Value: []byte("5")},
	}
	var offsets []int64
	for _, rec := range records {
		off, err := ls.Append(rec)
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		offsets = append(offsets, off)
	}

	idx := NewIndex()
	idx.Put("stale", 999, 1)
	if err := idx.Rebuild(ls); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	if idx.Len() != 2 {
		t.Errorf("Expected 2 live keys, got %d", idx.Len())
	}
	if _, ok := idx.Get("a"); ok {
		t.Error("Expected deleted key 'a' to be absent")
	}
	if _, ok := idx.Get("stale"); ok {
		t.Error("Expected Rebuild to clear previous entries")
	}

	b, ok := idx.Get("b")
	if !ok || b.Offset != offsets[3] || b.ValueLen != 5 {
		t.Errorf("Expected b at %d len 5, got %+v (found=%v)", offsets[3], b, ok)
	}
	c, ok := idx.Get("c")
	if !ok || c.Offset != offsets[6] {
		t.Errorf("Expected c at %d, got %+v (found=%v)", offsets[6], c, ok)
	}
}

func TestIndexKeysSortedByPrefix(t *testing.T) {
	idx := NewIndex()
	for i, k := range []string{"row:t:3", "row:t:1", "schema:t", "row:u:1", "row:t:2"} {
		idx.Put(k, int64(i), 0)
	}

	got := idx.Keys("row:t:")
	want := []string{"row:t:1", "row:t:2", "row:t:3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	if all := idx.Keys(""); len(all) != 5 {
		t.Errorf("Expected 5 keys for empty prefix, got %d", len(all))
	}
	if none := idx.Keys("missing:"); len(none) != 0 {
		t.Errorf("Expected no keys, got %v", none)
	}
}

func TestIndexDeleteMissingIsNoop(t *testing.T) {
	idx := NewIndex()
	idx.Put("a", 0, 1)
	idx.Delete("zzz")
	if idx.Len() != 1 {
		t.Errorf("Expected 1 key, got %d", idx.Len())
	}
}

func TestIndexLiveBytes(t *testing.T) {
	idx := NewIndex()
	idx.Put("ab", 0, 10)
	idx.Put("c", 100, 0)

	want := int64(RecordHeaderSize+2+10) + int64(RecordHeaderSize+1)
	if got := idx.LiveBytes(); got != want {
		t.Errorf("Expected %d live bytes, got %d", want, got)
	}
}
