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
Package storage provides the persistence layer for logdb.

Storage Engine Overview:
========================

The storage package defines the Engine interface and implements it with a
log-structured key-value store: every mutation is appended to one file and
an in-memory index remembers where the newest value of each key lives.

Architecture:
=============

	┌─────────────────────────────────────────────────────┐
	│                    SQL Executor                     │
	└─────────────────────────────────────────────────────┘
	                         │
	                         ▼
	┌─────────────────────────────────────────────────────┐
	│                  Engine Interface                   │
	│         (Put, Get, Delete, Scan, Close)             │
	└─────────────────────────────────────────────────────┘
	                         │
	                         ▼
	┌─────────────────────────────────────────────────────┐
	│                     KVStore                         │
	│       Index (key → offset)  +  WAL (transactions)   │
	└─────────────────────────────────────────────────────┘
	                         │
	                         ▼
	┌─────────────────────────────────────────────────────┐
	│                 LogStore (<path>)                   │
	│          append-only, checksummed records           │
	└─────────────────────────────────────────────────────┘

Key Conventions:
================

The SQL layer organizes data by key prefix:

	schema:<table>       - Table schema definition (JSON)
	row:<table>:<pk>     - Table row data (JSON)

Durability Model:
=================

Outside a transaction each Put or Delete is one appended record. With
Options.SyncWrites the log is fsynced before the call returns and before the
write becomes visible to readers; a failed fsync removes the record and the
call returns the error. Without SyncWrites a write is durable after the next
Flush, Commit or Close.

Inside a transaction writes are staged in the WAL and reach the log only on
Commit, all together.

Thread Safety:
==============

A single sync.Mutex serializes every operation on a KVStore.
*/
package storage

import "logdb/internal/logging"

// Engine defines the interface for the storage engine.
// It provides basic key-value operations and prefix scans.
//
// All implementations must be safe for concurrent use.
type Engine interface {
	// Put stores a value associated with a key, replacing any previous value.
	Put(key string, value []byte) error

	// Get retrieves the value associated with a key.
	// Returns ErrNotFound if the key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes a key. It reports whether the key existed; deleting a
	// missing key is not an error and performs no I/O.
	Delete(key string) (bool, error)

	// Scan returns all key-value pairs whose key starts with prefix.
	//
	//   rows, err := engine.Scan("row:users:")
	Scan(prefix string) (map[string][]byte, error)

	// Close flushes pending writes and releases the underlying files.
	Close() error
}

// TxEngine is an Engine with single-writer transactions.
type TxEngine interface {
	Engine

	// Keys returns the live keys with the given prefix, sorted.
	Keys(prefix string) ([]string, error)

	Begin() error
	Commit() error
	Rollback() error
	InTransaction() bool
}

// Options configure a KVStore.
type Options struct {
	// SyncWrites fsyncs the log after every mutation outside a transaction.
	SyncWrites bool

	// Encryption seals values with AES-256-GCM.
	Encryption EncryptionConfig

	// Logger receives engine events. A "storage" logger is used when nil.
	Logger *logging.Logger
}

// Stats describes the state of an open store.
type Stats struct {
	LiveKeys         int
	LogBytes         int64
	LiveBytes        int64
	ReclaimableBytes int64
	WALBytes         int64
	InTransaction    bool
	Encrypted        bool
}

// Compile-time interface checks.
var (
	_ Engine   = (*KVStore)(nil)
	_ TxEngine = (*KVStore)(nil)
)
