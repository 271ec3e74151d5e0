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
Package metrics provides statement counters for logdb.

METRIC CATEGORIES:
==================
- Statements: executed (total, by kind), failed
- Latency: average statement execution time
- Transactions: committed, rolled back
- Storage: log size, live bytes, WAL size (sampled from the engine)

OUTPUT FORMAT:
==============
WriteText renders the counters in the Prometheus text exposition format,
so the output of the shell's \stats command can be scraped or diffed:

	logdb_statements_total 12
	logdb_statements_by_kind_total{kind="SELECT"} 7
	logdb_statement_latency_avg_microseconds 41.50
*/
package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds the counters of one executor.
type Metrics struct {
	StatementsTotal  atomic.Uint64
	StatementsFailed atomic.Uint64

	// Latency in microseconds
	LatencySum   atomic.Uint64
	LatencyCount atomic.Uint64

	TransactionsCommitted  atomic.Uint64
	TransactionsRolledBack atomic.Uint64

	mu     sync.Mutex
	byKind map[string]uint64
}

// New returns zeroed metrics.
func New() *Metrics {
	return &Metrics{byKind: make(map[string]uint64)}
}

// RecordStatement records a successful statement of the given kind.
func (m *Metrics) RecordStatement(kind string, latency time.Duration) {
	m.StatementsTotal.Add(1)
	m.LatencySum.Add(uint64(latency.Microseconds()))
	m.LatencyCount.Add(1)

	m.mu.Lock()
	m.byKind[kind]++
	m.mu.Unlock()

	switch kind {
	case "COMMIT":
		m.TransactionsCommitted.Add(1)
	case "ROLLBACK":
		m.TransactionsRolledBack.Add(1)
	}
}

// RecordError records a failed statement.
func (m *Metrics) RecordError() {
	m.StatementsFailed.Add(1)
}

// ByKind returns a snapshot of the per-kind statement counts.
func (m *Metrics) ByKind() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.byKind))
	for k, v := range m.byKind {
		out[k] = v
	}
	return out
}

// AverageLatency returns the average statement latency in microseconds.
func (m *Metrics) AverageLatency() float64 {
	count := m.LatencyCount.Load()
	if count == 0 {
		return 0
	}
	return float64(m.LatencySum.Load()) / float64(count)
}

// StorageGauges are engine figures sampled when the metrics are written.
type StorageGauges struct {
	LiveKeys  int
	LogBytes  int64
	LiveBytes int64
	WALBytes  int64
}

// WriteText writes the metrics in Prometheus text format. A nil storage
// skips the storage gauges.
func (m *Metrics) WriteText(w io.Writer, storage *StorageGauges) {
	fmt.Fprintf(w, "# HELP logdb_statements_total Statements executed\n")
	fmt.Fprintf(w, "# TYPE logdb_statements_total counter\n")
	fmt.Fprintf(w, "logdb_statements_total %d\n", m.StatementsTotal.Load())

	byKind := m.ByKind()
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	fmt.Fprintf(w, "# HELP logdb_statements_by_kind_total Statements by kind\n")
	fmt.Fprintf(w, "# TYPE logdb_statements_by_kind_total counter\n")
	for _, k := range kinds {
		fmt.Fprintf(w, "logdb_statements_by_kind_total{kind=%q} %d\n", k, byKind[k])
	}

	fmt.Fprintf(w, "# HELP logdb_statements_failed_total Failed statements\n")
	fmt.Fprintf(w, "# TYPE logdb_statements_failed_total counter\n")
	fmt.Fprintf(w, "logdb_statements_failed_total %d\n", m.StatementsFailed.Load())

	fmt.Fprintf(w, "# HELP logdb_statement_latency_avg_microseconds Average statement latency\n")
	fmt.Fprintf(w, "# TYPE logdb_statement_latency_avg_microseconds gauge\n")
	fmt.Fprintf(w, "logdb_statement_latency_avg_microseconds %.2f\n", m.AverageLatency())

	fmt.Fprintf(w, "# HELP logdb_transactions_committed_total Committed transactions\n")
	fmt.Fprintf(w, "# TYPE logdb_transactions_committed_total counter\n")
	fmt.Fprintf(w, "logdb_transactions_committed_total %d\n", m.TransactionsCommitted.Load())

	fmt.Fprintf(w, "# HELP logdb_transactions_rolled_back_total Rolled back transactions\n")
	fmt.Fprintf(w, "# TYPE logdb_transactions_rolled_back_total counter\n")
	fmt.Fprintf(w, "logdb_transactions_rolled_back_total %d\n", m.TransactionsRolledBack.Load())

	if storage == nil {
		return
	}

	fmt.Fprintf(w, "# HELP logdb_live_keys Live keys in the index\n")
	fmt.Fprintf(w, "# TYPE logdb_live_keys gauge\n")
	fmt.Fprintf(w, "logdb_live_keys %d\n", storage.LiveKeys)

	fmt.Fprintf(w, "# HELP logdb_log_size_bytes Size of the record log\n")
	fmt.Fprintf(w, "# TYPE logdb_log_size_bytes gauge\n")
	fmt.Fprintf(w, "logdb_log_size_bytes %d\n", storage.LogBytes)

	fmt.Fprintf(w, "# HELP logdb_live_bytes Bytes held by live records\n")
	fmt.Fprintf(w, "# TYPE logdb_live_bytes gauge\n")
	fmt.Fprintf(w, "logdb_live_bytes %d\n", storage.LiveBytes)

	fmt.Fprintf(w, "# HELP logdb_wal_size_bytes WAL size\n")
	fmt.Fprintf(w, "# TYPE logdb_wal_size_bytes gauge\n")
	fmt.Fprintf(w, "logdb_wal_size_bytes %d\n", storage.WALBytes)
}
