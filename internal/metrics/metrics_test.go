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

package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestRecordStatement(t *testing.T) {
	m := New()
	m.RecordStatement("SELECT", 10*time.Microsecond)
	m.RecordStatement("SELECT", 30*time.Microsecond)
	m.RecordStatement("COMMIT", 20*time.Microsecond)
	m.RecordError()

	if got := m.StatementsTotal.Load(); got != 3 {
		t.Errorf("Expected 3 statements, got %d", got)
	}
	if got := m.ByKind()["SELECT"]; got != 2 {
		t.Errorf("Expected 2 SELECT, got %d", got)
	}
	if got := m.TransactionsCommitted.Load(); got != 1 {
		t.Errorf("Expected 1 commit, got %d", got)
	}
	if got := m.AverageLatency(); got != 20 {
		t.Errorf("Expected average latency 20, got %.2f", got)
	}
	if got := m.StatementsFailed.Load(); got != 1 {
		t.Errorf("Expected 1 failure, got %d", got)
	}
}

func TestAverageLatencyEmpty(t *testing.T) {
	if got := New().AverageLatency(); got != 0 {
		t.Errorf("Expected 0, got %.2f", got)
	}
}

func TestWriteText(t *testing.T) {
	m := New()
	m.RecordStatement("INSERT", time.Millisecond)

	var buf bytes.Buffer
	m.WriteText(&buf, &StorageGauges{LiveKeys: 4, LogBytes: 100})
	out := buf.String()

	for _, want := range []string{
		"logdb_statements_total 1\n",
		"logdb_statements_by_kind_total{kind=\"INSERT\"} 1\n",
		"logdb_live_keys 4\n",
		"logdb_log_size_bytes 100\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}

	buf.Reset()
	m.WriteText(&buf, nil)
	if strings.Contains(buf.String(), "logdb_live_keys") {
		t.Error("Expected no storage gauges without storage")
	}
}
