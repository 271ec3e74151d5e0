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

package sql

import (
	"errors"
	"testing"

	lerrors "logdb/internal/errors"
)

func TestBinaryCollator(t *testing.T) {
	c := BinaryCollator{}

	if c.Compare("ABC", "abc") >= 0 {
		t.Error("Expected ABC < abc in binary comparison")
	}
	if c.Compare("abc", "abc") != 0 {
		t.Error("Expected abc == abc")
	}
	if c.Equal("abc", "ABC") {
		t.Error("Expected abc != ABC in binary comparison")
	}
}

func TestNocaseCollator(t *testing.T) {
	c := NocaseCollator{}

	if c.Compare("ABC", "abc") != 0 {
		t.Error("Expected ABC == abc (case-insensitive)")
	}
	if c.Compare("abc", "ABD") >= 0 {
		t.Error("Expected abc < ABD (case-insensitive)")
	}
	if !c.Equal("hello", "HeLLo") {
		t.Error("Expected hello == HeLLo (case-insensitive)")
	}
}

func TestUnicodeCollator(t *testing.T) {
	c := NewUnicodeCollator("en")

	// Loose collation ignores case and accents at the primary level.
	if !c.Equal("cafe", "Café") {
		t.Error("Expected cafe == Café under loose unicode collation")
	}
	if c.Compare("apple", "Banana") >= 0 {
		t.Error("Expected apple < Banana under unicode collation")
	}

	if NewUnicodeCollator("").Locale() != "" {
		t.Error("Expected empty locale to be kept as given")
	}
}

func TestGetCollator(t *testing.T) {
	tests := []struct {
		collation Collation
		want      string
	}{
		{CollationDefault, "binary"},
		{CollationBinary, "binary"},
		{CollationNocase, "nocase"},
		{CollationUnicode, "unicode"},
	}

	for _, tt := range tests {
		var got string
		switch GetCollator(tt.collation, "en").(type) {
		case BinaryCollator:
			got = "binary"
		case NocaseCollator:
			got = "nocase"
		case *UnicodeCollator:
			got = "unicode"
		}
		if got != tt.want {
			t.Errorf("GetCollator(%s): expected %s, got %s", tt.collation, tt.want, got)
		}
	}
}

func TestParseCollation(t *testing.T) {
	if c, err := ParseCollation("NOCASE"); err != nil || c != CollationNocase {
		t.Errorf("Expected nocase, got %q, %v", c, err)
	}
	if c, err := ParseCollation(""); err != nil || c != CollationDefault {
		t.Errorf("Expected default for empty string, got %q, %v", c, err)
	}
	if _, err := ParseCollation("klingon"); !errors.Is(err, lerrors.ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue, got %v", err)
	}
}
