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
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	lerrors "logdb/internal/errors"
)

// Collation names a string comparison rule.
type Collation string

const (
	CollationDefault Collation = "default"
	CollationBinary  Collation = "binary"
	CollationNocase  Collation = "nocase"
	CollationUnicode Collation = "unicode"
)

// ParseCollation maps a configuration value to a Collation. The empty
// string selects the default.
func ParseCollation(s string) (Collation, error) {
	switch c := Collation(strings.ToLower(s)); c {
	case "":
		return CollationDefault, nil
	case CollationDefault, CollationBinary, CollationNocase, CollationUnicode:
		return c, nil
	default:
		return "", lerrors.InvalidValue("collation", s).
			WithHint("Use one of: default, binary, nocase, unicode")
	}
}

// Collator provides string comparison based on collation rules.
type Collator interface {
	// Compare returns -1 if a < b, 0 if a == b, 1 if a > b.
	Compare(a, b string) int

	// Equal reports whether a and b are equal under the collation.
	Equal(a, b string) bool
}

// BinaryCollator compares strings byte by byte. It is also the default.
type BinaryCollator struct{}

// Compare implements Collator.
func (BinaryCollator) Compare(a, b string) int {
	return strings.Compare(a, b)
}

// Equal implements Collator.
func (BinaryCollator) Equal(a, b string) bool {
	return a == b
}

// NocaseCollator compares strings ignoring case.
type NocaseCollator struct{}

// Compare implements Collator.
func (NocaseCollator) Compare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// Equal implements Collator.
func (NocaseCollator) Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}

// UnicodeCollator uses Unicode collation with locale support.
type UnicodeCollator struct {
	collator *collate.Collator
	locale   string
}

// NewUnicodeCollator creates a collator for locale. Unknown or empty
// locales fall back to English.
func NewUnicodeCollator(locale string) *UnicodeCollator {
	tag := language.Make(locale)
	if tag == language.Und {
		tag = language.English
	}
	return &UnicodeCollator{
		collator: collate.New(tag, collate.Loose),
		locale:   locale,
	}
}

// Compare implements Collator.
func (c *UnicodeCollator) Compare(a, b string) int {
	return c.collator.CompareString(a, b)
}

// Equal implements Collator.
func (c *UnicodeCollator) Equal(a, b string) bool {
	return c.collator.CompareString(a, b) == 0
}

// Locale returns the locale the collator was created with.
func (c *UnicodeCollator) Locale() string {
	return c.locale
}

// GetCollator returns a Collator for the given collation and locale.
func GetCollator(collation Collation, locale string) Collator {
	switch collation {
	case CollationNocase:
		return NocaseCollator{}
	case CollationUnicode:
		return NewUnicodeCollator(locale)
	default:
		return BinaryCollator{}
	}
}
