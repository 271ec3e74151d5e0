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
Package sql contains value and column type definitions.

Column Types:
=============

  - INT, INTEGER: whole numbers
  - FLOAT:        64-bit floating-point numbers
  - TEXT, VARCHAR: strings

Runtime Values:
===============

A Value is NULL, a number or a string. Numbers are held as float64 whether
the column is INT or FLOAT; the column type only decides which literals are
accepted on INSERT and UPDATE.

Comparison Rules:
=================

  - Number vs number: numeric order
  - String vs string: the executor's collation
  - Number vs string: TypeMismatch, never a silent true or false
  - Anything vs NULL: the comparison is false
*/
package sql

import (
	"encoding/json"
	"math"
	"strconv"

	lerrors "logdb/internal/errors"
)

// ColumnType represents the declared type of a column.
type ColumnType string

// Column type constants.
const (
	TypeINT   ColumnType = "INT"
	TypeFLOAT ColumnType = "FLOAT"
	TypeTEXT  ColumnType = "TEXT"
)

// ParseColumnType maps a type keyword to its ColumnType.
func ParseColumnType(keyword string) (ColumnType, bool) {
	switch keyword {
	case "INT", "INTEGER":
		return TypeINT, true
	case "FLOAT":
		return TypeFLOAT, true
	case "TEXT", "VARCHAR":
		return TypeTEXT, true
	default:
		return "", false
	}
}

// ValueType tags the variant held by a Value.
type ValueType int

const (
	ValueNull ValueType = iota
	ValueNumber
	ValueString
)

// String returns the type name used in error messages.
func (t ValueType) String() string {
	switch t {
	case ValueNull:
		return "NULL"
	case ValueNumber:
		return "number"
	case ValueString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a runtime SQL value.
type Value struct {
	Type ValueType
	Num  float64
	Str  string
}

// Null is the NULL value.
var Null = Value{Type: ValueNull}

// Number returns a numeric Value.
func Number(f float64) Value {
	return Value{Type: ValueNumber, Num: f}
}

// String returns a string Value.
func String(s string) Value {
	return Value{Type: ValueString, Str: s}
}

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool {
	return v.Type == ValueNull
}

// String renders v as it appears in query output and row keys.
// Whole numbers print without a fractional part.
func (v Value) String() string {
	switch v.Type {
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueString:
		return v.Str
	default:
		return "NULL"
	}
}

// MarshalJSON encodes v as a JSON number, string or null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Type {
	case ValueNumber:
		return json.Marshal(v.Num)
	case ValueString:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON number, string or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Null
	case float64:
		*v = Number(x)
	case string:
		*v = String(x)
	default:
		return lerrors.InvalidValue("row value", "expected number, string or null")
	}
	return nil
}

// Coerce checks that v can be stored in a column of type t.
func Coerce(v Value, t ColumnType, column string) (Value, error) {
	if v.IsNull() {
		return v, nil
	}
	switch t {
	case TypeINT:
		if v.Type != ValueNumber {
			return v, lerrors.TypeMismatch(string(t), v.Type.String(), "column "+column)
		}
		if v.Num != math.Trunc(v.Num) {
			return v, lerrors.InvalidValue(column, "INT column requires a whole number")
		}
	case TypeFLOAT:
		if v.Type != ValueNumber {
			return v, lerrors.TypeMismatch(string(t), v.Type.String(), "column "+column)
		}
	case TypeTEXT:
		if v.Type != ValueString {
			return v, lerrors.TypeMismatch(string(t), v.Type.String(), "column "+column)
		}
	}
	if v.Type == ValueNumber && v.Num == 0 {
		// -0 and 0 are one value.
		v.Num = 0
	}
	return v, nil
}

// Row maps column names to values.
type Row map[string]Value

// QueryResult is the outcome of one statement.
type QueryResult struct {
	// Columns lists the output columns in order (SELECT only).
	Columns []string `json:"columns,omitempty"`

	// Rows holds the result rows (SELECT only).
	Rows []Row `json:"rows,omitempty"`

	// RowsAffected counts inserted, updated or deleted rows.
	RowsAffected int `json:"rows_affected"`

	// Message is a short status such as "INSERT 1" or "BEGIN".
	Message string `json:"message"`
}
