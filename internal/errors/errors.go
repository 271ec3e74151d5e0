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
Package errors provides structured error handling for logdb.

Every failure surfaced by the storage engine or the query layer is a
*DBError carrying:
  - a numeric code for programmatic handling
  - a category (SYNTAX, EXECUTION, STORAGE, VALIDATION, TRANSACTION)
  - a user-facing message, with optional detail and hint
  - the byte position in the statement for lexer and parser errors
  - the wrapped root cause, if any

Error Categories:
  - SyntaxError: lexer and parser failures
  - ExecutionError: runtime failures during query evaluation
  - StorageError: I/O failures and on-disk corruption
  - ValidationError: inputs rejected before any I/O
  - TransactionError: misuse of the transaction state machine

Matching:

Errors compare by code, so callers use the exported sentinels:

	if errors.Is(err, lerrors.ErrKeyTooLarge) {
	    // reject the request
	}
*/
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error identifier.
type ErrorCode int

const (
	// Syntax errors (1000-1999)
	ErrCodeSyntax ErrorCode = 1000
	ErrCodeLex    ErrorCode = 1001
	ErrCodeParse  ErrorCode = 1002

	// Execution errors (2000-2999)
	ErrCodeExecution      ErrorCode = 2000
	ErrCodeTableNotFound  ErrorCode = 2001
	ErrCodeColumnNotFound ErrorCode = 2002
	ErrCodeTypeMismatch   ErrorCode = 2003
	ErrCodeTableExists    ErrorCode = 2004
	ErrCodeDuplicateKey   ErrorCode = 2005

	// Storage errors (5000-5999)
	ErrCodeStorage          ErrorCode = 5000
	ErrCodeCorruptRecord    ErrorCode = 5001
	ErrCodeChecksumMismatch ErrorCode = 5002
	ErrCodeIOError          ErrorCode = 5003
	ErrCodeCorruptStore     ErrorCode = 5004
	ErrCodeStoreClosed      ErrorCode = 5005

	// Validation errors (6000-6999)
	ErrCodeValidation    ErrorCode = 6000
	ErrCodeKeyTooLarge   ErrorCode = 6001
	ErrCodeValueTooLarge ErrorCode = 6002
	ErrCodeInvalidValue  ErrorCode = 6003

	// Transaction errors (8000-8999)
	ErrCodeTransaction     ErrorCode = 8000
	ErrCodeTxNotActive     ErrorCode = 8001
	ErrCodeTxAlreadyActive ErrorCode = 8002
)

// Category represents the error category.
type Category string

const (
	CategorySyntax      Category = "SYNTAX"
	CategoryExecution   Category = "EXECUTION"
	CategoryStorage     Category = "STORAGE"
	CategoryValidation  Category = "VALIDATION"
	CategoryTransaction Category = "TRANSACTION"
)

// NoPosition marks errors that are not tied to a statement offset.
const NoPosition = -1

// DBError represents a structured error in logdb.
type DBError struct {
	Code     ErrorCode
	Category Category
	Message  string
	Detail   string
	Hint     string
	Position int
	Cause    error
}

// Error implements the error interface.
func (e *DBError) Error() string {
	msg := fmt.Sprintf("ERROR %d (%s): %s", e.Code, e.Category, e.Message)
	if e.Detail != "" {
		msg += " - " + e.Detail
	}
	if e.Position != NoPosition {
		msg += fmt.Sprintf(" at position %d", e.Position)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DBError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DBError with the same code.
// ErrChecksumMismatch also matches ErrCorruptRecord.
func (e *DBError) Is(target error) bool {
	t, ok := target.(*DBError)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Code == ErrCodeCorruptRecord && e.Code == ErrCodeChecksumMismatch
}

// UserMessage returns a user-friendly error message.
func (e *DBError) UserMessage() string {
	msg := "ERROR: " + e.Message
	if e.Detail != "" {
		msg += fmt.Sprintf(" (%s)", e.Detail)
	}
	if e.Position != NoPosition {
		msg += fmt.Sprintf(" at position %d", e.Position)
	}
	if e.Hint != "" {
		msg += "\nHINT: " + e.Hint
	}
	return msg
}

// WithDetail adds detail to the error.
func (e *DBError) WithDetail(detail string) *DBError {
	e.Detail = detail
	return e
}

// WithHint adds a hint to the error.
func (e *DBError) WithHint(hint string) *DBError {
	e.Hint = hint
	return e
}

// WithCause adds a cause to the error.
func (e *DBError) WithCause(cause error) *DBError {
	e.Cause = cause
	return e
}

func newError(code ErrorCode, cat Category, msg string) *DBError {
	return &DBError{Code: code, Category: cat, Message: msg, Position: NoPosition}
}

// Sentinels for errors.Is. They are never returned directly.
var (
	ErrLex              = newError(ErrCodeLex, CategorySyntax, "lex error")
	ErrParse            = newError(ErrCodeParse, CategorySyntax, "parse error")
	ErrTypeMismatch     = newError(ErrCodeTypeMismatch, CategoryExecution, "type mismatch")
	ErrTableNotFound    = newError(ErrCodeTableNotFound, CategoryExecution, "table not found")
	ErrTableExists      = newError(ErrCodeTableExists, CategoryExecution, "table exists")
	ErrColumnNotFound   = newError(ErrCodeColumnNotFound, CategoryExecution, "column not found")
	ErrDuplicateKey     = newError(ErrCodeDuplicateKey, CategoryExecution, "duplicate key")
	ErrIO               = newError(ErrCodeIOError, CategoryStorage, "I/O error")
	ErrCorruptRecord    = newError(ErrCodeCorruptRecord, CategoryStorage, "corrupt record")
	ErrChecksumMismatch = newError(ErrCodeChecksumMismatch, CategoryStorage, "checksum mismatch")
	ErrCorruptStore     = newError(ErrCodeCorruptStore, CategoryStorage, "corrupt store")
	ErrStoreClosed      = newError(ErrCodeStoreClosed, CategoryStorage, "store closed")
	ErrKeyTooLarge      = newError(ErrCodeKeyTooLarge, CategoryValidation, "key too large")
	ErrValueTooLarge    = newError(ErrCodeValueTooLarge, CategoryValidation, "value too large")
	ErrInvalidValue     = newError(ErrCodeInvalidValue, CategoryValidation, "invalid value")
	ErrTxAlreadyActive  = newError(ErrCodeTxAlreadyActive, CategoryTransaction, "transaction already active")
	ErrNoActiveTx       = newError(ErrCodeTxNotActive, CategoryTransaction, "no active transaction")
)

// ============================================================================
// Syntax Error Constructors
// ============================================================================

// LexError creates an error for an unrecognized character or token.
func LexError(position int, reason string) *DBError {
	e := newError(ErrCodeLex, CategorySyntax, reason)
	e.Position = position
	return e
}

// UnclosedString creates an error for a string literal missing its closing quote.
func UnclosedString(position int) *DBError {
	e := newError(ErrCodeLex, CategorySyntax, "unterminated string literal")
	e.Position = position
	e.Hint = "Close the string with the same quote character it was opened with"
	return e
}

// ParseError creates an error for a grammar mismatch.
func ParseError(expected, found string, position int) *DBError {
	e := newError(ErrCodeParse, CategorySyntax,
		fmt.Sprintf("expected %s, found %q", expected, found))
	e.Position = position
	return e
}

// ============================================================================
// Execution Error Constructors
// ============================================================================

// TableNotFound creates an error for missing tables.
func TableNotFound(table string) *DBError {
	return newError(ErrCodeTableNotFound, CategoryExecution, "table not found: "+table).
		WithHint("Create it first with CREATE TABLE " + table + " (...)")
}

// TableExists creates an error for duplicate CREATE TABLE statements.
func TableExists(table string) *DBError {
	return newError(ErrCodeTableExists, CategoryExecution, "table already exists: "+table)
}

// ColumnNotFound creates an error for missing columns.
func ColumnNotFound(column, table string) *DBError {
	return newError(ErrCodeColumnNotFound, CategoryExecution,
		fmt.Sprintf("column '%s' not found in table '%s'", column, table))
}

// TypeMismatch creates an error for comparisons or assignments across types.
func TypeMismatch(left, right, context string) *DBError {
	return newError(ErrCodeTypeMismatch, CategoryExecution,
		fmt.Sprintf("type mismatch in %s: %s vs %s", context, left, right))
}

// DuplicateKey creates an error for an INSERT whose primary key already exists.
func DuplicateKey(key, table string) *DBError {
	return newError(ErrCodeDuplicateKey, CategoryExecution,
		fmt.Sprintf("duplicate primary key in table '%s'", table)).WithDetail("Key: " + key)
}

// NewExecutionError creates a generic execution error.
func NewExecutionError(message string) *DBError {
	return newError(ErrCodeExecution, CategoryExecution, message)
}

// ============================================================================
// Storage Error Constructors
// ============================================================================

// IOError wraps an underlying filesystem failure.
func IOError(op string, cause error) *DBError {
	return newError(ErrCodeIOError, CategoryStorage, op).WithCause(cause)
}

// CorruptRecord creates an error for a record that fails framing checks.
func CorruptRecord(offset int64, detail string) *DBError {
	return newError(ErrCodeCorruptRecord, CategoryStorage,
		fmt.Sprintf("corrupt record at offset %d", offset)).WithDetail(detail)
}

// ChecksumMismatch creates an error for a record whose checksum does not match.
func ChecksumMismatch(want, got uint32) *DBError {
	return newError(ErrCodeChecksumMismatch, CategoryStorage, "checksum mismatch").
		WithDetail(fmt.Sprintf("stored %06x, computed %06x", want, got))
}

// CorruptStore creates an error for a log whose valid prefix cannot be established.
func CorruptStore(path string, offset int64) *DBError {
	return newError(ErrCodeCorruptStore, CategoryStorage,
		fmt.Sprintf("corrupt store %s: invalid record at offset %d is followed by more data", path, offset)).
		WithHint("Inspect the file with logdb-dump -verify; the engine does not repair mid-file corruption")
}

// StoreClosed creates an error for operations on a closed engine.
func StoreClosed() *DBError {
	return newError(ErrCodeStoreClosed, CategoryStorage, "store is closed")
}

// ============================================================================
// Validation Error Constructors
// ============================================================================

// KeyTooLarge creates an error for keys outside 1..max bytes.
func KeyTooLarge(size, max int) *DBError {
	return newError(ErrCodeKeyTooLarge, CategoryValidation,
		fmt.Sprintf("key length %d outside 1..%d", size, max))
}

// ValueTooLarge creates an error for values over the size limit.
func ValueTooLarge(size, max int) *DBError {
	return newError(ErrCodeValueTooLarge, CategoryValidation,
		fmt.Sprintf("value length %d exceeds %d", size, max))
}

// InvalidValue creates an error for malformed input.
func InvalidValue(field, reason string) *DBError {
	return newError(ErrCodeInvalidValue, CategoryValidation,
		fmt.Sprintf("invalid value for %s: %s", field, reason))
}

// ============================================================================
// Transaction Error Constructors
// ============================================================================

// TransactionAlreadyActive creates an error for BEGIN while a transaction is open.
func TransactionAlreadyActive() *DBError {
	return newError(ErrCodeTxAlreadyActive, CategoryTransaction, "transaction already active").
		WithHint("COMMIT or ROLLBACK the current transaction first")
}

// NoActiveTransaction creates an error for COMMIT/ROLLBACK outside a transaction.
func NoActiveTransaction() *DBError {
	return newError(ErrCodeTxNotActive, CategoryTransaction, "no active transaction").
		WithHint("Start a transaction with BEGIN")
}

// ============================================================================
// Helpers
// ============================================================================

// GetCode returns the error code of err, or 0 if err is not a DBError.
func GetCode(err error) ErrorCode {
	var e *DBError
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsSyntaxError returns true if err is a lexer or parser error.
func IsSyntaxError(err error) bool {
	var e *DBError
	return stderrors.As(err, &e) && e.Category == CategorySyntax
}

// IsStorageError returns true if err originated in the storage layer.
func IsStorageError(err error) bool {
	var e *DBError
	return stderrors.As(err, &e) && e.Category == CategoryStorage
}

// FormatError returns the user message for DBErrors and Error() otherwise.
func FormatError(err error) string {
	var e *DBError
	if stderrors.As(err, &e) {
		return e.UserMessage()
	}
	return "ERROR: " + err.Error()
}
