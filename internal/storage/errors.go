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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	lerrors "logdb/internal/errors"
)

var (
	// ErrNotFound is returned when a requested key does not exist in the store.
	ErrNotFound = errors.New("key not found")

	// ErrShortRecord marks a record that extends past the end of the data.
	// A short record at the tail of the log is a torn write.
	ErrShortRecord = errors.New("record extends past end of data")
)

func shortRecord() error {
	return lerrors.CorruptRecord(0, "truncated").WithCause(ErrShortRecord)
}

// wrapPathError wraps a path-related error with helpful context.
// For permission errors, it provides guidance on how to fix the issue.
func wrapPathError(err error, path string, operation string) error {
	e := lerrors.IOError(fmt.Sprintf("failed to %s '%s'", operation, path), err)
	if errors.Is(err, os.ErrPermission) {
		e.WithHint(fmt.Sprintf("Use a writable path, or fix ownership of %s", filepath.Dir(path)))
	}
	return e
}
