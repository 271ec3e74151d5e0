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
Log Store Implementation
========================

The LogStore is the durable half of the engine: a single append-only file
holding every Put and Delete ever applied, in apply order. Records are never
edited in place; a key is updated by appending a newer record for it.

File Layout:
============

	offset 0                                                        EOF
	┌──────────┬──────────┬──────────┬─────┬──────────┬─────────────┐
	│ Record 0 │ Record 1 │ Record 2 │ ... │ Record N │ (torn tail) │
	└──────────┴──────────┴──────────┴─────┴──────────┴─────────────┘

There is no file header: the first record starts at offset 0 and every
record is self-delimiting (see codec.go).

Durability:
===========

Append writes at end-of-file but does not fsync. Callers get a durability
guarantee only for appends that precede a successful Flush.

Crash Recovery Policy:
======================

A crash during Append can leave an incomplete record at the tail. Scanning
stops at the first record that cannot be decoded and classifies the stop:

  - ScanComplete: the data ended exactly on a record boundary
  - ScanTornTail: the bad record runs to EOF with no decodable record after
    it, or only zero bytes follow it; this is an uncommitted write and is
    dropped silently
  - ScanCorrupt:  the bad record is followed by more data; this is mid-file
    corruption and is never repaired automatically
*/
package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"

	lerrors "logdb/internal/errors"
)

// LogStore is an append-only file of records.
//
// Thread Safety: LogStore is not safe for concurrent use. The engine
// serializes all access behind its own mutex.
type LogStore struct {
	path string
	file *os.File
	size int64
}

// OpenLogStore opens or creates the log file at path.
// The parent directory is created if it does not exist.
func OpenLogStore(path string) (*LogStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, wrapPathError(err, dir, "create directory")
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, wrapPathError(err, path, "open log file")
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, wrapPathError(err, path, "stat log file")
	}

	return &LogStore{path: path, file: f, size: stat.Size()}, nil
}

// Path returns the file path of the log.
func (ls *LogStore) Path() string {
	return ls.path
}

// Size returns the logical size of the log in bytes.
func (ls *LogStore) Size() int64 {
	return ls.size
}

// Append serializes rec and writes it at the end of the log.
// It returns the offset at which the record starts.
//
// If the write fails part way, the file is cut back to its previous size so
// that a later append does not land after a half-written record.
func (ls *LogStore) Append(rec *Record) (int64, error) {
	buf, err := EncodeRecord(rec)
	if err != nil {
		return 0, err
	}

	off := ls.size
	if _, err := ls.file.WriteAt(buf, off); err != nil {
		ls.file.Truncate(off)
		return 0, lerrors.IOError("append record", err)
	}
	ls.size += int64(len(buf))
	return off, nil
}

// ReadAt decodes exactly one record starting at offset.
// It fails with a CorruptRecord error if the checksum does not match or
// the record extends past the end of the log.
func (ls *LogStore) ReadAt(offset int64) (*Record, error) {
	if offset < 0 || offset+RecordHeaderSize > ls.size {
		return nil, lerrors.CorruptRecord(offset, "offset beyond end of log").WithCause(ErrShortRecord)
	}

	header := make([]byte, RecordHeaderSize)
	if _, err := ls.file.ReadAt(header, offset); err != nil {
		return nil, lerrors.IOError("read record header", err)
	}
	h, err := DecodeHeader(header)
	if err != nil {
		return nil, lerrors.CorruptRecord(offset, "invalid header").WithCause(err)
	}
	if offset+h.RecordSize() > ls.size {
		return nil, lerrors.CorruptRecord(offset, "record extends past end of log").WithCause(ErrShortRecord)
	}

	buf := make([]byte, h.RecordSize())
	copy(buf, header)
	if _, err := ls.file.ReadAt(buf[RecordHeaderSize:], offset+RecordHeaderSize); err != nil {
		return nil, lerrors.IOError("read record body", err)
	}
	rec, err := DecodeRecord(buf)
	if err != nil {
		return nil, lerrors.CorruptRecord(offset, "decode failed").WithCause(err)
	}
	return rec, nil
}

// syncFile is replaced in tests.
var syncFile = (*os.File).Sync

// Flush forces all appended records to durable storage.
func (ls *LogStore) Flush() error {
	if err := syncFile(ls.file); err != nil {
		return lerrors.IOError("fsync log", err)
	}
	return nil
}

// TruncateTo discards everything after offset.
func (ls *LogStore) TruncateTo(offset int64) error {
	if offset < 0 || offset > ls.size {
		return lerrors.InvalidValue("offset", "truncate target outside the log")
	}
	if err := ls.file.Truncate(offset); err != nil {
		return lerrors.IOError("truncate log", err)
	}
	ls.size = offset
	return nil
}

// Close closes the underlying file without syncing it.
func (ls *LogStore) Close() error {
	return ls.file.Close()
}

// ============================================================================
// Scanning
// ============================================================================

// ScanState describes why a scan stopped.
type ScanState int

const (
	// ScanRunning means the scanner has not reached the end yet.
	ScanRunning ScanState = iota
	// ScanComplete means every byte of the log was a valid record.
	ScanComplete
	// ScanTornTail means the log ends with an incomplete or damaged write.
	ScanTornTail
	// ScanCorrupt means an invalid record is followed by more data.
	ScanCorrupt
)

// String returns a human-readable scan state.
func (s ScanState) String() string {
	switch s {
	case ScanRunning:
		return "running"
	case ScanComplete:
		return "complete"
	case ScanTornTail:
		return "torn-tail"
	case ScanCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Scanner lazily reads records from the start of a log, in write order.
//
// Usage:
//
//	sc := ls.Scanner()
//	for sc.Next() {
//	    fmt.Println(sc.Offset(), string(sc.Record().Key))
//	}
//	if err := sc.Err(); err != nil {
//	    // I/O failure
//	}
type Scanner struct {
	src    io.ReaderAt
	size   int64
	reader *bufio.Reader

	pos     int64
	offset  int64
	record  *Record
	state   ScanState
	stopErr error
	ioErr   error
	header  []byte
}

// Scanner returns a scanner over the records currently in the log.
func (ls *LogStore) Scanner() *Scanner {
	return newScanner(ls.file, ls.size)
}

// NewScanner returns a scanner over the first size bytes of src. It lets
// read-only tools walk a log file without opening a LogStore.
func NewScanner(src io.ReaderAt, size int64) *Scanner {
	return newScanner(src, size)
}

func newScanner(src io.ReaderAt, size int64) *Scanner {
	return &Scanner{
		src:    src,
		size:   size,
		reader: bufio.NewReaderSize(io.NewSectionReader(src, 0, size), 64*1024),
		header: make([]byte, RecordHeaderSize),
	}
}

// Next advances to the next record. It returns false when the scan stops,
// either at the end of the data, at a torn tail, at corruption or on an
// I/O error.
func (s *Scanner) Next() bool {
	if s.state != ScanRunning {
		return false
	}
	s.record = nil

	n, err := io.ReadFull(s.reader, s.header)
	if err == io.EOF {
		s.finish(ScanComplete, nil)
		return false
	}
	if err == io.ErrUnexpectedEOF {
		s.finish(ScanTornTail, lerrors.CorruptRecord(s.pos, "partial header").WithCause(ErrShortRecord))
		return false
	}
	if err != nil {
		s.ioErr = lerrors.IOError("scan log", err)
		s.state = ScanCorrupt
		return false
	}

	h, err := DecodeHeader(s.header[:n])
	if err != nil {
		s.stopAtBadRecord(lerrors.CorruptRecord(s.pos, "invalid header").WithCause(err), false)
		return false
	}

	size := h.RecordSize()
	if s.pos+size > s.size {
		cause := lerrors.CorruptRecord(s.pos, "record extends past end of log").WithCause(ErrShortRecord)
		if s.recordFollows(s.pos + RecordHeaderSize) {
			// The length field is damaged; valid records come after it.
			s.finish(ScanCorrupt, cause)
		} else {
			s.finish(ScanTornTail, cause)
		}
		return false
	}

	buf := make([]byte, size)
	copy(buf, s.header)
	if _, err := io.ReadFull(s.reader, buf[RecordHeaderSize:]); err != nil {
		s.ioErr = lerrors.IOError("scan log", err)
		s.state = ScanCorrupt
		return false
	}

	rec, err := DecodeRecord(buf)
	if err != nil {
		s.stopAtBadRecord(lerrors.CorruptRecord(s.pos, "decode failed").WithCause(err), s.pos+size == s.size)
		return false
	}

	s.offset = s.pos
	s.record = rec
	s.pos += size
	return true
}

// stopAtBadRecord ends the scan at an undecodable record. The record is a
// torn tail when it is the last thing in the file or only zeros follow it.
func (s *Scanner) stopAtBadRecord(cause error, atEOF bool) {
	if atEOF || s.zeroTail() {
		s.finish(ScanTornTail, cause)
		return
	}
	s.finish(ScanCorrupt, cause)
}

// zeroTail reports whether every byte from the current position to the end
// of the data is zero. Filesystems may extend a file with zeros when a crash
// interrupts a write.
func (s *Scanner) zeroTail() bool {
	buf := make([]byte, 32*1024)
	for off := s.pos; off < s.size; {
		n, err := s.src.ReadAt(buf, off)
		if n > 0 && !bytes.Equal(buf[:n], make([]byte, n)) {
			return false
		}
		off += int64(n)
		if err != nil {
			return errors.Is(err, io.EOF) && off >= s.size
		}
	}
	return true
}

// recordFollows reports whether a decodable record starts anywhere in
// [from, size).
func (s *Scanner) recordFollows(from int64) bool {
	magic := make([]byte, 4)
	binary.BigEndian.PutUint32(magic, RecordMagic)

	const chunk = 32 * 1024
	buf := make([]byte, chunk+len(magic)-1)
	for off := from; off+RecordHeaderSize <= s.size; off += chunk {
		n, err := s.src.ReadAt(buf, off)
		for i := 0; i < n; {
			j := bytes.Index(buf[i:n], magic)
			if j < 0 {
				break
			}
			if s.decodesAt(off + int64(i+j)) {
				return true
			}
			i += j + 1
		}
		if err != nil {
			return false
		}
	}
	return false
}

// decodesAt reports whether a complete, checksum-valid record starts at off.
func (s *Scanner) decodesAt(off int64) bool {
	header := make([]byte, RecordHeaderSize)
	if n, _ := s.src.ReadAt(header, off); n < len(header) {
		return false
	}
	h, err := DecodeHeader(header)
	if err != nil || off+h.RecordSize() > s.size {
		return false
	}
	buf := make([]byte, h.RecordSize())
	if n, _ := s.src.ReadAt(buf, off); n < len(buf) {
		return false
	}
	_, err = DecodeRecord(buf)
	return err == nil
}

func (s *Scanner) finish(state ScanState, cause error) {
	s.state = state
	s.stopErr = cause
}

// Offset returns the offset of the current record.
func (s *Scanner) Offset() int64 {
	return s.offset
}

// Record returns the current record.
func (s *Scanner) Record() *Record {
	return s.record
}

// ValidEnd returns the offset just past the last valid record read so far.
func (s *Scanner) ValidEnd() int64 {
	return s.pos
}

// State reports why the scan stopped.
func (s *Scanner) State() ScanState {
	return s.state
}

// StopReason returns the decode error that ended the scan, if any.
// It is nil for ScanComplete.
func (s *Scanner) StopReason() error {
	return s.stopErr
}

// Err returns the first I/O error encountered. Torn tails and corruption
// are not I/O errors; inspect State for those.
func (s *Scanner) Err() error {
	return s.ioErr
}
