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
Write-Ahead Log (WAL) Implementation
=====================================

The WAL stages the writes of an explicit transaction in a separate file
(<path>.wal) so that a multi-key transaction reaches the log store either
completely or not at all.

Transaction Lifecycle:
======================

	Idle ──Begin──▶ Active ──Commit──▶ Committing ──▶ Committed ──▶ Idle
	                   │
	                   └──Rollback──▶ Aborting ──▶ Aborted ──▶ Idle

 1. Begin moves Idle to Active. Only one transaction may be active.
 2. Stage appends one record frame per write while Active.
 3. Commit writes a commit frame, fsyncs the WAL, hands every staged record
    to the Applier, flushes the log store and truncates the WAL.
 4. Rollback writes a rollback marker and truncates the WAL.

WAL Frame Format:
=================

	┌────────────┬──────────┬──────────┬───────────────────────────────────────┐
	│ Magic (4B) │ Seq (4B) │ Len (4B) │ Payload: Kind(1B) Body CRC(4B)        │
	└────────────┴──────────┴──────────┴───────────────────────────────────────┘

	- Magic: 0x57414C31 ("WAL1")
	- Seq:   transaction sequence number
	- Len:   payload length in bytes
	- Kind:  1 = record (body is an encoded Record)
	         2 = commit (body is the uint32 record count)
	         3 = rollback (empty body)
	- CRC:   CRC-32 (IEEE) over Seq, Len, Kind and Body

Recovery:
=========

At open, the frames are scanned in order. Records followed by a commit frame
for the same sequence whose count matches are re-applied; anything else is
discarded. The WAL is truncated afterwards. Re-applying appends the records to
the log a second time, which is harmless because the last write for a key
wins, so recovery may run any number of times.
*/
package storage

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	lerrors "logdb/internal/errors"
	"logdb/internal/logging"
)

// WAL frame constants.
const (
	// WALMagic identifies the start of a frame. "WAL1" in ASCII.
	WALMagic uint32 = 0x57414C31

	// WALFrameHeaderSize is Magic + Seq + Len.
	WALFrameHeaderSize = 12

	// WALSuffix is appended to the database path to name the WAL file.
	WALSuffix = ".wal"

	maxFramePayload = 1 + RecordHeaderSize + MaxKeyLen + MaxValueLen + 4
)

// FrameKind is the type tag of a WAL frame.
type FrameKind byte

const (
	FrameRecord   FrameKind = 1
	FrameCommit   FrameKind = 2
	FrameRollback FrameKind = 3
)

// String returns the frame kind name.
func (k FrameKind) String() string {
	switch k {
	case FrameRecord:
		return "record"
	case FrameCommit:
		return "commit"
	case FrameRollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// TxState is the state of the WAL's transaction state machine.
type TxState int

const (
	TxIdle TxState = iota
	TxActive
	TxCommitting
	TxCommitted
	TxAborting
	TxAborted
)

// String returns the state name.
func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxActive:
		return "active"
	case TxCommitting:
		return "committing"
	case TxCommitted:
		return "committed"
	case TxAborting:
		return "aborting"
	case TxAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Applier receives committed records. The engine implements it by appending
// to the log store and updating the index.
type Applier interface {
	Apply(rec *Record) error
	Flush() error
}

// Frame is one decoded WAL frame.
type Frame struct {
	Offset int64
	Seq    uint32
	Kind   FrameKind
	Record *Record // FrameRecord only
	Count  uint32  // FrameCommit only
}

// RecoveryResult summarizes a WAL recovery pass.
type RecoveryResult struct {
	Applied   int
	Discarded int
	TornTail  bool
}

// WAL stages transaction writes before they reach the log store.
//
// Thread Safety: WAL is not safe for concurrent use; the engine mutex
// serializes access.
type WAL struct {
	path   string
	file   *os.File
	size   int64
	seq    uint32
	state  TxState
	staged []*Record
	logger *logging.Logger

	// pending is set when a commit frame reached disk but applying it failed.
	// The records stay in the WAL for the next Recover.
	pending bool
}

// OpenWAL opens or creates the WAL file at path.
func OpenWAL(path string) (*WAL, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, wrapPathError(err, dir, "create directory")
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, wrapPathError(err, path, "open WAL file")
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, wrapPathError(err, path, "stat WAL file")
	}

	return &WAL{
		path:   path,
		file:   f,
		size:   stat.Size(),
		logger: logging.NewLogger("wal"),
	}, nil
}

// SetLogger replaces the WAL's logger.
func (w *WAL) SetLogger(l *logging.Logger) {
	if l != nil {
		w.logger = l
	}
}

// Path returns the WAL file path.
func (w *WAL) Path() string {
	return w.path
}

// Size returns the current WAL size in bytes.
func (w *WAL) Size() int64 {
	return w.size
}

// State returns the current transaction state.
func (w *WAL) State() TxState {
	return w.state
}

// Staged returns the records staged in the active transaction, in order.
func (w *WAL) Staged() []*Record {
	return w.staged
}

// Begin starts a transaction.
func (w *WAL) Begin() error {
	if w.state != TxIdle {
		return lerrors.TransactionAlreadyActive()
	}
	if w.pending {
		return lerrors.IOError("begin transaction", io.ErrUnexpectedEOF).
			WithHint("A previous commit did not finish applying; reopen the store to recover it")
	}
	if w.size > 0 {
		if err := w.truncate(); err != nil {
			return err
		}
	}

	w.seq++
	w.staged = nil
	w.state = TxActive
	w.logger.Debug("Transaction started", "seq", w.seq)
	return nil
}

// Stage appends a record frame for the active transaction.
// The frame is not synced until Commit.
func (w *WAL) Stage(rec *Record) error {
	if w.state != TxActive {
		return lerrors.NoActiveTransaction()
	}
	body, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	if err := w.writeFrame(FrameRecord, body); err != nil {
		return err
	}
	w.staged = append(w.staged, rec)
	return nil
}

// Commit makes the active transaction durable and applies it.
//
// Once the commit frame has been synced the transaction is committed even
// if applying fails: the frames stay in the WAL and the next Recover
// finishes the job.
func (w *WAL) Commit(apply Applier) error {
	if w.state != TxActive {
		return lerrors.NoActiveTransaction()
	}
	w.state = TxCommitting

	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, uint32(len(w.staged)))
	if err := w.writeFrame(FrameCommit, count); err != nil {
		w.abandon()
		return err
	}
	if err := w.sync(); err != nil {
		w.abandon()
		return err
	}

	for _, rec := range w.staged {
		if err := apply.Apply(rec); err != nil {
			w.fail()
			return err
		}
	}
	if err := apply.Flush(); err != nil {
		w.fail()
		return err
	}

	w.state = TxCommitted
	w.logger.Debug("Transaction committed", "seq", w.seq, "records", len(w.staged))
	w.staged = nil
	if err := w.truncate(); err != nil {
		w.state = TxIdle
		return err
	}
	w.state = TxIdle
	return nil
}

// Rollback discards the active transaction. The log store is not touched.
func (w *WAL) Rollback() error {
	if w.state != TxActive {
		return lerrors.NoActiveTransaction()
	}
	w.state = TxAborting

	markErr := w.writeFrame(FrameRollback, nil)
	w.state = TxAborted
	w.logger.Debug("Transaction rolled back", "seq", w.seq, "records", len(w.staged))
	w.staged = nil

	truncErr := w.truncate()
	w.state = TxIdle
	if markErr != nil {
		return markErr
	}
	return truncErr
}

// abandon drops an uncommitted transaction after a failed commit write.
func (w *WAL) abandon() {
	w.staged = nil
	w.truncate()
	w.state = TxIdle
}

// fail leaves a synced commit in the WAL for the next recovery.
func (w *WAL) fail() {
	w.staged = nil
	w.pending = true
	w.state = TxIdle
}

// Recover re-applies a committed transaction left in the WAL by a crash,
// discards anything else and truncates the file.
// It must run before any transaction is started.
func (w *WAL) Recover(apply Applier) (RecoveryResult, error) {
	var result RecoveryResult
	if w.state != TxIdle {
		return result, lerrors.TransactionAlreadyActive()
	}
	if w.size == 0 {
		w.pending = false
		return result, nil
	}

	frames, state, err := ScanFrames(w.file, w.size)
	if err != nil {
		return result, err
	}
	result.TornTail = state != ScanComplete

	var committed, pending []*Record
	var pendingSeq uint32
	for _, f := range frames {
		if f.Seq > w.seq {
			w.seq = f.Seq
		}
		if f.Seq != pendingSeq {
			result.Discarded += len(pending)
			pending = nil
			pendingSeq = f.Seq
		}
		switch f.Kind {
		case FrameRecord:
			pending = append(pending, f.Record)
		case FrameCommit:
			if int(f.Count) == len(pending) {
				committed = append(committed, pending...)
			} else {
				result.Discarded += len(pending)
			}
			pending = nil
		case FrameRollback:
			result.Discarded += len(pending)
			pending = nil
		}
	}
	result.Discarded += len(pending)

	for _, rec := range committed {
		if err := apply.Apply(rec); err != nil {
			return result, err
		}
		result.Applied++
	}
	if len(committed) > 0 {
		if err := apply.Flush(); err != nil {
			return result, err
		}
	}

	if err := w.truncate(); err != nil {
		return result, err
	}
	w.pending = false

	if result.Applied > 0 || result.Discarded > 0 || result.TornTail {
		w.logger.Info("WAL recovered",
			"applied", result.Applied,
			"discarded", result.Discarded,
			"torn_tail", result.TornTail)
	}
	return result, nil
}

// Close closes the WAL file. An active transaction is discarded.
func (w *WAL) Close() error {
	if w.state == TxActive {
		w.staged = nil
		w.truncate()
		w.state = TxIdle
	}
	return w.file.Close()
}

func (w *WAL) writeFrame(kind FrameKind, body []byte) error {
	buf := encodeFrame(w.seq, kind, body)
	if _, err := w.file.WriteAt(buf, w.size); err != nil {
		w.file.Truncate(w.size)
		return lerrors.IOError("write WAL frame", err)
	}
	w.size += int64(len(buf))
	return nil
}

func (w *WAL) sync() error {
	if err := w.file.Sync(); err != nil {
		return lerrors.IOError("fsync WAL", err)
	}
	return nil
}

func (w *WAL) truncate() error {
	if err := w.file.Truncate(0); err != nil {
		return lerrors.IOError("truncate WAL", err)
	}
	w.size = 0
	return w.sync()
}

// ============================================================================
// Frame Encoding
// ============================================================================

func encodeFrame(seq uint32, kind FrameKind, body []byte) []byte {
	payloadLen := 1 + len(body) + 4
	buf := make([]byte, WALFrameHeaderSize+payloadLen)
	binary.BigEndian.PutUint32(buf[0:4], WALMagic)
	binary.BigEndian.PutUint32(buf[4:8], seq)
	binary.BigEndian.PutUint32(buf[8:12], uint32(payloadLen))
	buf[12] = byte(kind)
	copy(buf[13:], body)
	binary.BigEndian.PutUint32(buf[len(buf)-4:], frameChecksum(buf[4:len(buf)-4]))
	return buf
}

// frameChecksum covers Seq, Len, Kind and Body.
func frameChecksum(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

func decodeFrame(buf []byte, offset int64) (Frame, error) {
	f := Frame{
		Offset: offset,
		Seq:    binary.BigEndian.Uint32(buf[4:8]),
		Kind:   FrameKind(buf[12]),
	}
	want := binary.BigEndian.Uint32(buf[len(buf)-4:])
	if got := frameChecksum(buf[4 : len(buf)-4]); got != want {
		return f, lerrors.ChecksumMismatch(want, got)
	}

	body := buf[13 : len(buf)-4]
	switch f.Kind {
	case FrameRecord:
		rec, err := DecodeRecord(body)
		if err != nil {
			return f, err
		}
		f.Record = rec
	case FrameCommit:
		if len(body) != 4 {
			return f, lerrors.CorruptRecord(offset, "commit frame body")
		}
		f.Count = binary.BigEndian.Uint32(body)
	case FrameRollback:
		if len(body) != 0 {
			return f, lerrors.CorruptRecord(offset, "rollback frame body")
		}
	default:
		return f, lerrors.CorruptRecord(offset, "unknown frame kind")
	}
	return f, nil
}

// ScanFrames decodes WAL frames from src until the first frame that is
// incomplete or fails its checksum. The returned state tells whether the
// data ended cleanly. Only I/O failures are returned as errors.
func ScanFrames(src io.ReaderAt, size int64) ([]Frame, ScanState, error) {
	r := bufio.NewReader(io.NewSectionReader(src, 0, size))
	header := make([]byte, WALFrameHeaderSize)
	var frames []Frame
	var pos int64

	for {
		_, err := io.ReadFull(r, header)
		if err == io.EOF {
			return frames, ScanComplete, nil
		}
		if err == io.ErrUnexpectedEOF {
			return frames, ScanTornTail, nil
		}
		if err != nil {
			return frames, ScanCorrupt, lerrors.IOError("scan WAL", err)
		}

		if binary.BigEndian.Uint32(header[0:4]) != WALMagic {
			return frames, ScanCorrupt, nil
		}
		payloadLen := binary.BigEndian.Uint32(header[8:12])
		if payloadLen < 5 || payloadLen > maxFramePayload {
			return frames, ScanCorrupt, nil
		}
		if pos+WALFrameHeaderSize+int64(payloadLen) > size {
			return frames, ScanTornTail, nil
		}

		buf := make([]byte, WALFrameHeaderSize+int(payloadLen))
		copy(buf, header)
		if _, err := io.ReadFull(r, buf[WALFrameHeaderSize:]); err != nil {
			return frames, ScanCorrupt, lerrors.IOError("scan WAL", err)
		}

		f, err := decodeFrame(buf, pos)
		if err != nil {
			if pos+int64(len(buf)) == size {
				return frames, ScanTornTail, nil
			}
			return frames, ScanCorrupt, nil
		}
		frames = append(frames, f)
		pos += int64(len(buf))
	}
}
