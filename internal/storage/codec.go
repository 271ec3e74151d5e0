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
Record Codec
============

A Record is one logical mutation of the store. Every record on disk is a
fixed 16-byte header followed by the key bytes and the value bytes:

	┌────────────┬─────────────┬───────────────┬────────┬──────────────┬─────────┬───────────┐
	│ Magic (4B) │ KeyLen (4B) │ ValueLen (4B) │ Op(1B) │ Checksum(3B) │ Key     │ Value     │
	└────────────┴─────────────┴───────────────┴────────┴──────────────┴─────────┴───────────┘

	- Magic: 0x4C4F4744 ("LOGD"), marks a record boundary
	- KeyLen, ValueLen: big-endian uint32
	- Op: 1 = Put, 2 = Delete
	- Checksum: low 24 bits of CRC-32 (IEEE) over header bytes 0..12, key and value

The lengths make the record boundary self-describing, so a reader never has
to guess where the next record starts. Decoding fails closed: a record whose
checksum does not match is never returned, not even partially.
*/
package storage

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	lerrors "logdb/internal/errors"
)

// Operation type constants for records.
const (
	// OpPut stores Value under Key.
	OpPut byte = 1

	// OpDelete removes Key. The value is always empty.
	OpDelete byte = 2
)

const (
	// RecordMagic identifies the start of a record. "LOGD" in ASCII.
	RecordMagic uint32 = 0x4C4F4744

	// RecordHeaderSize is the fixed size of a record header in bytes.
	RecordHeaderSize = 16

	// MaxKeyLen is the largest accepted key, in bytes.
	MaxKeyLen = 256

	// MaxValueLen is the largest accepted value, in bytes (1 MiB).
	MaxValueLen = 1 << 20

	checksumMask = 0x00FFFFFF
)

// Record is one serialized mutation.
type Record struct {
	Op    byte
	Key   []byte
	Value []byte
}

// Equal reports whether two records carry the same mutation.
func (r *Record) Equal(o *Record) bool {
	return r.Op == o.Op && bytes.Equal(r.Key, o.Key) && bytes.Equal(r.Value, o.Value)
}

// EncodedSize returns the number of bytes the record occupies on disk.
func (r *Record) EncodedSize() int64 {
	return int64(RecordHeaderSize + len(r.Key) + len(r.Value))
}

// RecordHeader is the decoded fixed-size prefix of a record.
type RecordHeader struct {
	Magic    uint32
	KeyLen   uint32
	ValueLen uint32
	Op       byte
	Checksum uint32
}

// RecordSize returns the full on-disk size described by the header.
func (h RecordHeader) RecordSize() int64 {
	return RecordHeaderSize + int64(h.KeyLen) + int64(h.ValueLen)
}

// validateRecord checks a record against the codec bounds before any I/O.
func validateRecord(rec *Record) error {
	if len(rec.Key) == 0 {
		return lerrors.InvalidValue("key", "must not be empty")
	}
	if len(rec.Key) > MaxKeyLen {
		return lerrors.KeyTooLarge(len(rec.Key), MaxKeyLen)
	}
	if len(rec.Value) > MaxValueLen {
		return lerrors.ValueTooLarge(len(rec.Value), MaxValueLen)
	}
	switch rec.Op {
	case OpPut:
	case OpDelete:
		if len(rec.Value) != 0 {
			return lerrors.InvalidValue("value", "delete records carry no value")
		}
	default:
		return lerrors.InvalidValue("op", "unknown operation tag")
	}
	return nil
}

// EncodeRecord serializes a record into its on-disk form.
// Keys and values outside the codec bounds are rejected, never truncated.
func EncodeRecord(rec *Record) ([]byte, error) {
	if err := validateRecord(rec); err != nil {
		return nil, err
	}

	buf := make([]byte, rec.EncodedSize())
	binary.BigEndian.PutUint32(buf[0:4], RecordMagic)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(rec.Key)))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(rec.Value)))
	buf[12] = rec.Op
	copy(buf[RecordHeaderSize:], rec.Key)
	copy(buf[RecordHeaderSize+len(rec.Key):], rec.Value)

	sum := recordChecksum(buf)
	buf[13] = byte(sum >> 16)
	buf[14] = byte(sum >> 8)
	buf[15] = byte(sum)
	return buf, nil
}

// DecodeHeader parses the fixed header at the start of buf.
// It checks the magic, the op tag and the length bounds, not the checksum.
func DecodeHeader(buf []byte) (RecordHeader, error) {
	if len(buf) < RecordHeaderSize {
		return RecordHeader{}, shortRecord()
	}
	h := RecordHeader{
		Magic:    binary.BigEndian.Uint32(buf[0:4]),
		KeyLen:   binary.BigEndian.Uint32(buf[4:8]),
		ValueLen: binary.BigEndian.Uint32(buf[8:12]),
		Op:       buf[12],
		Checksum: uint32(buf[13])<<16 | uint32(buf[14])<<8 | uint32(buf[15]),
	}
	if h.Magic != RecordMagic {
		return h, lerrors.CorruptRecord(0, "bad magic")
	}
	if h.Op != OpPut && h.Op != OpDelete {
		return h, lerrors.CorruptRecord(0, "unknown operation tag")
	}
	if h.KeyLen == 0 || h.KeyLen > MaxKeyLen {
		return h, lerrors.CorruptRecord(0, "key length out of bounds")
	}
	if h.ValueLen > MaxValueLen || (h.Op == OpDelete && h.ValueLen != 0) {
		return h, lerrors.CorruptRecord(0, "value length out of bounds")
	}
	return h, nil
}

// DecodeRecord parses exactly one record from the start of buf.
// It is the inverse of EncodeRecord. Trailing bytes after the record are ignored.
func DecodeRecord(buf []byte) (*Record, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	size := h.RecordSize()
	if int64(len(buf)) < size {
		return nil, shortRecord()
	}
	if got := recordChecksum(buf[:size]); got != h.Checksum {
		return nil, lerrors.ChecksumMismatch(h.Checksum, got)
	}

	keyEnd := RecordHeaderSize + int(h.KeyLen)
	rec := &Record{
		Op:    h.Op,
		Key:   append([]byte(nil), buf[RecordHeaderSize:keyEnd]...),
		Value: append([]byte{}, buf[keyEnd:size]...),
	}
	return rec, nil
}

// recordChecksum computes the 24-bit checksum over an encoded record,
// skipping the checksum field itself.
func recordChecksum(buf []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write(buf[:13])
	h.Write(buf[RecordHeaderSize:])
	return h.Sum32() & checksumMask
}
