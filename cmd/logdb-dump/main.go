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
Package main is the entry point for the logdb dump utility.

logdb-dump prints the records of a database file and its write-ahead log in
write order. Files are opened read-only and never modified, so the tool is
safe to run against a database that failed to open.

Usage:

	logdb-dump -db <path> [options]

Options:

	-db <path>          Database file (required)
	-o <file>           Output file path (default: stdout)
	-json               One JSON object per record
	-values             Include record values
	-verify             Only check the files; exit 1 on corruption
	-passphrase <pass>  Decrypt values of an encrypted database
	-P                  Prompt for the passphrase
	-z                  Compress output with gzip

Environment Variables:

	LOGDB_ENCRYPTION_PASSPHRASE  Encryption passphrase

Examples:

	logdb-dump -db data.ldb
	logdb-dump -db data.ldb -verify
	logdb-dump -db data.ldb -json -values -z -o dump.json.gz
*/
package main

import (
	"compress/gzip"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/term"

	"logdb/internal/config"
	lerrors "logdb/internal/errors"
	"logdb/internal/storage"
)

// Version information
const Version = "0.3.0"

var (
	dbPath      = flag.String("db", "", "Database file (required)")
	outputFile  = flag.String("o", "", "Output file path (default: stdout)")
	jsonOutput  = flag.Bool("json", false, "One JSON object per record")
	showValues  = flag.Bool("values", false, "Include record values")
	verifyOnly  = flag.Bool("verify", false, "Only check the files; exit 1 on corruption")
	passphrase  = flag.String("passphrase", "", "Decrypt values of an encrypted database")
	promptPass  = flag.Bool("P", false, "Prompt for the passphrase")
	compress    = flag.Bool("z", false, "Compress output with gzip")
	showVersion = flag.Bool("version", false, "Show version information")
)

// dumpOptions controls one dump run.
type dumpOptions struct {
	JSON    bool
	Values  bool
	Verify  bool
	Decrypt *storage.Encryptor
}

// fileSummary describes how the scan of one file ended.
type fileSummary struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	ValidEnd int64  `json:"valid_end"`
	State    string `json:"state"`
	Reason   string `json:"reason,omitempty"`
}

// summary is the result of a dump.
type summary struct {
	Records int         `json:"records"`
	Puts    int         `json:"puts"`
	Deletes int         `json:"deletes"`
	Log     fileSummary `json:"log"`

	Frames    int          `json:"wal_frames"`
	Committed int          `json:"wal_committed"`
	WAL       *fileSummary `json:"wal,omitempty"`
}

// Corrupt reports whether either file holds damaged data before its end.
func (s *summary) Corrupt() bool {
	if s.Log.State == storage.ScanCorrupt.String() {
		return true
	}
	return s.WAL != nil && s.WAL.State == storage.ScanCorrupt.String()
}

// recordLine is the JSON form of one record.
type recordLine struct {
	File   string `json:"file"`
	Offset int64  `json:"offset"`
	Seq    uint32 `json:"seq,omitempty"`
	Kind   string `json:"kind"`
	Key    string `json:"key,omitempty"`
	Size   int    `json:"value_size,omitempty"`
	Value  string `json:"value,omitempty"`
	Count  uint32 `json:"count,omitempty"`
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("logdb-dump version %s\n", Version)
		return
	}
	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "Error: database file (-db) is required")
		fmt.Fprintln(os.Stderr, "Usage: logdb-dump -db <path> [options]")
		os.Exit(1)
	}
	os.Exit(run())
}

// run performs the dump and returns the process exit code. Output files
// are closed before it returns.
func run() int {
	opts := dumpOptions{JSON: *jsonOutput, Values: *showValues, Verify: *verifyOnly}

	pass := *passphrase
	if pass == "" {
		pass = os.Getenv(config.EnvEncryptionPassphrase)
	}
	if pass == "" && *promptPass {
		p, err := readPassphrase()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		pass = p
	}
	if pass != "" {
		enc, err := storage.NewEncryptor(storage.EncryptionConfig{Enabled: true, Passphrase: pass})
		if err != nil {
			fmt.Fprintln(os.Stderr, lerrors.FormatError(err))
			return 1
		}
		opts.Decrypt = enc
	}

	var out io.Writer = os.Stdout
	if *outputFile != "" {
		f, err := os.Create(*outputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer f.Close()
		out = f
	}
	if *compress {
		gz := gzip.NewWriter(out)
		defer gz.Close()
		out = gz
	}

	sum, err := dump(out, *dbPath, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, lerrors.FormatError(err))
		return 1
	}
	printSummary(os.Stderr, sum)
	if sum.Corrupt() {
		return 1
	}
	return 0
}

func readPassphrase() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Encryption passphrase: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// dump walks the log at path and then its WAL, writing every record to w
// unless opts.Verify is set.
func dump(w io.Writer, path string, opts dumpOptions) (*summary, error) {
	sum := &summary{}

	logFile, err := os.Open(path)
	if err != nil {
		return nil, lerrors.IOError("open log", err)
	}
	defer logFile.Close()
	info, err := logFile.Stat()
	if err != nil {
		return nil, lerrors.IOError("stat log", err)
	}

	sc := storage.NewScanner(logFile, info.Size())
	for sc.Next() {
		rec := sc.Record()
		sum.Records++
		if rec.Op == storage.OpDelete {
			sum.Deletes++
		} else {
			sum.Puts++
		}
		if !opts.Verify {
			if err := writeRecord(w, recordLine{File: "log", Offset: sc.Offset()}, rec, opts); err != nil {
				return nil, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sum.Log = fileSummary{
		Path:     path,
		Size:     info.Size(),
		ValidEnd: sc.ValidEnd(),
		State:    sc.State().String(),
	}
	if reason := sc.StopReason(); reason != nil {
		sum.Log.Reason = reason.Error()
	}

	walPath := path + storage.WALSuffix
	walFile, err := os.Open(walPath)
	if os.IsNotExist(err) {
		return sum, nil
	}
	if err != nil {
		return nil, lerrors.IOError("open WAL", err)
	}
	defer walFile.Close()
	walInfo, err := walFile.Stat()
	if err != nil {
		return nil, lerrors.IOError("stat WAL", err)
	}

	frames, state, err := storage.ScanFrames(walFile, walInfo.Size())
	if err != nil {
		return nil, err
	}
	var end int64
	for _, f := range frames {
		sum.Frames++
		if f.Kind == storage.FrameCommit {
			sum.Committed++
		}
		end = f.Offset + frameSize(f)
		if opts.Verify {
			continue
		}
		line := recordLine{File: "wal", Offset: f.Offset, Seq: f.Seq}
		if f.Kind == storage.FrameRecord {
			err = writeRecord(w, line, f.Record, opts)
		} else {
			line.Kind = f.Kind.String()
			line.Count = f.Count
			err = writeLine(w, line, opts)
		}
		if err != nil {
			return nil, err
		}
	}
	sum.WAL = &fileSummary{Path: walPath, Size: walInfo.Size(), ValidEnd: end, State: state.String()}
	return sum, nil
}

// frameSize returns the encoded size of a decoded frame.
func frameSize(f storage.Frame) int64 {
	body := int64(0)
	switch f.Kind {
	case storage.FrameRecord:
		body = f.Record.EncodedSize()
	case storage.FrameCommit:
		body = 4
	}
	return storage.WALFrameHeaderSize + 1 + body + 4
}

func writeRecord(w io.Writer, line recordLine, rec *storage.Record, opts dumpOptions) error {
	line.Key = string(rec.Key)
	if rec.Op == storage.OpDelete {
		line.Kind = "delete"
	} else {
		line.Kind = "put"
		line.Size = len(rec.Value)
		if opts.Values {
			line.Value = renderValue(rec, opts.Decrypt)
		}
	}
	return writeLine(w, line, opts)
}

// renderValue shows a value as text when it is UTF-8 and as hex otherwise.
// With an encryptor, sealed values are opened first.
func renderValue(rec *storage.Record, enc *storage.Encryptor) string {
	value := rec.Value
	if enc != nil {
		plain, err := enc.Open(rec.Key, value)
		if err != nil {
			return "<decrypt failed>"
		}
		value = plain
	}
	if utf8.Valid(value) {
		return string(value)
	}
	return fmt.Sprintf("%x", value)
}

func writeLine(w io.Writer, line recordLine, opts dumpOptions) error {
	if opts.JSON {
		data, err := json.Marshal(line)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	var err error
	switch line.Kind {
	case "put":
		_, err = fmt.Fprintf(w, "%-4s %10d  PUT     %s (%d bytes)", line.File, line.Offset, line.Key, line.Size)
		if err == nil && line.Value != "" {
			_, err = fmt.Fprintf(w, " = %s", line.Value)
		}
	case "delete":
		_, err = fmt.Fprintf(w, "%-4s %10d  DELETE  %s", line.File, line.Offset, line.Key)
	default:
		_, err = fmt.Fprintf(w, "%-4s %10d  %-7s seq=%d", line.File, line.Offset, line.Kind, line.Seq)
		if err == nil && line.Kind == storage.FrameCommit.String() {
			_, err = fmt.Fprintf(w, " records=%d", line.Count)
		}
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w)
	return err
}

func printSummary(w io.Writer, s *summary) {
	fmt.Fprintf(w, "log %s: %d records (%d puts, %d deletes), %d/%d bytes valid, %s\n",
		s.Log.Path, s.Records, s.Puts, s.Deletes, s.Log.ValidEnd, s.Log.Size, s.Log.State)
	if s.Log.Reason != "" {
		fmt.Fprintf(w, "  stopped: %s\n", s.Log.Reason)
	}
	if s.WAL != nil {
		fmt.Fprintf(w, "wal %s: %d frames, %d commits, %d/%d bytes valid, %s\n",
			s.WAL.Path, s.Frames, s.Committed, s.WAL.ValidEnd, s.WAL.Size, s.WAL.State)
	}
}
