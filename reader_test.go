// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tfrecord

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// appendFrame appends one record frame for payload to b.
func appendFrame(b, payload []byte) []byte {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint64(hdr[:lengthSize], uint64(len(payload)))
	binary.LittleEndian.PutUint32(hdr[lengthSize:], maskCRC(crc32c(hdr[:lengthSize])))
	b = append(b, hdr[:]...)
	b = append(b, payload...)

	var footer [crcSize]byte
	binary.LittleEndian.PutUint32(footer[:], maskCRC(crc32c(payload)))
	return append(b, footer[:]...)
}

// recordFile builds the byte image of a record file holding payloads.
func recordFile(payloads ...[]byte) []byte {
	var b []byte
	for _, p := range payloads {
		b = appendFrame(b, p)
	}
	return b
}

// writeRecordFile writes a record file with the given payloads under dir and
// returns its path.
func writeRecordFile(t *testing.T, dir, name string, payloads ...[]byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, recordFile(payloads...), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// compress runs b through a gzip or zlib compressor.
func compress(t *testing.T, compression Compression, b []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	var w io.WriteCloser
	switch compression {
	case GZIP:
		w = gzip.NewWriter(&buf)
	case ZLIB:
		w = zlib.NewWriter(&buf)
	default:
		t.Fatalf("compress: unsupported compression %d", compression)
	}
	if _, err := w.Write(b); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func newTestReader(t *testing.T, data []byte, compression Compression) *RecordReader {
	t.Helper()

	rr, err := NewRecordReaderSource(NewMemSource("test.tfrecords", data), compression)
	if err != nil {
		t.Fatalf("NewRecordReaderSource: %v", err)
	}
	return rr
}

func TestRecordReader_Next(t *testing.T) {
	t.Parallel()

	rr := newTestReader(t, recordFile([]byte("hello")), None)
	defer rr.Close()

	rec, err := rr.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if diff := cmp.Diff([]byte("hello"), rec); diff != "" {
		t.Errorf("Next (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(uint64(frameOverhead+5), rr.Offset()); diff != "" {
		t.Errorf("Offset (-want, +got):\n%s", diff)
	}

	if _, err := rr.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next: want io.EOF, got %v", err)
	}
}

func TestRecordReader_empty(t *testing.T) {
	t.Parallel()

	rr := newTestReader(t, nil, None)
	defer rr.Close()

	if _, err := rr.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next: want io.EOF, got %v", err)
	}

	meta, err := rr.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if diff := cmp.Diff(Metadata{}, meta); diff != "" {
		t.Errorf("Metadata (-want, +got):\n%s", diff)
	}
}

func TestRecordReader_Metadata(t *testing.T) {
	t.Parallel()

	rr := newTestReader(t, recordFile(make([]byte, 10), make([]byte, 20), make([]byte, 30)), None)
	defer rr.Close()

	meta, err := rr.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	want := Metadata{
		FileSize: 108,
		DataSize: 60,
		Entries:  3,
	}
	if diff := cmp.Diff(want, meta); diff != "" {
		t.Errorf("Metadata (-want, +got):\n%s", diff)
	}

	// Metadata does not disturb record iteration.
	if _, err := rr.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
}

func TestRecordReader_corruption(t *testing.T) {
	t.Parallel()

	valid := recordFile([]byte("hello"))

	testCases := []struct {
		name string
		data []byte
	}{
		{
			name: "truncated payload crc",
			data: valid[:len(valid)-2],
		},
		{
			name: "truncated header",
			data: valid[:6],
		},
		{
			name: "payload bit flip",
			data: func() []byte {
				b := bytes.Clone(valid)
				b[headerSize] ^= 0x01
				return b
			}(),
		},
		{
			name: "payload crc msb flip",
			data: func() []byte {
				b := bytes.Clone(valid)
				b[len(b)-1] ^= 0x80
				return b
			}(),
		},
		{
			name: "length crc flip",
			data: func() []byte {
				b := bytes.Clone(valid)
				b[lengthSize] ^= 0x01
				return b
			}(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rr := newTestReader(t, tc.data, None)
			defer rr.Close()

			_, err := rr.Next()
			if diff := cmp.Diff(ErrCorruption, err, cmpopts.EquateErrors()); diff != "" {
				t.Fatalf("Next (-want, +got):\n%s", diff)
			}

			// The error state is terminal.
			_, err = rr.Next()
			if diff := cmp.Diff(ErrCorruption, err, cmpopts.EquateErrors()); diff != "" {
				t.Errorf("Next after corruption (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestRecordReader_Metadata_trailingBytes(t *testing.T) {
	t.Parallel()

	data := append(recordFile([]byte("hello")), 0x00)
	rr := newTestReader(t, data, None)
	defer rr.Close()

	_, err := rr.Metadata()
	if diff := cmp.Diff(ErrCorruption, err, cmpopts.EquateErrors()); diff != "" {
		t.Errorf("Metadata (-want, +got):\n%s", diff)
	}
}

func TestRecordReader_NextAlloc(t *testing.T) {
	t.Parallel()

	rr := newTestReader(t, recordFile([]byte("hello"), []byte("world!")), None)
	defer rr.Close()

	var buf []byte
	alloc := func(size uint64) []byte {
		if uint64(cap(buf)) < size {
			buf = make([]byte, size)
		}
		return buf[:size]
	}

	rec, err := rr.NextAlloc(alloc)
	if err != nil {
		t.Fatalf("NextAlloc: %v", err)
	}
	if diff := cmp.Diff([]byte("hello"), rec); diff != "" {
		t.Errorf("NextAlloc (-want, +got):\n%s", diff)
	}

	rec, err = rr.NextAlloc(alloc)
	if err != nil {
		t.Fatalf("NextAlloc: %v", err)
	}
	if diff := cmp.Diff([]byte("world!"), rec); diff != "" {
		t.Errorf("NextAlloc (-want, +got):\n%s", diff)
	}
}

func TestRecordReader_compressed(t *testing.T) {
	t.Parallel()

	for _, compression := range []Compression{GZIP, ZLIB} {
		t.Run(compression.String(), func(t *testing.T) {
			t.Parallel()

			payloads := [][]byte{[]byte("hello"), []byte("world!"), make([]byte, 1000)}
			data := compress(t, compression, recordFile(payloads...))

			rr := newTestReader(t, data, compression)
			defer rr.Close()

			for _, want := range payloads {
				rec, err := rr.Next()
				if err != nil {
					t.Fatalf("Next: %v", err)
				}
				if diff := cmp.Diff(want, rec); diff != "" {
					t.Errorf("Next (-want, +got):\n%s", diff)
				}
			}
			if _, err := rr.Next(); !errors.Is(err, io.EOF) {
				t.Errorf("Next: want io.EOF, got %v", err)
			}
		})
	}
}

func TestRecordReader_Metadata_compressed(t *testing.T) {
	t.Parallel()

	data := compress(t, GZIP, recordFile(make([]byte, 10), make([]byte, 20)))
	rr := newTestReader(t, data, GZIP)
	defer rr.Close()

	meta, err := rr.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	want := Metadata{
		FileSize: 62,
		DataSize: 30,
		Entries:  2,
	}
	if diff := cmp.Diff(want, meta); diff != "" {
		t.Errorf("Metadata (-want, +got):\n%s", diff)
	}
}

func TestRecordReader_file(t *testing.T) {
	t.Parallel()

	path := writeRecordFile(t, t.TempDir(), "test.tfrecords", []byte("hello"))
	rr, err := NewRecordReader(path, None)
	if err != nil {
		t.Fatalf("NewRecordReader: %v", err)
	}
	defer rr.Close()

	rec, err := rr.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if diff := cmp.Diff([]byte("hello"), rec); diff != "" {
		t.Errorf("Next (-want, +got):\n%s", diff)
	}
}
