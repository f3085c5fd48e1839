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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Compression selects the transparent decompression applied to a record file.
type Compression int

const (
	// None reads the file as-is.
	None Compression = iota

	// GZIP decompresses a gzip stream (RFC 1952 framing).
	GZIP

	// ZLIB decompresses a zlib stream (RFC 1950 framing).
	ZLIB
)

// String returns the conventional name of the compression type.
func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case GZIP:
		return "gzip"
	case ZLIB:
		return "zlib"
	}
	return "unknown"
}

// Record frame layout:
//
//	length:  uint64 LE
//	crc32c_masked(length): uint32 LE
//	payload: length bytes
//	crc32c_masked(payload): uint32 LE
const (
	lengthSize = 8
	crcSize    = 4
	headerSize = lengthSize + crcSize

	// frameOverhead is the framing cost per record.
	frameOverhead = headerSize + crcSize
)

// Metadata describes a record file. It is computed lazily by
// [RecordReader.Metadata] and cached for the life of the reader.
type Metadata struct {
	// FileSize is the total file size in bytes.
	FileSize int64

	// DataSize is the sum of all payload lengths.
	DataSize int64

	// Entries is the number of records in the file.
	Entries int64
}

// Alloc returns a destination buffer for a record payload of the given
// length. The returned slice must have len == size.
type Alloc func(size uint64) []byte

// RecordReader frames records out of a [ByteSource], verifying the length
// and payload checksums of every record it returns.
//
// A RecordReader must not be copied. It owns its source; Close closes it. A
// corruption error leaves the reader in a terminal error state and all
// subsequent calls fail with the same error.
type RecordReader struct {
	src ByteSource

	// offset is the position of the next record frame.
	offset uint64

	// meta is the cached metadata, nil until computed.
	meta *Metadata

	// err latches the first corruption or I/O error.
	err error
}

// NewRecordReader opens the named file for record reading with the given
// compression.
func NewRecordReader(name string, compression Compression) (*RecordReader, error) {
	src, err := Open(name)
	if err != nil {
		return nil, err
	}
	r, err := NewRecordReaderSource(src, compression)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return r, nil
}

// NewRecordReaderSource returns a reader framing records out of src. The
// reader takes ownership of src. On error the caller retains ownership.
func NewRecordReaderSource(src ByteSource, compression Compression) (*RecordReader, error) {
	if compression != None {
		z, err := newZlibSource(src, compression)
		if err != nil {
			return nil, err
		}
		src = z
	}
	return &RecordReader{src: src}, nil
}

// Close closes the underlying source.
func (r *RecordReader) Close() error {
	return r.src.Close()
}

// Offset returns the position of the next record frame.
func (r *RecordReader) Offset() uint64 { return r.offset }

// readChecksummed reads len(dst) bytes plus the trailing 4-byte masked CRC
// at the current source position and verifies the checksum.
//
// A clean EOF before any byte is read is returned as io.EOF. A short read
// inside the block, a decompression failure or a checksum mismatch is
// corruption; any other read error from the source is ErrIO. offset is only
// used for error messages.
func (r *RecordReader) readChecksummed(offset uint64, dst []byte) error {
	readErr := func(err error) error {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrCorruption) {
			return fmt.Errorf("%w: unexpected EOF at offset %d: %s", ErrCorruption, offset, r.src.Name())
		}
		return fmt.Errorf("%w: reading at offset %d: %s: %w", ErrIO, offset, r.src.Name(), err)
	}

	n, err := io.ReadFull(r.src, dst)
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return io.EOF
		}
		return readErr(err)
	}

	var crcBuf [crcSize]byte
	if _, err := io.ReadFull(r.src, crcBuf[:]); err != nil {
		return readErr(err)
	}

	masked := binary.LittleEndian.Uint32(crcBuf[:])
	if unmaskCRC(masked) != crc32c(dst) {
		return fmt.Errorf("%w: CRC32C mismatch at offset %d: %s", ErrCorruption, offset, r.src.Name())
	}
	return nil
}

// readHeader reads and verifies a 12-byte record header at the current
// source position and returns the payload length.
func (r *RecordReader) readHeader(offset uint64) (uint64, error) {
	var hdr [lengthSize]byte
	if err := r.readChecksummed(offset, hdr[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(hdr[:]), nil
}

// ReadRecord reads the record frame at *offset, obtaining the payload buffer
// from alloc, and advances *offset past the frame. At a clean record
// boundary at end of file it returns io.EOF.
func (r *RecordReader) ReadRecord(offset *uint64, alloc Alloc) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}

	if _, err := r.src.Seek(int64(*offset), io.SeekStart); err != nil {
		return nil, r.fail(err)
	}

	length, err := r.readHeader(*offset)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, r.fail(err)
	}

	payload := alloc(length)
	if uint64(len(payload)) != length {
		return nil, r.fail(fmt.Errorf("%w: alloc returned %d bytes, want %d", errTFRecord, len(payload), length))
	}
	if err := r.readChecksummed(*offset+headerSize, payload); err != nil {
		if err == io.EOF {
			// The header was whole but the payload is missing entirely.
			err = fmt.Errorf("%w: unexpected EOF at offset %d: %s", ErrCorruption, *offset+headerSize, r.src.Name())
		}
		return nil, r.fail(err)
	}

	*offset += frameOverhead + length
	return payload, nil
}

// Next returns the next record payload in a freshly allocated buffer. It
// returns io.EOF at the end of the file.
func (r *RecordReader) Next() ([]byte, error) {
	return r.NextAlloc(func(size uint64) []byte {
		return make([]byte, size)
	})
}

// NextAlloc is like [RecordReader.Next] but obtains the payload buffer from
// alloc, allowing pooled allocation.
func (r *RecordReader) NextAlloc(alloc Alloc) ([]byte, error) {
	return r.ReadRecord(&r.offset, alloc)
}

// Metadata scans the file once, reading record headers and skipping
// payloads, and returns the file's metadata. The scan verifies that the
// file is an exact sequence of record frames; trailing bytes beyond the
// last record are corruption. The result is cached.
func (r *RecordReader) Metadata() (Metadata, error) {
	if r.meta != nil {
		return *r.meta, nil
	}
	if r.err != nil {
		return Metadata{}, r.err
	}

	if _, err := r.src.Seek(0, io.SeekStart); err != nil {
		return Metadata{}, r.fail(err)
	}

	var meta Metadata
	var offset uint64
	for {
		length, err := r.readHeader(offset)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Metadata{}, r.fail(err)
		}

		if _, err := r.src.Seek(int64(length)+crcSize, io.SeekCurrent); err != nil {
			return Metadata{}, r.fail(fmt.Errorf("%w: truncated record at offset %d: %s", ErrCorruption, offset, r.src.Name()))
		}
		offset += frameOverhead + length
		meta.DataSize += int64(length)
		meta.Entries++
	}

	meta.FileSize = meta.DataSize + frameOverhead*meta.Entries

	// Seeking past the end succeeds on files; the stat size is the authority
	// on whether the last record was whole.
	if size := r.src.Size(); size >= 0 && size != meta.FileSize {
		return Metadata{}, r.fail(fmt.Errorf("%w: file size %d does not match %d bytes of records: %s",
			ErrCorruption, size, meta.FileSize, r.src.Name()))
	}

	r.meta = &meta
	return meta, nil
}

// fail latches err as the reader's terminal state.
func (r *RecordReader) fail(err error) error {
	r.err = err
	return err
}
