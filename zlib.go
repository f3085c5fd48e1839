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
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// zlibBufferSize is the size of the input and discard buffers used by
// zlibSource.
const zlibBufferSize = 256 * 1024

// zlibSource wraps a ByteSource and presents the decompressed gzip or zlib
// stream as a read-only ByteSource.
//
// Compressed streams have no random access. Seeking forward consumes and
// discards decompressed bytes; seeking backward reinitializes the inflater
// from the start of the underlying source and consumes up to the target
// offset.
type zlibSource struct {
	src         ByteSource
	compression Compression

	// zr is the inflater. It is reset in place on rewind rather than
	// reallocated.
	zr io.ReadCloser

	// in buffers reads from src so the inflater consumes large blocks.
	in *bufferedSource

	// offset is the position in the decompressed stream.
	offset int64

	// scratch receives discarded bytes during forward seeks.
	scratch []byte

	closed bool
}

// bufferedSource reads from a ByteSource through a fixed buffer. It exists so
// the inflater can be rewound by re-pointing the buffer at the start of the
// source without reallocating it.
type bufferedSource struct {
	src ByteSource
	buf []byte
	r   int
	w   int
	err error
}

func newBufferedSource(src ByteSource) *bufferedSource {
	return &bufferedSource{src: src, buf: make([]byte, zlibBufferSize)}
}

func (b *bufferedSource) rewind() error {
	if _, err := b.src.Seek(0, io.SeekStart); err != nil {
		return err
	}
	b.r, b.w, b.err = 0, 0, nil
	return nil
}

func (b *bufferedSource) Read(p []byte) (int, error) {
	if b.r == b.w {
		if b.err != nil {
			return 0, b.err
		}
		b.r, b.w = 0, 0
		n, err := b.src.Read(b.buf)
		b.w = n
		b.err = err
		if n == 0 {
			return 0, err
		}
	}
	n := copy(p, b.buf[b.r:b.w])
	b.r += n
	return n, nil
}

// ReadByte keeps the inflater from sliding its own buffer over the input.
// Both flate-based readers probe for io.ByteReader.
func (b *bufferedSource) ReadByte() (byte, error) {
	var p [1]byte
	for {
		n, err := b.Read(p[:])
		if n == 1 {
			return p[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// newZlibSource returns a decompressing source over src. The compression type
// must be GZIP or ZLIB.
func newZlibSource(src ByteSource, compression Compression) (*zlibSource, error) {
	z := &zlibSource{
		src:         src,
		compression: compression,
		in:          newBufferedSource(src),
	}
	if err := z.reset(); err != nil {
		return nil, err
	}
	return z, nil
}

// reset rewinds the underlying source and reinitializes the inflate state.
func (z *zlibSource) reset() error {
	if err := z.in.rewind(); err != nil {
		return err
	}
	z.offset = 0

	var err error
	switch z.compression {
	case GZIP:
		if z.zr == nil {
			z.zr, err = gzip.NewReader(z.in)
		} else {
			err = z.zr.(*gzip.Reader).Reset(z.in)
		}
	case ZLIB:
		if z.zr == nil {
			z.zr, err = zlib.NewReader(z.in)
		} else {
			err = z.zr.(zlib.Resetter).Reset(z.in, nil)
		}
	default:
		return fmt.Errorf("%w: compression type %d not decompressable", errTFRecord, z.compression)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: inflate init: %w", ErrCorruption, z.src.Name(), err)
	}
	return nil
}

// Read returns decompressed bytes. Inflate failures are reported as
// corruption.
func (z *zlibSource) Read(p []byte) (int, error) {
	if z.closed {
		return 0, errClosed
	}
	n, err := z.zr.Read(p)
	z.offset += int64(n)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w: %s: inflate at offset %d: %w", ErrCorruption, z.src.Name(), z.offset, err)
	}
	//nolint:wrapcheck // io.Reader implementations must return unwrapped io.EOF.
	return n, err
}

// Seek implements [io.Seeker] for io.SeekStart and io.SeekCurrent.
func (z *zlibSource) Seek(offset int64, whence int) (int64, error) {
	if z.closed {
		return 0, errClosed
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = z.offset + offset
	default:
		return z.offset, fmt.Errorf("%w: %v", errUnsupportedSeek, whence)
	}
	if target < 0 {
		return z.offset, errNegativeOffset
	}

	if target < z.offset {
		if err := z.reset(); err != nil {
			return z.offset, err
		}
	}
	if err := z.discard(target - z.offset); err != nil {
		return z.offset, err
	}
	return z.offset, nil
}

// discard consumes and throws away n decompressed bytes.
func (z *zlibSource) discard(n int64) error {
	if n == 0 {
		return nil
	}
	if z.scratch == nil {
		z.scratch = make([]byte, zlibBufferSize)
	}
	for n > 0 {
		chunk := n
		if chunk > int64(len(z.scratch)) {
			chunk = int64(len(z.scratch))
		}
		m, err := z.Read(z.scratch[:chunk])
		n -= int64(m)
		if err == io.EOF {
			if n > 0 {
				return fmt.Errorf("%w: %s: seek past end of stream", errTFRecord, z.src.Name())
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Close closes the inflater and the underlying source.
func (z *zlibSource) Close() error {
	if z.closed {
		return nil
	}
	z.closed = true
	zerr := z.zr.Close()
	serr := z.src.Close()
	if zerr != nil {
		return fmt.Errorf("%w: closing inflater: %w", errTFRecord, zerr)
	}
	return serr
}

func (z *zlibSource) Name() string { return z.src.Name() }

// Size returns -1. The decompressed size is not known without consuming the
// whole stream.
func (z *zlibSource) Size() int64 { return -1 }

func (z *zlibSource) Bytes() []byte { return nil }
