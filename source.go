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
	"fmt"
	"io"
	"os"
)

// ByteSource is random access to an opaque file-like byte region. It is the
// boundary between the record framing layer and whatever storage backs the
// data (local files, memory buffers, archive entries, decompressors).
//
// A ByteSource owns its backing storage. A reader constructed over a source
// takes ownership of it; closing the reader closes the source. Implementations
// are not required to be safe for parallel execution.
type ByteSource interface {
	io.Reader
	io.Seeker
	io.Closer

	// Name returns a human readable name for the source, usually a file
	// path. It is used in error messages.
	Name() string

	// Size returns the total size of the region in bytes, or -1 if the size
	// is not known up front (e.g. for decompressing sources).
	Size() int64

	// Bytes returns the full contents of a memory backed source, or nil.
	// Callers may use a non-nil result to avoid copies but must not mutate
	// it and must still respect Read/Seek semantics.
	Bytes() []byte
}

// fileSource is a ByteSource backed by a file on disk.
type fileSource struct {
	f    *os.File
	size int64
}

// Open opens the named file as a [ByteSource].
func Open(name string) (ByteSource, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: opening source: %w", ErrIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat: %w", ErrIO, err)
	}
	return &fileSource{f: f, size: info.Size()}, nil
}

func (s *fileSource) Read(p []byte) (int, error) {
	//nolint:wrapcheck // io.Reader implementations must return unwrapped io.EOF.
	return s.f.Read(p)
}

func (s *fileSource) Seek(offset int64, whence int) (int64, error) {
	n, err := s.f.Seek(offset, whence)
	if err != nil {
		return n, fmt.Errorf("%w: Seek: %w", errTFRecord, err)
	}
	return n, nil
}

func (s *fileSource) Close() error {
	//nolint:wrapcheck // error does not need to be wrapped
	return s.f.Close()
}

func (s *fileSource) Name() string { return s.f.Name() }

func (s *fileSource) Size() int64 { return s.size }

func (s *fileSource) Bytes() []byte { return nil }

// memSource is a ByteSource over an in-memory buffer. It reports its backing
// slice through Bytes. [RecordReader] does not use Bytes; it copies every
// record out through Read, as for any other source.
type memSource struct {
	r    *bytes.Reader
	b    []byte
	name string
}

// NewMemSource returns a [ByteSource] reading from b. The given name is used
// in error messages. The source does not copy b; the caller must not mutate
// it while the source is in use.
func NewMemSource(name string, b []byte) ByteSource {
	return &memSource{r: bytes.NewReader(b), b: b, name: name}
}

func (s *memSource) Read(p []byte) (int, error) {
	//nolint:wrapcheck // io.Reader implementations must return unwrapped io.EOF.
	return s.r.Read(p)
}

func (s *memSource) Seek(offset int64, whence int) (int64, error) {
	n, err := s.r.Seek(offset, whence)
	if err != nil {
		return n, fmt.Errorf("%w: Seek: %w", errTFRecord, err)
	}
	return n, nil
}

func (s *memSource) Close() error { return nil }

func (s *memSource) Name() string { return s.name }

func (s *memSource) Size() int64 { return int64(len(s.b)) }

func (s *memSource) Bytes() []byte { return s.b }
