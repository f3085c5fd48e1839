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
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// testPlaintext returns n bytes of a repeating alphabet pattern.
func testPlaintext(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}

func newTestZlibSource(t *testing.T, compression Compression, plaintext []byte) *zlibSource {
	t.Helper()

	z, err := newZlibSource(NewMemSource("test.z", compress(t, compression, plaintext)), compression)
	if err != nil {
		t.Fatalf("newZlibSource: %v", err)
	}
	return z
}

func TestZlibSource_Read(t *testing.T) {
	t.Parallel()

	for _, compression := range []Compression{GZIP, ZLIB} {
		t.Run(compression.String(), func(t *testing.T) {
			t.Parallel()

			// Larger than the internal buffer to force multiple inflate
			// rounds.
			plaintext := testPlaintext(3 * zlibBufferSize / 2)
			z := newTestZlibSource(t, compression, plaintext)
			defer z.Close()

			got, err := io.ReadAll(z)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if !bytes.Equal(plaintext, got) {
				t.Errorf("ReadAll: decompressed output differs (%d bytes, want %d)", len(got), len(plaintext))
			}
		})
	}
}

func TestZlibSource_Seek(t *testing.T) {
	t.Parallel()

	plaintext := testPlaintext(1024)
	z := newTestZlibSource(t, ZLIB, plaintext)
	defer z.Close()

	// Forward seek discards decompressed bytes.
	pos, err := z.Seek(100, io.SeekStart)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if diff := cmp.Diff(int64(100), pos); diff != "" {
		t.Errorf("Seek (-want, +got):\n%s", diff)
	}

	buf := make([]byte, 10)
	if _, err := io.ReadFull(z, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if diff := cmp.Diff(plaintext[100:110], buf); diff != "" {
		t.Errorf("ReadFull (-want, +got):\n%s", diff)
	}

	// Relative seek.
	pos, err = z.Seek(40, io.SeekCurrent)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if diff := cmp.Diff(int64(150), pos); diff != "" {
		t.Errorf("Seek (-want, +got):\n%s", diff)
	}

	// Backward seek restarts the inflater from the beginning.
	pos, err = z.Seek(5, io.SeekStart)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if diff := cmp.Diff(int64(5), pos); diff != "" {
		t.Errorf("Seek (-want, +got):\n%s", diff)
	}
	if _, err := io.ReadFull(z, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if diff := cmp.Diff(plaintext[5:15], buf); diff != "" {
		t.Errorf("ReadFull (-want, +got):\n%s", diff)
	}

	// SeekEnd is not supported for compressed streams.
	if _, err := z.Seek(0, io.SeekEnd); err == nil {
		t.Errorf("Seek(0, SeekEnd): want error, got nil")
	}

	// Seeking past the end of the stream fails.
	if _, err := z.Seek(int64(len(plaintext)+1), io.SeekStart); err == nil {
		t.Errorf("Seek past end: want error, got nil")
	}
}

func TestZlibSource_corrupt(t *testing.T) {
	t.Parallel()

	data := compress(t, ZLIB, testPlaintext(1024))
	// Corrupt the deflate stream past the 2-byte zlib header.
	data[len(data)/2] ^= 0xff

	z, err := newZlibSource(NewMemSource("test.z", data), ZLIB)
	if err == nil {
		_, err = io.ReadAll(z)
		defer z.Close()
	}
	if diff := cmp.Diff(ErrCorruption, err, cmpopts.EquateErrors()); diff != "" {
		t.Errorf("read of corrupt stream (-want, +got):\n%s", diff)
	}
}

func TestZlibSource_Size(t *testing.T) {
	t.Parallel()

	z := newTestZlibSource(t, GZIP, testPlaintext(64))
	defer z.Close()

	if diff := cmp.Diff(int64(-1), z.Size()); diff != "" {
		t.Errorf("Size (-want, +got):\n%s", diff)
	}
	if z.Bytes() != nil {
		t.Errorf("Bytes: want nil, got %d bytes", len(z.Bytes()))
	}
}
