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
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/seehuhn/mt19937"
)

// hash64 is the integer hash used for shuffle seed derivation: XXH64 of the
// value's little-endian encoding.
func hash64(v uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return xxhash.Sum64(b[:])
}

// shuffleSeeds derives the file permutation seed and the reservoir seed from
// a (seed, epoch) pair. The derivation is fixed: the emitted sequence for a
// given corpus is a pure function of seed and epoch.
func shuffleSeeds(seed uint64, epoch int) (uint64, uint64) {
	permSeed := hash64(seed) ^ (hash64(uint64(epoch)) << 1)
	bufSeed := hash64(permSeed) ^ (hash64(seed) << 1)
	return permSeed, bufSeed
}

// newMT returns an MT19937-64 generator seeded with s.
func newMT(s uint64) *mt19937.MT19937 {
	rng := mt19937.New()
	rng.Seed(int64(s))
	return rng
}

// permuteFiles returns a copy of filenames permuted by a Fisher-Yates pass
// driven by an MT19937-64 generator seeded with permSeed.
func permuteFiles(filenames []string, permSeed uint64) []string {
	files := append([]string(nil), filenames...)
	rng := newMT(permSeed)
	for i := len(files) - 1; i > 0; i-- {
		j := rng.Uint64() % uint64(i+1)
		files[i], files[j] = files[j], files[i]
	}
	return files
}

// ShuffleYielder yields records from a sharded corpus in deterministic
// shuffled order. The file list is permuted up front from the (seed, epoch)
// pair, and records are randomized through a bounded reservoir: each
// incoming record displaces a random buffer slot, the displaced element
// moves to the tail, and emission pops from the tail.
//
// Two yielders constructed with the same file list, buffer size, seed and
// epoch emit the same sequence.
type ShuffleYielder struct {
	rng *mt19937.MT19937

	filenames   []string
	compression Compression

	buffer     [][]byte
	bufferSize int

	current int
	rr      *RecordReader
}

// NewShuffleYielder returns a shuffled yielder over filenames. bufferSize
// bounds the reservoir; seed and epoch fix the emitted order.
func NewShuffleYielder(filenames []string, bufferSize int, seed uint64, epoch int, compression Compression) (*ShuffleYielder, error) {
	if bufferSize < 1 {
		return nil, fmt.Errorf("%w: buffer size %d", errTFRecord, bufferSize)
	}

	permSeed, bufSeed := shuffleSeeds(seed, epoch)
	return &ShuffleYielder{
		rng:         newMT(bufSeed),
		filenames:   permuteFiles(filenames, permSeed),
		compression: compression,
		buffer:      make([][]byte, 0, bufferSize),
		bufferSize:  bufferSize,
	}, nil
}

// fillBuffer tops up the reservoir from the current reader, opening the next
// file on EOF. It returns with a partial buffer only at the end of the
// corpus.
func (y *ShuffleYielder) fillBuffer() error {
	for len(y.buffer) < y.bufferSize {
		if y.current >= len(y.filenames) {
			return nil
		}

		if y.rr == nil {
			rr, err := NewRecordReader(y.filenames[y.current], y.compression)
			if err != nil {
				return err
			}
			y.rr = rr
		}

		rec, err := y.rr.Next()
		if err == io.EOF {
			if err := y.closeReader(); err != nil {
				return err
			}
			y.current++
			continue
		}
		if err != nil {
			return fmt.Errorf("iterating %q at offset %d: %w", y.filenames[y.current], y.rr.Offset(), err)
		}

		// Reservoir step: the incoming record lands at a random slot and the
		// displaced element moves to the tail.
		j := y.rng.Uint64() % uint64(len(y.buffer)+1)
		if j == uint64(len(y.buffer)) {
			y.buffer = append(y.buffer, rec)
		} else {
			y.buffer = append(y.buffer, y.buffer[j])
			y.buffer[j] = rec
		}
	}
	return nil
}

// Next returns the next record in shuffled order, or io.EOF at the end of
// the corpus.
func (y *ShuffleYielder) Next() ([]byte, error) {
	if err := y.fillBuffer(); err != nil {
		return nil, err
	}
	if len(y.buffer) == 0 {
		return nil, io.EOF
	}
	rec := y.buffer[len(y.buffer)-1]
	y.buffer = y.buffer[:len(y.buffer)-1]
	return rec, nil
}

// NextN returns up to n records in shuffled order. A shorter batch is
// returned when the corpus ends mid-batch; io.EOF only when no records were
// produced.
func (y *ShuffleYielder) NextN(n int) ([][]byte, error) {
	batch := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		rec, err := y.Next()
		if err == io.EOF {
			if len(batch) > 0 {
				return batch, nil
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		batch = append(batch, rec)
	}
	return batch, nil
}

// Close closes the active reader, if any.
func (y *ShuffleYielder) Close() error {
	return y.closeReader()
}

func (y *ShuffleYielder) closeReader() error {
	if y.rr == nil {
		return nil
	}
	err := y.rr.Close()
	y.rr = nil
	if err != nil {
		return fmt.Errorf("%w: closing reader: %w", errTFRecord, err)
	}
	return nil
}

// ParsedShuffleYielder is a [ShuffleYielder] fused with a [RecordParser]:
// it yields decoded batches instead of raw payloads. The yielder contains
// the parser by reference; the caller retains ownership and must keep it
// alive for the yielder's lifetime.
type ParsedShuffleYielder struct {
	yielder *ShuffleYielder
	parser  *RecordParser
}

// NewParsedShuffleYielder returns a shuffled yielder that decodes records
// with parser before yielding them.
func NewParsedShuffleYielder(parser *RecordParser, filenames []string, bufferSize int, seed uint64, epoch int, compression Compression) (*ParsedShuffleYielder, error) {
	yielder, err := NewShuffleYielder(filenames, bufferSize, seed, epoch, compression)
	if err != nil {
		return nil, err
	}
	return &ParsedShuffleYielder{yielder: yielder, parser: parser}, nil
}

// Next decodes the next record as a batch of size one. It returns io.EOF at
// the end of the corpus.
func (y *ParsedShuffleYielder) Next() ([]*Tensor, error) {
	rec, err := y.yielder.Next()
	if err != nil {
		//nolint:wrapcheck // io.EOF must pass through unwrapped.
		return nil, err
	}
	return y.parser.ParseSingle(rec)
}

// NextN collects up to n records and decodes them as one batch, in
// parallel when the parser is configured for it. Output slot b holds the
// b-th collected record.
func (y *ParsedShuffleYielder) NextN(n int) ([]*Tensor, error) {
	batch, err := y.yielder.NextN(n)
	if err != nil {
		//nolint:wrapcheck // io.EOF must pass through unwrapped.
		return nil, err
	}
	return y.parser.ParseBatch(batch)
}

// Close closes the yielder's active reader. It does not close the parser.
func (y *ParsedShuffleYielder) Close() error {
	return y.yielder.Close()
}
