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
)

// Yielder traverses a list of record files in order, yielding record
// payloads. It owns one active [RecordReader] at a time; the reader is
// closed and the next file opened on EOF. The end of the corpus is io.EOF.
type Yielder struct {
	filenames   []string
	compression Compression

	current int
	rr      *RecordReader
}

// NewYielder returns a yielder over filenames in list order.
func NewYielder(filenames []string, compression Compression) *Yielder {
	return &Yielder{
		filenames:   append([]string(nil), filenames...),
		compression: compression,
	}
}

// Next returns the next record payload, in file order within each file and
// list order across files. It returns io.EOF when the corpus is exhausted.
func (y *Yielder) Next() ([]byte, error) {
	for {
		if y.rr == nil {
			if y.current >= len(y.filenames) {
				return nil, io.EOF
			}
			rr, err := NewRecordReader(y.filenames[y.current], y.compression)
			if err != nil {
				return nil, err
			}
			y.rr = rr
		}

		rec, err := y.rr.Next()
		if err == io.EOF {
			if err := y.closeReader(); err != nil {
				return nil, err
			}
			y.current++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("iterating %q at offset %d: %w", y.filenames[y.current], y.rr.Offset(), err)
		}
		return rec, nil
	}
}

// NextN returns up to n record payloads. A shorter batch is returned when
// the corpus ends mid-batch; io.EOF is returned only when no records were
// produced at all.
func (y *Yielder) NextN(n int) ([][]byte, error) {
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
func (y *Yielder) Close() error {
	return y.closeReader()
}

func (y *Yielder) closeReader() error {
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
