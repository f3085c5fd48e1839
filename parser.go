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
)

// DefaultWorkerCount is the worker pool cap used when a parser is
// constructed without an explicit worker count.
const DefaultWorkerCount = 12

// RecordParser decodes serialized Example records into dense typed batches
// according to a fixed schema.
//
// A parser owns a worker pool for its full lifetime when constructed with
// parallel decoding; Close tears it down. The schema is read-only after
// construction, and batch decodes partition the output buffers by batch
// index, so parallel workers never contend.
type RecordParser struct {
	features []FixedLenFeature

	pool        *threadPool
	runParallel bool
}

// NewRecordParser returns a parser for the given schema. When runParallel is
// true batch decodes are spread across a pool of at most workerCount
// workers; workerCount <= 0 uses [DefaultWorkerCount].
func NewRecordParser(features []FixedLenFeature, runParallel bool, workerCount int) (*RecordParser, error) {
	for _, f := range features {
		switch f.DType {
		case DTFloat, DTInt64, DTUint8, DTString:
		default:
			return nil, fmt.Errorf("%w: feature %q: %s", ErrDataType, f.Key, f.DType)
		}
		if err := f.Shape.validate(); err != nil {
			return nil, fmt.Errorf("feature %q: %w", f.Key, err)
		}
	}

	p := &RecordParser{
		features:    append([]FixedLenFeature(nil), features...),
		runParallel: runParallel,
	}
	if runParallel {
		if workerCount <= 0 {
			workerCount = DefaultWorkerCount
		}
		p.pool = newThreadPool(workerCount)
	}
	return p, nil
}

// Close tears down the parser's worker pool. The parser must not be used
// after Close.
func (p *RecordParser) Close() {
	if p.pool != nil {
		p.pool.close()
		p.pool = nil
	}
}

// Features returns the parser's schema.
func (p *RecordParser) Features() []FixedLenFeature {
	return p.features
}

// alloc allocates one output tensor per schema feature for a batch of n
// records.
func (p *RecordParser) alloc(n int) ([]*Tensor, error) {
	out := make([]*Tensor, len(p.features))
	for d, f := range p.features {
		t, err := newBatchTensor(f, n)
		if err != nil {
			return nil, err
		}
		out[d] = t
	}
	return out, nil
}

// ParseSingle decodes one record into a batch of size one.
func (p *RecordParser) ParseSingle(serialized []byte) ([]*Tensor, error) {
	out, err := p.alloc(1)
	if err != nil {
		return nil, err
	}
	if err := p.parseInto(serialized, out, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseBatch decodes records into a batch of size len(records). Output
// buffer slot b holds record b regardless of decode order. The first decode
// error, in batch order, is returned.
func (p *RecordParser) ParseBatch(records [][]byte) ([]*Tensor, error) {
	out, err := p.alloc(len(records))
	if err != nil {
		return nil, err
	}

	if p.runParallel && p.pool != nil {
		errs := make([]error, len(records))
		p.pool.parallelFor(func(i, _ int) {
			errs[i] = p.parseInto(records[i], out, i)
		}, len(records))
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	for i, rec := range records {
		if err := p.parseInto(rec, out, i); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// parseInto decodes one record into batch slot b of the output tensors.
func (p *RecordParser) parseInto(serialized []byte, out []*Tensor, b int) error {
	fm, err := parseExample(serialized)
	if err != nil {
		return err
	}

	for d, fc := range p.features {
		feature, ok := fm[fc.Key]
		hasData := ok && feature.kind != kindUnset

		if !hasData {
			if fc.Default == nil {
				return fmt.Errorf("%w: %q", ErrMissingFeature, fc.Key)
			}
			// TODO(#2): fill missing features from the declared default.
			return fmt.Errorf("%w: %q", ErrDefaultNotSupported, fc.Key)
		}

		// A uint8 feature arrives on the wire as a bytes list.
		expected := fc.DType
		if expected == DTUint8 {
			expected = DTString
		}
		if actual := feature.kind.dataType(); actual != expected {
			return fmt.Errorf("%w: feature %q: schema %s, wire %s", ErrDTypeMismatch, fc.Key, fc.DType, actual)
		}

		if err := featureDecode(b, fc.Key, fc.DType, fc.Shape, feature, out[d]); err != nil {
			return err
		}
	}
	return nil
}

// featureDecode validates and copies one feature's values into batch slot
// b of out. The element count on the wire must match the schema shape
// exactly: int64, float and string lists must hold NumElements values, and a
// uint8 bytes list must concatenate to NumElements octets.
func featureDecode(b int, key string, dtype DataType, shape TensorShape, feature wireFeature, out *Tensor) error {
	num := shape.NumElements()
	offset := b * num

	switch dtype {
	case DTInt64:
		count, err := decodeInt64List(feature.list, out.i64[offset:offset+num])
		if err != nil {
			return err
		}
		if count != num {
			return fmt.Errorf("%w: feature %q: %d int64 values, want shape %s", ErrShapeMismatch, key, count, shape)
		}

	case DTFloat:
		count, err := decodeFloatList(feature.list, out.f32[offset:offset+num])
		if err != nil {
			return err
		}
		if count != num {
			return fmt.Errorf("%w: feature %q: %d float values, want shape %s", ErrShapeMismatch, key, count, shape)
		}

	case DTString:
		count := 0
		err := eachBytesValue(feature.list, func(v []byte) {
			if count < num {
				// Strings outlive the record buffer; copy out.
				out.str[offset+count] = append([]byte(nil), v...)
			}
			count++
		})
		if err != nil {
			return err
		}
		if count != num {
			return fmt.Errorf("%w: feature %q: %d byte strings, want shape %s", ErrShapeMismatch, key, count, shape)
		}

	case DTUint8:
		total := 0
		if err := eachBytesValue(feature.list, func(v []byte) {
			if total+len(v) <= num {
				copy(out.u8[offset+total:], v)
			}
			total += len(v)
		}); err != nil {
			return err
		}
		if total != num {
			return fmt.Errorf("%w: feature %q: %d bytes, want shape %s", ErrShapeMismatch, key, total, shape)
		}

	default:
		return fmt.Errorf("%w: feature %q: %s", ErrDataType, key, dtype)
	}
	return nil
}
