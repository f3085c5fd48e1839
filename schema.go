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
	"strings"
)

// DataType identifies the element type of a decoded feature. The numeric
// values are part of the external contract and must not be renumbered.
type DataType int32

const (
	// DTInvalid is the zero DataType.
	DTInvalid DataType = 0

	// DTFloat is a 32-bit floating point element.
	DTFloat DataType = 1

	// DTUint8 is a raw byte element, filled by concatenating a record's
	// bytes list.
	DTUint8 DataType = 4

	// DTString is an opaque byte string element.
	DTString DataType = 7

	// DTInt64 is a 64-bit signed integer element.
	DTInt64 DataType = 9
)

// String returns the conventional name of the data type.
func (d DataType) String() string {
	switch d {
	case DTFloat:
		return "float32"
	case DTInt64:
		return "int64"
	case DTUint8:
		return "uint8"
	case DTString:
		return "string"
	case DTInvalid:
	}
	return "invalid"
}

// TensorShape is an ordered sequence of dimension sizes. The empty shape is
// a scalar.
type TensorShape []int

// NumElements returns the product of the dimension sizes. The empty shape
// has one element.
func (s TensorShape) NumElements() int {
	num := 1
	for _, d := range s {
		num *= d
	}
	return num
}

// String formats the shape as "[2, 3]".
func (s TensorShape) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, d := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", d)
	}
	b.WriteByte(']')
	return b.String()
}

// validate rejects negative dimension sizes.
func (s TensorShape) validate() error {
	for _, d := range s {
		if d < 0 {
			return fmt.Errorf("%w: negative dimension in %s", ErrInvalidShape, s)
		}
	}
	return nil
}

// ResolveShape resolves a shape that may contain a single unknown dimension,
// written as -1, against a total element count. A shape with more than one
// unknown dimension is underspecified, and the known dimensions must divide
// the element count exactly.
func ResolveShape(shape TensorShape, numElements int) (TensorShape, error) {
	known := 1
	unknown := -1
	for i, d := range shape {
		switch {
		case d == -1:
			if unknown >= 0 {
				return nil, fmt.Errorf("%w: more than one unknown dimension in %s", ErrInvalidShape, shape)
			}
			unknown = i
		case d < 0:
			return nil, fmt.Errorf("%w: negative dimension in %s", ErrInvalidShape, shape)
		default:
			known *= d
		}
	}

	resolved := append(TensorShape(nil), shape...)
	if unknown < 0 {
		if known != numElements {
			return nil, fmt.Errorf("%w: shape %s does not hold %d elements", ErrInvalidShape, shape, numElements)
		}
		return resolved, nil
	}

	if known == 0 || numElements%known != 0 {
		return nil, fmt.Errorf("%w: cannot resolve %s against %d elements", ErrInvalidShape, shape, numElements)
	}
	resolved[unknown] = numElements / known
	return resolved, nil
}

// FixedLenFeature declares one feature of a record schema: a key, the
// expected element type, and the fixed per-record shape. A nil Default
// marks the feature required.
type FixedLenFeature struct {
	Key     string
	Shape   TensorShape
	DType   DataType
	Default any
}

// Tensor is a dense, typed n-dimensional buffer. Exactly one of the typed
// accessors returns data, selected by DType. Batched decodes produce
// tensors of shape [N, feature shape...].
type Tensor struct {
	dtype DataType
	shape TensorShape

	f32 []float32
	i64 []int64
	u8  []byte
	str [][]byte
}

// newTensor allocates a dense buffer for the given type and shape.
func newTensor(dtype DataType, shape TensorShape) (*Tensor, error) {
	if err := shape.validate(); err != nil {
		return nil, err
	}

	t := &Tensor{dtype: dtype, shape: shape}
	num := shape.NumElements()
	switch dtype {
	case DTFloat:
		t.f32 = make([]float32, num)
	case DTInt64:
		t.i64 = make([]int64, num)
	case DTUint8:
		t.u8 = make([]byte, num)
	case DTString:
		// A scalar string still occupies one slot.
		if len(shape) == 0 {
			t.shape = TensorShape{1}
		}
		t.str = make([][]byte, num)
	default:
		return nil, fmt.Errorf("%w: %s", ErrDataType, dtype)
	}
	return t, nil
}

// newBatchTensor allocates the output buffer for n records of the given
// feature: shape [n, feature shape...], with scalar strings widened to
// [n, 1].
func newBatchTensor(f FixedLenFeature, n int) (*Tensor, error) {
	shape := make(TensorShape, 0, len(f.Shape)+1)
	shape = append(shape, n)
	if f.DType == DTString && len(f.Shape) == 0 {
		shape = append(shape, 1)
	} else {
		shape = append(shape, f.Shape...)
	}
	return newTensor(f.DType, shape)
}

// DType returns the element type.
func (t *Tensor) DType() DataType { return t.dtype }

// Shape returns the tensor shape. The caller must not mutate it.
func (t *Tensor) Shape() TensorShape { return t.shape }

// NumElements returns the total element count.
func (t *Tensor) NumElements() int { return t.shape.NumElements() }

// Float32s returns the backing buffer of a DTFloat tensor, nil otherwise.
func (t *Tensor) Float32s() []float32 { return t.f32 }

// Int64s returns the backing buffer of a DTInt64 tensor, nil otherwise.
func (t *Tensor) Int64s() []int64 { return t.i64 }

// Uint8s returns the backing buffer of a DTUint8 tensor, nil otherwise.
func (t *Tensor) Uint8s() []byte { return t.u8 }

// Strings returns the backing buffer of a DTString tensor, nil otherwise.
// Each element is an independently owned byte string.
func (t *Tensor) Strings() [][]byte { return t.str }
