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
	"errors"
	"fmt"
)

var (
	// errTFRecord is the base error for all go-tfrecord errors.
	errTFRecord = errors.New("tfrecord")

	// ErrCorruption indicates that file contents failed an integrity check.
	// It is returned for CRC mismatches, short reads inside a record, and
	// decompression failures. A reader that returns ErrCorruption is left in
	// a terminal error state.
	ErrCorruption = fmt.Errorf("%w: corrupted record", errTFRecord)

	// ErrMissingFeature indicates that a required feature was absent from a
	// decoded record.
	ErrMissingFeature = fmt.Errorf("%w: required feature missing", errTFRecord)

	// ErrDefaultNotSupported is returned when a missing feature declares a
	// default value. Default value fill is not implemented.
	ErrDefaultNotSupported = fmt.Errorf("%w: default values not supported", errTFRecord)

	// ErrDTypeMismatch indicates that a feature's wire type does not match
	// the type declared in the schema.
	ErrDTypeMismatch = fmt.Errorf("%w: data type mismatch", errTFRecord)

	// ErrShapeMismatch indicates that a feature's element count does not
	// match the schema shape.
	ErrShapeMismatch = fmt.Errorf("%w: shape mismatch", errTFRecord)

	// ErrInvalidShape indicates an invalid or underspecified tensor shape.
	ErrInvalidShape = fmt.Errorf("%w: invalid shape", errTFRecord)

	// ErrDataType indicates an invalid data type.
	ErrDataType = fmt.Errorf("%w: invalid data type", errTFRecord)

	// ErrIO indicates that the underlying byte source could not be opened or
	// read.
	ErrIO = fmt.Errorf("%w: i/o failed", errTFRecord)

	errUnsupportedSeek = fmt.Errorf("%w: unsupported seek mode", errTFRecord)
	errNegativeOffset  = fmt.Errorf("%w: negative offset", errTFRecord)
	errClosed          = fmt.Errorf("%w: closed", errTFRecord)
)
