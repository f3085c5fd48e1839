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

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/ianlewis/go-tfrecord"
)

type dump struct {
	paths       []string
	compression tfrecord.Compression
	out         io.Writer
}

// Run writes the raw payload of every record to out, in file order within
// each file and argument order across files.
func (d *dump) Run() error {
	y := tfrecord.NewYielder(d.paths, d.compression)
	defer y.Close()

	for {
		rec, err := y.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTFRecord, err)
		}
		if _, err := d.out.Write(rec); err != nil {
			return fmt.Errorf("%w: writing record: %w", ErrTFRecord, err)
		}
	}
}
