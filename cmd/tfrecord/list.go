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
	"fmt"
	"io"

	"github.com/rodaine/table"
	"golang.org/x/sync/errgroup"

	"github.com/ianlewis/go-tfrecord"
)

type list struct {
	paths       []string
	compression tfrecord.Compression
	jobs        int
	out         io.Writer
}

func (l *list) Run() error {
	jobs := l.jobs
	if jobs < 1 {
		jobs = 1
	}

	// Shard files are scanned concurrently; rows keep argument order.
	metas := make([]tfrecord.Metadata, len(l.paths))
	var g errgroup.Group
	g.SetLimit(jobs)
	for i, path := range l.paths {
		g.Go(func() error {
			rr, err := tfrecord.NewRecordReader(path, l.compression)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrTFRecord, err)
			}
			defer rr.Close()

			meta, err := rr.Metadata()
			if err != nil {
				return fmt.Errorf("%w: %w", ErrTFRecord, err)
			}
			metas[i] = meta
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var totalSize, totalData, totalEntries int64
	tbl := table.New("size", "data", "records", "overhead", "name").WithWriter(l.out)
	for i, path := range l.paths {
		meta := metas[i]
		tbl.AddRow(
			meta.FileSize,
			meta.DataSize,
			meta.Entries,
			fmt.Sprintf("%.1f%%", overhead(meta)),
			path,
		)
		totalSize += meta.FileSize
		totalData += meta.DataSize
		totalEntries += meta.Entries
	}
	if len(l.paths) > 1 {
		total := tfrecord.Metadata{FileSize: totalSize, DataSize: totalData, Entries: totalEntries}
		tbl.AddRow(totalSize, totalData, totalEntries, fmt.Sprintf("%.1f%%", overhead(total)), "(total)")
	}
	tbl.Print()

	return nil
}

// overhead returns the framing overhead as a percentage of the file size.
func overhead(meta tfrecord.Metadata) float64 {
	if meta.FileSize == 0 {
		return 0
	}
	return (1 - float64(meta.DataSize)/float64(meta.FileSize)) * 100
}
