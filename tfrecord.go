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

// Package tfrecord implements a high throughput reader for record-oriented
// training data files.
//
// A record file is a sequence of length-prefixed, CRC32C-checksummed binary
// payloads. Each payload typically carries a serialized Example protobuf
// message holding a map from string keys to typed value lists. The package
// provides integrity-checked streaming reads ([RecordReader]), optionally
// through a transparent gzip or zlib decompressor, deterministic shuffled
// traversal of sharded corpora ([ShuffleYielder]), and schema-driven decoding
// of records into dense typed batches ([RecordParser]).
//
// Unless otherwise informed clients should not assume implementations in this
// package are safe for parallel execution.
package tfrecord
