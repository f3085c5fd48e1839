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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestParseExample(t *testing.T) {
	t.Parallel()

	rec := example(map[string][]byte{
		"i": feature(fieldKindInt64List, int64List(1, 2, 3)),
		"f": feature(fieldKindFloatList, floatList(0.5)),
		"b": feature(fieldKindBytesList, bytesList([]byte("x"))),
		"u": {},
	})

	fm, err := parseExample(rec)
	if err != nil {
		t.Fatalf("parseExample: %v", err)
	}

	wantKinds := map[string]featureKind{
		"i": kindInt64,
		"f": kindFloat,
		"b": kindBytes,
		"u": kindUnset,
	}
	if diff := cmp.Diff(len(wantKinds), len(fm)); diff != "" {
		t.Fatalf("feature count (-want, +got):\n%s", diff)
	}
	for key, kind := range wantKinds {
		f, ok := fm[key]
		if !ok {
			t.Fatalf("feature %q not found", key)
		}
		if diff := cmp.Diff(kind, f.kind); diff != "" {
			t.Errorf("feature %q kind (-want, +got):\n%s", key, diff)
		}
	}
}

func TestParseExample_unknownFields(t *testing.T) {
	t.Parallel()

	// Unknown fields at every level are skipped, not rejected.
	var unknown []byte
	unknown = protowire.AppendTag(unknown, 99, protowire.VarintType)
	unknown = protowire.AppendVarint(unknown, 7)

	rec := append([]byte(nil), unknown...)
	rec = append(rec, example(map[string][]byte{
		"i": feature(fieldKindInt64List, int64List(42)),
	})...)

	fm, err := parseExample(rec)
	if err != nil {
		t.Fatalf("parseExample: %v", err)
	}

	var vals [1]int64
	count, err := decodeInt64List(fm["i"].list, vals[:])
	if err != nil {
		t.Fatalf("decodeInt64List: %v", err)
	}
	if diff := cmp.Diff(1, count); diff != "" {
		t.Errorf("count (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(int64(42), vals[0]); diff != "" {
		t.Errorf("value (-want, +got):\n%s", diff)
	}
}

func TestParseExample_truncated(t *testing.T) {
	t.Parallel()

	rec := example(map[string][]byte{
		"i": feature(fieldKindInt64List, int64List(1, 2, 3)),
	})

	// Every proper prefix that breaks a length delimits as corruption, not
	// a panic. Prefixes that happen to parse (e.g. the empty record) are
	// fine.
	for i := 1; i < len(rec); i++ {
		if _, err := parseExample(rec[:i]); err != nil {
			if diff := cmp.Diff(ErrCorruption, err, cmpopts.EquateErrors()); diff != "" {
				t.Fatalf("parseExample(rec[:%d]) (-want, +got):\n%s", i, diff)
			}
		}
	}
}

func TestDecodeInt64List_negative(t *testing.T) {
	t.Parallel()

	var vals [2]int64
	count, err := decodeInt64List(int64List(-5, -1), vals[:])
	if err != nil {
		t.Fatalf("decodeInt64List: %v", err)
	}
	if diff := cmp.Diff(2, count); diff != "" {
		t.Fatalf("count (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{-5, -1}, vals[:]); diff != "" {
		t.Errorf("values (-want, +got):\n%s", diff)
	}
}
