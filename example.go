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
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire field numbers of the Example message family:
//
//	Example  { Features features = 1; }
//	Features { map<string, Feature> feature = 1; }
//	Feature  { oneof kind { BytesList bytes_list = 1;
//	                        FloatList float_list = 2;
//	                        Int64List int64_list = 3; } }
//	BytesList { repeated bytes value = 1; }
//	FloatList { repeated float value = 1 [packed = true]; }
//	Int64List { repeated int64 value = 1 [packed = true]; }
//
// The decoder walks the wire form directly with protowire rather than
// materializing message structs; list payloads are kept as raw sub-slices of
// the record until they are copied into output buffers.
const (
	fieldExampleFeatures = 1
	fieldFeaturesMap     = 1
	fieldMapKey          = 1
	fieldMapValue        = 2
	fieldKindBytesList   = 1
	fieldKindFloatList   = 2
	fieldKindInt64List   = 3
	fieldListValue       = 1
)

// featureKind mirrors the Feature message's oneof tag.
type featureKind int

const (
	kindUnset featureKind = iota
	kindBytes
	kindFloat
	kindInt64
)

// dataType maps the wire tag to the DataType it decodes to.
func (k featureKind) dataType() DataType {
	switch k {
	case kindInt64:
		return DTInt64
	case kindFloat:
		return DTFloat
	case kindBytes:
		return DTString
	case kindUnset:
	}
	return DTInvalid
}

// wireFeature is one entry of a record's feature map: the oneof tag and the
// raw bytes of the value list message. The list slice aliases the record
// buffer.
type wireFeature struct {
	kind featureKind
	list []byte
}

// featureMap is the decoded feature map of one record.
type featureMap map[string]wireFeature

func corruptProto(what string) error {
	return fmt.Errorf("%w: truncated %s message", ErrCorruption, what)
}

// parseExample extracts the feature map from a serialized Example message.
func parseExample(serialized []byte) (featureMap, error) {
	fm := featureMap{}

	b := serialized
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, corruptProto("Example")
		}
		b = b[n:]

		if num == fieldExampleFeatures && typ == protowire.BytesType {
			features, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, corruptProto("Example")
			}
			if err := parseFeatures(features, fm); err != nil {
				return nil, err
			}
			b = b[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, corruptProto("Example")
		}
		b = b[n:]
	}
	return fm, nil
}

// parseFeatures decodes the Features message's map field into fm.
func parseFeatures(b []byte, fm featureMap) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return corruptProto("Features")
		}
		b = b[n:]

		if num == fieldFeaturesMap && typ == protowire.BytesType {
			entry, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return corruptProto("Features")
			}
			key, feature, err := parseFeatureEntry(entry)
			if err != nil {
				return err
			}
			fm[key] = feature
			b = b[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return corruptProto("Features")
		}
		b = b[n:]
	}
	return nil
}

// parseFeatureEntry decodes one map entry into its key and Feature value.
func parseFeatureEntry(b []byte) (string, wireFeature, error) {
	var key string
	var feature wireFeature

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", feature, corruptProto("feature map entry")
		}
		b = b[n:]

		switch {
		case num == fieldMapKey && typ == protowire.BytesType:
			k, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return "", feature, corruptProto("feature map entry")
			}
			key = string(k)
			b = b[n:]
		case num == fieldMapValue && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return "", feature, corruptProto("feature map entry")
			}
			var err error
			feature, err = parseFeature(v)
			if err != nil {
				return "", feature, err
			}
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", feature, corruptProto("feature map entry")
			}
			b = b[n:]
		}
	}
	return key, feature, nil
}

// parseFeature decodes a Feature message. For the oneof, the last field
// present wins.
func parseFeature(b []byte) (wireFeature, error) {
	feature := wireFeature{kind: kindUnset}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return feature, corruptProto("Feature")
		}
		b = b[n:]

		if typ == protowire.BytesType {
			list, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return feature, corruptProto("Feature")
			}
			switch num {
			case fieldKindBytesList:
				feature = wireFeature{kind: kindBytes, list: list}
			case fieldKindFloatList:
				feature = wireFeature{kind: kindFloat, list: list}
			case fieldKindInt64List:
				feature = wireFeature{kind: kindInt64, list: list}
			}
			b = b[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return feature, corruptProto("Feature")
		}
		b = b[n:]
	}
	return feature, nil
}

// decodeInt64List decodes an Int64List message, writing values into dst in
// order. It returns the total number of values on the wire, which may exceed
// len(dst); excess values are counted but not stored. Both packed and
// unpacked encodings are accepted.
func decodeInt64List(b []byte, dst []int64) (int, error) {
	count := 0
	put := func(v uint64) {
		if count < len(dst) {
			dst[count] = int64(v)
		}
		count++
	}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return count, corruptProto("Int64List")
		}
		b = b[n:]

		switch {
		case num == fieldListValue && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return count, corruptProto("Int64List")
			}
			put(v)
			b = b[n:]
		case num == fieldListValue && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return count, corruptProto("Int64List")
			}
			for len(packed) > 0 {
				v, n := protowire.ConsumeVarint(packed)
				if n < 0 {
					return count, corruptProto("Int64List")
				}
				put(v)
				packed = packed[n:]
			}
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return count, corruptProto("Int64List")
			}
			b = b[n:]
		}
	}
	return count, nil
}

// decodeFloatList decodes a FloatList message, writing values into dst in
// order. It returns the total number of values on the wire; excess values
// are counted but not stored.
func decodeFloatList(b []byte, dst []float32) (int, error) {
	count := 0
	put := func(bits uint32) {
		if count < len(dst) {
			dst[count] = math.Float32frombits(bits)
		}
		count++
	}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return count, corruptProto("FloatList")
		}
		b = b[n:]

		switch {
		case num == fieldListValue && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return count, corruptProto("FloatList")
			}
			put(v)
			b = b[n:]
		case num == fieldListValue && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return count, corruptProto("FloatList")
			}
			for len(packed) > 0 {
				v, n := protowire.ConsumeFixed32(packed)
				if n < 0 {
					return count, corruptProto("FloatList")
				}
				put(v)
				packed = packed[n:]
			}
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return count, corruptProto("FloatList")
			}
			b = b[n:]
		}
	}
	return count, nil
}

// eachBytesValue calls fn for every value of a BytesList message in wire
// order. The slice passed to fn aliases the record buffer.
func eachBytesValue(b []byte, fn func(v []byte)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return corruptProto("BytesList")
		}
		b = b[n:]

		if num == fieldListValue && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return corruptProto("BytesList")
			}
			fn(v)
			b = b[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return corruptProto("BytesList")
		}
		b = b[n:]
	}
	return nil
}
