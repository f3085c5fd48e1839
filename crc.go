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
	"hash/crc32"
)

// maskDelta is the constant added to a rotated CRC to produce the masked
// value stored in record files. Masking decorrelates the stored checksum
// from common data patterns.
const maskDelta = 0xa282ead8

// castagnoli is the CRC32C table. crc32.Checksum uses hardware instructions
// for this polynomial where the platform provides them.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// crc32c returns the CRC32C (Castagnoli) checksum of p.
func crc32c(p []byte) uint32 {
	return crc32.Checksum(p, castagnoli)
}

// maskCRC returns the masked form of crc as stored on disk.
func maskCRC(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// unmaskCRC inverts maskCRC.
func unmaskCRC(masked uint32) uint32 {
	rot := masked - maskDelta
	return (rot >> 17) | (rot << 15)
}
