// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package record

import (
	"encoding/binary"
)

// Checksum computes the ones' complement checksum of b, treated as a sequence
// of big-endian 16-bit words.
//
// b must have an even length. Records are at most 16 bytes, so the 32-bit
// accumulator can't overflow.
func Checksum(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i:]))
	}
	return finishChecksum(sum)
}

func finishChecksum(sum uint32) uint16 {
	sum = (sum >> 16) + (sum & 0xffff)
	sum += (sum >> 16) & 1
	return ^uint16(sum)
}

// Valid returns true if rec, a complete record including its checksum field,
// checksums to zero.
func Valid(rec []byte) bool { return Checksum(rec) == 0 }
