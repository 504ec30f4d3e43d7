// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package fmtutil contains formatting helpers for record diagnostics.
package fmtutil

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Hex is a byte slice that renders as a hex-dumped string.
//
// It can be used for easy lazy hex dumping.
type Hex []byte

func (h Hex) String() string { return hex.Dump([]byte(h)) }

// Words is a byte slice that renders as a sequence of big-endian 16-bit words,
// the unit that record checksums are computed over.
//
// Output as: "[3]word{0x1234, 0x5678, 0x9A}". A trailing odd byte is rendered
// on its own.
//
// It can be used for easy lazy dumping.
type Words []byte

func (w Words) String() string {
	n := (len(w) + 1) / 2

	var sb bytes.Buffer
	sb.Grow((8 * n) + 16)
	fmt.Fprintf(&sb, "[%d]word{", n)
	for i := 0; i < len(w); i += 2 {
		if i > 0 {
			sb.WriteString(", ")
		}
		if i+1 < len(w) {
			fmt.Fprintf(&sb, "0x%02X%02X", w[i], w[i+1])
		} else {
			fmt.Fprintf(&sb, "0x%02X", w[i])
		}
	}
	sb.WriteString("}")
	return sb.String()
}

// At is a record found at a stream offset. It renders as the offset followed
// by the record's words.
type At struct {
	Offset uint64
	Data   []byte
}

func (a At) String() string { return fmt.Sprintf("@%#x %s", a.Offset, Words(a.Data)) }
