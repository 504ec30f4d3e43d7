// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package record

import (
	"encoding/binary"
)

const (
	// Size is the size of a basic record.
	Size = 8
	// CreatorSize is the size of a record that carries a Creator.
	CreatorSize = 16

	checksumOff = 0
	highOff     = 2
	lowOff      = 4
	creatorOff  = 8
)

// Layout describes how records are encoded for one stream.
type Layout struct {
	// Tagged, if true, stores Tag in each record in place of the top byte of
	// the 16-bit high offset field.
	Tagged bool
	// Tag is the tag value written when Tagged is true.
	Tag uint8

	// HasCreator, if true, extends each record with Creator.
	HasCreator bool
	// Creator is the Creator written when HasCreator is true.
	Creator Creator
}

// Size returns the size of a record in this Layout.
func (l *Layout) Size() int {
	if l.HasCreator {
		return CreatorSize
	}
	return Size
}

// Truncate rounds length down to a whole number of records.
func (l *Layout) Truncate(length uint64) uint64 {
	return length &^ uint64(l.Size()-1)
}

// Put encodes the record for stream offset off into rec, which must be at
// least Size bytes long.
//
// The checksum is written last, over every other field.
func (l *Layout) Put(rec []byte, off uint64) {
	size := l.Size()
	rec = rec[:size:size]

	if l.Tagged {
		rec[highOff] = l.Tag
		rec[highOff+1] = byte(off >> 32)
	} else {
		binary.BigEndian.PutUint16(rec[highOff:], uint16(off>>32))
	}
	binary.BigEndian.PutUint32(rec[lowOff:], uint32(off))

	if l.HasCreator {
		binary.BigEndian.PutUint64(rec[creatorOff:], uint64(l.Creator))
	}

	binary.BigEndian.PutUint16(rec[checksumOff:], Checksum(rec[highOff:]))
}
