// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package record

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

var structOptions = struc.Options{Order: binary.BigEndian}

// wireRecord is the on-disk form of a basic record.
type wireRecord struct {
	Checksum uint16 `struc:"uint16"`
	High     uint16 `struc:"uint16"`
	Low      uint32 `struc:"uint32"`
}

// wireCreatorRecord is the on-disk form of a record that carries a Creator.
type wireCreatorRecord struct {
	Checksum uint16 `struc:"uint16"`
	High     uint16 `struc:"uint16"`
	Low      uint32 `struc:"uint32"`
	Creator  uint64 `struc:"uint64"`
}

// Record is a decoded record.
type Record struct {
	// Checksum is the stored checksum field.
	Checksum uint16
	// High is the raw high offset field. In tagged streams, its top byte is
	// the tag.
	High uint16
	// Low is the low 32 bits of the record's offset.
	Low uint32

	// HasCreator is true if the record was decoded with a Creator.
	HasCreator bool
	// Creator is the record's Creator, if HasCreator is true.
	Creator Creator
}

// Decode decodes a single record from rec.
//
// If creator is true, rec is decoded as a CreatorSize record. Decode does not
// validate the checksum; use Valid for that.
func Decode(rec []byte, creator bool) (*Record, error) {
	size := Size
	if creator {
		size = CreatorSize
	}
	if len(rec) < size {
		return nil, errors.Errorf("short record: %d < %d bytes", len(rec), size)
	}
	r := bytes.NewReader(rec[:size])

	if !creator {
		var w wireRecord
		if err := struc.UnpackWithOptions(r, &w, &structOptions); err != nil {
			return nil, errors.Wrap(err, "unpacking record")
		}
		return &Record{
			Checksum: w.Checksum,
			High:     w.High,
			Low:      w.Low,
		}, nil
	}

	var w wireCreatorRecord
	if err := struc.UnpackWithOptions(r, &w, &structOptions); err != nil {
		return nil, errors.Wrap(err, "unpacking creator record")
	}
	return &Record{
		Checksum:   w.Checksum,
		High:       w.High,
		Low:        w.Low,
		HasCreator: true,
		Creator:    Creator(w.Creator),
	}, nil
}

// Offset returns the stream offset encoded in r.
//
// In tagged streams only 40 bits of offset are stored; otherwise 48.
func (r *Record) Offset(tagged bool) uint64 {
	high := uint64(r.High)
	if tagged {
		high &= 0xff
	}
	return high<<32 | uint64(r.Low)
}

// Tag returns the tag stored in r. It is only meaningful for tagged streams.
func (r *Record) Tag() uint8 { return uint8(r.High >> 8) }
