// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package units

import (
	"strconv"

	"github.com/spf13/pflag"
)

// LengthFlag is a pflag.Value implementation that parses a size with
// ParseLength.
type LengthFlag uint64

var _ pflag.Value = (*LengthFlag)(nil)

func (lf *LengthFlag) String() string { return FormatLength(uint64(*lf)) }

// Set implements pflag.Value.
func (lf *LengthFlag) Set(v string) error {
	n, err := ParseLength(v)
	if err != nil {
		return err
	}
	*lf = LengthFlag(n)
	return nil
}

// Type implements pflag.Value.
func (lf *LengthFlag) Type() string { return "size" }

// Value returns the size held by this flag.
func (lf LengthFlag) Value() uint64 { return uint64(lf) }

// TagFlag is a pflag.Value implementation that stores an optional 8-bit tag.
type TagFlag struct {
	// Tag is the parsed tag value.
	Tag uint8
	// Valid is true if the flag was set.
	Valid bool
}

var _ pflag.Value = (*TagFlag)(nil)

func (tf *TagFlag) String() string {
	if !tf.Valid {
		return ""
	}
	return strconv.Itoa(int(tf.Tag))
}

// Set implements pflag.Value.
func (tf *TagFlag) Set(v string) error {
	tag, err := ParseTag(v)
	if err != nil {
		return err
	}
	tf.Tag, tf.Valid = tag, true
	return nil
}

// Type implements pflag.Value.
func (tf *TagFlag) Type() string { return "tag" }
