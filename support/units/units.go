// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package units parses and formats the size and tag arguments accepted on
// the command line.
package units

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// ErrSyntax is returned (wrapped) when a value cannot be parsed.
var ErrSyntax = errors.New("invalid syntax")

// BasicBlockSize is the size of the "bb" unit.
const BasicBlockSize = 512

// iecUnits are the suffixes used by IECSize, in 1024-multiples.
var iecUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

// ParseLength parses a size such as "4096", "0x1000", "4k" or "8bb".
//
// The numeric part is decimal, hexadecimal with a "0x" prefix, or octal with a
// leading "0". It may be followed by a single unit:
//
//	bb, BB  512-byte basic blocks
//	k, K    2^10
//	m, M    2^20
//	g, G    2^30
//	t, T    2^40
//
// Anything after the unit is an error.
func ParseLength(s string) (uint64, error) {
	digits, base, rest := splitNumber(s)
	if digits == "" {
		return 0, errors.Wrapf(ErrSyntax, "length %q", s)
	}
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrSyntax, "length %q: %s", s, err)
	}

	var shift uint
	switch {
	case rest == "":
		return n, nil
	case rest == "bb" || rest == "BB":
		shift = 9
	case len(rest) != 1:
		return 0, errors.Wrapf(ErrSyntax, "length %q: bad unit %q", s, rest)
	default:
		switch rest[0] {
		case 'k', 'K':
			shift = 10
		case 'm', 'M':
			shift = 20
		case 'g', 'G':
			shift = 30
		case 't', 'T':
			shift = 40
		default:
			return 0, errors.Wrapf(ErrSyntax, "length %q: bad unit %q", s, rest)
		}
	}

	if n > math.MaxUint64>>shift {
		return 0, errors.Wrapf(ErrSyntax, "length %q overflows 64 bits", s)
	}
	return n << shift, nil
}

// ParseTag parses an 8-bit tag value. Decimal, "0x" hex and leading-zero
// octal forms are accepted.
func ParseTag(s string) (uint8, error) {
	digits, base, rest := splitNumber(s)
	if digits == "" || rest != "" {
		return 0, errors.Wrapf(ErrSyntax, "tag %q", s)
	}
	v, err := strconv.ParseUint(digits, base, 8)
	if err != nil {
		return 0, errors.Wrapf(ErrSyntax, "tag %q: %s", s, err)
	}
	return uint8(v), nil
}

// splitNumber splits the leading unsigned integer off of s, in the manner of
// strtoull with base 0. It returns the digits (without any "0x" prefix), the
// base they are in, and the unparsed remainder.
func splitNumber(s string) (digits string, base int, rest string) {
	base = 10
	isDigit := func(c byte) bool { return c >= '0' && c <= '9' }

	switch {
	case len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') && isHexDigit(s[2]):
		base, s = 16, s[2:]
		isDigit = isHexDigit
	case len(s) > 1 && s[0] == '0':
		base = 8
		isDigit = func(c byte) bool { return c >= '0' && c <= '7' }
	}

	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], base, s[i:]
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// IECSize renders sz in IEC notation, e.g. "124 KiB". The value is divided by
// 1024 until it is below 1024; remainders are dropped.
func IECSize(sz uint64) string {
	unit := 0
	for sz >= 1024 {
		sz >>= 10
		unit++
	}
	return fmt.Sprintf("%d %s", sz, iecUnits[unit])
}

// FormatLength renders sz as the shortest exact string ParseLength accepts.
func FormatLength(sz uint64) string {
	if sz == 0 {
		return "0"
	}
	suffixes := []string{"", "k", "m", "g", "t"}
	i := 0
	for i < len(suffixes)-1 && sz%1024 == 0 {
		sz /= 1024
		i++
	}
	return strconv.FormatUint(sz, 10) + suffixes[i]
}
