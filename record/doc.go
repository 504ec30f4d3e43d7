// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package record defines the self-checking record layout written by
// genstream and read back by checkstream.
//
// A stream is a flat sequence of fixed-size records with no file header. Each
// record identifies its own byte offset within the logical stream, so that a
// reader can detect corruption, truncation, misordering, and
// cross-contamination between streams that share a destination.
//
// The basic record is 8 bytes:
//
//	+----------+-------------------+-------------------------+
//	| 0..1     | 2..3              | 4..7                    |
//	| checksum | offset[32:48]     | offset[0:32]            |
//	|          | or tag, off[32:40]|                         |
//	+----------+-------------------+-------------------------+
//
// When creator tracking is enabled, each record is extended to 16 bytes by
// appending an 8-byte Creator, which identifies the process and the time at
// which the generating run started.
//
// All multi-byte fields are big-endian. The checksum is an IP-style ones'
// complement checksum chosen so that the checksum of the entire record,
// including the checksum field, is zero.
package record
