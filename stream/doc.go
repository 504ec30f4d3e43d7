// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package stream implements a buffered byte stream over pluggable backends.
//
// A Stream owns a single buffer. Writers fill it, and the Stream pushes it to
// its Backend whenever it fills up; readers drain it, and the Stream pulls
// more from its Backend whenever it empties. Callers can read and write in
// chunks of any size without regard to buffer boundaries.
//
// Four backends are provided:
//
//	- OpenFile and FromFile: a regular file or descriptor, accessed with
//	  read(2) and write(2).
//	- OpenMmap: a memory-mapped file. The mapping is the buffer, so there is
//	  nothing to push, and nothing can be pulled.
//	- Dial: a write-only TCP client connection.
//	- Listen and Accept: a read-only stream from a single accepted TCP
//	  connection.
//
// InlineWrite and InlineRead hand out slices of the buffer itself, so that
// fixed-size records can be encoded or decoded in place. A Stream is not safe
// for concurrent use.
package stream
