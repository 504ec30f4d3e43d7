// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package stream

import (
	"io"

	"github.com/pkg/errors"
)

var (
	// ErrNotSupported is returned when a Backend is asked to perform an
	// operation that it does not implement, such as pulling from a write-only
	// TCP client.
	ErrNotSupported = errors.New("operation not supported")

	// ErrSeekRange is returned when a windowed seek falls outside of the
	// Stream's buffer.
	ErrSeekRange = errors.New("seek offset out of range")

	// ErrSlotTooLarge is returned when an inline slot larger than the Stream's
	// buffer is requested.
	ErrSlotTooLarge = errors.New("inline slot larger than buffer")

	// ErrShortWrite is returned when a Backend accepts fewer bytes than were
	// buffered.
	ErrShortWrite = io.ErrShortWrite

	// ErrWrongMode is returned when reading from a write-only Stream or writing
	// to a read-only Stream.
	ErrWrongMode = errors.New("stream not open in this direction")

	// ErrClosed is returned by operations on a closed Stream.
	ErrClosed = errors.New("stream is closed")
)
