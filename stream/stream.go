// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package stream

import (
	"io"
	"os"
	"reflect"

	"github.com/danjacques/genstream/support/bufferpool"
	"github.com/danjacques/genstream/support/logging"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sys/unix"
)

// DefaultBlockSize is the buffer size used when Options.BlockSize is zero.
const DefaultBlockSize = 4096

const accessModeMask = os.O_RDONLY | os.O_WRONLY | os.O_RDWR

// Flags modify backend behavior.
type Flags uint

const (
	// Unlink removes the file immediately after opening it.
	Unlink Flags = 1 << iota
	// CloseAfterMap closes a memory-mapped file's descriptor as soon as it has
	// been mapped. The mapping remains valid.
	CloseAfterMap
	// NoMsync skips the msync of a memory-mapped file on Close.
	NoMsync
	// RetryEAGAIN retries writes that fail with EAGAIN, with exponential
	// backoff.
	RetryEAGAIN
)

// Options configures a new Stream.
type Options struct {
	// Flag is the set of os.OpenFile flags to open with. Its access mode also
	// determines whether the Stream reads or writes.
	Flag int
	// Perm is the permission to create files with. If zero, 0600 is used.
	Perm os.FileMode

	// BlockSize is the size of the Stream's buffer. If zero, DefaultBlockSize
	// is used. Memory-mapped streams ignore it.
	BlockSize int

	// Flags modify backend behavior.
	Flags Flags

	// Logger, if not nil, is the Logger to log diagnostics to.
	Logger logging.L
}

func (o *Options) blockSize() int {
	if o.BlockSize > 0 {
		return o.BlockSize
	}
	return DefaultBlockSize
}

func (o *Options) perm() os.FileMode {
	if o.Perm != 0 {
		return o.Perm
	}
	return 0600
}

// Stats are a Stream's cumulative transfer statistics.
type Stats struct {
	// Blocks is the number of push or pull operations performed.
	Blocks uint64
	// Bytes is the number of bytes pushed or pulled.
	Bytes uint64
}

// Backend is the transport underneath a Stream.
//
// Pull and Push move data between the Stream's buffer and the transport; they
// operate on the regions returned by Stream.PullBuffer and Stream.PushBuffer.
// A Backend that can't perform an operation returns ErrNotSupported.
type Backend interface {
	// Pull reads new data into s.PullBuffer(), returning the number of bytes
	// read. It returns 0 and a nil error at end of data.
	Pull(s *Stream) (int, error)
	// Push writes s.PushBuffer(), returning the number of bytes written.
	Push(s *Stream) (int, error)
	// Seek repositions s to stream offset off.
	Seek(s *Stream, off uint64) error
	// Close releases the Backend's resources.
	Close(s *Stream) error
}

// fixedBuffer is implemented by Backends whose buffer is the data itself, such
// as a memory mapping. Their buffers are never compacted.
type fixedBuffer interface {
	fixedBuffer()
}

// Stream is a buffered stream over a Backend.
//
// In write mode, the bytes between the start of the buffer and the cursor are
// waiting to be pushed, and remain counts the free space after the cursor. In
// read mode, remain counts the unread bytes starting at the cursor.
type Stream struct {
	name    string
	buf     []byte
	cur     int
	remain  int
	mode    int
	flags   Flags
	backend Backend
	logger  logging.L

	stats  Stats
	labels prometheus.Labels
	closed bool
}

func newStream(name string, buf []byte, flag int, o *Options, b Backend) *Stream {
	s := Stream{
		name:    name,
		buf:     buf,
		mode:    flag & accessModeMask,
		flags:   o.Flags,
		backend: b,
		logger:  logging.Must(o.Logger),
	}
	if s.mode != os.O_RDONLY {
		s.remain = len(buf)
	}
	s.labels = prometheus.Labels{
		"backend": reflect.TypeOf(b).String(),
		"name":    name,
	}
	return &s
}

// buffers holds page-aligned buffers, as O_DIRECT requires.
var buffers = bufferpool.Set{Align: unix.Getpagesize()}

// alignedBuffer returns a zeroed page-aligned buffer of size bytes.
func alignedBuffer(size int) []byte { return buffers.Get(size) }

// Name returns the Stream's name, used in diagnostics.
func (s *Stream) Name() string { return s.name }

// Stats returns the Stream's cumulative statistics.
func (s *Stream) Stats() Stats { return s.stats }

// Capacity returns the size of the Stream's buffer.
func (s *Stream) Capacity() int { return len(s.buf) }

// Logger returns the Stream's logger.
func (s *Stream) Logger() logging.L { return s.logger }

// PullBuffer returns the free region of the buffer that a Backend's Pull
// should fill. It is only valid during a Pull call.
func (s *Stream) PullBuffer() []byte { return s.buf[s.cur+s.remain:] }

// PushBuffer returns the buffered bytes that a Backend's Push should write.
// It is only valid during a Push call.
func (s *Stream) PushBuffer() []byte { return s.buf[:len(s.buf)-s.remain] }

func (s *Stream) readable() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.mode == os.O_WRONLY:
		return errors.Wrapf(ErrWrongMode, "%s: read", s.name)
	default:
		return nil
	}
}

func (s *Stream) writable() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.mode == os.O_RDONLY:
		return errors.Wrapf(ErrWrongMode, "%s: write", s.name)
	default:
		return nil
	}
}

// pull moves any unread bytes to the start of the buffer, then asks the
// Backend to fill the rest.
func (s *Stream) pull() (int, error) {
	if _, ok := s.backend.(fixedBuffer); !ok {
		if s.remain > 0 {
			copy(s.buf, s.buf[s.cur:s.cur+s.remain])
		}
		s.cur = 0
	}

	pulled, err := s.backend.Pull(s)
	if err != nil {
		streamErrors.With(s.opLabels("pull")).Inc()
		return 0, err
	}
	s.remain += pulled
	s.account("pull", pulled)
	return pulled, nil
}

// push writes the buffered bytes to the Backend and resets the buffer.
func (s *Stream) push() error {
	used := len(s.buf) - s.remain
	if used == 0 {
		return nil
	}

	pushed, err := s.backend.Push(s)
	if err != nil {
		streamErrors.With(s.opLabels("push")).Inc()
		return err
	}
	if pushed < used {
		streamErrors.With(s.opLabels("push")).Inc()
		s.logger.Errorf("%s: short write, pushed %d of %d bytes", s.name, pushed, used)
		return errors.Wrapf(ErrShortWrite, "%s: pushed %d of %d bytes", s.name, pushed, used)
	}

	s.account("push", used)
	s.cur = 0
	s.remain = len(s.buf)
	return nil
}

func (s *Stream) account(op string, n int) {
	s.stats.Blocks++
	s.stats.Bytes += uint64(n)

	labels := s.opLabels(op)
	streamBlocks.With(labels).Inc()
	streamBytes.With(labels).Add(float64(n))
}

func (s *Stream) opLabels(op string) prometheus.Labels {
	return prometheus.Labels{
		"backend": s.labels["backend"],
		"name":    s.labels["name"],
		"op":      op,
	}
}

// setWindow repositions the cursor within the buffer. It is the seek
// operation for backends that can't reposition their transport.
func (s *Stream) setWindow(off uint64) error {
	if off >= uint64(len(s.buf)) {
		return errors.Wrapf(ErrSeekRange, "%s: offset %d, buffer is %d bytes", s.name, off, len(s.buf))
	}
	s.cur = int(off)
	s.remain = len(s.buf) - s.cur
	return nil
}

// Read reads up to len(p) bytes into p, pulling from the Backend as the
// buffer empties. It stops early only at end of data, returning io.EOF if no
// bytes were read at all.
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.readable(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	total := 0
	for len(p) > 0 {
		if s.remain == 0 {
			pulled, err := s.pull()
			if err != nil {
				return total, err
			}
			if pulled == 0 {
				break
			}
		}

		n := copy(p, s.buf[s.cur:s.cur+s.remain])
		p = p[n:]
		s.cur += n
		s.remain -= n
		total += n
	}

	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// Write writes all of p, pushing to the Backend whenever the buffer fills.
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.writable(); err != nil {
		return 0, err
	}

	total := 0
	for len(p) > 0 {
		if s.remain == 0 {
			if err := s.push(); err != nil {
				return total, err
			}
		}

		n := copy(s.buf[s.cur:s.cur+s.remain], p)
		p = p[n:]
		s.cur += n
		s.remain -= n
		total += n

		if s.remain == 0 {
			if err := s.push(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// InlineWrite returns a slice of exactly n bytes of buffer space for the
// caller to fill in place, pushing the buffer first if there isn't enough
// room. The slice is only valid until the next call on s.
//
// n may not exceed the buffer's capacity.
func (s *Stream) InlineWrite(n int) ([]byte, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	if n > len(s.buf) {
		return nil, errors.Wrapf(ErrSlotTooLarge, "%s: %d > %d bytes", s.name, n, len(s.buf))
	}
	if s.remain < n {
		if err := s.push(); err != nil {
			return nil, err
		}
	}
	return s.inlineBytes(n), nil
}

// InlineRead returns a slice of exactly n buffered bytes, pulling first if not
// enough are buffered. The slice is only valid until the next call on s.
//
// At end of data, InlineRead returns io.EOF if nothing was left, or
// io.ErrUnexpectedEOF if fewer than n bytes were left.
func (s *Stream) InlineRead(n int) ([]byte, error) {
	if err := s.readable(); err != nil {
		return nil, err
	}
	if n > len(s.buf) {
		return nil, errors.Wrapf(ErrSlotTooLarge, "%s: %d > %d bytes", s.name, n, len(s.buf))
	}
	for s.remain < n {
		pulled, err := s.pull()
		if err != nil {
			return nil, err
		}
		if pulled == 0 {
			if s.remain == 0 {
				return nil, io.EOF
			}
			return nil, io.ErrUnexpectedEOF
		}
	}
	return s.inlineBytes(n), nil
}

func (s *Stream) inlineBytes(n int) []byte {
	p := s.buf[s.cur : s.cur+n : s.cur+n]
	s.cur += n
	s.remain -= n
	return p
}

// SeekTo repositions the stream at offset off.
//
// What that means depends on the Backend: file streams flush and seek the
// underlying file, while memory-mapped and TCP streams can only move within
// their current buffer.
func (s *Stream) SeekTo(off uint64) error {
	if s.closed {
		return ErrClosed
	}
	if s.backend == nil {
		return errors.Wrapf(ErrNotSupported, "%s: seek", s.name)
	}
	return s.backend.Seek(s, off)
}

// Flush pushes any buffered bytes to the Backend. It does nothing on a
// read-only Stream.
func (s *Stream) Flush() error {
	if s.closed {
		return ErrClosed
	}
	if s.mode == os.O_RDONLY {
		return nil
	}
	return s.push()
}

// Close flushes s and releases its Backend and buffer.
//
// Every release step is attempted; the first error encountered is returned.
func (s *Stream) Close() error {
	if s.closed {
		return ErrClosed
	}

	err := s.Flush()
	if err != nil {
		s.logger.Errorf("%s: flush on close: %s", s.name, err)
	}

	s.closed = true
	if cerr := s.backend.Close(s); cerr != nil && err == nil {
		err = cerr
	}
	if _, ok := s.backend.(fixedBuffer); !ok {
		buffers.Put(s.buf)
	}
	s.buf = nil
	s.cur, s.remain = 0, 0
	return err
}

// unsupported logs and returns an ErrNotSupported for operation op. Being
// called at all means the stream was opened in the wrong mode.
func unsupported(s *Stream, op string) error {
	s.logger.Errorf("%s: %s called on %T", s.name, op, s.backend)
	return errors.Wrapf(ErrNotSupported, "%s: %s", s.name, op)
}
