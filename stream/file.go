// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package stream

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Backoff controls how writes that fail with EAGAIN are retried.
type Backoff struct {
	// Attempts is the total number of write attempts, including the first.
	Attempts int
	// Delay is the sleep before the first retry. It doubles on each retry.
	Delay time.Duration

	// Sleep, if not nil, is used in place of time.Sleep.
	Sleep func(time.Duration)
}

// DefaultBackoff is the EAGAIN retry policy used by file and TCP streams.
var DefaultBackoff = Backoff{
	Attempts: 10,
	Delay:    10 * time.Millisecond,
}

func (b *Backoff) sleep(d time.Duration) {
	if b.Sleep != nil {
		b.Sleep(d)
		return
	}
	time.Sleep(d)
}

// fdHandle is an open descriptor: an *os.File or a net.Conn.
type fdHandle interface {
	io.Reader
	io.Writer
	io.Closer
}

// fdBackend reads and writes a descriptor directly.
type fdBackend struct {
	h fdHandle
	// owned is true if the descriptor is closed along with the Stream.
	owned   bool
	backoff Backoff
}

var _ Backend = (*fdBackend)(nil)

// OpenFile opens the named file and returns a buffered Stream over it.
//
// o.Flag is passed to os.OpenFile. If o.Flags includes Unlink, the file is
// removed as soon as it is open.
func OpenFile(name string, o Options) (*Stream, error) {
	f, err := os.OpenFile(name, o.Flag, o.perm())
	if err != nil {
		return nil, openError(&o, "open", name, err)
	}

	s := newFDStream(name, f, o.Flag, &o, true)
	if o.Flags&Unlink != 0 {
		if err := os.Remove(name); err != nil {
			_ = f.Close()
			return nil, openError(&o, "unlink", name, err)
		}
	}
	return s, nil
}

// FromFile returns a buffered Stream over an already-open file, such as
// os.Stdout. The file is not closed when the Stream is closed.
//
// o.Flag supplies only the access mode; the file is not reopened.
func FromFile(f *os.File, o Options) *Stream {
	var name string
	switch fd := f.Fd(); fd {
	case uintptr(unix.Stdin):
		name = "-stdin-"
	case uintptr(unix.Stdout):
		name = "-stdout-"
	default:
		name = fmt.Sprintf("fd%d", fd)
	}
	return newFDStream(name, f, o.Flag, &o, false)
}

func newFDStream(name string, h fdHandle, flag int, o *Options, owned bool) *Stream {
	b := fdBackend{
		h:       h,
		owned:   owned,
		backoff: DefaultBackoff,
	}
	return newStream(name, alignedBuffer(o.blockSize()), flag, o, &b)
}

// Pull implements Backend.
func (b *fdBackend) Pull(s *Stream) (int, error) { return b.read(s) }

// Push implements Backend.
func (b *fdBackend) Push(s *Stream) (int, error) { return b.write(s, s.PushBuffer()) }

// Seek implements Backend. Pending writes are flushed, buffered reads are
// discarded, and the file offset is moved to off.
func (b *fdBackend) Seek(s *Stream, off uint64) error {
	seeker, ok := b.h.(io.Seeker)
	if !ok {
		return unsupported(s, "seek")
	}

	if err := s.Flush(); err != nil {
		return err
	}
	if s.mode == os.O_RDONLY {
		s.cur, s.remain = 0, 0
	}

	if _, err := seeker.Seek(int64(off), io.SeekStart); err != nil {
		s.logger.Errorf("lseek(%q): %s", s.name, err)
		return errors.Wrapf(err, "lseek(%q)", s.name)
	}
	return nil
}

// Close implements Backend.
func (b *fdBackend) Close(s *Stream) error {
	if !b.owned {
		return nil
	}
	if err := b.h.Close(); err != nil {
		s.logger.Errorf("close(%q): %s", s.name, err)
		return errors.Wrapf(err, "close(%q)", s.name)
	}
	return nil
}

// read fills the Stream's pull region with a single read. Interrupted reads
// are retried. End of data is reported as 0 bytes and no error.
func (b *fdBackend) read(s *Stream) (int, error) {
	for {
		n, err := b.h.Read(s.PullBuffer())
		switch {
		case err == nil, err == io.EOF:
			return n, nil
		case n > 0:
			// Deliver what we have; the error will recur on the next read.
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		default:
			s.logger.Errorf("read(%q): %s", s.name, err)
			return 0, errors.Wrapf(err, "read(%q)", s.name)
		}
	}
}

// write writes all of p. If the Stream has RetryEAGAIN set, writes that fail
// with EAGAIN are retried after an exponentially increasing delay, resuming
// after any bytes that were accepted.
//
// A write that returns short without an error is returned as-is; the Stream
// reports it as ErrShortWrite.
func (b *fdBackend) write(s *Stream, p []byte) (int, error) {
	attempts := b.backoff.Attempts
	delay := b.backoff.Delay

	written := 0
	for written < len(p) {
		n, err := b.h.Write(p[written:])
		written += n

		switch {
		case err == nil:
			if n == 0 {
				return written, nil
			}
			continue

		case errors.Is(err, unix.EINTR):
			continue

		case errors.Is(err, unix.EAGAIN) && s.flags&RetryEAGAIN != 0:
			if attempts--; attempts > 0 {
				streamRetries.With(s.labels).Inc()
				s.logger.Debugf("write(%q): EAGAIN, retrying in %s", s.name, delay)
				b.backoff.sleep(delay)
				delay *= 2
				continue
			}
		}

		s.logger.Errorf("write(%q): %s", s.name, err)
		return written, errors.Wrapf(err, "write(%q)", s.name)
	}
	return written, nil
}

// openError logs and wraps an error from the system call op on name.
func openError(o *Options, op, name string, err error) error {
	if o.Logger != nil {
		o.Logger.Errorf("%s(%q): %s", op, name, err)
	}
	return errors.Wrapf(err, "%s(%q)", op, name)
}
