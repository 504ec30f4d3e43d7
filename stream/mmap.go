// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package stream

import (
	"math"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// mmapBackend is a Stream whose buffer is a shared file mapping.
type mmapBackend struct {
	// f is the mapped file, or nil if it was closed after mapping.
	f *os.File
	// m is the whole mapping, rounded up to the page size.
	m mmap.MMap
}

var _ Backend = (*mmapBackend)(nil)

func (*mmapBackend) fixedBuffer() {}

// OpenMmap opens the named file and maps its first size bytes as the Stream's
// buffer.
//
// If the file is shorter than size, it is extended first. If size is zero,
// the file's current size is used. A write-only o.Flag is opened read-write,
// since a writable shared mapping needs both.
//
// o.Flags may include Unlink, CloseAfterMap, and NoMsync.
func OpenMmap(name string, o Options, size uint64) (*Stream, error) {
	flag := o.Flag
	prot := mmap.RDONLY
	switch flag & accessModeMask {
	case os.O_RDONLY:
	case os.O_WRONLY, os.O_RDWR:
		flag = (flag &^ accessModeMask) | os.O_RDWR
		prot = mmap.RDWR
	default:
		return nil, errors.Errorf("%s: invalid access mode", name)
	}

	f, err := os.OpenFile(name, flag, o.perm())
	if err != nil {
		return nil, openError(&o, "open", name, err)
	}
	// Close f on failure.
	defer func() {
		if f != nil {
			_ = f.Close()
		}
	}()

	st, err := f.Stat()
	if err != nil {
		return nil, openError(&o, "fstat", name, err)
	}
	switch {
	case size == 0:
		size = uint64(st.Size())
	case size > uint64(st.Size()):
		if err := f.Truncate(int64(size)); err != nil {
			return nil, openError(&o, "ftruncate", name, err)
		}
	}
	if size == 0 {
		return nil, openError(&o, "mmap", name, errors.New("cannot map an empty file"))
	}

	pageSize := uint64(unix.Getpagesize())
	mapLen := (size + pageSize - 1) &^ (pageSize - 1)
	if mapLen > math.MaxInt {
		return nil, openError(&o, "mmap", name, errors.Errorf("size %d too large", size))
	}

	m, err := mmap.MapRegion(f, int(mapLen), prot, 0, 0)
	if err != nil {
		return nil, openError(&o, "mmap", name, err)
	}

	b := mmapBackend{m: m}
	s := newStream(name, m[:size:size], flag, &o, &b)
	// Every byte of the mapping is readable from the start.
	s.remain = len(s.buf)

	if o.Flags&Unlink != 0 {
		if err := os.Remove(name); err != nil {
			_ = m.Unmap()
			return nil, openError(&o, "unlink", name, err)
		}
	}
	if o.Flags&CloseAfterMap != 0 {
		err := f.Close()
		f = nil
		if err != nil {
			_ = m.Unmap()
			return nil, openError(&o, "close", name, err)
		}
	}

	b.f, f = f, nil
	return s, nil
}

// Pull implements Backend. The mapping already holds all of the data there
// is.
func (b *mmapBackend) Pull(s *Stream) (int, error) { return 0, unsupported(s, "pull") }

// Push implements Backend. The data is already in the mapping.
func (b *mmapBackend) Push(s *Stream) (int, error) { return len(s.PushBuffer()), nil }

// Seek implements Backend, moving the cursor within the mapping.
func (b *mmapBackend) Seek(s *Stream, off uint64) error { return s.setWindow(off) }

// Close implements Backend. The mapping is synced unless NoMsync is set, then
// unmapped, then the file is closed if it is still open.
func (b *mmapBackend) Close(s *Stream) error {
	var err error
	record := func(op string, e error) {
		s.logger.Errorf("%s(%q): %s", op, s.name, e)
		if err == nil {
			err = errors.Wrapf(e, "%s(%q)", op, s.name)
		}
	}

	if s.flags&NoMsync == 0 {
		if e := b.m.Flush(); e != nil {
			record("msync", e)
		}
	}
	if e := b.m.Unmap(); e != nil {
		record("munmap", e)
	}
	b.m = nil

	if b.f != nil {
		if e := b.f.Close(); e != nil {
			record("close", e)
		}
		b.f = nil
	}
	return err
}
