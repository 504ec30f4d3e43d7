// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package bufferpool maintains pools of aligned byte buffers.
package bufferpool

import (
	"sync"
	"unsafe"
)

// Aligned allocates a buffer of size bytes whose first byte is aligned to
// align, which must be a power of two. The returned slice's capacity is size.
func Aligned(size, align int) []byte {
	if align <= 1 {
		return make([]byte, size)
	}
	b := make([]byte, size+align)
	off := int(uintptr(unsafe.Pointer(&b[0])) & uintptr(align-1))
	if off != 0 {
		off = align - off
	}
	return b[off : off+size : off+size]
}

// Pool maintains a pool of aligned buffers of a single size. It offers a new
// buffer when one is unavailable.
type Pool struct {
	// Size is the size of the buffers in this pool.
	Size int
	// Align is the alignment of the buffers in this pool.
	Align int

	base sync.Pool
}

// Get returns a zeroed buffer, allocating one if one is not available.
//
// The caller should return the buffer to the pool with Put when done with it.
func (bp *Pool) Get() []byte {
	if b, ok := bp.base.Get().(*[]byte); ok {
		buf := *b
		for i := range buf {
			buf[i] = 0
		}
		return buf
	}
	return Aligned(bp.Size, bp.Align)
}

// Put returns a buffer obtained from Get to the pool. Buffers of the wrong
// size are dropped.
//
// A buffer must not be used after it is Put.
func (bp *Pool) Put(b []byte) {
	if len(b) != bp.Size || cap(b) != bp.Size {
		return
	}
	bp.base.Put(&b)
}

// Set is a set of Pools, one per buffer size, sharing an alignment.
//
// Set is safe for concurrent use.
type Set struct {
	// Align is the alignment of every buffer in the Set.
	Align int

	mu    sync.Mutex
	pools map[int]*Pool
}

func (s *Set) pool(size int) *Pool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pools[size]
	if p == nil {
		if s.pools == nil {
			s.pools = make(map[int]*Pool)
		}
		p = &Pool{Size: size, Align: s.Align}
		s.pools[size] = p
	}
	return p
}

// Get returns a zeroed buffer of size bytes.
func (s *Set) Get(size int) []byte { return s.pool(size).Get() }

// Put returns a buffer obtained from Get to its pool.
func (s *Set) Put(b []byte) { s.pool(len(b)).Put(b) }
