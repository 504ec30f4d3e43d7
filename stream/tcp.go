// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package stream

import (
	"context"
	"net"
	"os"
	"strconv"

	"github.com/danjacques/genstream/support/network"
)

// clientBackend is a write-only TCP connection.
type clientBackend struct {
	fdBackend
}

var _ Backend = (*clientBackend)(nil)

// serverBackend is a read-only accepted TCP connection.
type serverBackend struct {
	fdBackend
}

var _ Backend = (*serverBackend)(nil)

// Dial connects to host on a TCP port and returns a write-only Stream over the
// connection.
//
// host is resolved to an IPv4 address. o.Flag is ignored.
func Dial(ctx context.Context, host string, port int, o Options) (*Stream, error) {
	addr, err := network.ResolveTCP4(ctx, nil, host, port)
	if err != nil {
		return nil, openError(&o, "gethostbyname", host, err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp4", addr.String())
	if err != nil {
		return nil, openError(&o, "connect", host, err)
	}

	b := clientBackend{fdBackend{
		h:       conn,
		owned:   true,
		backoff: DefaultBackoff,
	}}
	return newStream(host, alignedBuffer(o.blockSize()), os.O_WRONLY, &o, &b), nil
}

// Listen listens on a TCP port on all IPv4 interfaces, accepts exactly one
// connection, and returns a read-only Stream over it. See Accept.
func Listen(ctx context.Context, port int, o Options) (*Stream, error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp4", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return nil, openError(&o, "bind", strconv.Itoa(port), err)
	}
	return Accept(ctx, l, o)
}

// Accept accepts exactly one connection from l, closes l, and returns a
// read-only Stream over the connection. The Stream is named after the peer's
// IP address.
//
// Accept takes ownership of l. If ctx is cancelled while waiting, Accept
// returns ctx's error.
func Accept(ctx context.Context, l net.Listener, o Options) (*Stream, error) {
	defer func() {
		_ = l.Close()
	}()

	doneC := make(chan struct{})
	defer close(doneC)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-doneC:
		}
	}()

	conn, err := l.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, openError(&o, "accept", l.Addr().String(), err)
	}

	name := conn.RemoteAddr().String()
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		name = addr.IP.String()
	}

	b := serverBackend{fdBackend{
		h:       conn,
		owned:   true,
		backoff: DefaultBackoff,
	}}
	return newStream(name, alignedBuffer(o.blockSize()), os.O_RDONLY, &o, &b), nil
}

// Pull implements Backend. A client connection is write-only.
func (b *clientBackend) Pull(s *Stream) (int, error) { return 0, unsupported(s, "pull") }

// Seek implements Backend. The connection itself can't seek, so this only
// moves within the current buffer.
func (b *clientBackend) Seek(s *Stream, off uint64) error { return s.setWindow(off) }

// Push implements Backend. An accepted connection is read-only.
func (b *serverBackend) Push(s *Stream) (int, error) { return 0, unsupported(s, "push") }

// Seek implements Backend. The connection itself can't seek, so this only
// moves within the current buffer.
func (b *serverBackend) Seek(s *Stream, off uint64) error { return s.setWindow(off) }
