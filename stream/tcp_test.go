// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package stream

import (
	"context"
	"io"
	"io/ioutil"
	"net"
	"time"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("TCP streams", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	})

	AfterEach(func() {
		cancel()
	})

	listen := func() (net.Listener, int) {
		l, err := net.Listen("tcp4", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		return l, l.Addr().(*net.TCPAddr).Port
	}

	It("carries data from a client to an accepted server", func() {
		l, port := listen()

		type acceptResult struct {
			s   *Stream
			err error
		}
		acceptC := make(chan acceptResult, 1)
		go func() {
			s, err := Accept(ctx, l, Options{BlockSize: 16})
			acceptC <- acceptResult{s, err}
		}()

		client, err := Dial(ctx, "127.0.0.1", port, Options{BlockSize: 16})
		Expect(err).ToNot(HaveOccurred())
		Expect(client.Name()).To(Equal("127.0.0.1"))

		var res acceptResult
		Eventually(acceptC).Should(Receive(&res))
		Expect(res.err).ToNot(HaveOccurred())
		server := res.s
		defer server.Close()
		Expect(server.Name()).To(Equal("127.0.0.1"))

		data := sequence(200)
		Expect(client.Write(data)).To(Equal(200))
		Expect(client.Close()).To(Succeed())

		got, err := ioutil.ReadAll(server)
		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(Equal(data))
	})

	It("refuses to read from a client or write to a server", func() {
		l, port := listen()
		acceptC := make(chan *Stream, 1)
		go func() {
			defer GinkgoRecover()
			s, err := Accept(ctx, l, Options{})
			Expect(err).ToNot(HaveOccurred())
			acceptC <- s
		}()

		client, err := Dial(ctx, "127.0.0.1", port, Options{})
		Expect(err).ToNot(HaveOccurred())
		defer client.Close()

		var server *Stream
		Eventually(acceptC).Should(Receive(&server))
		defer server.Close()

		_, err = client.Read(make([]byte, 1))
		Expect(errors.Is(err, ErrWrongMode)).To(BeTrue())
		_, err = server.Write([]byte{1})
		Expect(errors.Is(err, ErrWrongMode)).To(BeTrue())

		_, err = client.backend.Pull(client)
		Expect(errors.Is(err, ErrNotSupported)).To(BeTrue())
		_, err = server.backend.Push(server)
		Expect(errors.Is(err, ErrNotSupported)).To(BeTrue())
	})

	It("seeks a client within its buffer", func() {
		l, port := listen()
		acceptC := make(chan *Stream, 1)
		go func() {
			defer GinkgoRecover()
			s, err := Accept(ctx, l, Options{BlockSize: 8})
			Expect(err).ToNot(HaveOccurred())
			acceptC <- s
		}()

		client, err := Dial(ctx, "127.0.0.1", port, Options{BlockSize: 8})
		Expect(err).ToNot(HaveOccurred())

		var server *Stream
		Eventually(acceptC).Should(Receive(&server))
		defer server.Close()

		Expect(client.SeekTo(4)).To(Succeed())
		Expect(client.Write([]byte{9})).To(Equal(1))
		Expect(errors.Is(client.SeekTo(8), ErrSeekRange)).To(BeTrue())
		Expect(client.Close()).To(Succeed())

		got, err := ioutil.ReadAll(server)
		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(Equal([]byte{0, 0, 0, 0, 9}))
	})

	It("stops accepting when cancelled", func() {
		l, _ := listen()
		cctx, ccancel := context.WithCancel(ctx)

		errC := make(chan error, 1)
		go func() {
			_, err := Accept(cctx, l, Options{})
			errC <- err
		}()

		ccancel()
		var err error
		Eventually(errC).Should(Receive(&err))
		Expect(err).To(Equal(context.Canceled))
	})

	It("reports a refused connection", func() {
		l, port := listen()
		Expect(l.Close()).To(Succeed())

		_, err := Dial(ctx, "127.0.0.1", port, Options{})
		Expect(err).To(MatchError(ContainSubstring(`connect("127.0.0.1")`)))
	})

	It("reads nothing from a connection closed without data", func() {
		l, port := listen()
		acceptC := make(chan *Stream, 1)
		go func() {
			defer GinkgoRecover()
			s, err := Accept(ctx, l, Options{})
			Expect(err).ToNot(HaveOccurred())
			acceptC <- s
		}()

		client, err := Dial(ctx, "127.0.0.1", port, Options{})
		Expect(err).ToNot(HaveOccurred())
		Expect(client.Close()).To(Succeed())

		var server *Stream
		Eventually(acceptC).Should(Receive(&server))
		defer server.Close()

		_, err = server.InlineRead(8)
		Expect(err).To(Equal(io.EOF))
	})
})
