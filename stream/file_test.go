// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package stream

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/danjacques/genstream/support/logging"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// eagainHandle is an fdHandle whose writes fail with EAGAIN a fixed number of
// times before succeeding.
type eagainHandle struct {
	failures int
	partial  int
	writes   int
	data     []byte
}

func (h *eagainHandle) Read(p []byte) (int, error) { return 0, io.EOF }
func (h *eagainHandle) Close() error               { return nil }

func (h *eagainHandle) Write(p []byte) (int, error) {
	h.writes++
	if h.failures > 0 {
		h.failures--
		n := h.partial
		if n > len(p) {
			n = len(p)
		}
		h.data = append(h.data, p[:n]...)
		return n, unix.EAGAIN
	}
	h.data = append(h.data, p...)
	return len(p), nil
}

var _ = Describe("File streams", func() {
	var (
		tdir   string
		logger *logging.Recorder
	)

	BeforeEach(func() {
		var err error
		tdir, err = ioutil.TempDir("", "genstream_stream_test")
		Expect(err).ToNot(HaveOccurred())
		logger = &logging.Recorder{}
	})

	AfterEach(func() {
		Expect(os.RemoveAll(tdir)).To(Succeed())
	})

	writeOpts := func() Options {
		return Options{
			Flag:      os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
			BlockSize: 16,
			Logger:    logger,
		}
	}

	It("writes a file through the buffer", func() {
		path := filepath.Join(tdir, "out")
		s, err := OpenFile(path, writeOpts())
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Name()).To(Equal(path))
		Expect(s.Capacity()).To(Equal(16))

		data := sequence(100)
		Expect(s.Write(data)).To(Equal(100))
		Expect(s.Close()).To(Succeed())

		Expect(ioutil.ReadFile(path)).To(Equal(data))
		Expect(s.Stats()).To(Equal(Stats{Blocks: 7, Bytes: 100}))
	})

	It("flushes before seeking the file", func() {
		path := filepath.Join(tdir, "out")
		s, err := OpenFile(path, writeOpts())
		Expect(err).ToNot(HaveOccurred())

		Expect(s.Write([]byte("head"))).To(Equal(4))
		Expect(s.SeekTo(32)).To(Succeed())
		Expect(s.Write([]byte("tail"))).To(Equal(4))
		Expect(s.Close()).To(Succeed())

		content, err := ioutil.ReadFile(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(content).To(HaveLen(36))
		Expect(string(content[:4])).To(Equal("head"))
		Expect(string(content[32:])).To(Equal("tail"))
	})

	It("reads a file back", func() {
		path := filepath.Join(tdir, "in")
		data := sequence(77)
		Expect(ioutil.WriteFile(path, data, 0600)).To(Succeed())

		s, err := OpenFile(path, Options{Flag: os.O_RDONLY, BlockSize: 16})
		Expect(err).ToNot(HaveOccurred())
		defer s.Close()

		got, err := ioutil.ReadAll(s)
		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(Equal(data))
	})

	It("discards buffered reads when seeking a read-only file", func() {
		path := filepath.Join(tdir, "in")
		Expect(ioutil.WriteFile(path, sequence(64), 0600)).To(Succeed())

		s, err := OpenFile(path, Options{Flag: os.O_RDONLY, BlockSize: 16})
		Expect(err).ToNot(HaveOccurred())
		defer s.Close()

		Expect(s.Read(make([]byte, 4))).To(Equal(4))
		Expect(s.SeekTo(40)).To(Succeed())
		slot, err := s.InlineRead(2)
		Expect(err).ToNot(HaveOccurred())
		Expect(slot).To(Equal([]byte{40, 41}))
	})

	It("unlinks the file after opening", func() {
		path := filepath.Join(tdir, "gone")
		o := writeOpts()
		o.Flags = Unlink
		s, err := OpenFile(path, o)
		Expect(err).ToNot(HaveOccurred())

		_, err = os.Stat(path)
		Expect(os.IsNotExist(err)).To(BeTrue())

		Expect(s.Write(sequence(40))).To(Equal(40))
		Expect(s.Close()).To(Succeed())
	})

	It("reports the failing call and name when open fails", func() {
		path := filepath.Join(tdir, "missing", "out")
		_, err := OpenFile(path, writeOpts())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring(`open("` + path + `")`))
		Expect(logger.Contains(logging.ErrorLevel, "open(")).To(BeTrue())
	})

	It("names streams over standard descriptors", func() {
		s := FromFile(os.Stdout, Options{Flag: os.O_WRONLY})
		Expect(s.Name()).To(Equal("-stdout-"))
		Expect(s.Capacity()).To(Equal(DefaultBlockSize))
		Expect(s.Close()).To(Succeed())
	})

	Context("EAGAIN handling", func() {
		var (
			h      *eagainHandle
			s      *Stream
			sleeps []time.Duration
		)

		openEAGAIN := func(flags Flags) {
			h = &eagainHandle{}
			sleeps = nil
			s = newFDStream("eagain", h, os.O_WRONLY, &Options{BlockSize: 8, Flags: flags, Logger: logger}, true)
			s.backend.(*fdBackend).backoff.Sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
		}

		It("retries with exponential backoff when enabled", func() {
			openEAGAIN(RetryEAGAIN)
			h.failures = 3

			Expect(s.Write(sequence(8))).To(Equal(8))
			Expect(h.data).To(Equal(sequence(8)))
			Expect(h.writes).To(Equal(4))
			Expect(sleeps).To(Equal([]time.Duration{
				10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond,
			}))
		})

		It("resumes after a partial write", func() {
			openEAGAIN(RetryEAGAIN)
			h.failures, h.partial = 1, 3

			Expect(s.Write(sequence(8))).To(Equal(8))
			Expect(h.data).To(Equal(sequence(8)))
		})

		It("gives up after ten attempts", func() {
			openEAGAIN(RetryEAGAIN)
			h.failures = 100

			_, err := s.Write(sequence(8))
			Expect(errors.Is(err, unix.EAGAIN)).To(BeTrue())
			Expect(h.writes).To(Equal(10))
			Expect(sleeps).To(HaveLen(9))
			Expect(logger.Contains(logging.ErrorLevel, `write("eagain")`)).To(BeTrue())
		})

		It("fails immediately when not enabled", func() {
			openEAGAIN(0)
			h.failures = 1

			_, err := s.Write(sequence(8))
			Expect(errors.Is(err, unix.EAGAIN)).To(BeTrue())
			Expect(h.writes).To(Equal(1))
			Expect(sleeps).To(BeEmpty())
		})
	})
})
