// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package stream

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Memory-mapped streams", func() {
	var tdir string

	BeforeEach(func() {
		var err error
		tdir, err = ioutil.TempDir("", "genstream_mmap_test")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(tdir)).To(Succeed())
	})

	writeOpts := Options{Flag: os.O_WRONLY | os.O_CREATE}

	It("extends the file and writes through the mapping", func() {
		path := filepath.Join(tdir, "mapped")
		s, err := OpenMmap(path, writeOpts, 100)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Capacity()).To(Equal(100))

		st, err := os.Stat(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(st.Size()).To(Equal(int64(100)))

		slot, err := s.InlineWrite(60)
		Expect(err).ToNot(HaveOccurred())
		copy(slot, sequence(60))
		Expect(s.Write(sequence(40))).To(Equal(40))
		Expect(s.Close()).To(Succeed())

		content, err := ioutil.ReadFile(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(content[:60]).To(Equal(sequence(60)))
		Expect(content[60:]).To(Equal(sequence(40)))
	})

	It("seeks within the mapping", func() {
		path := filepath.Join(tdir, "mapped")
		s, err := OpenMmap(path, writeOpts, 32)
		Expect(err).ToNot(HaveOccurred())

		Expect(s.SeekTo(16)).To(Succeed())
		Expect(s.Write([]byte("xy"))).To(Equal(2))
		Expect(errors.Is(s.SeekTo(32), ErrSeekRange)).To(BeTrue())
		Expect(s.Close()).To(Succeed())

		content, err := ioutil.ReadFile(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(content).To(HaveLen(32))
		Expect(string(content[16:18])).To(Equal("xy"))
	})

	It("maps the whole file for reading when no size is given", func() {
		path := filepath.Join(tdir, "mapped")
		Expect(ioutil.WriteFile(path, sequence(24), 0600)).To(Succeed())

		s, err := OpenMmap(path, Options{Flag: os.O_RDONLY}, 0)
		Expect(err).ToNot(HaveOccurred())
		defer s.Close()

		slot, err := s.InlineRead(16)
		Expect(err).ToNot(HaveOccurred())
		Expect(slot).To(Equal(sequence(16)))

		_, err = s.InlineRead(16)
		Expect(errors.Is(err, ErrNotSupported)).To(BeTrue())
	})

	It("keeps the mapping valid after closing the descriptor", func() {
		path := filepath.Join(tdir, "mapped")
		o := writeOpts
		o.Flags = CloseAfterMap | NoMsync
		s, err := OpenMmap(path, o, 8)
		Expect(err).ToNot(HaveOccurred())

		Expect(s.Write([]byte("abcdefgh"))).To(Equal(8))
		Expect(s.Close()).To(Succeed())

		Expect(ioutil.ReadFile(path)).To(Equal([]byte("abcdefgh")))
	})

	It("unlinks the file after mapping", func() {
		path := filepath.Join(tdir, "mapped")
		o := writeOpts
		o.Flags = Unlink
		s, err := OpenMmap(path, o, 8)
		Expect(err).ToNot(HaveOccurred())

		_, err = os.Stat(path)
		Expect(os.IsNotExist(err)).To(BeTrue())
		Expect(s.Close()).To(Succeed())
	})

	It("refuses to map an empty file", func() {
		path := filepath.Join(tdir, "empty")
		Expect(ioutil.WriteFile(path, nil, 0600)).To(Succeed())

		_, err := OpenMmap(path, Options{Flag: os.O_RDONLY}, 0)
		Expect(err).To(MatchError(ContainSubstring("mmap(")))
	})
})
