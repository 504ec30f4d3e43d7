// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package record

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Layout", func() {
	var l Layout

	BeforeEach(func() {
		l = Layout{}
	})

	Context("Truncate", func() {
		It("rounds down to 8-byte records", func() {
			Expect(l.Truncate(10)).To(Equal(uint64(8)))
			Expect(l.Truncate(24)).To(Equal(uint64(24)))
			Expect(l.Truncate(7)).To(Equal(uint64(0)))
		})

		It("rounds down to 16-byte records with a creator", func() {
			l.HasCreator = true
			Expect(l.Truncate(40)).To(Equal(uint64(32)))
		})
	})

	Context("with the default layout", func() {
		It("encodes a 48-bit offset", func() {
			off := uint64(0xABCD12345678)
			rec := make([]byte, Size)
			l.Put(rec, off)

			Expect(rec[2:]).To(Equal([]byte{0xAB, 0xCD, 0x12, 0x34, 0x56, 0x78}))
			Expect(Valid(rec)).To(BeTrue())

			r, err := Decode(rec, false)
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Offset(false)).To(Equal(off))
			Expect(r.Low).To(Equal(uint32(0x12345678)))
			Expect(r.HasCreator).To(BeFalse())
		})

		It("only writes the first 8 bytes of a larger slot", func() {
			rec := []byte{0, 0, 0, 0, 0, 0, 0, 0, 0xEE, 0xEE}
			l.Put(rec, 8)
			Expect(rec[8:]).To(Equal([]byte{0xEE, 0xEE}))
		})
	})

	Context("with a tag", func() {
		BeforeEach(func() {
			l.Tagged = true
			l.Tag = 0x5A
		})

		It("stores the tag and bits 32-39 of the offset", func() {
			off := uint64(0xAB12345678)
			rec := make([]byte, Size)
			l.Put(rec, off)

			Expect(rec[2]).To(Equal(byte(0x5A)))
			Expect(rec[3]).To(Equal(byte(0xAB)))
			Expect(Valid(rec)).To(BeTrue())

			r, err := Decode(rec, false)
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Tag()).To(Equal(uint8(0x5A)))
			Expect(r.Offset(true)).To(Equal(off))
		})
	})

	Context("with a creator", func() {
		BeforeEach(func() {
			l.HasCreator = true
			l.Creator = PackCreator(31337, CreatorEpoch+86400, 250000)
		})

		It("produces a valid 16-byte record", func() {
			Expect(l.Size()).To(Equal(CreatorSize))

			rec := make([]byte, CreatorSize)
			l.Put(rec, 0x1000)
			Expect(Valid(rec)).To(BeTrue())

			r, err := Decode(rec, true)
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Offset(false)).To(Equal(uint64(0x1000)))
			Expect(r.HasCreator).To(BeTrue())
			Expect(r.Creator).To(Equal(l.Creator))
			Expect(r.Creator.PID()).To(Equal(31337))
		})

		It("fails to decode a short record", func() {
			_, err := Decode(make([]byte, Size), true)
			Expect(err).To(HaveOccurred())
		})
	})
})
