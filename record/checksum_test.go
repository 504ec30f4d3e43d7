// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package record

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Checksum", func() {
	It("computes the complement of the folded word sum", func() {
		// 0x0001 + 0x0002 + 0x0003 = 0x0006.
		Expect(Checksum([]byte{0x00, 0x01, 0x00, 0x02, 0x00, 0x03})).To(Equal(^uint16(0x0006)))
	})

	It("folds carries back into the low word", func() {
		// 0xFFFF + 0x0002 = 0x10001, folds to 0x0002.
		Expect(Checksum([]byte{0xFF, 0xFF, 0x00, 0x02})).To(Equal(^uint16(0x0002)))
	})

	It("returns 0xFFFF for all-zero input", func() {
		Expect(Checksum(make([]byte, 8))).To(Equal(uint16(0xFFFF)))
	})

	for _, words := range []int{3, 4, 7, 8} {
		words := words

		It(fmt.Sprintf("makes any %d-word record body valid", words), func() {
			rng := rand.New(rand.NewSource(int64(words)))
			rec := make([]byte, 2*(words+1))

			for i := 0; i < 1000; i++ {
				_, _ = rng.Read(rec[2:])
				binary.BigEndian.PutUint16(rec, Checksum(rec[2:]))
				Expect(Valid(rec)).To(BeTrue(), "words=%d rec=%x", words, rec)
			}
		})
	}

	It("detects a flipped bit", func() {
		rec := []byte{0, 0, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC}
		binary.BigEndian.PutUint16(rec, Checksum(rec[2:]))
		Expect(Valid(rec)).To(BeTrue())

		rec[5] ^= 0x10
		Expect(Valid(rec)).To(BeFalse())
	})
})
