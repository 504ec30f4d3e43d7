// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package record

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Creator", func() {
	It("round-trips its fields", func() {
		for _, tc := range []struct {
			pid int
			sec int64
			ms  int
		}{
			{0, CreatorEpoch, 0},
			{1, CreatorEpoch + 1, 1},
			{4242, 1500000000, 999},
			{MaxCreatorPID, CreatorEpoch + (1 << 29) - 1, 500},
		} {
			c := PackCreator(tc.pid, tc.sec, int64(tc.ms)*1000+999)
			Expect(c.PID()).To(Equal(tc.pid))
			Expect(c.Seconds()).To(Equal(tc.sec))
			Expect(c.Milliseconds()).To(Equal(tc.ms))
		}
	})

	It("stores the process ID in the low bits and seconds in the high bits", func() {
		c := PackCreator(0x1ABCDEF, CreatorEpoch+3, 2000)
		Expect(uint64(c) & 0x1FFFFFF).To(Equal(uint64(0x1ABCDEF)))
		Expect((uint64(c) >> 25) & 0x3FF).To(Equal(uint64(2)))
		Expect(uint64(c) >> 35).To(Equal(uint64(3)))
	})

	It("truncates an oversized process ID", func() {
		c := PackCreator(MaxCreatorPID+2, CreatorEpoch, 0)
		Expect(c.PID()).To(Equal(1))
	})

	It("builds from a time.Time", func() {
		t := time.Date(2010, time.March, 4, 5, 6, 7, int(123456*time.Microsecond), time.UTC)
		c := MakeCreator(77, t)

		Expect(c.PID()).To(Equal(77))
		Expect(c.Seconds()).To(Equal(t.Unix()))
		Expect(c.Milliseconds()).To(Equal(123))
		Expect(c.Time().Equal(t.Truncate(time.Millisecond))).To(BeTrue())
		Expect(c.Time().UTC().Format(timestampFormat)).To(Equal("2010/03/04 05:06:07.123 UTC"))
	})

	It("renders a start line", func() {
		c := PackCreator(12, CreatorEpoch, 0)
		Expect(c.String()).To(HavePrefix("pid 12 started at "))
	})
})
