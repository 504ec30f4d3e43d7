// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package record

import (
	"fmt"
	"time"
)

// A Creator packs a process ID and a millisecond-resolution start time into
// 64 bits:
//
//	bits  0..24  process ID (25 bits)
//	bits 25..34  milliseconds (10 bits)
//	bits 35..63  seconds since CreatorEpoch (29 bits)
//
// The seconds field wraps after 2^29 seconds, at 2024-01-05 18:48:31 UTC.
// The layout is kept as-is so that records produced by earlier runs remain
// readable.
type Creator uint64

const (
	creatorPIDBits = 25
	creatorMSBits  = 10
	creatorSecBits = 29

	creatorPIDShift = 0
	creatorMSShift  = creatorPIDShift + creatorPIDBits
	creatorSecShift = creatorMSShift + creatorMSBits

	creatorPIDMask = (uint64(1) << creatorPIDBits) - 1
	creatorMSMask  = (uint64(1) << creatorMSBits) - 1
	creatorSecMask = (uint64(1) << creatorSecBits) - 1

	// CreatorEpoch is the Unix time that Creator seconds are counted from,
	// 2007-01-01 00:00:00 UTC.
	CreatorEpoch int64 = 1167609600

	// MaxCreatorPID is the largest process ID that a Creator can hold.
	MaxCreatorPID = int(creatorPIDMask)
)

// timestampFormat is the format used to render a Creator's start time.
const timestampFormat = "2006/01/02 15:04:05.000 MST"

// PackCreator builds a Creator from a process ID and a wall-clock time
// expressed as Unix seconds plus microseconds. Out-of-range fields are
// truncated to their bit width.
func PackCreator(pid int, sec, usec int64) Creator {
	return Creator(((uint64(pid) & creatorPIDMask) << creatorPIDShift) |
		((uint64(sec-CreatorEpoch) & creatorSecMask) << creatorSecShift) |
		((uint64(usec/1000) & creatorMSMask) << creatorMSShift))
}

// MakeCreator builds a Creator for process pid started at t.
func MakeCreator(pid int, t time.Time) Creator {
	return PackCreator(pid, t.Unix(), int64(t.Nanosecond())/int64(time.Microsecond))
}

// PID returns the process ID encoded in c.
func (c Creator) PID() int { return int((uint64(c) >> creatorPIDShift) & creatorPIDMask) }

// Seconds returns the Unix time, in seconds, encoded in c.
func (c Creator) Seconds() int64 {
	return int64((uint64(c)>>creatorSecShift)&creatorSecMask) + CreatorEpoch
}

// Milliseconds returns the millisecond component of c's start time.
func (c Creator) Milliseconds() int { return int((uint64(c) >> creatorMSShift) & creatorMSMask) }

// Time returns c's start time.
func (c Creator) Time() time.Time {
	return time.Unix(c.Seconds(), int64(c.Milliseconds())*int64(time.Millisecond))
}

// Timestamp renders c's start time in the local time zone.
func (c Creator) Timestamp() string { return c.Time().Format(timestampFormat) }

func (c Creator) String() string {
	return fmt.Sprintf("pid %d started at %s", c.PID(), c.Timestamp())
}
