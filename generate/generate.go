// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package generate writes a stream of self-describing records.
//
// Each record identifies its own offset in the stream and carries a checksum,
// so a reader can later tell exactly which data was lost, reordered, or
// corrupted.
package generate

import (
	"context"
	"os"
	"time"

	"github.com/danjacques/genstream/record"
	"github.com/danjacques/genstream/support/logging"

	"github.com/pkg/errors"
)

// Writer is the part of a stream that the generator writes to. It is
// satisfied by *stream.Stream.
type Writer interface {
	Name() string
	SeekTo(off uint64) error
	InlineWrite(n int) ([]byte, error)
	Flush() error
}

// Config configures a single generator run.
type Config struct {
	// Length is the number of bytes to generate. It is rounded down to a whole
	// number of records.
	Length uint64
	// Seek is the stream offset of the first record. If not zero, the Writer
	// is seeked there first.
	Seek uint64

	// Tagged, if true, writes Tag into every record.
	Tagged bool
	// Tag is the tag to write when Tagged is true.
	Tag uint8

	// Creator, if true, writes 16-byte records that identify the generating
	// process and its start time.
	Creator bool
	// PID is the process ID recorded in creator records. If zero, the current
	// process ID is used.
	PID int
	// Now returns the current time. If nil, time.Now is used.
	Now func() time.Time

	// Logger, if not nil, is the Logger to log to.
	Logger logging.L
}

// Result describes a generator run.
type Result struct {
	// Records is the number of records written.
	Records uint64
	// Bytes is the number of bytes written.
	Bytes uint64
	// Interrupted is true if the run was stopped early by its Context.
	Interrupted bool
}

// Layout returns the record layout that cfg generates. If cfg tracks the
// creator, the creator is stamped now.
func (cfg *Config) Layout() record.Layout {
	l := record.Layout{
		Tagged: cfg.Tagged,
		Tag:    cfg.Tag,
	}
	if cfg.Creator {
		pid := cfg.PID
		if pid == 0 {
			pid = os.Getpid()
		}
		now := time.Now
		if cfg.Now != nil {
			now = cfg.Now
		}
		l.HasCreator = true
		l.Creator = record.MakeCreator(pid, now())
	}
	return l
}

// Run writes cfg.Length bytes of records to w.
//
// Run checks ctx once per record. If ctx is done, Run stops writing, flushes
// what has been written, and returns a Result with Interrupted set and a nil
// error. Otherwise, the stream is flushed once every record is written.
func Run(ctx context.Context, w Writer, cfg Config) (Result, error) {
	logger := logging.Must(cfg.Logger)

	var res Result
	if cfg.Seek != 0 {
		if err := w.SeekTo(cfg.Seek); err != nil {
			return res, errors.Wrapf(err, "seeking %s to %d", w.Name(), cfg.Seek)
		}
	}

	layout := cfg.Layout()
	if layout.HasCreator {
		logger.Infof("%s: %s", w.Name(), layout.Creator)
	}

	size := layout.Size()
	length := layout.Truncate(cfg.Length)
	logger.Debugf("%s: generating %d bytes of %d-byte records at offset %d", w.Name(), length, size, cfg.Seek)

	for i := uint64(0); i < length; i += uint64(size) {
		if ctx.Err() != nil {
			logger.Infof("%s: interrupted after %d records", w.Name(), res.Records)
			res.Interrupted = true
			break
		}

		rec, err := w.InlineWrite(size)
		if err != nil {
			if ctx.Err() != nil {
				logger.Infof("%s: interrupted after %d records: %s", w.Name(), res.Records, err)
				res.Interrupted = true
				return res, nil
			}
			return res, errors.Wrapf(err, "writing record at offset %d", cfg.Seek+i)
		}
		layout.Put(rec, cfg.Seek+i)

		res.Records++
		res.Bytes += uint64(size)
	}

	if err := w.Flush(); err != nil {
		return res, errors.Wrapf(err, "flushing %s", w.Name())
	}
	return res, nil
}
