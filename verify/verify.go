// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package verify checks a stream of generated records.
//
// Every record is checked for a valid checksum and for the offset, tag, and
// creator that a generator would have written there. Damaged records are
// counted and dumped to the log.
package verify

import (
	"context"
	"fmt"
	"io"

	"github.com/danjacques/genstream/record"
	"github.com/danjacques/genstream/support/fmtutil"
	"github.com/danjacques/genstream/support/logging"

	"github.com/pkg/errors"
)

// DefaultMaxDumps is the number of damaged records dumped when
// Config.MaxDumps is zero.
const DefaultMaxDumps = 16

// Reader is the part of a stream that the verifier reads from. It is
// satisfied by *stream.Stream.
type Reader interface {
	Name() string
	InlineRead(n int) ([]byte, error)
}

// Config configures a single verification run. Its fields mirror the
// generator's.
type Config struct {
	// Seek is the expected offset of the first record.
	Seek uint64

	// Tagged, if true, expects every record to carry Tag.
	Tagged bool
	// Tag is the expected tag when Tagged is true.
	Tag uint8

	// Creator, if true, expects 16-byte records carrying a Creator.
	Creator bool

	// MaxDumps is the number of damaged records to hex dump. If zero,
	// DefaultMaxDumps is used; if negative, none are dumped.
	MaxDumps int

	// Logger, if not nil, is the Logger to log to.
	Logger logging.L
}

// Report describes a verification run.
type Report struct {
	// Records is the number of whole records read.
	Records uint64
	// Bytes is the number of bytes read in whole records.
	Bytes uint64

	// BadChecksum counts records whose checksum didn't verify.
	BadChecksum uint64
	// BadOffset counts records that were not at the expected offset.
	BadOffset uint64
	// BadTag counts records that carried the wrong tag.
	BadTag uint64

	// Creators lists each distinct creator, in the order first seen.
	Creators []record.Creator

	// Truncated is true if the stream ended partway through a record.
	Truncated bool
	// Interrupted is true if the run was stopped early by its Context.
	Interrupted bool
}

// Damaged returns the number of problems found. A record can have more than
// one.
func (r *Report) Damaged() uint64 { return r.BadChecksum + r.BadOffset + r.BadTag }

// OK returns true if every record verified and the stream ended cleanly.
func (r *Report) OK() bool { return r.Damaged() == 0 && !r.Truncated }

type verifier struct {
	cfg    *Config
	name   string
	logger logging.L
	size   int

	next   uint64
	dumps  int
	report Report

	haveCreator bool
	lastCreator record.Creator
}

// Run reads records from r until its end, checking each.
//
// Run checks ctx once per record. If ctx is done, Run stops and returns the
// Report so far with Interrupted set. A read error other than end of data is
// returned along with the Report so far.
func Run(ctx context.Context, r Reader, cfg Config) (Report, error) {
	v := verifier{
		cfg:    &cfg,
		name:   r.Name(),
		logger: logging.Must(cfg.Logger),
		size:   record.Size,
		next:   cfg.Seek,
		dumps:  cfg.MaxDumps,
	}
	if cfg.Creator {
		v.size = record.CreatorSize
	}
	if v.dumps == 0 {
		v.dumps = DefaultMaxDumps
	}

	for {
		if ctx.Err() != nil {
			v.logger.Infof("%s: interrupted after %d records", v.name, v.report.Records)
			v.report.Interrupted = true
			return v.report, nil
		}

		rec, err := r.InlineRead(v.size)
		switch {
		case err == io.EOF:
			return v.report, nil
		case err == io.ErrUnexpectedEOF:
			v.logger.Warnf("%s: stream ends partway through the record at %#x", v.name, v.next)
			v.report.Truncated = true
			return v.report, nil
		case err != nil:
			if ctx.Err() != nil {
				v.report.Interrupted = true
				return v.report, nil
			}
			return v.report, errors.Wrapf(err, "reading record at %#x", v.next)
		}

		if err := v.check(rec); err != nil {
			return v.report, err
		}
	}
}

func (v *verifier) check(rec []byte) error {
	off := v.next
	v.next += uint64(v.size)
	v.report.Records++
	v.report.Bytes += uint64(v.size)

	if !record.Valid(rec) {
		v.report.BadChecksum++
		v.damaged("bad checksum", off, rec)
		return nil
	}

	r, err := record.Decode(rec, v.cfg.Creator)
	if err != nil {
		return errors.Wrapf(err, "decoding record at %#x", off)
	}

	if v.cfg.Tagged && r.Tag() != v.cfg.Tag {
		v.report.BadTag++
		v.damaged(fmt.Sprintf("tag %d", r.Tag()), off, rec)
	}

	// Only the stored bits of the expected offset can be compared.
	want := off & offsetMask(v.cfg.Tagged)
	if got := r.Offset(v.cfg.Tagged); got != want {
		v.report.BadOffset++
		v.damaged(fmt.Sprintf("found offset %#x", got), off, rec)
		// Expect the stream to carry on from the record that was found.
		v.next = (off &^ offsetMask(v.cfg.Tagged)) | got
		v.next += uint64(v.size)
	}

	if r.HasCreator && (!v.haveCreator || r.Creator != v.lastCreator) {
		v.haveCreator, v.lastCreator = true, r.Creator
		if !v.seen(r.Creator) {
			v.report.Creators = append(v.report.Creators, r.Creator)
		}
		v.logger.Infof("%s: at %#x: %s", v.name, off, r.Creator)
	}
	return nil
}

func (v *verifier) seen(c record.Creator) bool {
	for _, s := range v.report.Creators {
		if s == c {
			return true
		}
	}
	return false
}

// damaged logs a damaged record, dumping it if the dump budget allows.
func (v *verifier) damaged(what string, off uint64, rec []byte) {
	if v.dumps <= 0 {
		v.logger.Errorf("%s: record at %#x: %s", v.name, off, what)
		return
	}
	v.dumps--
	v.logger.Errorf("%s: %s: %s\n%s", v.name, what, fmtutil.At{Offset: off, Data: rec}, fmtutil.Hex(rec))
}

// offsetMask returns the mask of offset bits stored in a record.
func offsetMask(tagged bool) uint64 {
	if tagged {
		return 1<<40 - 1
	}
	return 1<<48 - 1
}
