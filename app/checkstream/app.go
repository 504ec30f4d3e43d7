// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package checkstream defines the logic for the "checkstream" app.
//
// checkstream reads a stream written by genstream, from a file, standard
// input, or a single TCP connection, and reports every record that was lost
// or damaged.
package checkstream

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/danjacques/genstream/app/appcommon"
	"github.com/danjacques/genstream/record"
	"github.com/danjacques/genstream/stream"
	"github.com/danjacques/genstream/support/logging"
	"github.com/danjacques/genstream/support/network"
	"github.com/danjacques/genstream/support/units"
	"github.com/danjacques/genstream/verify"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

const program = "checkstream"

const usageHeader = `Usage: checkstream [options] FILE
       checkstream [options] < FILE
       checkstream [options] --protocol=tcp
Options:
`

type options struct {
	common appcommon.Flags

	target string

	direct    bool
	blockSize units.LengthFlag
	seek      units.LengthFlag
	tag       units.TagFlag
	creator   bool
	maxDumps  int

	protocol string
	port     int
}

func newFlagSet(o *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet(program, pflag.ContinueOnError)
	fs.SortFlags = false
	fs.SetOutput(io.Discard)

	fs.BoolVarP(&o.direct, "direct", "D", false, "Open FILE with O_DIRECT.")
	fs.VarP(&o.blockSize, "blocksize", "b", "Buffer size for read() calls.")
	fs.VarP(&o.seek, "seek", "s", "Offset of the first record. FILE is read from there.")
	fs.VarP(&o.tag, "tag", "T", "Expect the given 8-bit tag in every record.")
	fs.BoolVarP(&o.creator, "creator", "C", false, "Expect records carrying their creator.")
	fs.IntVar(&o.maxDumps, "max-dumps", verify.DefaultMaxDumps, "Hex dump at most this many damaged records.")
	fs.StringVarP(&o.protocol, "protocol", "P", "", `Accept the stream from the network. Only "tcp" is supported.`)
	fs.StringP("port", "p", "", fmt.Sprintf("TCP port to listen on (default %d).", network.DefaultPort))
	o.common.AddFlags(fs)
	return fs
}

func parseArgs(args []string) (*options, error) {
	var o options
	fs := newFlagSet(&o)
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil, err
		}
		return nil, appcommon.Usagef("%s", err)
	}
	if o.common.Version {
		return &o, nil
	}

	switch pos := fs.Args(); len(pos) {
	case 0:
	case 1:
		o.target = pos[0]
	default:
		return nil, appcommon.Usagef("expected at most one FILE")
	}

	if o.protocol != "" {
		if _, err := network.ParseProtocol(o.protocol); err != nil {
			return nil, appcommon.Usagef("cannot parse protocol %q", o.protocol)
		}
		if o.target != "" {
			return nil, appcommon.Usagef("cannot use --protocol=tcp with a FILE")
		}
		if o.direct {
			return nil, appcommon.Usagef("cannot use --protocol=tcp with --direct option")
		}
		o.port = network.DefaultPort
	}
	if port := fs.Lookup("port"); port.Changed {
		if o.protocol == "" {
			return nil, appcommon.Usagef("must specify --protocol=tcp with --port")
		}
		p, err := network.ParsePort(port.Value.String())
		if err != nil {
			return nil, appcommon.Usagef("cannot parse port %q", port.Value.String())
		}
		o.port = p
	}
	if o.target == "" && o.direct {
		return nil, appcommon.Usagef("must specify a filename with --direct option")
	}

	if bs := o.blockSize.Value(); bs != 0 {
		minSize := uint64(record.Size)
		if o.creator {
			minSize = record.CreatorSize
		}
		if bs < minSize || bs > 1<<30 {
			return nil, appcommon.Usagef("block size %s out of range", units.IECSize(bs))
		}
	}
	return &o, nil
}

func (o *options) open(ctx context.Context, logger logging.L) (*stream.Stream, error) {
	so := stream.Options{
		Flag:      os.O_RDONLY,
		BlockSize: int(o.blockSize.Value()),
		Logger:    logger,
	}
	switch {
	case o.protocol != "":
		logger.Infof("Listening on TCP port %d", o.port)
		return stream.Listen(ctx, o.port, so)
	case o.target == "":
		return stream.FromFile(os.Stdin, so), nil
	}

	if o.direct {
		so.Flag |= unix.O_DIRECT
	}
	s, err := stream.OpenFile(o.target, so)
	if err != nil {
		return nil, err
	}
	if seek := o.seek.Value(); seek != 0 {
		if err := s.SeekTo(seek); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (o *options) verifyConfig(logger logging.L) verify.Config {
	maxDumps := o.maxDumps
	if maxDumps == 0 {
		maxDumps = -1
	}
	return verify.Config{
		Seek:     o.seek.Value(),
		Tagged:   o.tag.Valid,
		Tag:      o.tag.Tag,
		Creator:  o.creator,
		MaxDumps: maxDumps,
		Logger:   logger,
	}
}

// Main is the main entry point.
func Main() {
	os.Exit(Run(context.Background(), os.Args[1:]))
}

// Run runs checkstream with the given arguments and returns its exit code.
func Run(c context.Context, args []string) int {
	o, err := parseArgs(args)
	switch {
	case err == pflag.ErrHelp:
		printUsage(os.Stdout)
		return appcommon.ExitSuccess
	case err != nil:
		fmt.Fprintf(os.Stderr, "%s: %s\n", program, err)
		printUsage(os.Stderr)
		return appcommon.ExitFailure
	case o.common.Version:
		fmt.Printf("%s version %s\n", program, appcommon.Version)
		return appcommon.ExitSuccess
	}

	logger := appcommon.NewLogger(program, &o.common)

	ms, err := appcommon.ServeMetrics(o.common.MetricsAddr, prometheus.NewRegistry(), logger)
	if err != nil {
		logger.Errorf("Could not serve metrics: %s", err)
		return appcommon.ExitFailure
	}
	defer ms.Stop()

	ctx, cancel := appcommon.SignalContext(c)
	defer cancel()

	s, err := o.open(ctx, logger)
	if err != nil {
		if ctx.Err() != nil {
			return appcommon.ExitInterrupted
		}
		logger.Errorf("Could not open input: %s", err)
		return appcommon.ExitFailure
	}

	start := time.Now()
	rep, verr := verify.Run(ctx, s, o.verifyConfig(logger))
	logger.Info(appcommon.StatsLine(s.Name(), s.Stats(), time.Since(start)))
	logger.Infof("%s: %d records, %d bad checksums, %d bad offsets, %d bad tags, %d creators",
		s.Name(), rep.Records, rep.BadChecksum, rep.BadOffset, rep.BadTag, len(rep.Creators))

	closeErr := s.Close()
	switch {
	case verr != nil:
		logger.Errorf("Verification failed: %s", verr)
		return appcommon.ExitFailure
	case closeErr != nil:
		logger.Errorf("Could not close %s: %s", s.Name(), closeErr)
		return appcommon.ExitFailure
	case rep.Interrupted:
		return appcommon.ExitInterrupted
	case !rep.OK():
		return appcommon.ExitFailure
	default:
		return appcommon.ExitSuccess
	}
}

func printUsage(w io.Writer) {
	var o options
	fmt.Fprint(w, usageHeader)
	fmt.Fprint(w, newFlagSet(&o).FlagUsages())
}
