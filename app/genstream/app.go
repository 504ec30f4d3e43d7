// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package genstream defines the logic for the "genstream" app.
//
// genstream writes a stream of checksummed, self-describing records to a
// file, a memory-mapped file, standard output, or a TCP connection. A reader
// such as checkstream can then tell exactly which parts of the stream were
// lost or damaged on the way.
package genstream

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/danjacques/genstream/app/appcommon"
	"github.com/danjacques/genstream/generate"
	"github.com/danjacques/genstream/record"
	"github.com/danjacques/genstream/stream"
	"github.com/danjacques/genstream/support/logging"
	"github.com/danjacques/genstream/support/network"
	"github.com/danjacques/genstream/support/units"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

const program = "genstream"

const usageHeader = `Usage: genstream [options] SIZE FILE
       genstream [options] SIZE > FILE
       genstream [options] --protocol=tcp SIZE HOST
SIZE arguments may be specified as nnn[KMGT] or nnnbb (512-byte blocks).
Options:
`

// options is the parsed command line.
type options struct {
	common appcommon.Flags

	length uint64
	target string

	sync        bool
	direct      bool
	mmap        bool
	blockSize   units.LengthFlag
	seek        units.LengthFlag
	noTruncate  bool
	retryEAGAIN bool
	unlink      bool
	closeAfter  bool
	noMsync     bool
	tag         units.TagFlag
	creator     bool

	protocol string
	port     int
}

func newFlagSet(o *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet(program, pflag.ContinueOnError)
	fs.SortFlags = false
	fs.SetOutput(io.Discard)

	fs.BoolVarP(&o.sync, "sync", "S", false, "Open files with O_SYNC.")
	fs.BoolVarP(&o.direct, "direct", "D", false, "Open files with O_DIRECT.")
	fs.BoolVarP(&o.mmap, "mmap", "M", false, "Write through a shared memory mapping of FILE.")
	fs.VarP(&o.blockSize, "blocksize", "b", "Buffer size for write() calls.")
	fs.VarP(&o.seek, "seek", "s", "Seek to the given offset before writing.")
	fs.BoolVarP(&o.noTruncate, "no-truncate", "t", false, "Don't truncate FILE.")
	fs.BoolVar(&o.retryEAGAIN, "retry-eagain", false, "Retry writes that fail with EAGAIN, with backoff.")
	fs.BoolVarP(&o.unlink, "unlink", "u", false, "Unlink FILE after opening it.")
	fs.BoolVarP(&o.closeAfter, "close", "c", false, "Close FILE's descriptor after mapping it.")
	fs.BoolVar(&o.noMsync, "no-msync", false, "Don't msync the mapping before unmapping it.")
	fs.VarP(&o.tag, "tag", "T", "Write the given 8-bit tag into every record.")
	fs.BoolVarP(&o.creator, "creator", "C", false, "Record the start time and pid in every record.")
	fs.StringVarP(&o.protocol, "protocol", "P", "", `Send the stream over the network. Only "tcp" is supported.`)
	fs.StringP("port", "p", "", fmt.Sprintf("TCP port to connect to (default %d).", network.DefaultPort))
	o.common.AddFlags(fs)
	return fs
}

// parseArgs parses and validates a command line. Configuration problems are
// returned as appcommon.UsageError.
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
	case 2:
		o.target = pos[1]
		fallthrough
	case 1:
		length, err := units.ParseLength(pos[0])
		if err != nil {
			return nil, appcommon.Usagef("cannot parse length %q", pos[0])
		}
		o.length = length
	default:
		return nil, appcommon.Usagef("expected SIZE and an optional FILE or HOST")
	}

	if o.protocol != "" {
		if _, err := network.ParseProtocol(o.protocol); err != nil {
			return nil, appcommon.Usagef("cannot parse protocol %q", o.protocol)
		}
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

	if o.target == "" {
		switch {
		case o.mmap:
			return nil, appcommon.Usagef("must specify a filename with --mmap option")
		case o.unlink:
			return nil, appcommon.Usagef("must specify a filename with --unlink option")
		case o.sync:
			return nil, appcommon.Usagef("must specify a filename with --sync option")
		case o.protocol != "":
			return nil, appcommon.Usagef("must specify a hostname with --protocol=tcp option")
		}
	}
	if o.protocol != "" {
		switch {
		case o.mmap:
			return nil, appcommon.Usagef("cannot use --protocol=tcp with --mmap option")
		case o.unlink:
			return nil, appcommon.Usagef("cannot use --protocol=tcp with --unlink option")
		case o.sync:
			return nil, appcommon.Usagef("cannot use --protocol=tcp with --sync option")
		}
		if o.port == 0 {
			o.port = network.DefaultPort
		}
	}

	if o.closeAfter && !o.mmap {
		return nil, appcommon.Usagef("--close is not useful except with --mmap")
	}
	if o.noMsync && !o.mmap {
		return nil, appcommon.Usagef("--no-msync is not useful except with --mmap")
	}

	if bs := o.blockSize.Value(); bs != 0 {
		if bs < uint64(o.layoutSize()) || bs > 1<<30 {
			return nil, appcommon.Usagef("block size %s out of range", units.IECSize(bs))
		}
	}
	if o.mmap && o.length+o.seek.Value() < o.length {
		return nil, appcommon.Usagef("length plus seek overflows")
	}
	return &o, nil
}

func (o *options) layoutSize() int {
	if o.creator {
		return record.CreatorSize
	}
	return record.Size
}

// openFlag returns the os.OpenFile flags for the destination file.
func (o *options) openFlag() int {
	flag := os.O_WRONLY | os.O_CREATE
	if !o.noTruncate {
		flag |= os.O_TRUNC
	}
	if o.sync {
		flag |= os.O_SYNC
	}
	if o.direct {
		flag |= unix.O_DIRECT
	}
	return flag
}

func (o *options) streamOptions(logger logging.L) stream.Options {
	so := stream.Options{
		Flag:      o.openFlag(),
		Perm:      0644,
		BlockSize: int(o.blockSize.Value()),
		Logger:    logger,
	}
	if o.unlink {
		so.Flags |= stream.Unlink
	}
	if o.closeAfter {
		so.Flags |= stream.CloseAfterMap
	}
	if o.noMsync {
		so.Flags |= stream.NoMsync
	}
	if o.retryEAGAIN {
		so.Flags |= stream.RetryEAGAIN
	}
	return so
}

// open opens the destination stream.
func (o *options) open(ctx context.Context, logger logging.L) (*stream.Stream, error) {
	so := o.streamOptions(logger)
	switch {
	case o.protocol != "":
		return stream.Dial(ctx, o.target, o.port, so)
	case o.target == "":
		return stream.FromFile(os.Stdout, so), nil
	case o.mmap:
		return stream.OpenMmap(o.target, so, o.length+o.seek.Value())
	default:
		return stream.OpenFile(o.target, so)
	}
}

func (o *options) generateConfig(logger logging.L) generate.Config {
	return generate.Config{
		Length:  o.length,
		Seek:    o.seek.Value(),
		Tagged:  o.tag.Valid,
		Tag:     o.tag.Tag,
		Creator: o.creator,
		Logger:  logger,
	}
}

// Main is the main entry point.
func Main() {
	os.Exit(Run(context.Background(), os.Args[1:]))
}

// Run runs genstream with the given arguments and returns its exit code.
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
		logger.Errorf("Could not open output: %s", err)
		return appcommon.ExitFailure
	}

	start := time.Now()
	res, genErr := generate.Run(ctx, s, o.generateConfig(logger))
	logger.Info(appcommon.StatsLine(s.Name(), s.Stats(), time.Since(start)))

	closeErr := s.Close()
	switch {
	case genErr != nil:
		logger.Errorf("Generation failed: %s", genErr)
		return appcommon.ExitFailure
	case closeErr != nil:
		logger.Errorf("Could not close %s: %s", s.Name(), closeErr)
		return appcommon.ExitFailure
	case res.Interrupted:
		return appcommon.ExitInterrupted
	default:
		return appcommon.ExitSuccess
	}
}

func printUsage(w io.Writer) {
	var o options
	fmt.Fprint(w, usageHeader)
	fmt.Fprint(w, newFlagSet(&o).FlagUsages())
}
