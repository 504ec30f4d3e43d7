// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package appcommon contains plumbing shared by the genstream command-line
// tools.
package appcommon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/danjacques/genstream/stream"
	"github.com/danjacques/genstream/support/logging"
	"github.com/danjacques/genstream/support/units"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

// Process exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1
	// ExitInterrupted reports a clean early stop on SIGINT or SIGTERM.
	ExitInterrupted = 128 + int(unix.SIGINT)
)

// Version is reported by --version.
const Version = "1.0.0"

// Flags are the options every tool accepts.
type Flags struct {
	Verbose     bool
	Version     bool
	MetricsAddr string
}

// AddFlags registers f's options with fs.
func (f *Flags) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "Emit debug logging.")
	fs.BoolVarP(&f.Version, "version", "V", false, "Print the version and exit.")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "",
		"If set, serve Prometheus metrics over HTTP on this address while running.")
}

// UsageError is a command-line configuration error. The tool prints its usage
// and exits without opening anything.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string { return e.Reason }

// Usagef returns a UsageError with a formatted reason.
func Usagef(format string, args ...interface{}) error {
	return &UsageError{Reason: fmt.Sprintf(format, args...)}
}

// IsUsage returns true if err is a UsageError.
func IsUsage(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

// SignalContext returns a Context that is cancelled when the process
// receives SIGINT or SIGTERM.
func SignalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, unix.SIGTERM)
}

// NewLogger builds the tool's logger.
func NewLogger(program string, f *Flags) logging.L {
	l, err := logging.NewZap(program, f.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: could not create logger: %s\n", program, err)
		os.Exit(ExitFailure)
	}
	return l
}

// MetricsServer serves Prometheus metrics over HTTP.
type MetricsServer struct {
	srv    *http.Server
	addr   net.Addr
	doneC  chan struct{}
	logger logging.L
}

// ServeMetrics registers the stream metrics with reg and, if addr is not
// empty, starts serving reg's metrics on addr at "/metrics".
//
// The returned server must be stopped with Stop. A nil server is returned,
// and is safe to Stop, when addr is empty.
func ServeMetrics(addr string, reg *prometheus.Registry, logger logging.L) (*MetricsServer, error) {
	stream.RegisterMonitoring(reg)
	if addr == "" {
		return nil, nil
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listening for metrics on %q", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	ms := MetricsServer{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: time.Minute},
		addr:   l.Addr(),
		doneC:  make(chan struct{}),
		logger: logging.Must(logger),
	}

	ms.logger.Infof("Serving metrics on http://%s/metrics", l.Addr())
	go func() {
		defer close(ms.doneC)
		if err := ms.srv.Serve(l); err != nil && err != http.ErrServerClosed {
			ms.logger.Warnf("Metrics server stopped: %s", err)
		}
	}()
	return &ms, nil
}

// Addr returns the address the server is listening on.
func (ms *MetricsServer) Addr() string { return ms.addr.String() }

// Stop shuts the server down.
func (ms *MetricsServer) Stop() {
	if ms == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = ms.srv.Shutdown(ctx)
	<-ms.doneC
}

// StatsLine renders a stream's transfer statistics, as
// "<name> <blocks> blocks <bytes> bytes (<size>, <rate>)".
func StatsLine(name string, st stream.Stats, elapsed time.Duration) string {
	line := fmt.Sprintf("%s %d blocks %d bytes (%s", name, st.Blocks, st.Bytes, units.IECSize(st.Bytes))
	if secs := elapsed.Seconds(); secs > 0 {
		line += fmt.Sprintf(", %s/s", humanize.IBytes(uint64(float64(st.Bytes)/secs)))
	}
	return line + ")"
}
