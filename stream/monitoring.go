// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package stream

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	streamBlocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genstream_stream_blocks",
		Help: "Count of blocks pushed to or pulled from a stream backend.",
	},
		[]string{"backend", "name", "op"})

	streamBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genstream_stream_bytes",
		Help: "Count of bytes pushed to or pulled from a stream backend.",
	},
		[]string{"backend", "name", "op"})

	streamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genstream_stream_errors",
		Help: "Count of failed push and pull operations.",
	},
		[]string{"backend", "name", "op"})

	streamRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genstream_stream_eagain_retries",
		Help: "Count of writes retried after EAGAIN.",
	},
		[]string{"backend", "name"})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		streamBlocks,
		streamBytes,
		streamErrors,
		streamRetries,
	)
}
