// Package metrics exposes codec and listener counters to Prometheus.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

var (
	registerOnce sync.Once

	encodedBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "codecbench",
			Subsystem: "codec",
			Name:      "encoded_bytes",
			Help:      "Size of the last encoded record.",
		},
		[]string{"codec"},
	)
	encodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codecbench",
			Subsystem: "codec",
			Name:      "encode_duration_seconds",
			Help:      "Record encode duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 12),
		},
		[]string{"codec"},
	)
	decodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codecbench",
			Subsystem: "codec",
			Name:      "decode_duration_seconds",
			Help:      "Record decode duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 12),
		},
		[]string{"codec"},
	)
	decodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codecbench",
			Subsystem: "codec",
			Name:      "decodes_total",
			Help:      "Record decodes by outcome.",
		},
		[]string{"codec", "status"},
	)
	connections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codecbench",
			Subsystem: "listener",
			Name:      "connection_states_total",
			Help:      "Connection state transitions.",
		},
		[]string{"codec", "state"},
	)
	receivedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codecbench",
			Subsystem: "listener",
			Name:      "received_bytes_total",
			Help:      "Payload bytes accumulated by listeners.",
		},
		[]string{"codec"},
	)
	sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codecbench",
			Subsystem: "client",
			Name:      "sends_total",
			Help:      "Buffers shipped to listeners by outcome.",
		},
		[]string{"codec", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(encodedBytes, encodeDuration, decodeDuration, decodes, connections, receivedBytes, sends)
	})
}

func status(err error) string {
	if err != nil {
		return statusError
	}
	return statusSuccess
}

func RecordEncode(codec string, size int, d time.Duration) {
	RegisterMetrics()
	encodedBytes.WithLabelValues(codec).Set(float64(size))
	encodeDuration.WithLabelValues(codec).Observe(d.Seconds())
}

// RecordDecode counts a decode attempt; the duration is only observed on success.
func RecordDecode(codec string, d time.Duration, err error) {
	RegisterMetrics()
	decodes.WithLabelValues(codec, status(err)).Inc()
	if err == nil {
		decodeDuration.WithLabelValues(codec).Observe(d.Seconds())
	}
}

func RecordConnectionState(codec, state string) {
	RegisterMetrics()
	connections.WithLabelValues(codec, state).Inc()
}

func RecordReceived(codec string, n int) {
	RegisterMetrics()
	receivedBytes.WithLabelValues(codec).Add(float64(n))
}

func RecordSend(codec string, err error) {
	RegisterMetrics()
	sends.WithLabelValues(codec, status(err)).Inc()
}
