// Package metrics exposes Prometheus instrumentation for the recording
// pipeline. Metrics are registered with the default registry via promauto;
// the record command serves them with promhttp when --metrics-addr is set.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "screenrec",
		Subsystem: "pipeline",
		Name:      "frames_captured_total",
		Help:      "Frames pulled from the capture source",
	})

	framesWouldBlock = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "screenrec",
		Subsystem: "pipeline",
		Name:      "would_block_total",
		Help:      "Iterations where the capture source had no frame ready",
	})

	packetsMuxed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "screenrec",
		Subsystem: "pipeline",
		Name:      "packets_muxed_total",
		Help:      "Encoded packets written to the container",
	})

	convertSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "screenrec",
		Subsystem: "pipeline",
		Name:      "convert_seconds",
		Help:      "Time spent converting a frame to planar YUV",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	encodeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "screenrec",
		Subsystem: "pipeline",
		Name:      "encode_seconds",
		Help:      "Time spent in the video encoder per frame",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	recorderState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "screenrec",
		Subsystem: "pipeline",
		Name:      "recorder_state",
		Help:      "Current recorder state (0=starting 1=running 2=draining 3=finished)",
	})
)

// IncFrameCaptured counts a frame successfully pulled from the source.
func IncFrameCaptured() {
	framesCaptured.Inc()
}

// IncWouldBlock counts a no-op iteration where no frame was ready.
func IncWouldBlock() {
	framesWouldBlock.Inc()
}

// AddPacketsMuxed counts encoded packets forwarded to the muxer.
func AddPacketsMuxed(n int) {
	packetsMuxed.Add(float64(n))
}

// ObserveConvert records the duration of one YUV conversion.
func ObserveConvert(d time.Duration) {
	convertSeconds.Observe(d.Seconds())
}

// ObserveEncode records the duration of one encoder submission.
func ObserveEncode(d time.Duration) {
	encodeSeconds.Observe(d.Seconds())
}

// SetRecorderState publishes the pipeline state as a gauge.
func SetRecorderState(state int) {
	recorderState.Set(float64(state))
}
