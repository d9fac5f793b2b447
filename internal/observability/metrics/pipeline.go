package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for the acquisition pipeline:
// framing, the packet queue, the drain loop, the mixer and session operations.
type PipelineMetrics struct {
	registry *prometheus.Registry

	// Framer metrics
	packetsParsed prometheus.Counter
	invalidFrames prometheus.Counter
	bytesTrimmed  prometheus.Counter

	// Queue and drain loop metrics
	packetsDropped prometheus.Counter
	queueDepth     prometheus.Gauge
	batchSize      prometheus.Histogram
	batchDuration  prometheus.Histogram
	consumerErrors *prometheus.CounterVec

	// Mixer metrics
	mixedFrames    prometheus.Counter
	monitorDropped prometheus.Counter
	meterPeak      *prometheus.GaugeVec

	// Session operation metrics
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewPipelineMetrics creates and registers new pipeline metrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *PipelineMetrics) initMetrics() {
	m.packetsParsed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adcrec_framer_packets_parsed_total",
		Help: "Total number of packets decoded from the byte stream",
	})
	m.invalidFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adcrec_framer_invalid_frames_total",
		Help: "Total number of sentinel hits rejected by frame validation",
	})
	m.bytesTrimmed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adcrec_framer_bytes_trimmed_total",
		Help: "Total number of bytes discarded because the framing buffer overflowed",
	})

	m.packetsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adcrec_queue_packets_dropped_total",
		Help: "Total number of packets evicted from the queue by the shedding policy",
	})
	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "adcrec_queue_depth",
		Help: "Number of packets pending in the queue",
	})
	m.batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "adcrec_drain_batch_size",
		Help:    "Number of packets dispatched per drain iteration",
		Buckets: prometheus.ExponentialBuckets(BucketStart1, BucketFactor2, BucketCount10), // 1 to 512
	})
	m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "adcrec_drain_batch_duration_seconds",
		Help:    "Time taken to fan one batch out to every consumer",
		Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12), // 0.1ms to ~400ms
	})
	m.consumerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcrec_drain_consumer_errors_total",
			Help: "Total number of batches a consumer failed to process",
		},
		[]string{"consumer"},
	)

	m.mixedFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adcrec_mixer_frames_total",
		Help: "Total number of stereo frames produced by the mixer",
	})
	m.monitorDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adcrec_mixer_monitor_dropped_samples_total",
		Help: "Total number of samples discarded because the monitor buffer was full",
	})
	m.meterPeak = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adcrec_mixer_peak_level",
			Help: "Latest per-batch absolute peak of the mix, 0..1",
		},
		[]string{"side"},
	)

	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcrec_operations_total",
			Help: "Total number of session operations by outcome",
		},
		[]string{"operation", "status"},
	)
	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adcrec_operation_duration_seconds",
			Help:    "Duration of session operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~4s
		},
		[]string{"operation"},
	)
	m.operationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcrec_operation_errors_total",
			Help: "Total number of session operation errors by category",
		},
		[]string{"operation", "error_type"},
	)

	m.collectors = []prometheus.Collector{
		m.packetsParsed, m.invalidFrames, m.bytesTrimmed,
		m.packetsDropped, m.queueDepth, m.batchSize, m.batchDuration, m.consumerErrors,
		m.mixedFrames, m.monitorDropped, m.meterPeak,
		m.operationsTotal, m.operationDuration, m.operationErrors,
	}
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// Framer metrics

// RecordPacketsParsed counts decoded packets.
func (m *PipelineMetrics) RecordPacketsParsed(n int) {
	m.packetsParsed.Add(float64(n))
}

// RecordInvalidFrame counts a rejected frame.
func (m *PipelineMetrics) RecordInvalidFrame() {
	m.invalidFrames.Inc()
}

// RecordBytesTrimmed counts bytes discarded on buffer overflow.
func (m *PipelineMetrics) RecordBytesTrimmed(n int) {
	m.bytesTrimmed.Add(float64(n))
}

// Queue and drain loop metrics

// RecordPacketsDropped counts packets evicted from the queue.
func (m *PipelineMetrics) RecordPacketsDropped(n int) {
	m.packetsDropped.Add(float64(n))
}

// SetQueueDepth updates the pending packet gauge.
func (m *PipelineMetrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// RecordBatch observes one drain iteration.
func (m *PipelineMetrics) RecordBatch(size int, duration time.Duration) {
	m.batchSize.Observe(float64(size))
	m.batchDuration.Observe(duration.Seconds())
}

// RecordConsumerError counts a failed consumer call.
func (m *PipelineMetrics) RecordConsumerError(consumer string) {
	m.consumerErrors.WithLabelValues(consumer).Inc()
}

// Mixer metrics

// RecordMixedFrames counts stereo frames produced by the mixer.
func (m *PipelineMetrics) RecordMixedFrames(n int) {
	m.mixedFrames.Add(float64(n))
}

// RecordMonitorDropped counts samples the monitor buffer could not accept.
func (m *PipelineMetrics) RecordMonitorDropped(samples int) {
	m.monitorDropped.Add(float64(samples))
}

// SetMeterLevels updates the per-side peak gauges.
func (m *PipelineMetrics) SetMeterLevels(peakLeft, peakRight float64) {
	m.meterPeak.WithLabelValues(SideLeft).Set(peakLeft)
	m.meterPeak.WithLabelValues(SideRight).Set(peakRight)
}

// Recorder implementation

// RecordOperation records a session operation with its status.
func (m *PipelineMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration records the duration of a session operation.
func (m *PipelineMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError records a session operation error.
func (m *PipelineMetrics) RecordError(operation, errorType string) {
	m.operationErrors.WithLabelValues(operation, errorType).Inc()
}
