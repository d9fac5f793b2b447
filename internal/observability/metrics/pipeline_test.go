package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/adcrec/internal/framer"
	"github.com/tphakala/adcrec/internal/mixer"
	"github.com/tphakala/adcrec/internal/observability/metrics"
	"github.com/tphakala/adcrec/internal/pipeline"
)

var (
	_ framer.Metrics   = (*metrics.PipelineMetrics)(nil)
	_ pipeline.Metrics = (*metrics.PipelineMetrics)(nil)
	_ mixer.Metrics    = (*metrics.PipelineMetrics)(nil)
	_ metrics.Recorder = (*metrics.PipelineMetrics)(nil)
)

func newPipelineMetrics(t *testing.T) (*metrics.PipelineMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPipelineMetrics(reg)
	require.NoError(t, err)
	return m, reg
}

func TestPipelineMetricsRegisterOnce(t *testing.T) {
	t.Parallel()

	_, reg := newPipelineMetrics(t)
	_, err := metrics.NewPipelineMetrics(reg)
	require.Error(t, err, "registering the same collector twice must fail")
}

func TestPipelineMetricsCounters(t *testing.T) {
	t.Parallel()

	m, reg := newPipelineMetrics(t)

	m.RecordPacketsParsed(10)
	m.RecordPacketsParsed(5)
	m.RecordInvalidFrame()
	m.RecordBytesTrimmed(2048)
	m.RecordPacketsDropped(904)
	m.SetQueueDepth(4096)
	m.SetQueueDepth(12)
	m.RecordBatch(512, 3*time.Millisecond)
	m.RecordConsumerError("recorder")
	m.RecordConsumerError("recorder")
	m.RecordMixedFrames(16)
	m.RecordMonitorDropped(32)
	m.SetMeterLevels(0.5, 0.25)

	count, err := testutil.GatherAndCount(reg,
		"adcrec_framer_packets_parsed_total",
		"adcrec_queue_depth",
		"adcrec_drain_batch_size")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	lint, err := testutil.GatherAndLint(reg)
	require.NoError(t, err)
	assert.Empty(t, lint)
}

func TestPipelineMetricsOperations(t *testing.T) {
	t.Parallel()

	m, reg := newPipelineMetrics(t)

	m.RecordOperation(metrics.OpRecordStart, metrics.StatusSuccess)
	m.RecordOperation(metrics.OpRecordStart, metrics.StatusError)
	m.RecordOperation(metrics.OpRecordStart, metrics.StatusSuccess)
	m.RecordDuration(metrics.OpReplay, 0.25)
	m.RecordError(metrics.OpWAVStart, "file-io")

	count, err := testutil.GatherAndCount(reg, "adcrec_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per operation/status pair")

	count, err = testutil.GatherAndCount(reg, "adcrec_operation_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
