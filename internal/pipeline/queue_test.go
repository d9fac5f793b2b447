package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/adcrec/internal/packet"
)

func seq(n int) []*packet.Packet {
	out := make([]*packet.Packet, n)
	for i := range out {
		p := &packet.Packet{}
		p.Samples[0][0] = uint32(i)
		out[i] = p
	}
	return out
}

type recordingMetrics struct {
	mu             sync.Mutex
	dropped        int
	depth          int
	batches        int
	consumerErrors map[string]int
}

func (m *recordingMetrics) RecordPacketsDropped(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped += n
}

func (m *recordingMetrics) SetQueueDepth(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depth = n
}

func (m *recordingMetrics) RecordBatch(int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
}

func (m *recordingMetrics) RecordConsumerError(consumer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.consumerErrors == nil {
		m.consumerErrors = make(map[string]int)
	}
	m.consumerErrors[consumer]++
}

func (m *recordingMetrics) snapshot() (dropped, depth, batches int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped, m.depth, m.batches
}

func TestQueueRejectsNegativeCeiling(t *testing.T) {
	t.Parallel()

	_, err := NewQueue(QueueConfig{Ceiling: -1})
	require.Error(t, err)

	q, err := NewQueue(QueueConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultQueueCeiling, q.Ceiling())
}

func TestQueueFIFO(t *testing.T) {
	t.Parallel()

	q, err := NewQueue(QueueConfig{Ceiling: 100})
	require.NoError(t, err)

	q.Enqueue(seq(10)...)
	assert.Equal(t, 10, q.Len())

	got := q.DequeueBatch(nil, 4)
	require.Len(t, got, 4)
	for i, p := range got {
		assert.Equal(t, uint32(i), p.Samples[0][0])
	}

	got = q.DequeueBatch(got[:0], 100)
	require.Len(t, got, 6)
	assert.Equal(t, uint32(4), got[0].Samples[0][0])
	assert.Equal(t, uint32(9), got[5].Samples[0][0])
	assert.Zero(t, q.Len())

	assert.Empty(t, q.DequeueBatch(nil, 10))
}

func TestQueueShedsOldestOverCeiling(t *testing.T) {
	t.Parallel()

	metrics := &recordingMetrics{}
	q, err := NewQueue(QueueConfig{Metrics: metrics})
	require.NoError(t, err)

	evicted := q.Enqueue(seq(5000)...)
	assert.Equal(t, 904, evicted)
	assert.Equal(t, 4096, q.Len())
	assert.Equal(t, uint64(904), q.Dropped())

	dropped, depth, _ := metrics.snapshot()
	assert.Equal(t, 904, dropped)
	assert.Equal(t, 4096, depth)

	// The newest packets survive
	got := q.DequeueBatch(nil, 1)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(904), got[0].Samples[0][0])
}

func TestQueueSheddingAcrossCalls(t *testing.T) {
	t.Parallel()

	q, err := NewQueue(QueueConfig{Ceiling: 8})
	require.NoError(t, err)

	for _, p := range seq(20) {
		q.Enqueue(p)
	}
	assert.Equal(t, 8, q.Len())
	assert.Equal(t, uint64(12), q.Dropped())

	got := q.DequeueBatch(nil, 8)
	require.Len(t, got, 8)
	for i, p := range got {
		assert.Equal(t, uint32(12+i), p.Samples[0][0])
	}
}

func TestQueueClear(t *testing.T) {
	t.Parallel()

	q, err := NewQueue(QueueConfig{Ceiling: 4})
	require.NoError(t, err)

	q.Enqueue(seq(6)...)
	assert.Equal(t, 4, q.Clear())
	assert.Zero(t, q.Len())
	assert.Zero(t, q.Dropped())

	q.Enqueue(seq(2)...)
	got := q.DequeueBatch(nil, 10)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(0), got[0].Samples[0][0])
}

func TestQueueConcurrentProducers(t *testing.T) {
	t.Parallel()

	q, err := NewQueue(QueueConfig{Ceiling: 10000})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for _, p := range seq(500) {
				q.Enqueue(p)
			}
		})
	}
	wg.Wait()

	total := 0
	for {
		got := q.DequeueBatch(nil, 512)
		if len(got) == 0 {
			break
		}
		total += len(got)
	}
	assert.Equal(t, 4000, total)
}
