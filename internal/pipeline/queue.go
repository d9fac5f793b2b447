// Package pipeline hands parsed packets from the ingestion path to a single
// background drain worker that fans them out to consumers in arrival order.
package pipeline

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/adcrec/internal/errors"
	"github.com/tphakala/adcrec/internal/logging"
	"github.com/tphakala/adcrec/internal/packet"
	"golang.org/x/time/rate"
)

// ComponentPipeline identifies pipeline errors and logs.
const ComponentPipeline = "pipeline"

// Defaults matching the acquisition configuration defaults.
const (
	DefaultQueueCeiling        = 4096
	DefaultBatchSize           = 512
	DefaultIdleWait            = 5 * time.Millisecond
	DefaultDropSummaryInterval = 10 * time.Second
)

// Metrics receives queue and drain telemetry. Implementations must be safe
// for concurrent use.
type Metrics interface {
	RecordPacketsDropped(n int)
	SetQueueDepth(n int)
	RecordBatch(size int, duration time.Duration)
	RecordConsumerError(consumer string)
}

// QueueConfig configures a Queue.
type QueueConfig struct {
	Ceiling             int           // max pending packets, default 4096
	DropSummaryInterval time.Duration // min interval between drop summaries, default 10s
	Metrics             Metrics       // optional
	Logger              *slog.Logger  // optional
}

// Queue is a FIFO of packets bounded by a shedding policy: producers never
// block, they evict the oldest entries once the pending count exceeds the
// ceiling. Safe for concurrent producers and consumers.
type Queue struct {
	ceiling int
	metrics Metrics
	logger  *slog.Logger
	summary rate.Sometimes

	mu    sync.Mutex
	items []*packet.Packet
	head  int // index of the oldest live item

	pending       atomic.Int64
	dropped       atomic.Uint64
	droppedWindow atomic.Uint64 // drops not yet included in a summary
}

// NewQueue creates a Queue.
func NewQueue(cfg QueueConfig) (*Queue, error) {
	if cfg.Ceiling == 0 {
		cfg.Ceiling = DefaultQueueCeiling
	}
	if cfg.Ceiling < 0 {
		return nil, errors.Newf("invalid queue ceiling: %d", cfg.Ceiling).
			Component(ComponentPipeline).
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.DropSummaryInterval <= 0 {
		cfg.DropSummaryInterval = DefaultDropSummaryInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.ForService("acquisition")
		if logger == nil {
			logger = slog.Default()
		}
	}

	return &Queue{
		ceiling: cfg.Ceiling,
		metrics: cfg.Metrics,
		logger:  logger.With("component", "packet_queue"),
		summary: rate.Sometimes{Interval: cfg.DropSummaryInterval},
		items:   make([]*packet.Packet, 0, min(cfg.Ceiling, 1024)),
	}, nil
}

// Enqueue appends packets in order, shedding the oldest entries when the
// ceiling is exceeded. It returns the number of packets evicted.
func (q *Queue) Enqueue(pkts ...*packet.Packet) int {
	if len(pkts) == 0 {
		return 0
	}

	evicted := 0
	q.mu.Lock()
	for _, p := range pkts {
		q.items = append(q.items, p)
		n := q.pending.Add(1)
		for n > int64(q.ceiling) {
			q.items[q.head] = nil
			q.head++
			n = q.pending.Add(-1)
			evicted++
		}
	}
	q.compactLocked()
	depth := q.pending.Load()
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.SetQueueDepth(int(depth))
	}
	if evicted > 0 {
		q.recordDrops(evicted)
	}
	return evicted
}

// DequeueBatch appends up to limit packets, oldest first, to dst and returns it.
func (q *Queue) DequeueBatch(dst []*packet.Packet, limit int) []*packet.Packet {
	if limit <= 0 || q.pending.Load() == 0 {
		return dst
	}

	q.mu.Lock()
	n := min(limit, len(q.items)-q.head)
	dst = append(dst, q.items[q.head:q.head+n]...)
	clear(q.items[q.head : q.head+n])
	q.head += n
	q.pending.Add(int64(-n))
	q.compactLocked()
	depth := q.pending.Load()
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.SetQueueDepth(int(depth))
	}
	return dst
}

// compactLocked reclaims the consumed prefix once it dominates the slice.
func (q *Queue) compactLocked() {
	if q.head == 0 {
		return
	}
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head >= len(q.items)/2 {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
}

func (q *Queue) recordDrops(n int) {
	total := q.dropped.Add(uint64(n))
	q.droppedWindow.Add(uint64(n))
	if q.metrics != nil {
		q.metrics.RecordPacketsDropped(n)
	}
	q.summary.Do(func() {
		q.logger.Warn("packet queue over ceiling, dropped oldest packets",
			"dropped", q.droppedWindow.Swap(0),
			"total_dropped", total,
			"ceiling", q.ceiling)
	})
}

// Len returns the pending packet count.
func (q *Queue) Len() int {
	return int(q.pending.Load())
}

// Ceiling returns the configured ceiling.
func (q *Queue) Ceiling() int {
	return q.ceiling
}

// Dropped returns the number of packets evicted since creation or the last Clear.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Clear discards pending packets and resets the drop counters. It returns
// the number of packets discarded.
func (q *Queue) Clear() int {
	q.mu.Lock()
	n := len(q.items) - q.head
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
	q.pending.Store(0)
	q.mu.Unlock()

	q.dropped.Store(0)
	q.droppedWindow.Store(0)
	if q.metrics != nil {
		q.metrics.SetQueueDepth(0)
	}
	return n
}
