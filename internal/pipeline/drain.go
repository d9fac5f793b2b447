package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/adcrec/internal/errors"
	"github.com/tphakala/adcrec/internal/logging"
	"github.com/tphakala/adcrec/internal/packet"
)

// Consumer receives drained batches. The batch slice and the packets in it
// are only valid for the duration of the call.
type Consumer interface {
	Name() string
	Consume(ctx context.Context, batch []*packet.Packet) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc struct {
	ConsumerName string
	Fn           func(ctx context.Context, batch []*packet.Packet) error
}

// Name implements Consumer.
func (c ConsumerFunc) Name() string { return c.ConsumerName }

// Consume implements Consumer.
func (c ConsumerFunc) Consume(ctx context.Context, batch []*packet.Packet) error {
	return c.Fn(ctx, batch)
}

// DrainerConfig configures a Drainer.
type DrainerConfig struct {
	Queue     *Queue
	Consumers []Consumer    // fan-out order within each batch
	BatchSize int           // max packets per iteration, default 512
	IdleWait  time.Duration // sleep when the queue is empty, default 5ms
	Metrics   Metrics       // optional
	Logger    *slog.Logger  // optional
}

// DrainStats is a snapshot of drain loop diagnostics.
type DrainStats struct {
	Running          bool
	PacketsProcessed uint64
	Iterations       uint64
	LastBatchSize    int
	LastDrain        time.Time
	ConsumerErrors   uint64
	BytesPerChannel  [packet.NumChannels]uint64 // payload bytes delivered per channel, 3 per sample
}

// Drainer owns the background worker that moves packets from the queue to
// the consumers.
type Drainer struct {
	queue     *Queue
	consumers []Consumer
	batchSize int
	idleWait  time.Duration
	metrics   Metrics
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   <-chan struct{} // closed when the worker's context ends
	wg     sync.WaitGroup

	running         atomic.Bool
	processed       atomic.Uint64
	iterations      atomic.Uint64
	lastBatchSize   atomic.Int64
	lastDrainNanos  atomic.Int64
	consumerErrors  atomic.Uint64
	bytesPerChannel [packet.NumChannels]atomic.Uint64
}

// NewDrainer creates a Drainer. It does not start the worker.
func NewDrainer(cfg *DrainerConfig) (*Drainer, error) {
	if cfg.Queue == nil {
		return nil, errors.Newf("drainer requires a queue").
			Component(ComponentPipeline).
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = DefaultIdleWait
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.ForService("acquisition")
		if logger == nil {
			logger = slog.Default()
		}
	}

	return &Drainer{
		queue:     cfg.Queue,
		consumers: cfg.Consumers,
		batchSize: cfg.BatchSize,
		idleWait:  cfg.IdleWait,
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "drain_loop"),
	}, nil
}

// Start launches the drain worker. Starting a running drainer is a no-op.
// A worker that exited because its parent context ended counts as stopped.
func (d *Drainer) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		select {
		case <-d.done:
			d.cancel()
			d.wg.Wait()
			d.cancel = nil
			d.logger.Debug("restarting drain loop after parent context ended")
		default:
			d.logger.Debug("drain loop already running")
			return
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = loopCtx.Done()
	d.running.Store(true)

	d.wg.Add(1)
	go d.loop(loopCtx)

	d.logger.Info("drain loop started",
		"batch_size", d.batchSize,
		"idle_wait", d.idleWait,
		"consumers", len(d.consumers))
}

// Stop cancels the worker and waits for it to exit. A batch already being
// dispatched completes first. Stopping a stopped drainer is a no-op.
func (d *Drainer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel == nil {
		return
	}

	d.cancel()
	d.wg.Wait()
	d.cancel = nil
	d.running.Store(false)

	d.logger.Info("drain loop stopped",
		"packets_processed", d.processed.Load(),
		"iterations", d.iterations.Load(),
		"pending", d.queue.Len())
}

// Running reports whether the worker is active.
func (d *Drainer) Running() bool {
	return d.running.Load()
}

func (d *Drainer) loop(ctx context.Context) {
	defer d.wg.Done()
	defer d.running.Store(false)

	batch := make([]*packet.Packet, 0, d.batchSize)
	idle := time.NewTimer(d.idleWait)
	defer idle.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		batch = d.queue.DequeueBatch(batch[:0], d.batchSize)
		if len(batch) == 0 {
			idle.Reset(d.idleWait)
			select {
			case <-ctx.Done():
				return
			case <-idle.C:
			}
			continue
		}

		d.dispatch(ctx, batch)
		clear(batch)
	}
}

// dispatch hands one batch to every consumer in order.
func (d *Drainer) dispatch(ctx context.Context, batch []*packet.Packet) {
	start := time.Now()

	for _, c := range d.consumers {
		if err := d.consume(ctx, c, batch); err != nil {
			d.consumerErrors.Add(1)
			if d.metrics != nil {
				d.metrics.RecordConsumerError(c.Name())
			}
			d.logger.Warn("consumer failed on batch",
				"consumer", c.Name(),
				"batch_size", len(batch),
				"error", err)
		}
	}

	n := len(batch)
	perChannel := uint64(n * packet.BufferLen * packet.BytesPerSample24)
	for ch := range d.bytesPerChannel {
		d.bytesPerChannel[ch].Add(perChannel)
	}
	d.processed.Add(uint64(n))
	d.iterations.Add(1)
	d.lastBatchSize.Store(int64(n))
	d.lastDrainNanos.Store(time.Now().UnixNano())

	if d.metrics != nil {
		d.metrics.RecordBatch(n, time.Since(start))
	}
}

// consume isolates one consumer so a panic cannot stop the drain loop.
func (d *Drainer) consume(ctx context.Context, c Consumer, batch []*packet.Packet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(fmt.Errorf("consumer panic: %v", r)).
				Component(ComponentPipeline).
				Category(errors.CategoryWorker).
				Context("consumer", c.Name()).
				Build()
		}
	}()
	return c.Consume(ctx, batch)
}

// Stats returns drain diagnostics.
func (d *Drainer) Stats() DrainStats {
	s := DrainStats{
		Running:          d.running.Load(),
		PacketsProcessed: d.processed.Load(),
		Iterations:       d.iterations.Load(),
		LastBatchSize:    int(d.lastBatchSize.Load()),
		ConsumerErrors:   d.consumerErrors.Load(),
	}
	if ns := d.lastDrainNanos.Load(); ns != 0 {
		s.LastDrain = time.Unix(0, ns)
	}
	for ch := range d.bytesPerChannel {
		s.BytesPerChannel[ch] = d.bytesPerChannel[ch].Load()
	}
	return s
}

// ResetStats zeroes the diagnostics counters.
func (d *Drainer) ResetStats() {
	d.processed.Store(0)
	d.iterations.Store(0)
	d.lastBatchSize.Store(0)
	d.lastDrainNanos.Store(0)
	d.consumerErrors.Store(0)
	for ch := range d.bytesPerChannel {
		d.bytesPerChannel[ch].Store(0)
	}
}
