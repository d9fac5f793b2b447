// Package acquisition wires a byte source through the framer, the packet
// queue and the drain loop into the ring, recorder and mixer consumers.
package acquisition

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/adcrec/internal/conf"
	"github.com/tphakala/adcrec/internal/errors"
	"github.com/tphakala/adcrec/internal/framer"
	"github.com/tphakala/adcrec/internal/logging"
	"github.com/tphakala/adcrec/internal/mixer"
	"github.com/tphakala/adcrec/internal/observability/metrics"
	"github.com/tphakala/adcrec/internal/packet"
	"github.com/tphakala/adcrec/internal/pipeline"
	"github.com/tphakala/adcrec/internal/record"
	"github.com/tphakala/adcrec/internal/ring"
	"github.com/tphakala/adcrec/internal/source"
)

// ComponentAcquisition identifies acquisition errors and logs.
const ComponentAcquisition = "acquisition"

// Metrics is everything the session reports. metrics.PipelineMetrics
// satisfies it.
type Metrics interface {
	framer.Metrics
	pipeline.Metrics
	mixer.Metrics
	metrics.Recorder
}

// Config configures a Session.
type Config struct {
	Settings *conf.Settings
	Metrics  Metrics      // optional
	Logger   *slog.Logger // optional
	Output   mixer.Output // optional, overrides the configured monitor backend
}

// Stats is a point-in-time view of the whole pipeline, read without
// touching the hot path beyond per-component locks.
type Stats struct {
	ID            string
	Started       time.Time
	Running       bool
	Framer        framer.Stats
	Pending       int
	Dropped       uint64
	Drain         pipeline.DrainStats
	RingSamples   int
	MaxRaw        [packet.NumChannels]uint32
	PlotBits      int
	Meters        mixer.MeterSnapshot
	MonitorMillis float64
	Recording     record.Session
	WAV           mixer.WAVSession
}

// Session owns one acquisition pipeline. Ingest is meant to be called from a
// single producer; everything else may be called from any goroutine.
type Session struct {
	id       string
	settings *conf.Settings
	metrics  Metrics
	logger   *slog.Logger

	framer   *framer.Framer
	queue    *pipeline.Queue
	drainer  *pipeline.Drainer
	ring     *ring.SampleRing
	recorder *record.Recorder
	mixer    *mixer.Mixer // nil when the mixer is disabled
	monitor  *mixer.Monitor
	output   mixer.Output

	plotBits atomic.Int32

	mu      sync.Mutex
	started time.Time
	running bool
}

// NewSession builds every pipeline component from settings. Nothing is
// started and no files are opened.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Settings == nil {
		return nil, errors.Newf("acquisition session requires settings").
			Component(ComponentAcquisition).
			Category(errors.CategoryConfiguration).
			Build()
	}
	settings := cfg.Settings
	acq := settings.Acquisition

	logger := cfg.Logger
	if logger == nil {
		logger = logging.ForService("acquisition")
		if logger == nil {
			logger = slog.Default()
		}
	}

	s := &Session{
		id:       uuid.NewString(),
		settings: settings,
		metrics:  cfg.Metrics,
		logger:   logger.With("component", "session"),
	}

	// Typed nil interfaces must not leak into the components
	var (
		framerMetrics   framer.Metrics
		pipelineMetrics pipeline.Metrics
		mixerMetrics    mixer.Metrics
	)
	if cfg.Metrics != nil {
		framerMetrics, pipelineMetrics, mixerMetrics = cfg.Metrics, cfg.Metrics, cfg.Metrics
	}

	var err error
	s.framer, err = framer.New(framer.Config{
		BytesPerSample: acq.BytesPerSample,
		Metrics:        framerMetrics,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	s.queue, err = pipeline.NewQueue(pipeline.QueueConfig{
		Ceiling:             acq.QueueCeiling,
		DropSummaryInterval: acq.DropSummaryInterval,
		Metrics:             pipelineMetrics,
		Logger:              logger,
	})
	if err != nil {
		return nil, err
	}

	s.ring = ring.New(acq.RingCapacity)
	s.plotBits.Store(int32(s.ring.Rescale(acq.PlotBits)))
	s.recorder = record.NewRecorder(record.RecorderConfig{Logger: logger})

	consumers := []pipeline.Consumer{s.ring, s.recorder}
	if settings.Mixer.Enabled {
		s.mixer, s.monitor, s.output, err = buildMixer(settings, cfg.Output, mixerMetrics, logger)
		if err != nil {
			return nil, err
		}
		consumers = append(consumers, s.mixer)
	}

	s.drainer, err = pipeline.NewDrainer(&pipeline.DrainerConfig{
		Queue:     s.queue,
		Consumers: consumers,
		BatchSize: acq.BatchSize,
		IdleWait:  acq.IdleWait,
		Metrics:   pipelineMetrics,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

func buildMixer(settings *conf.Settings, out mixer.Output, m mixer.Metrics, logger *slog.Logger) (*mixer.Mixer, *mixer.Monitor, mixer.Output, error) {
	mx := settings.Mixer

	var monitor *mixer.Monitor
	if mx.Monitor.Enabled {
		monitor = mixer.NewMonitor(mx.InputRate, mx.Monitor.BufferDuration)
		if out == nil {
			var err error
			out, err = mixer.NewOutput(mx.Monitor.Backend, mx.Monitor.Device, logger)
			if err != nil {
				return nil, nil, nil, err
			}
		}
	}

	var channels [packet.NumChannels]mixer.ChannelConfig
	for ch := range min(len(mx.Channels), packet.NumChannels) {
		c := mx.Channels[ch]
		channels[ch] = mixer.ChannelConfig{Gain: c.Gain, Pan: c.Pan, Bits: c.Bits}
	}

	return mixer.New(&mixer.Config{
		InputRate:  mx.InputRate,
		OutputRate: mx.OutputRate,
		DCBlock:    mx.DCBlock,
		Channels:   channels,
		Monitor:    monitor,
		Metrics:    m,
		Logger:     logger,
	}), monitor, out, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Ring returns the sample ring.
func (s *Session) Ring() *ring.SampleRing { return s.ring }

// Mixer returns the mixer, or nil when mixing is disabled.
func (s *Session) Mixer() *mixer.Mixer { return s.mixer }

// Recorder returns the binary recorder.
func (s *Session) Recorder() *record.Recorder { return s.recorder }

// Framer returns the stream framer.
func (s *Session) Framer() *framer.Framer { return s.framer }

// Start launches the drain loop and opens whatever sinks the settings
// enable: binary recording, WAV archival and the monitor output. A sink that
// fails to open stops everything already started.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.Newf("acquisition session already running").
			Component(ComponentAcquisition).
			Category(errors.CategoryState).
			Context("session_id", s.id).
			Build()
	}

	s.drainer.Start(ctx)
	s.running = true
	s.started = time.Now()

	if err := s.startSinks(); err != nil {
		s.stopLocked()
		return err
	}

	s.logger.Info("acquisition session started",
		"session_id", s.id,
		"bytes_per_sample", s.framer.BytesPerSample(),
		"queue_ceiling", s.queue.Ceiling(),
		"ring_capacity", s.ring.Capacity(),
		"mixer", s.mixer != nil)
	return nil
}

func (s *Session) startSinks() error {
	if s.settings.Recording.Enabled {
		if _, err := s.StartRecording(s.settings.Recording.Path); err != nil {
			return err
		}
	}
	if s.mixer == nil {
		return nil
	}
	if s.settings.Mixer.WAV.Enabled {
		if _, err := s.StartWAV(s.settings.Mixer.WAV.Path); err != nil {
			return err
		}
	}
	if s.output != nil && s.monitor != nil {
		if err := s.output.Start(s.monitor, s.monitor.SampleRate()); err != nil {
			s.logger.Warn("monitor output unavailable, continuing without playback",
				"backend", s.output.Name(),
				"error", err)
			s.output = nil
		}
	}
	return nil
}

// Stop halts the drain loop and closes every open sink. A batch in flight
// completes first; packets still queued are left for Clear. Stop on a
// stopped session is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Session) stopLocked() error {
	if !s.running {
		return nil
	}
	s.drainer.Stop()
	s.running = false

	var errs []error
	if s.recorder.Active() {
		if _, err := s.StopRecording(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.output != nil {
		if err := s.output.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.mixer != nil {
		if err := s.mixer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info("acquisition session stopped",
		"session_id", s.id,
		"uptime", time.Since(s.started).Round(time.Millisecond),
		"packets_processed", s.drainer.Stats().PacketsProcessed,
		"dropped", s.queue.Dropped())
	return errors.Join(errs...)
}

// Running reports whether the drain loop is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Ingest feeds a raw chunk through the framer and enqueues every packet it
// yields. It returns the number of packets enqueued.
func (s *Session) Ingest(chunk []byte) int {
	pkts := s.framer.Feed(chunk)
	if len(pkts) > 0 {
		s.queue.Enqueue(pkts...)
	}
	return len(pkts)
}

// RunSource delivers the source's chunks into Ingest until ctx is done or
// the source ends.
func (s *Session) RunSource(ctx context.Context, src source.ByteSource) error {
	start := time.Now()
	err := src.Run(ctx, func(chunk []byte) { s.Ingest(chunk) })
	s.recordOp(metrics.OpSourceRead, start, err)
	return err
}

// Replay feeds a recording through the same framer and queue as live data.
func (s *Session) Replay(ctx context.Context, path string) (record.ReplayStats, error) {
	start := time.Now()
	rp, err := record.NewReplayer(record.ReplayerConfig{
		Feeder:     s.framer,
		Sink:       func(pkts []*packet.Packet) { s.queue.Enqueue(pkts...) },
		SampleRate: s.settings.Acquisition.SampleRate,
		Logger:     s.logger,
	})
	if err != nil {
		s.recordOp(metrics.OpReplay, start, err)
		return record.ReplayStats{}, err
	}
	stats, err := rp.Replay(ctx, path)
	s.recordOp(metrics.OpReplay, start, err)
	return stats, err
}

// StartRecording opens a new ADCRec_*.bin file in dir.
func (s *Session) StartRecording(dir string) (string, error) {
	start := time.Now()
	if err := record.CheckFreeSpace(dir, s.settings.Recording.MinFreeMB); err != nil {
		s.recordOp(metrics.OpRecordStart, start, err)
		return "", err
	}
	path, err := s.recorder.Start(dir)
	s.recordOp(metrics.OpRecordStart, start, err)
	return path, err
}

// StopRecording closes the current recording.
func (s *Session) StopRecording() (record.Session, error) {
	start := time.Now()
	sess, err := s.recorder.Stop()
	s.recordOp(metrics.OpRecordStop, start, err)
	return sess, err
}

// StartWAV opens a new ADCRecMix_*.wav archive in dir.
func (s *Session) StartWAV(dir string) (string, error) {
	if s.mixer == nil {
		return "", errMixerDisabled()
	}
	start := time.Now()
	if err := record.CheckFreeSpace(dir, s.settings.Recording.MinFreeMB); err != nil {
		s.recordOp(metrics.OpWAVStart, start, err)
		return "", err
	}
	path, err := s.mixer.StartWAV(dir)
	s.recordOp(metrics.OpWAVStart, start, err)
	return path, err
}

// StopWAV finalizes the current WAV archive.
func (s *Session) StopWAV() (mixer.WAVSession, error) {
	if s.mixer == nil {
		return mixer.WAVSession{}, errMixerDisabled()
	}
	start := time.Now()
	sess, err := s.mixer.StopWAV()
	s.recordOp(metrics.OpWAVStop, start, err)
	return sess, err
}

func errMixerDisabled() error {
	return errors.Newf("mixer is disabled").
		Component(ComponentAcquisition).
		Category(errors.CategoryState).
		Build()
}

// SetPlotBits changes the interpretation bit depth for snapshots and
// returns the clamped value.
func (s *Session) SetPlotBits(bits int) int {
	b := s.ring.Rescale(bits)
	s.plotBits.Store(int32(b))
	return b
}

// PlotBits returns the current interpretation bit depth.
func (s *Session) PlotBits() int {
	return int(s.plotBits.Load())
}

// Clear empties the queue, the ring and the framer buffer and zeroes the
// diagnostics counters. Open sinks stay open.
func (s *Session) Clear() {
	start := time.Now()
	pending := s.queue.Clear()
	s.framer.Reset()
	s.ring.Clear()
	s.drainer.ResetStats()
	if s.mixer != nil {
		s.mixer.Reset()
	}
	s.recordOp(metrics.OpClear, start, nil)
	s.logger.Info("pipeline cleared", "session_id", s.id, "discarded_packets", pending)
}

// Stats returns a snapshot of every component's counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	st := Stats{ID: s.id, Started: s.started, Running: s.running}
	s.mu.Unlock()

	st.Framer = s.framer.Stats()
	st.Pending = s.queue.Len()
	st.Dropped = s.queue.Dropped()
	st.Drain = s.drainer.Stats()
	st.RingSamples = s.ring.AvailableSamples(0)
	for ch := range packet.NumChannels {
		st.MaxRaw[ch] = s.ring.MaxRaw(ch)
	}
	st.PlotBits = s.PlotBits()
	st.Recording = s.recorder.Session()
	if s.mixer != nil {
		st.Meters = s.mixer.Meters()
		st.MonitorMillis = s.mixer.MonitorBufferedMillis()
		st.WAV = s.mixer.WAVSession()
	}
	return st
}

func (s *Session) recordOp(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordDuration(op, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordOperation(op, metrics.StatusError)
		s.metrics.RecordError(op, categoryOf(err))
		return
	}
	s.metrics.RecordOperation(op, metrics.StatusSuccess)
}

func categoryOf(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return string(ee.ErrorCategory())
	}
	return string(errors.CategoryGeneric)
}
