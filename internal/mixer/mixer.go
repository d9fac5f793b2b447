// Package mixer turns drained packets into a stereo stream: per-channel gain
// and constant-power pan, optional DC blocking, metering, a live monitor
// buffer and a resampled 24-bit WAV archive.
package mixer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tphakala/adcrec/internal/errors"
	"github.com/tphakala/adcrec/internal/logging"
	"github.com/tphakala/adcrec/internal/packet"
)

// ComponentMixer identifies mixer errors and logs.
const ComponentMixer = "mixer"

// Default mixer rates.
const (
	DefaultInputRate  = 44100
	DefaultOutputRate = 44100
)

// slowBatch is the processing time above which a batch is logged.
const slowBatch = 50 * time.Millisecond

// ChannelConfig is the mix setting of one input channel.
type ChannelConfig struct {
	Gain float64 // linear multiplier
	Pan  float64 // -1 hard left, +1 hard right
	Bits int     // input bit depth, clamped to 8..24
}

// DefaultChannel is unity gain, centered, 12-bit input.
var DefaultChannel = ChannelConfig{Gain: 1, Pan: 0, Bits: packet.DefaultBits}

// Metrics receives mixer telemetry. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordMixedFrames(n int)
	RecordMonitorDropped(samples int)
	SetMeterLevels(peakLeft, peakRight float64)
}

// Config configures a Mixer.
type Config struct {
	InputRate  int // rate of the mix and the monitor, default 44100
	OutputRate int // WAV archive rate, default 44100
	DCBlock    bool
	Channels   [packet.NumChannels]ChannelConfig // zero entries take DefaultChannel
	Monitor    *Monitor                          // optional live buffer
	Metrics    Metrics                           // optional
	Logger     *slog.Logger                      // optional
}

// settings is the per-batch immutable view of the mix controls.
type settings struct {
	dcBlock bool
	gainL   [packet.NumChannels]float64 // gain * left pan gain
	gainR   [packet.NumChannels]float64
	bits    [packet.NumChannels]int
}

// Mixer implements pipeline.Consumer. Control setters may be called from any
// goroutine; each Process call works on a snapshot taken once per batch.
type Mixer struct {
	inputRate  int
	outputRate int
	monitor    *Monitor
	metrics    Metrics
	logger     *slog.Logger

	cfgMu    sync.Mutex
	channels [packet.NumChannels]ChannelConfig
	dcBlock  bool

	// DSP state, owned by Process
	procMu    sync.Mutex
	dcLeft    dcBlocker
	dcRight   dcBlocker
	resampler *Resampler
	mix       []float32
	resampled []float32

	meters meters
	wav    *WAVWriter
}

// New creates a Mixer.
func New(cfg *Config) *Mixer {
	if cfg.InputRate <= 0 {
		cfg.InputRate = DefaultInputRate
	}
	if cfg.OutputRate <= 0 {
		cfg.OutputRate = DefaultOutputRate
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.ForService("mixer")
		if logger == nil {
			logger = slog.Default()
		}
	}
	logger = logger.With("component", ComponentMixer)

	m := &Mixer{
		inputRate:  cfg.InputRate,
		outputRate: cfg.OutputRate,
		monitor:    cfg.Monitor,
		metrics:    cfg.Metrics,
		logger:     logger,
		dcBlock:    cfg.DCBlock,
		resampler:  NewResampler(cfg.InputRate, cfg.OutputRate),
		wav:        NewWAVWriter(cfg.OutputRate, logger),
	}
	for ch, c := range cfg.Channels {
		if c == (ChannelConfig{}) {
			c = DefaultChannel
		}
		m.channels[ch] = sanitize(c)
	}
	return m
}

func sanitize(c ChannelConfig) ChannelConfig {
	c.Gain = max(c.Gain, 0)
	c.Pan = clampUnit(c.Pan)
	c.Bits = packet.ClampBits(c.Bits)
	return c
}

func validChannel(ch int) error {
	if ch < 0 || ch >= packet.NumChannels {
		return errors.Newf("channel %d out of range", ch).
			Component(ComponentMixer).
			Category(errors.CategoryValidation).
			Context("channel", ch).
			Build()
	}
	return nil
}

// SetChannel replaces the settings of channel ch. Values are clamped.
func (m *Mixer) SetChannel(ch int, c ChannelConfig) error {
	if err := validChannel(ch); err != nil {
		return err
	}
	m.cfgMu.Lock()
	m.channels[ch] = sanitize(c)
	m.cfgMu.Unlock()
	return nil
}

// SetGain sets the linear gain of channel ch; negative values become 0.
func (m *Mixer) SetGain(ch int, gain float64) error {
	if err := validChannel(ch); err != nil {
		return err
	}
	m.cfgMu.Lock()
	m.channels[ch].Gain = max(gain, 0)
	m.cfgMu.Unlock()
	return nil
}

// SetPan sets the pan of channel ch, clamped to [-1, 1].
func (m *Mixer) SetPan(ch int, pan float64) error {
	if err := validChannel(ch); err != nil {
		return err
	}
	m.cfgMu.Lock()
	m.channels[ch].Pan = clampUnit(pan)
	m.cfgMu.Unlock()
	return nil
}

// SetBits sets the input bit depth of channel ch, clamped to 8..24.
func (m *Mixer) SetBits(ch, bits int) error {
	if err := validChannel(ch); err != nil {
		return err
	}
	m.cfgMu.Lock()
	m.channels[ch].Bits = packet.ClampBits(bits)
	m.cfgMu.Unlock()
	return nil
}

// SetDCBlock enables or disables the DC blocking filter.
func (m *Mixer) SetDCBlock(enabled bool) {
	m.cfgMu.Lock()
	m.dcBlock = enabled
	m.cfgMu.Unlock()
}

// Channels returns a copy of the channel settings.
func (m *Mixer) Channels() [packet.NumChannels]ChannelConfig {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	return m.channels
}

// DCBlock reports whether DC blocking is enabled.
func (m *Mixer) DCBlock() bool {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	return m.dcBlock
}

func (m *Mixer) snapshot() settings {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()

	s := settings{dcBlock: m.dcBlock}
	for ch, c := range m.channels {
		l, r := panGains(c.Pan)
		s.gainL[ch] = c.Gain * l
		s.gainR[ch] = c.Gain * r
		s.bits[ch] = c.Bits
	}
	return s
}

// Process mixes a batch and feeds the meters, the monitor and the WAV file.
// It returns the WAV write error, if any; the file is closed in that case.
func (m *Mixer) Process(batch []*packet.Packet) error {
	if len(batch) == 0 {
		return nil
	}
	s := m.snapshot()
	start := time.Now()

	m.procMu.Lock()
	defer m.procMu.Unlock()
	defer func() {
		if d := time.Since(start); d > slowBatch {
			m.logger.Debug("slow mixer batch", "packets", len(batch), "duration", d)
		}
	}()

	mix := m.mix[:0]
	for _, p := range batch {
		if p == nil {
			continue
		}
		for i := range packet.BufferLen {
			var l, r float64
			for ch := range packet.NumChannels {
				v := decode(p.Samples[ch][i]&packet.Mask24, s.bits[ch])
				l += v * s.gainL[ch]
				r += v * s.gainR[ch]
			}
			if s.dcBlock {
				l = m.dcLeft.process(l)
				r = m.dcRight.process(r)
			}
			mix = append(mix, float32(l), float32(r))
		}
	}
	m.mix = mix
	if len(mix) == 0 {
		return nil
	}

	m.meters.update(mix)
	if m.metrics != nil {
		m.metrics.RecordMixedFrames(len(mix) / 2)
		snap := m.meters.snapshot()
		m.metrics.SetMeterLevels(snap.PeakLeft, snap.PeakRight)
	}

	if m.monitor != nil {
		accepted := m.monitor.Push(mix)
		if dropped := len(mix) - accepted; dropped > 0 && m.metrics != nil {
			m.metrics.RecordMonitorDropped(dropped)
		}
	}

	if m.wav.Active() {
		m.resampled = m.resampler.Process(m.resampled[:0], mix)
		return m.wav.Write(m.resampled)
	}
	return nil
}

// Name implements pipeline.Consumer.
func (m *Mixer) Name() string { return ComponentMixer }

// Consume implements pipeline.Consumer.
func (m *Mixer) Consume(_ context.Context, batch []*packet.Packet) error {
	return m.Process(batch)
}

// StartWAV opens a new ADCRecMix_*.wav archive in dir at the output rate.
func (m *Mixer) StartWAV(dir string) (string, error) {
	m.procMu.Lock()
	m.resampler.Reset()
	m.procMu.Unlock()
	return m.wav.Start(dir)
}

// StopWAV finalizes the archive.
func (m *Mixer) StopWAV() (WAVSession, error) {
	return m.wav.Stop()
}

// WAVSession returns the current archive state.
func (m *Mixer) WAVSession() WAVSession {
	return m.wav.Session()
}

// Monitor returns the live buffer, or nil.
func (m *Mixer) Monitor() *Monitor {
	return m.monitor
}

// MonitorBufferedMillis returns the buffered monitor audio in milliseconds.
func (m *Mixer) MonitorBufferedMillis() float64 {
	if m.monitor == nil {
		return 0
	}
	return m.monitor.BufferedMillis()
}

// Meters returns the current meter state.
func (m *Mixer) Meters() MeterSnapshot {
	return m.meters.snapshot()
}

// Rates returns the mix and archive sample rates.
func (m *Mixer) Rates() (input, output int) {
	return m.inputRate, m.outputRate
}

// Reset clears filter state, meters and the monitor buffer.
func (m *Mixer) Reset() {
	m.procMu.Lock()
	m.dcLeft.reset()
	m.dcRight.reset()
	m.resampler.Reset()
	m.procMu.Unlock()

	m.meters.reset()
	if m.monitor != nil {
		m.monitor.Reset()
	}
}

// Close finalizes an open archive.
func (m *Mixer) Close() error {
	if !m.wav.Active() {
		return nil
	}
	_, err := m.wav.Stop()
	return err
}
