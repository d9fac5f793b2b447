package acquisition

import (
	"context"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/tphakala/adcrec/internal/logging"
	"github.com/tphakala/adcrec/internal/mixer"
)

// StatsSource is what the status reporter reads. *Session satisfies it.
type StatsSource interface {
	Stats() Stats
}

// StatusReporter periodically logs a one-line summary of the pipeline. It
// only reads snapshots and counters.
type StatusReporter struct {
	src      StatsSource
	interval time.Duration
	logger   *slog.Logger
	proc     *process.Process // nil when process stats are unavailable
}

// NewStatusReporter creates a reporter. A non-positive interval disables it.
func NewStatusReporter(src StatsSource, interval time.Duration, logger *slog.Logger) *StatusReporter {
	if logger == nil {
		logger = logging.ForService("acquisition")
		if logger == nil {
			logger = slog.Default()
		}
	}
	logger = logger.With("component", "status")

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Debug("process stats unavailable", "error", err)
		proc = nil
	}

	return &StatusReporter{
		src:      src,
		interval: interval,
		logger:   logger,
		proc:     proc,
	}
}

// Run logs a status line every interval until ctx is cancelled.
func (r *StatusReporter) Run(ctx context.Context) error {
	if r.interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Report()
		}
	}
}

// Report logs one status line.
func (r *StatusReporter) Report() {
	st := r.src.Stats()

	attrs := []any{
		"session_id", st.ID,
		"packets", st.Drain.PacketsProcessed,
		"pending", st.Pending,
		"dropped", st.Dropped,
		"invalid", st.Framer.InvalidFrames,
		"trimmed_bytes", st.Framer.BytesTrimmed,
		"last_batch", st.Drain.LastBatchSize,
		"consumer_errors", st.Drain.ConsumerErrors,
		"ring_samples", st.RingSamples,
		"plot_bits", st.PlotBits,
		"max_raw", st.MaxRaw,
		"bytes_per_channel", st.Drain.BytesPerChannel,
	}
	if st.Recording.Active {
		attrs = append(attrs, "recording", st.Recording.Path, "records", st.Recording.Records)
	}
	if st.WAV.Active {
		attrs = append(attrs, "wav", st.WAV.Path, "wav_bytes", st.WAV.DataBytes)
	}
	attrs = append(attrs,
		"leds_left", mixer.LitCount(st.Meters.LEDsLeft),
		"leds_right", mixer.LitCount(st.Meters.LEDsRight),
		"peak_hold_left", round3(st.Meters.PeakHoldLeft),
		"peak_hold_right", round3(st.Meters.PeakHoldRight),
		"monitor_ms", round3(st.MonitorMillis))

	if r.proc != nil {
		if mem, err := r.proc.MemoryInfo(); err == nil {
			attrs = append(attrs, "rss_mb", mem.RSS/1024/1024)
		}
	}

	r.logger.Info("acquisition status", attrs...)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
