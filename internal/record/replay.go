package record

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/tphakala/adcrec/internal/errors"
	"github.com/tphakala/adcrec/internal/logging"
	"github.com/tphakala/adcrec/internal/packet"
)

// DefaultSampleRate is the acquisition rate replay paces against when none is given.
const DefaultSampleRate = 48000

// Feeder accepts raw stream bytes. framer.Framer satisfies it.
type Feeder interface {
	Feed(data []byte) []*packet.Packet
	BytesPerSample() int
}

// ReplayerConfig configures a Replayer.
type ReplayerConfig struct {
	Feeder     Feeder
	Sink       func([]*packet.Packet) // receives packets decoded from each record
	SampleRate int
	Logger     *slog.Logger
}

// ReplayStats summarizes one replay run.
type ReplayStats struct {
	Path     string
	Records  uint64
	Packets  uint64
	Duration time.Duration
}

// Replayer re-feeds a recording through a framer, one record per tick.
type Replayer struct {
	feeder   Feeder
	sink     func([]*packet.Packet)
	interval time.Duration
	logger   *slog.Logger
}

// PacketsPerSecond returns the record rate that reproduces sampleRate.
func PacketsPerSecond(sampleRate int) int {
	return max(1, sampleRate/packet.BufferLen)
}

// PacingInterval returns the delay between records for sampleRate.
func PacingInterval(sampleRate int) time.Duration {
	return time.Second / time.Duration(PacketsPerSecond(sampleRate))
}

// NewReplayer validates cfg and creates a Replayer. Records are always 24-bit,
// so a feeder configured for another width is rejected.
func NewReplayer(cfg ReplayerConfig) (*Replayer, error) {
	if cfg.Feeder == nil {
		return nil, errors.Newf("replay requires a feeder").
			Component(ComponentRecord).
			Category(errors.CategoryValidation).
			Build()
	}
	if w := cfg.Feeder.BytesPerSample(); w != packet.BytesPerSample24 {
		return nil, errors.New(fmt.Errorf("framer width %d bytes cannot decode 3-byte records: %w", w, ErrIncompatibleWidth)).
			Component(ComponentRecord).
			Category(errors.CategoryValidation).
			Context("bytes_per_sample", w).
			Build()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.ForService("record")
		if logger == nil {
			logger = slog.Default()
		}
	}

	return &Replayer{
		feeder:   cfg.Feeder,
		sink:     cfg.Sink,
		interval: PacingInterval(cfg.SampleRate),
		logger:   logger.With("component", "replayer"),
	}, nil
}

// Interval returns the pacing delay between records.
func (rp *Replayer) Interval() time.Duration {
	return rp.interval
}

// Replay opens path and feeds it record by record until end of file, a read
// error, or ctx cancellation. End of file, including a trailing partial
// record, ends replay without error.
func (rp *Replayer) Replay(ctx context.Context, path string) (ReplayStats, error) {
	f, err := os.Open(path) //nolint:gosec // G304: replay path is chosen by the user
	if err != nil {
		return ReplayStats{Path: path}, errors.New(err).
			Component(ComponentRecord).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			rp.logger.Debug("failed to close recording", "path", path, "error", cerr)
		}
	}()

	rp.logger.Info("replay started", "path", path, "interval", rp.interval)
	stats, err := rp.ReplayReader(ctx, f)
	stats.Path = path
	return stats, err
}

// ReplayReader is Replay over an arbitrary reader.
func (rp *Replayer) ReplayReader(ctx context.Context, r io.Reader) (ReplayStats, error) {
	var stats ReplayStats
	start := time.Now()

	record := make([]byte, packet.RecordSize())
	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			rp.logger.Info("replay cancelled", "records", stats.Records)
			stats.Duration = time.Since(start)
			return stats, nil
		}

		_, err := io.ReadFull(r, record)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			rp.logger.Info("replay finished", "records", stats.Records, "packets", stats.Packets)
			stats.Duration = time.Since(start)
			return stats, nil
		}
		if err != nil {
			rerr := errors.New(fmt.Errorf("replay read failed: %w", err)).
				Component(ComponentRecord).
				Category(errors.CategoryFileIO).
				Context("records_read", stats.Records).
				FileContext(stats.Path, int64(stats.Records)*int64(len(record))).
				Timing("replay", time.Since(start)).
				Build()
			rp.logger.Error("replay aborted", "error", rerr)
			stats.Duration = time.Since(start)
			return stats, rerr
		}

		stats.Records++
		if pkts := rp.feeder.Feed(record); len(pkts) > 0 {
			stats.Packets += uint64(len(pkts))
			if rp.sink != nil {
				rp.sink(pkts)
			}
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}
