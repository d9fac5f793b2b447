// Package framer reconstructs fixed-size sample packets from an arbitrary byte
// stream, resynchronizing on the 0x55,0xAA sentinel after corruption.
package framer

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

// ComponentFramer identifies framer errors and logs.
const ComponentFramer = "framer"

// DefaultMaxBuffer is the accumulation buffer cap; older bytes are discarded beyond it.
const DefaultMaxBuffer = 64 * 1024

// Metrics receives framer telemetry. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordPacketsParsed(n int)
	RecordInvalidFrame()
	RecordBytesTrimmed(n int)
}

// Config configures a Framer.
type Config struct {
	BytesPerSample int                       // 3 (default) or 2
	MaxBuffer      int                       // accumulation cap in bytes, default 64 KiB
	Validate       func(*packet.Packet) bool // optional semantic check; false drops the sentinel byte
	Metrics        Metrics                   // optional
	Logger         *slog.Logger              // optional
}

// Stats is a point-in-time copy of the framer counters.
type Stats struct {
	PacketsParsed  uint64 // frames successfully decoded
	InvalidFrames  uint64 // sentinel hits rejected by validation
	BytesTrimmed   uint64 // bytes discarded because the buffer exceeded its cap
	BytesSkipped   uint64 // unmatched bytes discarded ahead of a decoded frame
	BufferedBytes  int    // bytes currently held awaiting a frame
	BytesPerSample int
}

// Framer turns byte chunks into packets. Feed is serialized internally, but
// the stream is meant to come from a single producer.
type Framer struct {
	bytesPerSample int
	frameSize      int
	maxBuffer      int
	validate       func(*packet.Packet) bool
	metrics        Metrics
	logger         *slog.Logger
	trimLog        rate.Sometimes

	mu       sync.Mutex
	buf      []byte
	scanFrom int // positions before scanFrom hold no sentinel start

	parsed  atomic.Uint64
	invalid atomic.Uint64
	trimmed atomic.Uint64
	skipped atomic.Uint64
}

// New creates a Framer.
func New(cfg Config) (*Framer, error) {
	if cfg.BytesPerSample == 0 {
		cfg.BytesPerSample = packet.BytesPerSample24
	}
	if cfg.BytesPerSample != packet.BytesPerSample24 && cfg.BytesPerSample != packet.BytesPerSample16 {
		return nil, errors.Newf("unsupported sample width: %d bytes", cfg.BytesPerSample).
			Component(ComponentFramer).
			Category(errors.CategoryValidation).
			Context("bytes_per_sample", cfg.BytesPerSample).
			Build()
	}
	frameSize := packet.Size(cfg.BytesPerSample)
	if cfg.MaxBuffer == 0 {
		cfg.MaxBuffer = DefaultMaxBuffer
	}
	if cfg.MaxBuffer < frameSize {
		return nil, errors.Newf("buffer cap %d smaller than one frame (%d bytes)", cfg.MaxBuffer, frameSize).
			Component(ComponentFramer).
			Category(errors.CategoryValidation).
			Build()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.ForService("acquisition")
		if logger == nil {
			logger = slog.Default()
		}
	}

	return &Framer{
		bytesPerSample: cfg.BytesPerSample,
		frameSize:      frameSize,
		maxBuffer:      cfg.MaxBuffer,
		validate:       cfg.Validate,
		metrics:        cfg.Metrics,
		logger:         logger.With("component", ComponentFramer),
		trimLog:        rate.Sometimes{Interval: 10 * time.Second},
		buf:            make([]byte, 0, min(cfg.MaxBuffer, 4*frameSize)),
	}, nil
}

// BytesPerSample returns the configured wire sample width.
func (f *Framer) BytesPerSample() int {
	return f.bytesPerSample
}

// FrameSize returns the full frame length including the sentinel.
func (f *Framer) FrameSize() int {
	return f.frameSize
}

// Feed appends data to the accumulation buffer and returns every packet that
// can be decoded from it, in stream order. Malformed frames never cause an error.
func (f *Framer) Feed(data []byte) []*packet.Packet {
	if len(data) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.buf = append(f.buf, data...)

	var out []*packet.Packet
	head := 0 // everything before head has been consumed by decoded frames
	i := f.scanFrom
	for i+1 < len(f.buf) {
		if f.buf[i] != packet.Sentinel0 || f.buf[i+1] != packet.Sentinel1 {
			i++
			continue
		}
		if len(f.buf)-i < f.frameSize {
			// Wait for the rest of the frame
			break
		}

		pkt := f.decode(f.buf[i+packet.HeaderSize : i+f.frameSize])
		if f.validate != nil && !f.validate(pkt) {
			// Drop only the sentinel byte so a frame starting inside this one can still be found
			f.buf = append(f.buf[:i], f.buf[i+1:]...)
			f.invalid.Add(1)
			if f.metrics != nil {
				f.metrics.RecordInvalidFrame()
			}
			continue
		}

		if skipped := i - head; skipped > 0 {
			f.skipped.Add(uint64(skipped))
		}
		out = append(out, pkt)
		head = i + f.frameSize
		i = head
	}
	f.scanFrom = i

	if head > 0 {
		n := copy(f.buf, f.buf[head:])
		f.buf = f.buf[:n]
		f.scanFrom -= head
	}

	if excess := len(f.buf) - f.maxBuffer; excess > 0 {
		n := copy(f.buf, f.buf[excess:])
		f.buf = f.buf[:n]
		f.scanFrom = max(0, f.scanFrom-excess)
		total := f.trimmed.Add(uint64(excess))
		if f.metrics != nil {
			f.metrics.RecordBytesTrimmed(excess)
		}
		f.trimLog.Do(func() {
			f.logger.Warn("no frames found, trimming stream buffer",
				"trimmed_bytes", excess,
				"total_trimmed_bytes", total,
				"buffer_cap", f.maxBuffer)
		})
	}

	if len(out) > 0 {
		f.parsed.Add(uint64(len(out)))
		if f.metrics != nil {
			f.metrics.RecordPacketsParsed(len(out))
		}
	}
	return out
}

// decode assembles little-endian samples, channel-major.
func (f *Framer) decode(payload []byte) *packet.Packet {
	pkt := &packet.Packet{}
	off := 0
	for ch := range packet.NumChannels {
		for s := range packet.BufferLen {
			v := uint32(payload[off]) | uint32(payload[off+1])<<8
			if f.bytesPerSample == packet.BytesPerSample24 {
				v |= uint32(payload[off+2]) << 16
			}
			pkt.Samples[ch][s] = v
			off += f.bytesPerSample
		}
	}
	return pkt
}

// Stats returns a snapshot of the counters.
func (f *Framer) Stats() Stats {
	f.mu.Lock()
	buffered := len(f.buf)
	f.mu.Unlock()

	return Stats{
		PacketsParsed:  f.parsed.Load(),
		InvalidFrames:  f.invalid.Load(),
		BytesTrimmed:   f.trimmed.Load(),
		BytesSkipped:   f.skipped.Load(),
		BufferedBytes:  buffered,
		BytesPerSample: f.bytesPerSample,
	}
}

// Reset discards buffered bytes and zeroes the counters.
func (f *Framer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.buf = f.buf[:0]
	f.scanFrom = 0
	f.parsed.Store(0)
	f.invalid.Store(0)
	f.trimmed.Store(0)
	f.skipped.Store(0)
}
