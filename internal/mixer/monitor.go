package mixer

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"
)

// monitorFrameBytes is one interleaved stereo float32 frame.
const monitorFrameBytes = 2 * 4

// Monitor is the live playback buffer: float32 little-endian interleaved
// stereo, discarding new audio when full so the producer never blocks.
// Playback backends drain it with Read.
type Monitor struct {
	rate int
	rb   *ringbuffer.RingBuffer

	mu      sync.Mutex
	scratch []byte

	dropped atomic.Uint64 // samples discarded on overflow
}

// NewMonitor creates a buffer holding bufferDuration of audio at rate Hz.
func NewMonitor(rate int, bufferDuration time.Duration) *Monitor {
	if rate <= 0 {
		rate = 44100
	}
	if bufferDuration <= 0 {
		bufferDuration = time.Second
	}
	frames := max(1, int(int64(rate)*int64(bufferDuration)/int64(time.Second)))
	return &Monitor{
		rate: rate,
		rb:   ringbuffer.New(frames * monitorFrameBytes),
	}
}

// SampleRate returns the playback rate.
func (m *Monitor) SampleRate() int {
	return m.rate
}

// Push appends interleaved stereo samples. Whatever does not fit is discarded
// and counted; it returns the number of samples accepted.
func (m *Monitor) Push(stereo []float32) int {
	frames := len(stereo) / 2
	if frames == 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fit := min(frames, m.rb.Free()/monitorFrameBytes)
	if dropped := frames - fit; dropped > 0 {
		m.dropped.Add(uint64(dropped * 2))
	}
	if fit == 0 {
		return 0
	}

	need := fit * monitorFrameBytes
	if cap(m.scratch) < need {
		m.scratch = make([]byte, need)
	}
	buf := m.scratch[:need]
	for i, s := range stereo[:fit*2] {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}

	n, err := m.rb.Write(buf)
	if err != nil && n < need {
		m.dropped.Add(uint64((need - n) / 4))
	}
	return n / 4
}

// Read fills p with buffered audio and zero-fills the remainder so a
// playback device underrun plays silence. It always returns len(p).
func (m *Monitor) Read(p []byte) (int, error) {
	// Keep frame alignment for the reader
	want := len(p) - len(p)%monitorFrameBytes
	n := 0
	if want > 0 {
		n, _ = m.rb.Read(p[:want])
	}
	clear(p[n:])
	return len(p), nil
}

// BufferedBytes returns the bytes waiting for playback.
func (m *Monitor) BufferedBytes() int {
	return m.rb.Length()
}

// BufferedMillis returns the buffered playback duration in milliseconds.
func (m *Monitor) BufferedMillis() float64 {
	bytesPerSecond := float64(m.rate * monitorFrameBytes)
	return float64(m.rb.Length()) * 1000 / bytesPerSecond
}

// Dropped returns the samples discarded on overflow.
func (m *Monitor) Dropped() uint64 {
	return m.dropped.Load()
}

// Reset discards buffered audio.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rb.Reset()
}
