// Package ring keeps the most recent samples of every channel for snapshot
// readers such as plots and status reports.
package ring

import (
	"context"
	"sync"

	"github.com/tphakala/adcrec/internal/packet"
)

const (
	// MinCapacity is the smallest per-channel capacity a ring is created with.
	MinCapacity = 1024
	// DefaultCapacity holds roughly one second at the default acquisition rate.
	DefaultCapacity = 48000
	// MinWindowSamples is the smallest display window WindowSamples returns.
	MinWindowSamples = 16
)

// channel is one circular store. writeIndex is the slot the next sample goes to.
type channel struct {
	display    []float64
	raw        []uint32
	writeIndex int
	count      int
}

// SampleRing is a fixed-capacity circular store per channel. All methods are
// safe for concurrent use and serialize on one lock.
type SampleRing struct {
	mu       sync.Mutex
	capacity int
	channels [packet.NumChannels]channel
}

// New creates a ring holding capacity samples per channel. Capacities below
// MinCapacity are raised to it.
func New(capacity int) *SampleRing {
	capacity = max(capacity, MinCapacity)
	r := &SampleRing{capacity: capacity}
	for ch := range r.channels {
		r.channels[ch].display = make([]float64, capacity)
		r.channels[ch].raw = make([]uint32, capacity)
	}
	return r
}

// Capacity returns the per-channel capacity.
func (r *SampleRing) Capacity() int {
	return r.capacity
}

// Write appends every sample of p to its channel, overwriting the oldest
// entries once a channel is full.
func (r *SampleRing) Write(p *packet.Packet) {
	if p == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeLocked(p)
}

func (r *SampleRing) writeLocked(p *packet.Packet) {
	for ch := range r.channels {
		c := &r.channels[ch]
		for _, v := range p.Samples[ch] {
			v &= packet.Mask24
			c.raw[c.writeIndex] = v
			c.display[c.writeIndex] = float64(v)
			c.writeIndex++
			if c.writeIndex == r.capacity {
				c.writeIndex = 0
			}
			if c.count < r.capacity {
				c.count++
			}
		}
	}
}

// Name implements pipeline.Consumer.
func (r *SampleRing) Name() string { return "ring" }

// Consume implements pipeline.Consumer by writing the batch under one lock.
func (r *SampleRing) Consume(_ context.Context, batch []*packet.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range batch {
		if p != nil {
			r.writeLocked(p)
		}
	}
	return nil
}

// start returns the slot of the oldest of the last n samples of c.
func (r *SampleRing) start(c *channel, n int) int {
	return (c.writeIndex - n + r.capacity) % r.capacity
}

// SnapshotDisplay returns the last min(k, count) display values of channel ch,
// oldest first. Out of range channels and non-positive k yield nil.
func (r *SampleRing) SnapshotDisplay(ch, k int) []float64 {
	if ch < 0 || ch >= packet.NumChannels || k <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := &r.channels[ch]
	n := min(k, c.count)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	s := r.start(c, n)
	copied := copy(out, c.display[s:min(s+n, r.capacity)])
	copy(out[copied:], c.display[:n-copied])
	return out
}

// SnapshotRaw returns the last min(k, count) raw 24-bit values of channel ch,
// oldest first.
func (r *SampleRing) SnapshotRaw(ch, k int) []uint32 {
	if ch < 0 || ch >= packet.NumChannels || k <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := &r.channels[ch]
	n := min(k, c.count)
	if n == 0 {
		return nil
	}
	out := make([]uint32, n)
	s := r.start(c, n)
	copied := copy(out, c.raw[s:min(s+n, r.capacity)])
	copy(out[copied:], c.raw[:n-copied])
	return out
}

// MaxRaw returns the largest raw value currently held for channel ch, or 0.
func (r *SampleRing) MaxRaw(ch int) uint32 {
	if ch < 0 || ch >= packet.NumChannels {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := &r.channels[ch]
	var peak uint32
	// Valid slots are the whole array once full, otherwise the prefix
	for _, v := range c.raw[:c.count] {
		peak = max(peak, v)
	}
	return peak
}

// AvailableSamples returns how many samples channel ch currently holds.
func (r *SampleRing) AvailableSamples(ch int) int {
	if ch < 0 || ch >= packet.NumChannels {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channels[ch].count
}

// Clear resets every channel and wipes its storage.
func (r *SampleRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.channels {
		c := &r.channels[ch]
		clear(c.display)
		clear(c.raw)
		c.writeIndex = 0
		c.count = 0
	}
}

// Rescale accepts a new interpretation bit depth. Raw values are stored at
// full width, so nothing needs reprocessing; readers apply the depth.
func (r *SampleRing) Rescale(bits int) int {
	return packet.ClampBits(bits)
}

// WindowSamples converts a display window in milliseconds at rate Hz to a
// sample count of at least MinWindowSamples.
func WindowSamples(ms, rate int) int {
	return max(MinWindowSamples, ms*rate/1000)
}
