package framer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/adcrec/internal/packet"
)

// makePacket fills every sample with a value derived from seed, channel and slot.
func makePacket(seed uint32) *packet.Packet {
	p := &packet.Packet{}
	for ch := range packet.NumChannels {
		for i := range packet.BufferLen {
			p.Samples[ch][i] = (seed*1000 + uint32(ch)*100 + uint32(i)) & packet.Mask24
		}
	}
	return p
}

func encode(p *packet.Packet, bytesPerSample int) []byte {
	out := []byte{packet.Sentinel0, packet.Sentinel1}
	for ch := range packet.NumChannels {
		for i := range packet.BufferLen {
			v := p.Samples[ch][i]
			out = append(out, byte(v), byte(v>>8))
			if bytesPerSample == packet.BytesPerSample24 {
				out = append(out, byte(v>>16))
			}
		}
	}
	return out
}

func newFramer(t *testing.T, cfg Config) *Framer {
	t.Helper()
	f, err := New(cfg)
	require.NoError(t, err)
	return f
}

type countingMetrics struct {
	mu      sync.Mutex
	parsed  int
	invalid int
	trimmed int
}

func (m *countingMetrics) RecordPacketsParsed(n int) { m.mu.Lock(); m.parsed += n; m.mu.Unlock() }
func (m *countingMetrics) RecordInvalidFrame()       { m.mu.Lock(); m.invalid++; m.mu.Unlock() }
func (m *countingMetrics) RecordBytesTrimmed(n int)  { m.mu.Lock(); m.trimmed += n; m.mu.Unlock() }

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BytesPerSample: 4})
	require.Error(t, err)

	_, err = New(Config{MaxBuffer: 10})
	require.Error(t, err)

	f := newFramer(t, Config{})
	assert.Equal(t, packet.BytesPerSample24, f.BytesPerSample())
	assert.Equal(t, 2+4*16*3, f.FrameSize())
}

func TestBackToBackFrames(t *testing.T) {
	t.Parallel()

	for _, width := range []int{packet.BytesPerSample24, packet.BytesPerSample16} {
		f := newFramer(t, Config{BytesPerSample: width})

		var stream []byte
		var want []*packet.Packet
		for n := range 25 {
			p := makePacket(uint32(n))
			if width == packet.BytesPerSample16 {
				for ch := range packet.NumChannels {
					for i := range packet.BufferLen {
						p.Samples[ch][i] &= 0xFFFF
					}
				}
			}
			want = append(want, p)
			stream = append(stream, encode(p, width)...)
		}

		got := f.Feed(stream)
		require.Len(t, got, len(want), "width %d", width)
		for i := range want {
			assert.Equal(t, want[i].Samples, got[i].Samples)
		}
		stats := f.Stats()
		assert.Equal(t, uint64(25), stats.PacketsParsed)
		assert.Zero(t, stats.BufferedBytes)
	}
}

func TestByteAtATime(t *testing.T) {
	t.Parallel()

	f := newFramer(t, Config{})
	stream := append(encode(makePacket(1), 3), encode(makePacket(2), 3)...)

	var got []*packet.Packet
	for _, b := range stream {
		got = append(got, f.Feed([]byte{b})...)
	}
	require.Len(t, got, 2)
	assert.Equal(t, makePacket(1).Samples, got[0].Samples)
	assert.Equal(t, makePacket(2).Samples, got[1].Samples)
}

func TestPartialFrameWaitsForData(t *testing.T) {
	t.Parallel()

	f := newFramer(t, Config{})
	frame := encode(makePacket(7), 3)

	assert.Empty(t, f.Feed(frame[:len(frame)-1]))
	assert.Equal(t, len(frame)-1, f.Stats().BufferedBytes)

	got := f.Feed(frame[len(frame)-1:])
	require.Len(t, got, 1)
	assert.Equal(t, makePacket(7).Samples, got[0].Samples)
}

func TestSpuriousSentinelFollowedByShortData(t *testing.T) {
	t.Parallel()

	f := newFramer(t, Config{})
	frame := encode(makePacket(3), 3)

	// The stray sentinel waits until a full frame's worth of bytes follows it
	assert.Empty(t, f.Feed([]byte{0x55, 0xAA, 0x01, 0x02}))
	assert.Empty(t, f.Feed(frame[:10]))

	got := f.Feed(frame[10:])

	require.Len(t, got, 1, "the stray sentinel parses from its own offset once enough bytes arrived")

	// Resynchronizes on the next real frame
	got = append(got, f.Feed(encode(makePacket(4), 3))...)
	assert.Equal(t, makePacket(4).Samples, got[len(got)-1].Samples)
}

func TestStraySyncByteDoesNotBlock(t *testing.T) {
	t.Parallel()

	f := newFramer(t, Config{})
	stream := []byte{0x55, 0x00, 0x55, 0x13}
	stream = append(stream, encode(makePacket(9), 3)...)
	stream = append(stream, 0x55)
	stream = append(stream, encode(makePacket(10), 3)...)

	got := f.Feed(stream)
	require.Len(t, got, 2)
	assert.Equal(t, makePacket(9).Samples, got[0].Samples)
	assert.Equal(t, makePacket(10).Samples, got[1].Samples)

	stats := f.Stats()
	assert.Equal(t, uint64(5), stats.BytesSkipped)
	assert.Zero(t, stats.BufferedBytes)
}

func TestSentinelSplitAcrossFeeds(t *testing.T) {
	t.Parallel()

	f := newFramer(t, Config{})
	frame := encode(makePacket(11), 3)

	assert.Empty(t, f.Feed([]byte{0x00, 0x01, frame[0]}))
	got := f.Feed(frame[1:])
	require.Len(t, got, 1)
	assert.Equal(t, makePacket(11).Samples, got[0].Samples)
}

func TestOverflowTrimsOldestBytes(t *testing.T) {
	t.Parallel()

	metrics := &countingMetrics{}
	f := newFramer(t, Config{Metrics: metrics})

	total := 0
	chunk := make([]byte, 4096) // zeros never form a sentinel
	for range 20 {
		assert.Empty(t, f.Feed(chunk))
		total += len(chunk)
	}

	stats := f.Stats()
	assert.Equal(t, uint64(total-DefaultMaxBuffer), stats.BytesTrimmed)
	assert.Equal(t, DefaultMaxBuffer, stats.BufferedBytes)
	assert.Equal(t, total-DefaultMaxBuffer, metrics.trimmed)

	// Frames are still found after the trim
	got := f.Feed(encode(makePacket(5), 3))
	require.Len(t, got, 1)
	assert.Equal(t, 1, metrics.parsed)
}

func TestValidationFailureDropsSentinelByte(t *testing.T) {
	t.Parallel()

	metrics := &countingMetrics{}
	f := newFramer(t, Config{
		Metrics: metrics,
		Validate: func(p *packet.Packet) bool {
			return p.Samples[0][0] != 0xBAD
		},
	})

	bad := &packet.Packet{}
	bad.Samples[0][0] = 0xBAD
	stream := append(encode(bad, 3), encode(makePacket(6), 3)...)

	got := f.Feed(stream)
	require.Len(t, got, 1)
	assert.Equal(t, makePacket(6).Samples, got[0].Samples)

	stats := f.Stats()
	assert.Equal(t, uint64(1), stats.InvalidFrames)
	assert.Equal(t, 1, metrics.invalid)
	assert.Equal(t, uint64(len(encode(bad, 3))-1), stats.BytesSkipped)
}

func TestReset(t *testing.T) {
	t.Parallel()

	f := newFramer(t, Config{})
	frame := encode(makePacket(1), 3)
	f.Feed(frame)
	f.Feed(frame[:20])

	f.Reset()
	stats := f.Stats()
	assert.Zero(t, stats.PacketsParsed)
	assert.Zero(t, stats.BufferedBytes)

	// The discarded partial frame does not corrupt the next one
	got := f.Feed(frame)
	require.Len(t, got, 1)
}
