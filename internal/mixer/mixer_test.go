package mixer

import (
	"encoding/binary"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/adcrec/internal/packet"
)

// constPacket holds the same raw code in every slot of each channel.
func constPacket(codes [packet.NumChannels]uint32) *packet.Packet {
	p := &packet.Packet{}
	for ch, code := range codes {
		for i := range packet.BufferLen {
			p.Samples[ch][i] = code
		}
	}
	return p
}

// soloLeft routes channel 0 hard left at 16 bits and mutes the rest.
func soloLeft() [packet.NumChannels]ChannelConfig {
	var chans [packet.NumChannels]ChannelConfig
	chans[0] = ChannelConfig{Gain: 1, Pan: -1, Bits: 16}
	for ch := 1; ch < packet.NumChannels; ch++ {
		chans[ch] = ChannelConfig{Gain: 0, Pan: 0, Bits: 16}
	}
	return chans
}

func TestDecodeFullScale(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, decode(0xFFFF, 16), 1e-12)
	assert.InDelta(t, -1.0, decode(0, 16), 1e-12)
	assert.InDelta(t, 0.0, decode(0x800, 12), 1e-3)
	// Bits below 8 clamp to 8
	assert.InDelta(t, 1.0, decode(0xFF, 4), 1e-12)
}

func TestMixFullScaleHardPanned(t *testing.T) {
	t.Parallel()

	m := New(&Config{Channels: soloLeft()})
	m.SetDCBlock(false)

	require.NoError(t, m.Process([]*packet.Packet{constPacket([4]uint32{0xFFFF})}))
	require.Len(t, m.mix, 2*packet.BufferLen)
	assert.InDelta(t, 1.0, m.mix[0], 1e-6)
	assert.InDelta(t, 0.0, m.mix[1], 1e-6)

	require.NoError(t, m.Process([]*packet.Packet{constPacket([4]uint32{0})}))
	assert.InDelta(t, -1.0, m.mix[0], 1e-6)
}

func TestPanLawIsConstantPower(t *testing.T) {
	t.Parallel()

	for _, pan := range []float64{-1, -0.5, 0, 0.3, 1} {
		l, r := panGains(pan)
		assert.InDelta(t, 1.0, l*l+r*r, 1e-12, "pan %v", pan)
	}

	l, r := panGains(0)
	assert.InDelta(t, math.Sqrt2/2, l, 1e-12)
	assert.InDelta(t, math.Sqrt2/2, r, 1e-12)

	l, r = panGains(1)
	assert.InDelta(t, 0.0, l, 1e-12)
	assert.InDelta(t, 1.0, r, 1e-12)

	// Out of range pans clamp
	l2, r2 := panGains(5)
	assert.InDelta(t, l, l2, 1e-12)
	assert.InDelta(t, r, r2, 1e-12)
}

func TestMixSumsChannels(t *testing.T) {
	t.Parallel()

	var chans [packet.NumChannels]ChannelConfig
	chans[0] = ChannelConfig{Gain: 0.5, Pan: -1, Bits: 16}
	chans[1] = ChannelConfig{Gain: 0.25, Pan: 1, Bits: 16}
	chans[2] = ChannelConfig{Gain: 0, Pan: 0, Bits: 16}
	chans[3] = ChannelConfig{Gain: 0, Pan: 0, Bits: 16}
	m := New(&Config{Channels: chans})

	require.NoError(t, m.Process([]*packet.Packet{constPacket([4]uint32{0xFFFF, 0})}))
	assert.InDelta(t, 0.5, m.mix[0], 1e-6)
	assert.InDelta(t, -0.25, m.mix[1], 1e-6)
}

func TestSettersClampAndValidate(t *testing.T) {
	t.Parallel()

	m := New(&Config{})
	assert.Equal(t, DefaultChannel, m.Channels()[2])

	require.NoError(t, m.SetPan(0, 3))
	require.NoError(t, m.SetBits(0, 30))
	require.NoError(t, m.SetGain(0, -2))
	c := m.Channels()[0]
	assert.InDelta(t, 1.0, c.Pan, 0)
	assert.Equal(t, 24, c.Bits)
	assert.InDelta(t, 0.0, c.Gain, 0)

	require.Error(t, m.SetGain(packet.NumChannels, 1))
	require.Error(t, m.SetChannel(-1, DefaultChannel))

	m.SetDCBlock(true)
	assert.True(t, m.DCBlock())
}

func TestDCBlockRemovesOffset(t *testing.T) {
	t.Parallel()

	m := New(&Config{Channels: soloLeft(), DCBlock: true})

	// Constant +0.5 input
	code := uint32(math.Round(0.75 * 0xFFFF))
	batch := make([]*packet.Packet, 200)
	for i := range batch {
		batch[i] = constPacket([4]uint32{code})
	}
	require.NoError(t, m.Process(batch))

	assert.InDelta(t, 0.5, m.mix[0], 1e-3, "first sample passes")
	last := m.mix[len(m.mix)-2]
	assert.Less(t, math.Abs(float64(last)), 0.01)
}

func TestDCBlockerRecurrence(t *testing.T) {
	t.Parallel()

	var d dcBlocker
	assert.InDelta(t, 1.0, d.process(1), 1e-12)
	// s = 1 + 0.995*1
	assert.InDelta(t, 1-1.995, d.process(1), 1e-12)
	d.reset()
	assert.InDelta(t, 0.0, d.state, 0)
}

func TestMetersBallistics(t *testing.T) {
	t.Parallel()

	m := New(&Config{Channels: soloLeft()})
	require.NoError(t, m.Process([]*packet.Packet{constPacket([4]uint32{0xFFFF})}))

	snap := m.Meters()
	assert.Equal(t, LEDCount, LitCount(snap.LEDsLeft))
	assert.Zero(t, LitCount(snap.LEDsRight))
	assert.InDelta(t, 1.0, snap.PeakHoldLeft, 1e-6)
	assert.InDelta(t, 0.1, snap.AvgHoldLeft, 1e-6)

	// Silence: peak hold decays, average hold smooths toward zero
	require.NoError(t, m.SetGain(0, 0))
	require.NoError(t, m.Process([]*packet.Packet{constPacket([4]uint32{0xFFFF})}))
	snap = m.Meters()
	assert.Zero(t, LitCount(snap.LEDsLeft))
	assert.InDelta(t, 0.98, snap.PeakHoldLeft, 1e-6)
	assert.InDelta(t, 0.09, snap.AvgHoldLeft, 1e-6)

	m.Reset()
	assert.Equal(t, MeterSnapshot{}, m.Meters())
}

func TestLEDLadder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level float64
		lit   int
	}{
		{-1, 0}, {0, 0}, {0.024, 0}, {0.026, 1}, {0.5, 10}, {0.99, 20}, {2, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.lit, LitCount(ledLadder(tt.level)), "level %v", tt.level)
	}
}

func TestTo24Bit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 8388607, to24Bit(1))
	assert.Equal(t, -8388607, to24Bit(-1))
	assert.Equal(t, 8388607, to24Bit(1.5))
	assert.Equal(t, 0, to24Bit(0))
	assert.Equal(t, 4194304, to24Bit(0.5))
}

func TestMixerFeedsMonitor(t *testing.T) {
	t.Parallel()

	mon := NewMonitor(44100, 0)
	m := New(&Config{Channels: soloLeft(), Monitor: mon})
	require.NoError(t, m.Process([]*packet.Packet{constPacket([4]uint32{0xFFFF})}))

	assert.Equal(t, packet.BufferLen*monitorFrameBytes, mon.BufferedBytes())
	assert.Positive(t, m.MonitorBufferedMillis())

	out := make([]byte, monitorFrameBytes)
	_, err := mon.Read(out)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, math.Float32frombits(binary.LittleEndian.Uint32(out)), 1e-6)
}

func TestMixerWAVArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := New(&Config{Channels: soloLeft()})

	// Without an archive nothing is written
	require.NoError(t, m.Process([]*packet.Packet{constPacket([4]uint32{0xFFFF})}))

	path, err := m.StartWAV(dir)
	require.NoError(t, err)
	assert.Contains(t, path, "ADCRecMix_")

	batch := make([]*packet.Packet, 10)
	for i := range batch {
		batch[i] = constPacket([4]uint32{0xFFFF})
	}
	require.NoError(t, m.Process(batch))

	session, err := m.StopWAV()
	require.NoError(t, err)
	frames := 10 * packet.BufferLen
	assert.Equal(t, uint64(frames*6), session.DataBytes)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 44+frames*6)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x7F, 0, 0, 0}, data[44:50])

	require.NoError(t, m.Close())
}

func TestMixerWAVArchiveResamples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in, out int
	}{
		{"down 48k to 44.1k", 48000, 44100},
		{"up 22.05k to 44.1k", 22050, 44100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := New(&Config{Channels: soloLeft(), InputRate: tt.in, OutputRate: tt.out})
			path, err := m.StartWAV(t.TempDir())
			require.NoError(t, err)

			const batches, perBatch = 40, 5
			ratio := float64(tt.out) / float64(tt.in)
			for b := range batches {
				batch := make([]*packet.Packet, perBatch)
				for i := range batch {
					batch[i] = constPacket([4]uint32{uint32(b*perBatch+i) * 100})
				}
				require.NoError(t, m.Process(batch))

				inFrames := (b + 1) * perBatch * packet.BufferLen
				written := m.WAVSession().DataBytes / 6
				assert.InDelta(t, float64(inFrames)*ratio, float64(written), 2, "after batch %d", b)
			}

			session, err := m.StopWAV()
			require.NoError(t, err)
			assert.Equal(t, tt.out, session.SampleRate)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Len(t, data, 44+int(session.DataBytes))
			assert.Equal(t, uint32(tt.out), binary.LittleEndian.Uint32(data[24:28]))

			require.NoError(t, m.Close())
		})
	}
}
