package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2+4*16*3, Size(BytesPerSample24))
	assert.Equal(t, 2+4*16*2, Size(BytesPerSample16))
	assert.Equal(t, Size(BytesPerSample24), RecordSize())
}

func TestAppendRecord(t *testing.T) {
	t.Parallel()

	var p Packet
	p.Samples[0][0] = 0x123456
	p.Samples[3][BufferLen-1] = 0xFF_ABCDEF // high byte must be masked off

	rec := p.AppendRecord(nil)
	require.Len(t, rec, RecordSize())
	assert.Equal(t, []byte{0x55, 0xAA, 0x56, 0x34, 0x12}, rec[:5])
	assert.Equal(t, []byte{0xEF, 0xCD, 0xAB}, rec[len(rec)-3:])
}

func TestBitHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bits      int
		clamped   int
		midpoint  float64
		scaleTo24 float64
	}{
		{4, 8, 127.5, 65536},
		{8, 8, 127.5, 65536},
		{12, 12, 2047.5, 4096},
		{16, 16, 32767.5, 256},
		{24, 24, 8388607.5, 1},
		{32, 24, 8388607.5, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.clamped, ClampBits(tt.bits))
		assert.InDelta(t, tt.midpoint, Midpoint(tt.bits), 1e-9)
		assert.InDelta(t, 1/tt.midpoint, NormalizationGainForBits(tt.bits), 1e-12)
		assert.InDelta(t, tt.scaleTo24, ScaleTo24BitCounts(tt.bits), 0)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, Normalize(0xFFFF, 16), 1e-12)
	assert.InDelta(t, -1.0, Normalize(0, 16), 1e-12)
	assert.InDelta(t, 0.0, Normalize(0x800000, 24), 1e-6)
	assert.InDelta(t, 1.0, Normalize(0xFFFFFF, 16), 0, "codes above the range clamp to +1")
}

func TestReverseBytes24(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(0x563412), ReverseBytes24(0x123456))
	assert.Equal(t, uint32(0x563412), ReverseBytes24(0xFF123456))
	assert.Equal(t, uint32(0x123456), ReverseBytes24(ReverseBytes24(0x123456)))
}
