package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ramp returns frames with left = k and right = -k.
func ramp(frames int) []float32 {
	out := make([]float32, 0, frames*2)
	for k := range frames {
		out = append(out, float32(k), -float32(k))
	}
	return out
}

func TestResamplerPassthrough(t *testing.T) {
	t.Parallel()

	r := NewResampler(44100, 44100)
	in := ramp(10)
	assert.Equal(t, in, r.Process(nil, in))
}

func TestResamplerInterpolatesRamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in, out int
	}{
		{"down 48k to 44.1k", 48000, 44100},
		{"up 22.05k to 44.1k", 22050, 44100},
		{"down 2x", 88200, 44100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewResampler(tt.in, tt.out)
			ratio := float64(tt.in) / float64(tt.out)
			got := r.Process(nil, ramp(1000))
			require.NotEmpty(t, got)

			frames := len(got) / 2
			for j := range frames {
				assert.InDelta(t, float64(j)*ratio, got[j*2], 1e-2, "frame %d", j)
				assert.InDelta(t, -float64(j)*ratio, got[j*2+1], 1e-2, "frame %d", j)
			}
			assert.InDelta(t, 999/ratio, float64(frames), 1.5)
		})
	}
}

func TestResamplerStreamingMatchesSingleCall(t *testing.T) {
	t.Parallel()

	in := ramp(500)
	whole := NewResampler(48000, 44100).Process(nil, in)

	r := NewResampler(48000, 44100)
	var chunked []float32
	for off := 0; off < len(in); off += 14 {
		end := min(off+14, len(in))
		chunked = r.Process(chunked, in[off:end])
	}

	require.Len(t, chunked, len(whole))
	for i := range whole {
		assert.InDelta(t, whole[i], chunked[i], 1e-3, "sample %d", i)
	}
}

func TestResamplerReset(t *testing.T) {
	t.Parallel()

	r := NewResampler(48000, 44100)
	first := r.Process(nil, ramp(100))
	r.Reset()
	again := r.Process(nil, ramp(100))
	assert.Equal(t, first, again)

	in, out := r.Rates()
	assert.Equal(t, 48000, in)
	assert.Equal(t, 44100, out)
	assert.Positive(t, r.OutputFramesFor(100))
}
