package mixer

import (
	"math"

	"github.com/tphakala/adcrec/internal/packet"
)

// DCAlpha is the pole of the DC blocking high-pass filter.
const DCAlpha = 0.995

// Full-scale 24-bit signed magnitude used when encoding WAV samples.
const max24 = 8388607

// panGains returns the constant-power left and right gains for pan in [-1, 1].
func panGains(pan float64) (left, right float64) {
	theta := (clampUnit(pan) + 1) * math.Pi / 4
	return math.Cos(theta), math.Sin(theta)
}

// dcBlocker is a single-pole high-pass filter: y = x - s; s = x + alpha*y.
type dcBlocker struct {
	state float64
}

func (d *dcBlocker) process(x float64) float64 {
	y := x - d.state
	d.state = x + DCAlpha*y
	return y
}

func (d *dcBlocker) reset() {
	d.state = 0
}

// decode maps a raw code to [-1, 1] for the given input bit depth.
func decode(raw uint32, bits int) float64 {
	return packet.Normalize(raw, bits)
}

// to24Bit encodes a float sample in [-1, 1] as a signed 24-bit count.
func to24Bit(s float32) int {
	v := math.Round(float64(s) * max24)
	return int(min(max(v, -max24), max24))
}

func clampUnit(v float64) float64 {
	return min(max(v, -1), 1)
}
