package mixer

import (
	"math"
	"sync"
)

// Meter ballistics.
const (
	LEDCount         = 20
	PeakHoldDecay    = 0.98
	AvgHoldSmoothing = 0.9
)

// MeterSnapshot is a copy of the stereo meter state.
type MeterSnapshot struct {
	LEDsLeft      [LEDCount]bool
	LEDsRight     [LEDCount]bool
	PeakLeft      float64 // instantaneous peak of the last batch
	PeakRight     float64
	PeakHoldLeft  float64
	PeakHoldRight float64
	AvgHoldLeft   float64
	AvgHoldRight  float64
}

// meters tracks per-side levels across batches.
type meters struct {
	mu   sync.Mutex
	snap MeterSnapshot
}

// update folds one interleaved stereo batch into the meter state.
func (m *meters) update(stereo []float32) {
	frames := len(stereo) / 2
	if frames == 0 {
		return
	}

	var peakL, peakR, sumL, sumR float64
	for i := 0; i+1 < len(stereo); i += 2 {
		l := math.Abs(float64(stereo[i]))
		r := math.Abs(float64(stereo[i+1]))
		peakL = max(peakL, l)
		peakR = max(peakR, r)
		sumL += l
		sumR += r
	}
	avgL := sumL / float64(frames)
	avgR := sumR / float64(frames)

	m.mu.Lock()
	defer m.mu.Unlock()

	s := &m.snap
	s.LEDsLeft = ledLadder(peakL)
	s.LEDsRight = ledLadder(peakR)
	s.PeakLeft = peakL
	s.PeakRight = peakR
	s.PeakHoldLeft = max(peakL, s.PeakHoldLeft*PeakHoldDecay)
	s.PeakHoldRight = max(peakR, s.PeakHoldRight*PeakHoldDecay)
	s.AvgHoldLeft = s.AvgHoldLeft*AvgHoldSmoothing + avgL*(1-AvgHoldSmoothing)
	s.AvgHoldRight = s.AvgHoldRight*AvgHoldSmoothing + avgR*(1-AvgHoldSmoothing)
}

func (m *meters) snapshot() MeterSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *meters) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = MeterSnapshot{}
}

// ledLadder lights round(level*LEDCount) steps from the bottom, level clamped to [0, 1].
func ledLadder(level float64) [LEDCount]bool {
	var leds [LEDCount]bool
	lit := int(math.Round(min(max(level, 0), 1) * LEDCount))
	for i := range lit {
		leds[i] = true
	}
	return leds
}

// LitCount returns how many LEDs are lit.
func LitCount(leds [LEDCount]bool) int {
	n := 0
	for _, on := range leds {
		if on {
			n++
		}
	}
	return n
}
