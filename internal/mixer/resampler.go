package mixer

// Resampler converts interleaved stereo float audio between sample rates by
// linear interpolation. It is streaming: the fractional read position and the
// last input frame carry over between calls, so chunk boundaries do not
// produce gaps or clicks.
type Resampler struct {
	inputRate  int
	outputRate int
	ratio      float64 // input frames advanced per output frame

	position float64 // read position relative to prev
	prev     [2]float32
	havePrev bool
}

// NewResampler creates a stereo resampler. Non-positive rates default to 44100.
func NewResampler(inputRate, outputRate int) *Resampler {
	if inputRate <= 0 {
		inputRate = 44100
	}
	if outputRate <= 0 {
		outputRate = 44100
	}
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Rates returns the input and output sample rates.
func (r *Resampler) Rates() (input, output int) {
	return r.inputRate, r.outputRate
}

// Process appends the resampled form of in (interleaved L,R) to dst.
func (r *Resampler) Process(dst, in []float32) []float32 {
	frames := len(in) / 2
	if frames == 0 {
		return dst
	}
	if r.inputRate == r.outputRate {
		return append(dst, in[:frames*2]...)
	}

	if !r.havePrev {
		r.prev = [2]float32{in[0], in[1]}
		r.havePrev = true
		in = in[2:]
		frames--
	}

	// Index 0 is prev, index k (k >= 1) is input frame k-1
	frame := func(k int) (float32, float32) {
		if k == 0 {
			return r.prev[0], r.prev[1]
		}
		return in[(k-1)*2], in[(k-1)*2+1]
	}

	n := frames + 1
	for {
		i := int(r.position)
		if i+1 >= n {
			break
		}
		frac := float32(r.position - float64(i))
		l0, r0 := frame(i)
		l1, r1 := frame(i + 1)
		dst = append(dst, l0+(l1-l0)*frac, r0+(r1-r0)*frac)
		r.position += r.ratio
	}

	if frames > 0 {
		r.prev = [2]float32{in[(frames-1)*2], in[(frames-1)*2+1]}
		r.position -= float64(frames)
	}
	return dst
}

// OutputFramesFor estimates the frames produced for inputFrames of input.
func (r *Resampler) OutputFramesFor(inputFrames int) int {
	return int(float64(inputFrames)/r.ratio) + 1
}

// Reset drops the carried state.
func (r *Resampler) Reset() {
	r.position = 0
	r.prev = [2]float32{}
	r.havePrev = false
}
