// ABOUTME: Streaming linear resampler for converting audio sample rates
// ABOUTME: Keeps the last input frame between calls so chunk boundaries stay seamless
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	channels int
	ratio    float64
	position float64 // in input frames, relative to last
	last     []int32 // one sample per channel
	primed   bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	if channels < 1 {
		channels = 1
	}
	r := &Resampler{
		channels: channels,
		last:     make([]int32, channels),
	}
	r.SetRates(inputRate, outputRate)
	return r
}

// SetRates changes the conversion ratio without losing position
func (r *Resampler) SetRates(inputRate, outputRate int) {
	if inputRate <= 0 || outputRate <= 0 {
		r.ratio = 1
		return
	}
	r.ratio = float64(inputRate) / float64(outputRate)
}

// SetRatio sets input frames consumed per output frame. Pitch shifting
// scales the ratio.
func (r *Resampler) SetRatio(ratio float64) {
	if ratio > 0 {
		r.ratio = ratio
	}
}

// Ratio returns input frames consumed per output frame
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// Channels returns the interleaved channel count
func (r *Resampler) Channels() int {
	return r.channels
}

// Resample converts interleaved input into interleaved output. It returns
// the input samples consumed and the output samples produced. When output
// has room left, all input has been consumed.
func (r *Resampler) Resample(input []int32, output []int32) (consumed, produced int) {
	ch := r.channels
	inputFrames := len(input) / ch
	outputFrames := len(output) / ch

	if !r.primed {
		if inputFrames == 0 {
			return 0, 0
		}
		copy(r.last, input[:ch])
		input = input[ch:]
		inputFrames--
		consumed = 1
		r.primed = true
	}

	// Frame 0 is the last frame of the previous call, input[i] is frame i+1
	sample := func(frame, c int) int32 {
		if frame == 0 {
			return r.last[c]
		}
		return input[(frame-1)*ch+c]
	}

	outIdx := 0
	for outIdx < outputFrames {
		idx := int(r.position)
		if idx+1 > inputFrames {
			break
		}

		frac := r.position - float64(idx)
		for c := 0; c < ch; c++ {
			s1 := sample(idx, c)
			s2 := sample(idx+1, c)
			output[outIdx*ch+c] = int32(float64(s1)*(1.0-frac) + float64(s2)*frac)
		}

		outIdx++
		r.position += r.ratio
	}

	// Drop the frames we have moved past, keeping the newest as history
	advance := int(r.position)
	if advance > inputFrames {
		advance = inputFrames
	}
	if advance > 0 {
		copy(r.last, input[(advance-1)*ch:advance*ch])
		r.position -= float64(advance)
	}
	consumed += advance

	return consumed * ch, outIdx * ch
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
	r.primed = false
	for i := range r.last {
		r.last[i] = 0
	}
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}

// InputSamplesNeeded calculates how many input samples are needed to produce output samples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames) * r.ratio)
	return inputFrames * r.channels
}
