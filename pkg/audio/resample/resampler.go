// ABOUTME: Streaming linear resampler
// ABOUTME: Carries the last input frame across chunks to interpolate seamlessly
package resample

import "math"

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	step       float64 // input frames advanced per output frame

	// position of the next output frame, in frames, where frame 0 is
	// lastFrame when primed and the first input frame otherwise
	position  float64
	lastFrame []int32
	primed    bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		step:       float64(inputRate) / float64(outputRate),
		lastFrame:  make([]int32, channels),
	}
}

// Resample converts interleaved input at inputRate into output at
// outputRate and returns the number of samples written. output must
// hold MaxOutputSamples(len(input)) samples or input is dropped.
func (r *Resampler) Resample(input []int32, output []int32) int {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return 0
	}

	offset := 0
	if r.primed {
		offset = 1
	}
	frames := inputFrames + offset

	sample := func(frame, ch int) int32 {
		if frame < offset {
			return r.lastFrame[ch]
		}
		return input[(frame-offset)*r.channels+ch]
	}

	outputFrames := len(output) / r.channels
	outIdx := 0
	for outIdx < outputFrames {
		idx := int(r.position)
		if idx+1 >= frames {
			break
		}
		frac := r.position - float64(idx)

		for ch := 0; ch < r.channels; ch++ {
			s1 := float64(sample(idx, ch))
			s2 := float64(sample(idx+1, ch))
			output[outIdx*r.channels+ch] = int32(math.Round(s1*(1.0-frac) + s2*frac))
		}

		outIdx++
		r.position += r.step
	}

	// rebase so the final input frame becomes frame 0 of the next call
	copy(r.lastFrame, input[(inputFrames-1)*r.channels:inputFrames*r.channels])
	r.position -= float64(frames - 1)
	if r.position < 0 {
		r.position = 0
	}
	r.primed = true

	return outIdx * r.channels
}

// MaxOutputSamples bounds the output of one Resample call
func (r *Resampler) MaxOutputSamples(inputSamples int) int {
	inputFrames := inputSamples/r.channels + 1
	return (int(math.Ceil(float64(inputFrames)/r.step)) + 1) * r.channels
}
