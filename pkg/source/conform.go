// ABOUTME: Framing conversion for byte sources
// ABOUTME: Remixes channels and resamples 16-bit PCM to a target format
package source

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
	"github.com/Resonate-Protocol/pcmenc/pkg/audio/decode"
	"github.com/Resonate-Protocol/pcmenc/pkg/audio/encode"
	"github.com/Resonate-Protocol/pcmenc/pkg/audio/resample"
)

// conformChunk is how much source audio is converted per refill
const conformChunk = 20 // per second, i.e. 50 ms

// Conformer re-frames a 16-bit PCM stream from one rate and channel
// count to another
type Conformer struct {
	src      io.ReadCloser
	from, to audio.Format

	decoder   *decode.PCMDecoder
	encoder   *encode.PCMEncoder
	resampler *resample.Resampler // nil when rates match

	in      []byte
	held    int // partial frame bytes kept at the front of in
	samples []int32
	mixed   []int32
	out     []int32
	outPCM  []byte
	pending []byte
	err     error
}

// Conform wraps src so it yields PCM in the to framing. Only mono and
// stereo remixing is supported.
func Conform(src io.ReadCloser, from, to audio.Format) (*Conformer, error) {
	if from.BitDepth != 16 || to.BitDepth != 16 {
		return nil, fmt.Errorf("conform: only 16-bit PCM is supported (%s -> %s)", from, to)
	}
	if from.Channels != to.Channels && (from.Channels > 2 || to.Channels > 2) {
		return nil, fmt.Errorf("conform: cannot remix %d channels to %d", from.Channels, to.Channels)
	}
	if from.SampleRate <= 0 || to.SampleRate <= 0 {
		return nil, fmt.Errorf("conform: invalid sample rate (%s -> %s)", from, to)
	}

	from.Codec, to.Codec = "pcm", "pcm"
	dec, err := decode.NewPCM(from)
	if err != nil {
		return nil, err
	}
	enc, err := encode.NewPCM(to)
	if err != nil {
		return nil, err
	}

	frames := max(1, from.SampleRate/conformChunk)
	c := &Conformer{
		src:     src,
		from:    from,
		to:      to,
		decoder: dec,
		encoder: enc,
		in:      make([]byte, frames*from.FrameBytes()),
		samples: make([]int32, frames*from.Channels),
		mixed:   make([]int32, frames*to.Channels),
	}

	outSamples := len(c.mixed)
	if from.SampleRate != to.SampleRate {
		c.resampler = resample.New(from.SampleRate, to.SampleRate, to.Channels)
		outSamples = c.resampler.MaxOutputSamples(len(c.mixed))
		c.out = make([]int32, outSamples)
	}
	c.outPCM = make([]byte, outSamples*2)
	return c, nil
}

// Read returns converted PCM
func (c *Conformer) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		c.err = c.fill()
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// fill reads one chunk and converts its whole frames
func (c *Conformer) fill() error {
	n, err := c.src.Read(c.in[c.held:])
	n += c.held

	frameBytes := c.from.FrameBytes()
	whole := n - n%frameBytes
	if whole > 0 {
		c.convert(c.in[:whole])
	}
	c.held = copy(c.in, c.in[whole:n])
	return err
}

func (c *Conformer) convert(data []byte) {
	n := c.decoder.DecodeInto(c.samples, data)
	frames := n / c.from.Channels

	mixed := c.samples[:n]
	switch {
	case c.from.Channels == 1 && c.to.Channels == 2:
		mixed = c.mixed[:frames*2]
		for i := 0; i < frames; i++ {
			mixed[2*i] = c.samples[i]
			mixed[2*i+1] = c.samples[i]
		}
	case c.from.Channels == 2 && c.to.Channels == 1:
		mixed = c.mixed[:frames]
		for i := 0; i < frames; i++ {
			mixed[i] = int32((int64(c.samples[2*i]) + int64(c.samples[2*i+1])) / 2)
		}
	}

	if c.resampler != nil {
		m := c.resampler.Resample(mixed, c.out)
		mixed = c.out[:m]
	}

	written := c.encoder.EncodeInto(c.outPCM, mixed)
	c.pending = c.outPCM[:written]
}

// Format reports the output framing
func (c *Conformer) Format() audio.Format {
	return c.to
}

// Close closes the wrapped source
func (c *Conformer) Close() error {
	return c.src.Close()
}
