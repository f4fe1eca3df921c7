// ABOUTME: Sine tone byte source
// ABOUTME: Generates a fixed-length test signal as 16-bit PCM
package source

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
	"github.com/Resonate-Protocol/pcmenc/pkg/audio/encode"
)

// Tone yields a sine wave at half scale on every channel
type Tone struct {
	format    audio.Format
	frequency float64
	total     int64 // sample frames
	index     int64
	encoder   *encode.PCMEncoder
	samples   []int32
}

// NewTone creates a generator of the given length
func NewTone(format audio.Format, duration time.Duration, frequency float64) (*Tone, error) {
	if format.Codec == "" {
		format.Codec = "pcm"
	}
	if format.BitDepth == 0 {
		format.BitDepth = 16
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("tone needs a sample rate and channel count, got %s", format)
	}
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("tone only renders 16-bit PCM, got %d-bit", format.BitDepth)
	}
	if frequency <= 0 {
		return nil, fmt.Errorf("tone frequency must be positive, got %v", frequency)
	}

	enc, err := encode.NewPCM(format)
	if err != nil {
		return nil, err
	}

	return &Tone{
		format:    format,
		frequency: frequency,
		total:     int64(format.SampleRate) * int64(duration) / int64(time.Second),
		encoder:   enc,
	}, nil
}

// ParseTone builds a tone from "tone:<hz>:<duration>", e.g. tone:440:2s
func ParseTone(spec string, format audio.Format) (*Tone, error) {
	parts := strings.Split(strings.TrimPrefix(spec, TonePrefix), ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("tone spec %q: want tone:<hz>:<duration>", spec)
	}

	freq, err := strconv.ParseFloat(strings.TrimSuffix(strings.ToLower(parts[0]), "hz"), 64)
	if err != nil {
		return nil, fmt.Errorf("tone spec %q: bad frequency: %w", spec, err)
	}
	d, err := time.ParseDuration(parts[1])
	if err != nil {
		return nil, fmt.Errorf("tone spec %q: bad duration: %w", spec, err)
	}
	return NewTone(format, d, freq)
}

// Read renders whole sample frames into p
func (t *Tone) Read(p []byte) (int, error) {
	remaining := t.total - t.index
	if remaining <= 0 {
		return 0, io.EOF
	}

	frameBytes := t.format.FrameBytes()
	frames := int64(len(p) / frameBytes)
	if frames == 0 {
		return 0, io.ErrShortBuffer
	}
	if frames > remaining {
		frames = remaining
	}

	n := int(frames) * t.format.Channels
	if cap(t.samples) < n {
		t.samples = make([]int32, n)
	}
	samples := t.samples[:n]

	for i := int64(0); i < frames; i++ {
		ts := float64(t.index+i) / float64(t.format.SampleRate)
		v := int32(math.Sin(2*math.Pi*t.frequency*ts) * audio.Max24Bit * 0.5)
		for ch := 0; ch < t.format.Channels; ch++ {
			samples[int(i)*t.format.Channels+ch] = v
		}
	}
	t.index += frames

	return t.encoder.EncodeInto(p, samples), nil
}

// Format reports the rendered framing
func (t *Tone) Format() audio.Format {
	return t.format
}

// Close releases the renderer
func (t *Tone) Close() error {
	return t.encoder.Close()
}
