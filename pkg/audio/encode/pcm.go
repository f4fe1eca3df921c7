// ABOUTME: PCM audio encoder
// ABOUTME: Encodes int32 samples to 16-bit or 24-bit PCM bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	bitDepth int
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (*PCMEncoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMEncoder{
		bitDepth: format.BitDepth,
	}, nil
}

// Encode converts int32 samples to PCM bytes
func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	output := make([]byte, len(samples)*e.bitDepth/8)
	e.EncodeInto(output, samples)
	return output, nil
}

// EncodeInto writes samples into dst, which must hold len(samples) samples.
// Returns the number of bytes written.
func (e *PCMEncoder) EncodeInto(dst []byte, samples []int32) int {
	if e.bitDepth == 24 {
		for i, sample := range samples {
			b := audio.SampleTo24Bit(sample)
			copy(dst[i*3:], b[:])
		}
		return len(samples) * 3
	}

	for i, sample := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(audio.SampleToInt16(sample)))
	}
	return len(samples) * 2
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
