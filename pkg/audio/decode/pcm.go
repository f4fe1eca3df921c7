// ABOUTME: PCM audio decoder
// ABOUTME: Decodes 16-bit and 24-bit PCM audio to int32 samples
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
)

// PCMDecoder decodes PCM audio
type PCMDecoder struct {
	bitDepth int
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (*PCMDecoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMDecoder{
		bitDepth: format.BitDepth,
	}, nil
}

// Decode converts PCM bytes to int32 samples
func (d *PCMDecoder) Decode(data []byte) ([]int32, error) {
	samples := make([]int32, len(data)/(d.bitDepth/8))
	d.DecodeInto(samples, data)
	return samples, nil
}

// DecodeInto fills dst from data and returns the number of samples written.
// Trailing bytes that do not form a whole sample are ignored.
func (d *PCMDecoder) DecodeInto(dst []int32, data []byte) int {
	width := d.bitDepth / 8
	n := len(data) / width
	if n > len(dst) {
		n = len(dst)
	}

	if d.bitDepth == 24 {
		for i := 0; i < n; i++ {
			dst[i] = audio.SampleFrom24Bit([3]byte{data[i*3], data[i*3+1], data[i*3+2]})
		}
		return n
	}

	for i := 0; i < n; i++ {
		dst[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return n
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
