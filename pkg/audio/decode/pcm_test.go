// ABOUTME: Tests for PCM decoder
// ABOUTME: Tests 16-bit and 24-bit PCM decoding
package decode

import (
	"testing"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPCM(t *testing.T) {
	decoder, err := NewPCM(audio.PCM16(48000, 2))
	require.NoError(t, err)
	assert.NotNil(t, decoder)
}

func TestPCMDecode16Bit(t *testing.T) {
	decoder, err := NewPCM(audio.PCM16(48000, 2))
	require.NoError(t, err)

	// 0x0100 = 256 and 0x0302 = 770, left-justified to 24-bit
	output, err := decoder.Decode([]byte{0x00, 0x01, 0x02, 0x03})
	require.NoError(t, err)
	assert.Equal(t, []int32{256 << 8, 770 << 8}, output)
}

func TestPCMDecode24Bit(t *testing.T) {
	decoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 192000, Channels: 2, BitDepth: 24})
	require.NoError(t, err)

	output, err := decoder.Decode([]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05})
	require.NoError(t, err)
	assert.Equal(t, []int32{0x020100, 0x050403}, output)
}

func TestPCMDecodeInto(t *testing.T) {
	decoder, err := NewPCM(audio.PCM16(8000, 1))
	require.NoError(t, err)

	dst := make([]int32, 4)
	// odd trailing byte is ignored
	n := decoder.DecodeInto(dst, []byte{0xFF, 0xFF, 0x01, 0x00, 0x7F})
	assert.Equal(t, 2, n)
	assert.Equal(t, []int32{-256, 256, 0, 0}, dst)

	// dst bounds the result
	n = decoder.DecodeInto(dst[:1], []byte{0x01, 0x00, 0x02, 0x00})
	assert.Equal(t, 1, n)
}

func TestNewPCMErrors(t *testing.T) {
	_, err := NewPCM(audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16})
	assert.EqualError(t, err, "invalid codec for PCM decoder: opus")

	_, err = NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 32})
	assert.EqualError(t, err, "unsupported bit depth: 32 (supported: 16, 24)")
}

func TestPCMDecodeEmptyInput(t *testing.T) {
	decoder, err := NewPCM(audio.PCM16(48000, 2))
	require.NoError(t, err)

	output, err := decoder.Decode([]byte{})
	require.NoError(t, err)
	assert.Empty(t, output)
}
