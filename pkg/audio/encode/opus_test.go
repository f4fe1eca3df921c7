// ABOUTME: Unit tests for Opus encoder
// ABOUTME: Tests Opus frame encoding and header layout
package encode

import (
	"encoding/binary"
	"testing"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opusFormat(rate, channels int) audio.Format {
	return audio.Format{Codec: "opus", SampleRate: rate, Channels: channels, BitDepth: 16}
}

func TestNewOpus(t *testing.T) {
	tests := []struct {
		name    string
		format  audio.Format
		wantErr bool
	}{
		{"valid 48kHz stereo", opusFormat(48000, 2), false},
		{"valid 16kHz mono", opusFormat(16000, 1), false},
		{"invalid codec", audio.PCM16(48000, 2), true},
		{"unsupported rate", opusFormat(44100, 2), true},
		{"unsupported channels", opusFormat(48000, 5), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder, err := NewOpus(tt.format, OpusOptions{Bitrate: 32000})
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, encoder)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.format.SampleRate/50, encoder.FrameSize())
			assert.NoError(t, encoder.Close())
		})
	}
}

func TestOpusEncoderEncode(t *testing.T) {
	encoder, err := NewOpus(opusFormat(48000, 2), OpusOptions{Application: OpusAppAudio})
	require.NoError(t, err)
	defer encoder.Close()

	samples := make([]int32, encoder.FrameSize()*2)
	for i := range samples {
		samples[i] = int32((i % 1000) * 8388)
	}

	output, err := encoder.Encode(samples)
	require.NoError(t, err)
	assert.NotEmpty(t, output)
	assert.LessOrEqual(t, len(output), maxOpusPacket)
}

func TestOpusEncoderEncodeSilence(t *testing.T) {
	encoder, err := NewOpus(opusFormat(24000, 1), OpusOptions{Application: OpusAppVoIP})
	require.NoError(t, err)

	output, err := encoder.Encode(make([]int32, encoder.FrameSize()))
	require.NoError(t, err)
	assert.NotEmpty(t, output, "silence still produces a packet")
}

func TestOpusEncoderRejectsPartialFrame(t *testing.T) {
	encoder, err := NewOpus(opusFormat(48000, 1), OpusOptions{})
	require.NoError(t, err)

	_, err = encoder.Encode(make([]int32, 100))
	assert.ErrorContains(t, err, "opus frame must hold")
}

func TestOpusEncoderHeader(t *testing.T) {
	encoder, err := NewOpus(opusFormat(16000, 2), OpusOptions{})
	require.NoError(t, err)

	head := encoder.Header()
	require.Len(t, head, 19)
	assert.Equal(t, "OpusHead", string(head[:8]))
	assert.Equal(t, byte(1), head[8])
	assert.Equal(t, byte(2), head[9])
	assert.Equal(t, uint16(opusPreSkip), binary.LittleEndian.Uint16(head[10:]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(head[12:]))
	assert.Equal(t, byte(0), head[18])
}
