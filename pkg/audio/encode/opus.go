// ABOUTME: Opus audio encoder
// ABOUTME: Encodes fixed-size int32 frames to Opus packets
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

const (
	// maxOpusPacket is the largest packet libopus will produce
	maxOpusPacket = 4000

	// opusPreSkip is the encoder lookahead at 48kHz advertised in OpusHead
	opusPreSkip = 312
)

// OpusApplication selects the libopus tuning mode
type OpusApplication int

const (
	OpusAppAudio OpusApplication = iota
	OpusAppVoIP
	OpusAppLowDelay
)

// OpusOptions tunes an Opus encoder
type OpusOptions struct {
	Bitrate     int // bits per second, 0 keeps the libopus default
	Application OpusApplication
}

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int
	pcm        []int16
	packet     []byte
}

// NewOpus creates a new Opus encoder producing 20ms frames
func NewOpus(format audio.Format, opts OpusOptions) (*OpusEncoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus encoder: %s", format.Codec)
	}

	app := opus.AppAudio
	switch opts.Application {
	case OpusAppVoIP:
		app = opus.AppVoIP
	case OpusAppLowDelay:
		app = opus.AppRestrictedLowdelay
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, app)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	if opts.Bitrate > 0 {
		if err := encoder.SetBitrate(opts.Bitrate); err != nil {
			return nil, fmt.Errorf("failed to set opus bitrate %d: %w", opts.Bitrate, err)
		}
	}

	// Opus frame size depends on sample rate
	frameSize := format.SampleRate / 50 // 20ms frame

	return &OpusEncoder{
		encoder:    encoder,
		sampleRate: format.SampleRate,
		channels:   format.Channels,
		frameSize:  frameSize,
		pcm:        make([]int16, frameSize*format.Channels),
		packet:     make([]byte, maxOpusPacket),
	}, nil
}

// Encode converts one frame of interleaved int32 samples to an Opus packet
func (e *OpusEncoder) Encode(samples []int32) ([]byte, error) {
	if len(samples) != len(e.pcm) {
		return nil, fmt.Errorf("opus frame must hold %d samples, got %d", len(e.pcm), len(samples))
	}

	for i, sample := range samples {
		e.pcm[i] = audio.SampleToInt16(sample)
	}

	n, err := e.encoder.Encode(e.pcm, e.packet)
	if err != nil {
		return nil, fmt.Errorf("opus encode error: %w", err)
	}

	out := make([]byte, n)
	copy(out, e.packet[:n])
	return out, nil
}

// FrameSize returns samples per channel per frame
func (e *OpusEncoder) FrameSize() int {
	return e.frameSize
}

// Header returns the OpusHead identification header (RFC 7845)
func (e *OpusEncoder) Header() []byte {
	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1 // version
	head[9] = byte(e.channels)
	binary.LittleEndian.PutUint16(head[10:], opusPreSkip)
	binary.LittleEndian.PutUint32(head[12:], uint32(e.sampleRate))
	// output gain (2 bytes) and mapping family 0 stay zero
	return head
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	// opus.Encoder doesn't have a Close method, nothing to do
	return nil
}
