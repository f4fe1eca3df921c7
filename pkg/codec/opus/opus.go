// ABOUTME: Opus encoder engine registration
// ABOUTME: Maps media formats onto libopus frame encoders behind a buffer queue
// Package opus provides the audio/opus encoder engine.
package opus

import (
	"fmt"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
	"github.com/Resonate-Protocol/pcmenc/pkg/audio/encode"
	"github.com/Resonate-Protocol/pcmenc/pkg/codec"
	"github.com/Resonate-Protocol/pcmenc/pkg/codec/bufqueue"
)

var supportedRates = map[int]bool{8000: true, 12000: true, 16000: true, 24000: true, 48000: true}

// NewFrameEncoder creates a libopus encoder for format
func NewFrameEncoder(format codec.MediaFormat) (encode.FrameEncoder, error) {
	if format.MimeType != codec.MimeOpus {
		return nil, fmt.Errorf("opus engine cannot encode %s: %w", format.MimeType, codec.ErrUnsupported)
	}
	if !supportedRates[format.SampleRate] {
		return nil, fmt.Errorf("opus does not support %d Hz: %w", format.SampleRate, codec.ErrUnsupported)
	}
	if format.ChannelCount < 1 || format.ChannelCount > 2 {
		return nil, fmt.Errorf("opus does not support %d channels: %w", format.ChannelCount, codec.ErrUnsupported)
	}

	opts := encode.OpusOptions{Bitrate: format.Bitrate}
	switch format.Profile {
	case codec.ProfileDefault, codec.ProfileOpusAudio:
		opts.Application = encode.OpusAppAudio
	case codec.ProfileOpusVoIP:
		opts.Application = encode.OpusAppVoIP
	case codec.ProfileOpusLowDelay:
		opts.Application = encode.OpusAppLowDelay
	default:
		return nil, fmt.Errorf("profile %s is not an opus profile: %w", format.Profile, codec.ErrUnsupported)
	}

	enc, err := encode.NewOpus(audio.Format{
		Codec:      "opus",
		SampleRate: format.SampleRate,
		Channels:   format.ChannelCount,
		BitDepth:   16,
	}, opts)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// NewEngine creates an unconfigured audio/opus engine
func NewEngine(opts bufqueue.Options) *bufqueue.Engine {
	return bufqueue.New(NewFrameEncoder, opts)
}

// Register adds the opus engine to r
func Register(r *codec.Registry, opts bufqueue.Options) {
	r.RegisterEncoder(codec.MimeOpus, func() (codec.EncoderEngine, error) {
		return NewEngine(opts), nil
	})
}
