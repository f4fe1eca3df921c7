// ABOUTME: Encoder configuration
// ABOUTME: Validates encoder parameters before any engine is allocated
package pump

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/pcmenc/pkg/codec"
)

// EncoderConfig is fixed once a session is prepared. SampleRate and
// ChannelCount must match the PCM actually fed in; nothing resamples.
type EncoderConfig struct {
	MimeType     string
	SampleRate   int
	ChannelCount int
	Bitrate      int
	Profile      codec.Profile
}

// Validate reports missing or out of range parameters
func (c EncoderConfig) Validate() error {
	var errs []error
	if c.MimeType == "" {
		errs = append(errs, errors.New("mime type is required"))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	if c.ChannelCount <= 0 {
		errs = append(errs, fmt.Errorf("channel count must be positive, got %d", c.ChannelCount))
	}
	if c.Bitrate <= 0 {
		errs = append(errs, fmt.Errorf("bitrate must be positive, got %d", c.Bitrate))
	}
	if len(errs) > 0 {
		return newError(ErrConfiguration, "validate", errors.Join(errs...))
	}
	return nil
}

// MediaFormat converts the config into the engine format
func (c EncoderConfig) MediaFormat() codec.MediaFormat {
	return codec.MediaFormat{
		MimeType:     c.MimeType,
		SampleRate:   c.SampleRate,
		ChannelCount: c.ChannelCount,
		Bitrate:      c.Bitrate,
		Profile:      c.Profile,
	}
}
