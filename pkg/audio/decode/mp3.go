// ABOUTME: MP3 stream reader
// ABOUTME: Decodes an MP3 stream to 16-bit stereo PCM
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Reader decodes MP3 audio on demand
type MP3Reader struct {
	decoder *mp3.Decoder
}

// NewMP3Reader parses the first MP3 frame header from r
func NewMP3Reader(r io.Reader) (*MP3Reader, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}
	return &MP3Reader{decoder: decoder}, nil
}

// Read returns decoded PCM bytes
func (m *MP3Reader) Read(p []byte) (int, error) {
	return m.decoder.Read(p)
}

// Format reports the decoded layout; go-mp3 always yields stereo
func (m *MP3Reader) Format() audio.Format {
	return audio.PCM16(m.decoder.SampleRate(), 2)
}

// Length returns the total decoded size in bytes, or -1 when the input
// is not seekable
func (m *MP3Reader) Length() int64 {
	return m.decoder.Length()
}
