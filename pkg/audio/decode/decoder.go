// ABOUTME: Decoder interface definition
// ABOUTME: Common interfaces for packet decoders and PCM stream readers
package decode

import (
	"io"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
)

// Decoder decodes audio in various formats to PCM int32 samples
type Decoder interface {
	// Decode converts encoded audio data to PCM samples
	Decode(data []byte) ([]int32, error)

	// Close releases decoder resources
	Close() error
}

// StreamReader yields interleaved 16-bit little-endian PCM
type StreamReader interface {
	io.Reader

	// Format describes the PCM produced by Read
	Format() audio.Format
}
