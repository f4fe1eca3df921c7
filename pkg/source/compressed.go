// ABOUTME: MP3 and FLAC byte sources
// ABOUTME: Decode compressed files to 16-bit PCM on read
package source

import (
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio/decode"
)

// OpenMP3 decodes an MP3 file; output is always stereo
func OpenMP3(path string) (*File, error) {
	return openDecoded(path, "MP3", func(r io.Reader) (decode.StreamReader, error) {
		return decode.NewMP3Reader(r)
	})
}

// OpenFLAC decodes a FLAC file, scaling any bit depth to 16-bit
func OpenFLAC(path string) (*File, error) {
	return openDecoded(path, "FLAC", func(r io.Reader) (decode.StreamReader, error) {
		return decode.NewFLACReader(r)
	})
}

func openDecoded(path, kind string, newReader func(io.Reader) (decode.StreamReader, error)) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file: %w", kind, err)
	}

	r, err := newReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &File{Reader: r, file: f, format: r.Format()}, nil
}
