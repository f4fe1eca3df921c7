// ABOUTME: Byte source adapters producing 16-bit PCM
// ABOUTME: Opens files or generators by spec and reports their framing
// Package source opens PCM byte streams for the encode pump. Every
// source is an io.ReadCloser of interleaved 16-bit little-endian PCM;
// sources that know their framing also implement Describer.
package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
)

// TonePrefix selects the sine generator in Open
const TonePrefix = "tone:"

// Describer reports the PCM framing a source yields
type Describer interface {
	Format() audio.Format
}

// FormatOf returns the framing of r if it describes itself
func FormatOf(r io.Reader) (audio.Format, bool) {
	if d, ok := r.(Describer); ok {
		return d.Format(), true
	}
	return audio.Format{}, false
}

// File is a PCM stream read from a file on disk
type File struct {
	io.Reader
	file   *os.File
	format audio.Format
}

// Format reports the decoded framing
func (f *File) Format() audio.Format {
	return f.format
}

// Name returns the file path
func (f *File) Name() string {
	return f.file.Name()
}

// Close closes the underlying file
func (f *File) Close() error {
	return f.file.Close()
}

// Open dispatches on the tone prefix or the file extension. Unknown
// extensions are treated as raw PCM in the given format.
func Open(spec string, format audio.Format) (io.ReadCloser, error) {
	if strings.HasPrefix(spec, TonePrefix) {
		return ParseTone(spec, format)
	}

	switch strings.ToLower(filepath.Ext(spec)) {
	case ".wav", ".wave":
		return OpenWAV(spec)
	case ".mp3":
		return OpenMP3(spec)
	case ".flac":
		return OpenFLAC(spec)
	default:
		return OpenRaw(spec, format)
	}
}

// OpenRaw opens headerless 16-bit little-endian PCM
func OpenRaw(path string, format audio.Format) (*File, error) {
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("raw source %s: only 16-bit PCM is supported, got %d-bit", path, format.BitDepth)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw PCM: %w", err)
	}
	return &File{Reader: f, file: f, format: format}, nil
}
