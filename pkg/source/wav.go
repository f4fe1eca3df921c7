// ABOUTME: WAV byte source
// ABOUTME: Reads the header with go-audio/wav and streams the data chunk
package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE

	// fmt is 16 bytes for PCM and 40 for WAVE_FORMAT_EXTENSIBLE
	wavMaxFmtSize = 64

	// some writers leave the size at max when streaming
	wavUnknownSize = 0xFFFFFFFF
)

var (
	ErrNotWavFile            = errors.New("not a RIFF/WAVE file")
	ErrOnlyPCM16bitSupported = errors.New("only 16-bit PCM WAV is supported")
	ErrUnsupportedWavLayout  = errors.New("unsupported WAV layout")
)

// OpenWAV opens a 16-bit PCM WAV file positioned at its sample data
func OpenWAV(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV: %w", err)
	}

	format, size, err := readWAVHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var r io.Reader = f
	if size < wavUnknownSize {
		r = io.LimitReader(f, size)
	}
	return &File{Reader: r, file: f, format: format}, nil
}

// readWAVHeader leaves f at the first sample and returns the data length
func readWAVHeader(f *os.File) (audio.Format, int64, error) {
	info, err := f.Stat()
	if err != nil {
		return audio.Format{}, 0, err
	}
	if err := checkChunks(f, info.Size()); err != nil {
		return audio.Format{}, 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return audio.Format{}, 0, err
	}

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return audio.Format{}, 0, fmt.Errorf("reading WAV header: %w", err)
	}
	if d.SampleRate == 0 || d.NumChans == 0 {
		return audio.Format{}, 0, fmt.Errorf("%w: empty fmt chunk", ErrUnsupportedWavLayout)
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return audio.Format{}, 0, fmt.Errorf("%w: encoding 0x%04x", ErrOnlyPCM16bitSupported, d.WavAudioFormat)
	}
	if d.BitDepth != 16 {
		return audio.Format{}, 0, fmt.Errorf("%w: bit depth %d", ErrOnlyPCM16bitSupported, d.BitDepth)
	}

	if err := d.FwdToPCM(); err != nil {
		return audio.Format{}, 0, fmt.Errorf("locating WAV data: %w", err)
	}
	return audio.PCM16(int(d.SampleRate), int(d.NumChans)), d.PCMLen(), nil
}

// checkChunks walks chunk headers up to the data chunk. The decoder
// allocates whatever a chunk header declares, so sizes are bounded
// against the file before it sees them.
func checkChunks(r io.Reader, fileSize int64) error {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return fmt.Errorf("reading RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return ErrNotWavFile
	}

	offset := int64(len(riff))
	haveFmt := false
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return fmt.Errorf("reading chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		offset += int64(len(hdr))

		switch id {
		case "data":
			if !haveFmt {
				return fmt.Errorf("%w: data chunk before fmt chunk", ErrUnsupportedWavLayout)
			}
			return nil
		case "fmt ":
			if size < 16 || size > wavMaxFmtSize {
				return fmt.Errorf("%w: fmt chunk of %d bytes", ErrUnsupportedWavLayout, size)
			}
			haveFmt = true
		}

		size += size % 2
		if offset+size > fileSize {
			return fmt.Errorf("%w: %q chunk overruns file", ErrUnsupportedWavLayout, id)
		}
		if _, err := io.CopyN(io.Discard, r, size); err != nil {
			return fmt.Errorf("skipping %q chunk: %w", id, err)
		}
		offset += size
	}
}
