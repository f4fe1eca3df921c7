// ABOUTME: FLAC stream reader
// ABOUTME: Decodes FLAC frames to 16-bit interleaved PCM
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACReader decodes FLAC audio one frame at a time
type FLACReader struct {
	stream   *flac.Stream
	format   audio.Format
	bitDepth int
	pending  []byte
	buf      []byte
}

// NewFLACReader parses the FLAC stream header from r
func NewFLACReader(r io.Reader) (*FLACReader, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	return &FLACReader{
		stream:   stream,
		format:   audio.PCM16(int(info.SampleRate), int(info.NChannels)),
		bitDepth: int(info.BitsPerSample),
	}, nil
}

// Read returns decoded PCM bytes, parsing frames as needed
func (f *FLACReader) Read(p []byte) (int, error) {
	for len(f.pending) == 0 {
		if err := f.nextFrame(); err != nil {
			return 0, err
		}
	}

	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *FLACReader) nextFrame() error {
	frame, err := f.stream.ParseNext()
	if err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("flac frame error: %w", err)
	}

	channels := f.format.Channels
	size := int(frame.BlockSize) * channels * audio.BytesPerSample16
	if cap(f.buf) < size {
		f.buf = make([]byte, size)
	}
	out := f.buf[:size]

	pos := 0
	for i := 0; i < int(frame.BlockSize); i++ {
		for ch := 0; ch < channels; ch++ {
			sample := audio.NormalizeTo24Bit(frame.Subframes[ch].Samples[i], f.bitDepth)
			binary.LittleEndian.PutUint16(out[pos:], uint16(audio.SampleToInt16(sample)))
			pos += audio.BytesPerSample16
		}
	}

	f.pending = out
	return nil
}

// Format reports the decoded layout
func (f *FLACReader) Format() audio.Format {
	return f.format
}

// SourceBitDepth is the bit depth stored in the FLAC stream
func (f *FLACReader) SourceBitDepth() int {
	return f.bitDepth
}
