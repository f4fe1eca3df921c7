// ABOUTME: Tests for PCM byte sources
// ABOUTME: Covers tone generation, WAV parsing, raw files and dispatch
package source

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV writes a canonical 44-byte header plus pcm, with an optional
// extra chunk ahead of the data chunk
func writeWAV(t *testing.T, format audio.Format, bits uint16, extra bool, pcm []byte) string {
	t.Helper()

	var body bytes.Buffer
	body.WriteString("WAVE")

	body.WriteString("fmt ")
	binary.Write(&body, binary.LittleEndian, uint32(16))
	binary.Write(&body, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(&body, binary.LittleEndian, uint16(format.Channels))
	binary.Write(&body, binary.LittleEndian, uint32(format.SampleRate))
	blockAlign := uint16(format.Channels) * bits / 8
	binary.Write(&body, binary.LittleEndian, uint32(format.SampleRate)*uint32(blockAlign))
	binary.Write(&body, binary.LittleEndian, blockAlign)
	binary.Write(&body, binary.LittleEndian, bits)

	if extra {
		body.WriteString("junk")
		binary.Write(&body, binary.LittleEndian, uint32(4))
		body.Write([]byte{'a', 'b', 'c', 'd'})
	}

	body.WriteString("data")
	binary.Write(&body, binary.LittleEndian, uint32(len(pcm)))
	body.Write(pcm)

	var file bytes.Buffer
	file.WriteString("RIFF")
	binary.Write(&file, binary.LittleEndian, uint32(body.Len()))
	file.Write(body.Bytes())

	path := filepath.Join(t.TempDir(), "test.wav")
	require.NoError(t, os.WriteFile(path, file.Bytes(), 0o644))
	return path
}

func TestToneLength(t *testing.T) {
	format := audio.PCM16(48000, 2)
	tone, err := NewTone(format, 250*time.Millisecond, 440)
	require.NoError(t, err)
	defer tone.Close()

	data, err := io.ReadAll(tone)
	require.NoError(t, err)
	assert.Len(t, data, 12000*4)

	got, ok := FormatOf(tone)
	require.True(t, ok)
	assert.Equal(t, format, got)
}

func TestToneSignal(t *testing.T) {
	tone, err := NewTone(audio.PCM16(8000, 2), 10*time.Millisecond, 1000)
	require.NoError(t, err)

	buf := make([]byte, 4*80)
	n, err := tone.Read(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	peak := int16(0)
	for i := 0; i < n; i += 4 {
		left := int16(binary.LittleEndian.Uint16(buf[i:]))
		right := int16(binary.LittleEndian.Uint16(buf[i+2:]))
		assert.Equal(t, left, right, "frame %d", i/4)
		if left > peak {
			peak = left
		}
	}
	assert.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(buf)))
	assert.InDelta(t, 16383, peak, 2)

	_, err = tone.Read(buf)
	assert.Equal(t, io.EOF, err)
}

func TestToneShortBuffer(t *testing.T) {
	tone, err := NewTone(audio.PCM16(8000, 2), time.Second, 440)
	require.NoError(t, err)

	_, err = tone.Read(make([]byte, 3))
	assert.ErrorIs(t, err, io.ErrShortBuffer)

	// partial frames are left unfilled
	n, err := tone.Read(make([]byte, 7))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestNewToneErrors(t *testing.T) {
	tests := []struct {
		name   string
		format audio.Format
		freq   float64
	}{
		{"no rate", audio.Format{Channels: 1}, 440},
		{"24-bit", audio.Format{SampleRate: 48000, Channels: 1, BitDepth: 24}, 440},
		{"zero frequency", audio.PCM16(48000, 1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTone(tt.format, time.Second, tt.freq)
			assert.Error(t, err)
		})
	}
}

func TestParseTone(t *testing.T) {
	tone, err := ParseTone("tone:440hz:500ms", audio.PCM16(16000, 1))
	require.NoError(t, err)
	assert.Equal(t, 440.0, tone.frequency)
	assert.Equal(t, int64(8000), tone.total)

	for _, spec := range []string{"tone:440", "tone:abc:1s", "tone:440:forever"} {
		_, err := ParseTone(spec, audio.PCM16(16000, 1))
		assert.Error(t, err, spec)
	}
}

func TestOpenWAV(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	for _, extra := range []bool{false, true} {
		path := writeWAV(t, audio.PCM16(44100, 2), 16, extra, pcm)

		src, err := OpenWAV(path)
		require.NoError(t, err)

		assert.Equal(t, audio.PCM16(44100, 2), src.Format())
		assert.Equal(t, path, src.Name())

		data, err := io.ReadAll(src)
		require.NoError(t, err)
		assert.Equal(t, pcm, data)
		require.NoError(t, src.Close())
	}
}

func TestOpenWAVStopsAtDataChunk(t *testing.T) {
	path := writeWAV(t, audio.PCM16(8000, 1), 16, false, []byte{1, 2})

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte("LIST\x00\x00\x00\x00"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	src, err := OpenWAV(path)
	require.NoError(t, err)
	defer src.Close()

	data, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, data)
}

func TestOpenWAVRejects(t *testing.T) {
	t.Run("24-bit", func(t *testing.T) {
		path := writeWAV(t, audio.PCM16(48000, 2), 24, false, nil)
		_, err := OpenWAV(path)
		assert.ErrorIs(t, err, ErrOnlyPCM16bitSupported)
		assert.ErrorContains(t, err, "bit depth 24")
	})

	t.Run("not riff", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.wav")
		require.NoError(t, os.WriteFile(path, []byte("not a wave file at all"), 0o644))
		_, err := OpenWAV(path)
		assert.ErrorIs(t, err, ErrNotWavFile)
	})

	t.Run("truncated", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "short.wav")
		require.NoError(t, os.WriteFile(path, []byte("RIFF\x00\x00\x00\x00WAVE"), 0o644))
		_, err := OpenWAV(path)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("data before fmt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "order.wav")
		require.NoError(t, os.WriteFile(path, []byte("RIFF\x00\x00\x00\x00WAVEdata\x02\x00\x00\x00\x01\x02"), 0o644))
		_, err := OpenWAV(path)
		assert.ErrorIs(t, err, ErrUnsupportedWavLayout)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := OpenWAV(filepath.Join(t.TempDir(), "nope.wav"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestOpenWAVBadChunkSizes(t *testing.T) {
	tests := []struct {
		name string
		id   string
		size uint32
	}{
		{"max fmt", "fmt ", 0xFFFFFFFF},
		{"oversized fmt", "fmt ", 1 << 20},
		{"short fmt", "fmt ", 8},
		{"max unknown chunk", "junk", 0xFFFFFFFF},
		{"unknown chunk past end", "junk", 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var file bytes.Buffer
			file.WriteString("RIFF")
			binary.Write(&file, binary.LittleEndian, uint32(0xFFFFFFFF))
			file.WriteString("WAVE")
			file.WriteString(tt.id)
			binary.Write(&file, binary.LittleEndian, tt.size)
			file.Write(make([]byte, 32))

			path := filepath.Join(t.TempDir(), "bad.wav")
			require.NoError(t, os.WriteFile(path, file.Bytes(), 0o644))

			src, err := OpenWAV(path)
			assert.Nil(t, src)
			assert.ErrorIs(t, err, ErrUnsupportedWavLayout)
		})
	}
}

func TestOpenRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.pcm")
	require.NoError(t, os.WriteFile(path, []byte{9, 8, 7, 6}, 0o644))

	src, err := OpenRaw(path, audio.PCM16(11025, 1))
	require.NoError(t, err)
	data, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7, 6}, data)
	require.NoError(t, src.Close())

	_, err = OpenRaw(path, audio.Format{SampleRate: 11025, Channels: 1, BitDepth: 24})
	assert.Error(t, err)
}

func TestOpenCompressedRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"junk.mp3", "junk.flac"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0}, 64), 0o644))

		_, err := Open(path, audio.PCM16(44100, 2))
		assert.Error(t, err, name)
	}
}

func TestOpenDispatch(t *testing.T) {
	wav := writeWAV(t, audio.PCM16(22050, 1), 16, false, []byte{0, 0})

	src, err := Open(wav, audio.PCM16(44100, 2))
	require.NoError(t, err)
	got, ok := FormatOf(src)
	require.True(t, ok)
	assert.Equal(t, audio.PCM16(22050, 1), got)
	src.Close()

	src, err = Open("tone:220:1s", audio.PCM16(8000, 1))
	require.NoError(t, err)
	assert.IsType(t, &Tone{}, src)

	_, ok = FormatOf(bytes.NewReader(nil))
	assert.False(t, ok)
}
