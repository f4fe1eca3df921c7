// ABOUTME: Tests for encoder and writer session lifecycles
// ABOUTME: Checks error kinds for configuration, ordering and IO failures
package pump

import (
	"errors"
	"testing"

	"github.com/Resonate-Protocol/pcmenc/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() EncoderConfig {
	return EncoderConfig{MimeType: fakeMime, SampleRate: 11025, ChannelCount: 1, Bitrate: 16000}
}

func TestEncoderConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	bad := EncoderConfig{}
	err := bad.Validate()
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorContains(t, err, "mime type is required")
	assert.ErrorContains(t, err, "bitrate must be positive")

	f := validConfig().MediaFormat()
	assert.Equal(t, 11025, f.SampleRate)
	assert.Equal(t, fakeMime, f.MimeType)
}

func TestEncoderSessionPrepare(t *testing.T) {
	t.Run("missing output path allocates nothing", func(t *testing.T) {
		created := false
		reg := codec.NewRegistry()
		reg.RegisterEncoder(fakeMime, func() (codec.EncoderEngine, error) {
			created = true
			return newFakeEncoder(1, 1), nil
		})
		err := NewEncoderSession(reg, nil).Prepare(validConfig(), "")
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.False(t, created)
	})

	t.Run("unknown mime", func(t *testing.T) {
		cfg := validConfig()
		cfg.MimeType = "audio/unknown"
		err := NewEncoderSession(codec.NewRegistry(), nil).Prepare(cfg, "/tmp/a.m4a")
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.ErrorIs(t, err, codec.ErrUnsupported)
	})

	t.Run("engine rejects format", func(t *testing.T) {
		enc := newFakeEncoder(1, 1)
		cfg := validConfig()
		cfg.SampleRate = 12345
		err := NewEncoderSession(fakeRegistry(enc, &fakeContainer{}), nil).Prepare(cfg, "/tmp/a.m4a")
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.True(t, enc.released)
	})

	t.Run("prepare twice", func(t *testing.T) {
		s := NewEncoderSession(fakeRegistry(newFakeEncoder(1, 1), &fakeContainer{}), nil)
		require.NoError(t, s.Prepare(validConfig(), "/tmp/a.m4a"))
		assert.ErrorIs(t, s.Prepare(validConfig(), "/tmp/a.m4a"), ErrInvalidState)
	})

	t.Run("operations before prepare", func(t *testing.T) {
		s := NewEncoderSession(codec.NewRegistry(), nil)
		_, _, err := s.DequeueInputSlot(0)
		assert.ErrorIs(t, err, ErrInvalidState)
		_, err = s.InputSlot(0)
		assert.ErrorIs(t, err, ErrInvalidState)
		_, err = s.OutputChunk(0)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.ErrorIs(t, s.Stop(), ErrInvalidState)
		s.Release()
	})
}

func TestEncoderSessionEngineStateErrors(t *testing.T) {
	enc := newFakeEncoder(2, 8)
	s := NewEncoderSession(fakeRegistry(enc, &fakeContainer{}), nil)
	require.NoError(t, s.Prepare(validConfig(), "/tmp/a.m4a"))

	// slot never dequeued
	err := s.SubmitInput(1, 4, 0, false)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, err, codec.ErrIllegalState)

	idx, ok, err := s.DequeueInputSlot(0)
	require.NoError(t, err)
	require.True(t, ok)
	buf, err := s.InputSlot(idx)
	require.NoError(t, err)
	assert.Len(t, buf, 8)
	require.NoError(t, s.SubmitInput(idx, 0, 0, true))

	s.Release()
	assert.True(t, enc.released)
}

func TestWriterSessionLifecycle(t *testing.T) {
	mux := &fakeContainer{}
	reg := fakeRegistry(newFakeEncoder(1, 1), mux)

	w, err := OpenWriter(reg, "/tmp/w.m4a", codec.ContainerMPEG4, nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/w.m4a", mux.path)
	assert.Equal(t, "/tmp/w.m4a", w.Path())
	assert.Equal(t, -1, w.TrackID())

	assert.ErrorIs(t, w.Start(), ErrInvalidState)
	assert.ErrorIs(t, w.WriteSample(0, []byte{1}, codec.BufferInfo{Size: 1}), ErrInvalidState)

	track, err := w.AddTrack(codec.MediaFormat{MimeType: fakeMime})
	require.NoError(t, err)
	_, err = w.AddTrack(codec.MediaFormat{MimeType: fakeMime})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, mux.tracks, "second add never reaches the engine")

	assert.ErrorIs(t, w.WriteSample(track, []byte{1}, codec.BufferInfo{Size: 1}), ErrInvalidState)
	require.NoError(t, w.Start())
	assert.True(t, w.Started())
	assert.ErrorIs(t, w.Start(), ErrInvalidState)
	assert.ErrorIs(t, w.WriteSample(track+5, []byte{1}, codec.BufferInfo{Size: 1}), ErrInvalidState)
	require.NoError(t, w.WriteSample(track, []byte{1}, codec.BufferInfo{Size: 1}))

	require.NoError(t, w.Stop())
	assert.ErrorIs(t, w.Stop(), ErrInvalidState)
	assert.ErrorIs(t, w.WriteSample(track, []byte{1}, codec.BufferInfo{Size: 1}), ErrInvalidState)
	_, err = w.AddTrack(codec.MediaFormat{})
	assert.ErrorIs(t, err, ErrInvalidState)
	w.Release()
}

func TestWriterSessionStopNeverStarted(t *testing.T) {
	mux := &fakeContainer{}
	w, err := OpenWriter(fakeRegistry(newFakeEncoder(1, 1), mux), "/tmp/w.m4a", codec.ContainerMPEG4, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, w.Stop(), ErrInvalidState)
	assert.Equal(t, 1, mux.stops)
	assert.Equal(t, 1, mux.releases, "file closed anyway")
}

func TestOpenWriterErrors(t *testing.T) {
	reg := codec.NewRegistry()

	_, err := OpenWriter(reg, "", codec.ContainerMPEG4, nil)
	assert.ErrorIs(t, err, ErrIO)

	_, err = OpenWriter(reg, "/tmp/a.m4a", "matroska", nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	denied := errors.New("permission denied")
	reg.RegisterContainer(codec.ContainerMPEG4, func(string) (codec.ContainerEngine, error) { return nil, denied })
	_, err = OpenWriter(reg, "/tmp/a.m4a", codec.ContainerMPEG4, nil)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, denied)
}

func TestErrorFormat(t *testing.T) {
	err := newError(ErrEncode, "drain", errors.New("stalled"))
	assert.Equal(t, "drain: encode error: stalled", err.Error())
	assert.Equal(t, "stop: invalid state", (&Error{Kind: ErrInvalidState, Op: "stop"}).Error())
}
