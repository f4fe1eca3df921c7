// ABOUTME: Fragmented MP4 container engine with a single audio track
// ABOUTME: Buffers samples into moof+mdat fragments behind an init segment
// Package mp4mux writes one compressed audio track into a fragmented MP4
// file using mediacommon's fmp4 marshalling.
package mp4mux

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Resonate-Protocol/pcmenc/pkg/codec"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
)

const (
	// DefaultFragmentDuration bounds the audio held in memory per fragment
	DefaultFragmentDuration = 2 * time.Second

	// opusTimeScale is fixed by the Opus-in-ISOBMFF mapping
	opusTimeScale = 48000

	// aacFrameSize is used when the format carries no frame size
	aacFrameSize = 1024

	trackID = 1
)

// Options tunes the writer
type Options struct {
	FragmentDuration time.Duration
	Logger           *slog.Logger
}

type heldSample struct {
	dts     int64
	payload []byte
}

// Writer implements codec.ContainerEngine
type Writer struct {
	path   string
	file   *os.File
	logger *slog.Logger

	fragmentDuration time.Duration

	format    codec.MediaFormat
	mp4Codec  mp4.Codec
	timeScale uint32
	frameDur  uint32 // last-sample duration in timescale units
	hasTrack  bool
	started   bool
	closed    bool

	seq        uint32
	baseTime   uint64
	pending    []*fmp4.Sample
	pendingDur uint64
	held       *heldSample
	samples    int
}

// Open creates the output file
func Open(path string, opts Options) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fragment := opts.FragmentDuration
	if fragment <= 0 {
		fragment = DefaultFragmentDuration
	}

	return &Writer{
		path:             path,
		file:             f,
		logger:           logger.With(slog.String("component", "mp4mux"), slog.String("path", path)),
		fragmentDuration: fragment,
		seq:              1,
	}, nil
}

// Register adds the MP4 writer to r under codec.ContainerMPEG4
func Register(r *codec.Registry, opts Options) {
	r.RegisterContainer(codec.ContainerMPEG4, func(path string) (codec.ContainerEngine, error) {
		return Open(path, opts)
	})
}

// Path returns the output file path
func (w *Writer) Path() string {
	return w.path
}

// AddTrack binds the single audio track
func (w *Writer) AddTrack(format codec.MediaFormat) (int, error) {
	if w.closed {
		return -1, fmt.Errorf("add track after close: %w", codec.ErrIllegalState)
	}
	if w.started {
		return -1, fmt.Errorf("add track after start: %w", codec.ErrIllegalState)
	}
	if w.hasTrack {
		return -1, fmt.Errorf("track already added: %w", codec.ErrIllegalState)
	}

	switch format.MimeType {
	case codec.MimeOpus:
		w.mp4Codec = &mp4.CodecOpus{ChannelCount: format.ChannelCount}
		w.timeScale = opusTimeScale
	case codec.MimeAAC:
		config, err := aacConfig(format)
		if err != nil {
			return -1, err
		}
		w.mp4Codec = &mp4.CodecMPEG4Audio{Config: config}
		w.timeScale = uint32(config.SampleRate)
	default:
		return -1, fmt.Errorf("cannot mux %q: %w", format.MimeType, codec.ErrUnsupported)
	}
	if format.SampleRate <= 0 {
		return -1, fmt.Errorf("track sample rate %d: %w", format.SampleRate, codec.ErrUnsupported)
	}

	frameSize := format.FrameSize
	if frameSize <= 0 {
		frameSize = aacFrameSize
	}
	w.frameDur = uint32(int64(frameSize) * int64(w.timeScale) / int64(format.SampleRate))
	w.format = format
	w.hasTrack = true

	w.logger.Debug("track added",
		slog.String("mime", format.MimeType),
		slog.Uint64("timescale", uint64(w.timeScale)),
		slog.Int("channels", format.ChannelCount))
	return trackID, nil
}

func aacConfig(format codec.MediaFormat) (mpeg4audio.AudioSpecificConfig, error) {
	var config mpeg4audio.AudioSpecificConfig
	if len(format.CodecConfig) > 0 {
		if err := config.Unmarshal(format.CodecConfig); err != nil {
			return config, fmt.Errorf("invalid AudioSpecificConfig: %w", err)
		}
		return config, nil
	}
	return mpeg4audio.AudioSpecificConfig{
		Type:         mpeg4audio.ObjectTypeAACLC,
		SampleRate:   format.SampleRate,
		ChannelCount: format.ChannelCount,
	}, nil
}

// Start writes the init segment
func (w *Writer) Start() error {
	if w.closed {
		return fmt.Errorf("start after close: %w", codec.ErrIllegalState)
	}
	if !w.hasTrack {
		return fmt.Errorf("start without track: %w", codec.ErrIllegalState)
	}
	if w.started {
		return fmt.Errorf("already started: %w", codec.ErrIllegalState)
	}

	init := &fmp4.Init{
		Tracks: []*fmp4.InitTrack{{
			ID:        trackID,
			TimeScale: w.timeScale,
			Codec:     w.mp4Codec,
		}},
	}

	var buf seekablebuffer.Buffer
	if err := init.Marshal(&buf); err != nil {
		return fmt.Errorf("failed to marshal init segment: %w", err)
	}
	if _, err := w.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write init segment: %w", err)
	}

	w.started = true
	w.logger.Debug("init segment written", slog.Int("size", len(buf.Bytes())))
	return nil
}

// scaleTimestamp converts microseconds into track timescale units
func scaleTimestamp(timestampUs int64, timeScale uint32) int64 {
	if timestampUs <= 0 {
		return 0
	}
	return timestampUs * int64(timeScale) / 1_000_000
}

// WriteSampleData appends one compressed frame. The sample is held until
// the next one arrives so its duration is known.
func (w *Writer) WriteSampleData(track int, data []byte, info codec.BufferInfo) error {
	if w.closed || !w.started {
		return fmt.Errorf("write before start: %w", codec.ErrIllegalState)
	}
	if track != trackID {
		return fmt.Errorf("unknown track %d: %w", track, codec.ErrIllegalState)
	}

	end := info.Offset + info.Size
	if info.Offset < 0 || end > len(data) {
		return fmt.Errorf("sample region %d+%d exceeds %d bytes", info.Offset, info.Size, len(data))
	}
	if info.Size == 0 {
		return nil
	}

	dts := scaleTimestamp(info.PresentationTimeUs, w.timeScale)
	if w.held == nil && w.samples == 0 {
		w.baseTime = uint64(dts)
	}

	if w.held != nil {
		dur := dts - w.held.dts
		if dur < 0 {
			dur = 0
		}
		if err := w.appendSample(w.held.payload, uint32(dur)); err != nil {
			return err
		}
	}

	w.held = &heldSample{dts: dts, payload: append([]byte(nil), data[info.Offset:end]...)}
	return nil
}

func (w *Writer) appendSample(payload []byte, duration uint32) error {
	w.pending = append(w.pending, &fmp4.Sample{
		Duration: duration,
		Payload:  payload,
	})
	w.pendingDur += uint64(duration)
	w.samples++

	limit := uint64(int64(w.fragmentDuration) * int64(w.timeScale) / int64(time.Second))
	if w.pendingDur >= limit {
		return w.flushFragment()
	}
	return nil
}

func (w *Writer) flushFragment() error {
	if len(w.pending) == 0 {
		return nil
	}

	part := &fmp4.Part{
		SequenceNumber: w.seq,
		Tracks: []*fmp4.PartTrack{{
			ID:       trackID,
			BaseTime: w.baseTime,
			Samples:  w.pending,
		}},
	}

	var buf seekablebuffer.Buffer
	if err := part.Marshal(&buf); err != nil {
		return fmt.Errorf("failed to marshal fragment %d: %w", w.seq, err)
	}
	if _, err := w.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write fragment %d: %w", w.seq, err)
	}

	w.logger.Debug("fragment written",
		slog.Uint64("sequence", uint64(w.seq)),
		slog.Int("samples", len(w.pending)),
		slog.Uint64("base_time", w.baseTime))

	w.baseTime += w.pendingDur
	w.pending = nil
	w.pendingDur = 0
	w.seq++
	return nil
}

// Stop flushes remaining samples and closes the file. A writer that was
// never started is closed and reported as an illegal state.
func (w *Writer) Stop() error {
	if w.closed {
		return fmt.Errorf("already stopped: %w", codec.ErrIllegalState)
	}
	if !w.started {
		w.closed = true
		if err := w.file.Close(); err != nil {
			return errors.Join(fmt.Errorf("stop before start: %w", codec.ErrIllegalState), err)
		}
		return fmt.Errorf("stop before start: %w", codec.ErrIllegalState)
	}

	var err error
	if w.held != nil {
		err = w.appendSample(w.held.payload, w.frameDur)
		w.held = nil
	}
	if err == nil {
		err = w.flushFragment()
	}
	if err == nil {
		err = w.file.Sync()
	}

	w.closed = true
	if cerr := w.file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close %s: %w", w.path, cerr)
	}

	w.logger.Debug("writer stopped", slog.Int("samples", w.samples))
	return err
}

// Release closes the file without finalizing. Safe after Stop.
func (w *Writer) Release() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// Samples returns the number of samples committed so far
func (w *Writer) Samples() int {
	return w.samples
}
