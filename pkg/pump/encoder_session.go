// ABOUTME: Encoder session lifecycle
// ABOUTME: Prepare, slot exchange and stop around a registered encoder engine
package pump

import (
	"errors"
	"log/slog"
	"time"

	"github.com/Resonate-Protocol/pcmenc/pkg/codec"
)

// EncoderSession owns one encoder engine from prepare to stop. It must
// not be reused after Stop.
type EncoderSession struct {
	registry *codec.Registry
	logger   *slog.Logger

	engine   codec.EncoderEngine
	config   EncoderConfig
	prepared bool
	stopped  bool
}

// NewEncoderSession creates an empty session
func NewEncoderSession(registry *codec.Registry, logger *slog.Logger) *EncoderSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &EncoderSession{
		registry: registry,
		logger:   logger.With(slog.String("component", "encoder")),
	}
}

// Prepare creates, configures and starts the encoder. The output path
// hint is checked before anything is allocated.
func (s *EncoderSession) Prepare(cfg EncoderConfig, outputPathHint string) error {
	if s.stopped || s.prepared {
		return newError(ErrInvalidState, "prepare", errors.New("session already prepared"))
	}
	if outputPathHint == "" {
		return newError(ErrConfiguration, "prepare", errors.New("output path is required"))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	engine, err := s.registry.NewEncoder(cfg.MimeType)
	if err != nil {
		return newError(ErrConfiguration, "prepare", err)
	}
	if err := engine.Configure(cfg.MediaFormat()); err != nil {
		engine.Release()
		return newError(ErrConfiguration, "configure", err)
	}
	if err := engine.Start(); err != nil {
		engine.Release()
		return newError(ErrEncode, "start", err)
	}

	s.engine = engine
	s.config = cfg
	s.prepared = true

	s.logger.Info("encoder prepared",
		slog.String("mime", cfg.MimeType),
		slog.Int("sample_rate", cfg.SampleRate),
		slog.Int("channels", cfg.ChannelCount),
		slog.Int("bitrate", cfg.Bitrate),
		slog.String("profile", cfg.Profile.String()),
		slog.String("output", outputPathHint))
	return nil
}

// Config returns the prepared configuration
func (s *EncoderSession) Config() EncoderConfig {
	return s.config
}

func (s *EncoderSession) check(op string) error {
	if s.stopped {
		return newError(ErrInvalidState, op, errors.New("session stopped"))
	}
	if !s.prepared {
		return newError(ErrInvalidState, op, errors.New("session not prepared"))
	}
	return nil
}

// DequeueInputSlot waits up to timeout for a free input slot; ok is false
// when the pool stayed saturated
func (s *EncoderSession) DequeueInputSlot(timeout time.Duration) (index int, ok bool, err error) {
	if err := s.check("dequeue input"); err != nil {
		return -1, false, err
	}
	index, ok, err = s.engine.DequeueInputBuffer(timeout)
	if err != nil {
		return -1, false, encoderError("dequeue input", err)
	}
	return index, ok, nil
}

// InputSlot returns the writable bytes of a dequeued input slot
func (s *EncoderSession) InputSlot(index int) ([]byte, error) {
	if err := s.check("input slot"); err != nil {
		return nil, err
	}
	buf, err := s.engine.InputBuffer(index)
	if err != nil {
		return nil, encoderError("input slot", err)
	}
	return buf, nil
}

// SubmitInput queues the first n bytes of a slot. n == 0 with eos set
// tells the encoder the current source has ended.
func (s *EncoderSession) SubmitInput(index, n int, presentationTimeUs int64, eos bool) error {
	if err := s.check("submit input"); err != nil {
		return err
	}
	var flags codec.BufferFlags
	if eos {
		flags = codec.FlagEndOfStream
	}
	if err := s.engine.QueueInputBuffer(index, n, presentationTimeUs, flags); err != nil {
		return encoderError("submit input", err)
	}
	return nil
}

// DequeueOutputChunk returns a ready chunk, a retry or a format change
func (s *EncoderSession) DequeueOutputChunk(timeout time.Duration) (codec.OutputResult, error) {
	if err := s.check("dequeue output"); err != nil {
		return codec.OutputResult{}, err
	}
	res, err := s.engine.DequeueOutputBuffer(timeout)
	if err != nil {
		return codec.OutputResult{}, encoderError("dequeue output", err)
	}
	return res, nil
}

// OutputChunk returns the bytes of a ready output slot
func (s *EncoderSession) OutputChunk(index int) ([]byte, error) {
	if err := s.check("output chunk"); err != nil {
		return nil, err
	}
	buf, err := s.engine.OutputBuffer(index)
	if err != nil {
		return nil, encoderError("output chunk", err)
	}
	return buf, nil
}

// ReleaseOutputChunk hands an output slot back to the encoder
func (s *EncoderSession) ReleaseOutputChunk(index int) error {
	if err := s.check("release output"); err != nil {
		return err
	}
	if err := s.engine.ReleaseOutputBuffer(index); err != nil {
		return encoderError("release output", err)
	}
	return nil
}

// Stop halts and releases the encoder
func (s *EncoderSession) Stop() error {
	if err := s.check("stop"); err != nil {
		return err
	}
	s.stopped = true

	err := s.engine.Stop()
	if rerr := s.engine.Release(); err == nil {
		err = rerr
	}
	if err != nil {
		return newError(ErrEncode, "stop", err)
	}
	s.logger.Debug("encoder stopped")
	return nil
}

// Release frees the engine without further checks. Safe to call in any
// state and more than once.
func (s *EncoderSession) Release() {
	s.stopped = true
	if s.engine != nil {
		s.engine.Release()
	}
}
