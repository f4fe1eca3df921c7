// ABOUTME: Container writer session lifecycle
// ABOUTME: Enforces track-once, start-before-write and single stop
package pump

import (
	"errors"
	"log/slog"

	"github.com/Resonate-Protocol/pcmenc/pkg/codec"
)

// WriterSession owns one container engine bound to one output file
type WriterSession struct {
	engine codec.ContainerEngine
	path   string
	logger *slog.Logger

	trackID  int
	hasTrack bool
	started  bool
	stopped  bool
}

// OpenWriter creates a container engine for path
func OpenWriter(registry *codec.Registry, path, containerFormat string, logger *slog.Logger) (*WriterSession, error) {
	if path == "" {
		return nil, newError(ErrIO, "open writer", errors.New("output path is required"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	engine, err := registry.NewContainer(containerFormat, path)
	if err != nil {
		if errors.Is(err, codec.ErrUnsupported) {
			return nil, newError(ErrConfiguration, "open writer", err)
		}
		return nil, newError(ErrIO, "open writer", err)
	}

	return &WriterSession{
		engine:  engine,
		path:    path,
		logger:  logger.With(slog.String("component", "writer"), slog.String("path", path)),
		trackID: -1,
	}, nil
}

// Path returns the output file path
func (w *WriterSession) Path() string {
	return w.path
}

// TrackID returns the bound track, or -1
func (w *WriterSession) TrackID() int {
	return w.trackID
}

// Started reports whether Start succeeded
func (w *WriterSession) Started() bool {
	return w.started
}

// AddTrack binds the audio track. Allowed once, before Start.
func (w *WriterSession) AddTrack(format codec.MediaFormat) (int, error) {
	switch {
	case w.stopped:
		return -1, newError(ErrInvalidState, "add track", errors.New("writer stopped"))
	case w.hasTrack:
		return -1, newError(ErrInvalidState, "add track", errors.New("track already added"))
	}

	id, err := w.engine.AddTrack(format)
	if err != nil {
		return -1, writerError("add track", err)
	}
	w.trackID = id
	w.hasTrack = true
	w.logger.Info("track added", slog.Int("track", id), slog.String("format", format.String()))
	return id, nil
}

// Start finalizes the header; samples may follow
func (w *WriterSession) Start() error {
	switch {
	case w.stopped:
		return newError(ErrInvalidState, "start", errors.New("writer stopped"))
	case !w.hasTrack:
		return newError(ErrInvalidState, "start", errors.New("no track added"))
	case w.started:
		return newError(ErrInvalidState, "start", errors.New("already started"))
	}

	if err := w.engine.Start(); err != nil {
		return writerError("start", err)
	}
	w.started = true
	return nil
}

// WriteSample appends one compressed frame
func (w *WriterSession) WriteSample(track int, data []byte, info codec.BufferInfo) error {
	switch {
	case w.stopped:
		return newError(ErrInvalidState, "write sample", errors.New("writer stopped"))
	case !w.started:
		return newError(ErrInvalidState, "write sample", errors.New("writer not started"))
	case track != w.trackID:
		return newError(ErrInvalidState, "write sample", errors.New("unknown track"))
	}

	if err := w.engine.WriteSampleData(track, data, info); err != nil {
		return writerError("write sample", err)
	}
	return nil
}

// Stop finalizes and closes the file. Stopping a writer that never
// started closes the file and reports ErrInvalidState.
func (w *WriterSession) Stop() error {
	if w.stopped {
		return newError(ErrInvalidState, "stop", errors.New("writer already stopped"))
	}
	w.stopped = true

	err := w.engine.Stop()
	w.engine.Release()
	if !w.started {
		return newError(ErrInvalidState, "stop", errors.Join(errors.New("writer never started"), err))
	}
	if err != nil {
		return writerError("stop", err)
	}
	w.logger.Debug("writer stopped")
	return nil
}

// Release closes the file without finalizing. Safe in any state.
func (w *WriterSession) Release() {
	w.stopped = true
	w.engine.Release()
}
