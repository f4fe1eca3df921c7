// ABOUTME: Engine interfaces for buffer-queue encoders and container writers
// ABOUTME: Output dequeue returns an enumerated result instead of magic indexes
package codec

import (
	"errors"
	"time"
)

var (
	// ErrReleased is returned by any engine call after Stop or Release
	ErrReleased = errors.New("engine released")

	// ErrIllegalState is returned for calls made out of lifecycle order
	// or on slots the caller does not own
	ErrIllegalState = errors.New("illegal engine state")

	// ErrUnsupported is returned when no engine handles a mime type or format
	ErrUnsupported = errors.New("unsupported format")
)

// OutputKind enumerates output dequeue results
type OutputKind int

const (
	// OutputReady means Index holds a compressed chunk described by Info
	OutputReady OutputKind = iota
	// OutputRetry means nothing was ready within the timeout
	OutputRetry
	// OutputFormatChanged means Format is the final output format
	OutputFormatChanged
)

func (k OutputKind) String() string {
	switch k {
	case OutputReady:
		return "ready"
	case OutputRetry:
		return "retry"
	case OutputFormatChanged:
		return "format-changed"
	default:
		return "unknown"
	}
}

// OutputResult is the outcome of one output dequeue
type OutputResult struct {
	Kind   OutputKind
	Index  int
	Info   BufferInfo
	Format MediaFormat
}

// EncoderEngine is a stateful encoder exchanging slots with its caller.
// A slot belongs to the caller between a successful dequeue and the
// matching queue or release call, and to the engine otherwise.
type EncoderEngine interface {
	Configure(format MediaFormat) error
	Start() error

	// DequeueInputBuffer waits up to timeout for a free input slot.
	// ok is false when none became available.
	DequeueInputBuffer(timeout time.Duration) (index int, ok bool, err error)
	InputBuffer(index int) ([]byte, error)
	QueueInputBuffer(index, size int, presentationTimeUs int64, flags BufferFlags) error

	DequeueOutputBuffer(timeout time.Duration) (OutputResult, error)
	OutputBuffer(index int) ([]byte, error)
	OutputFormat() MediaFormat
	ReleaseOutputBuffer(index int) error

	Stop() error
	Release() error
}

// ContainerEngine writes a single-track media file
type ContainerEngine interface {
	AddTrack(format MediaFormat) (int, error)
	Start() error
	WriteSampleData(track int, data []byte, info BufferInfo) error
	Stop() error
	Release() error
}
