// ABOUTME: Error taxonomy for encode sessions and the pump
// ABOUTME: Sentinel kinds wrapped with the failing operation and cause
package pump

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/pcmenc/pkg/codec"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrInvalidState  = errors.New("invalid state")
	ErrSourceRead    = errors.New("source read error")
	ErrEncode        = errors.New("encode error")
	ErrIO            = errors.New("io error")
)

// Error carries a sentinel Kind, the operation that failed and the cause
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// encoderError classifies an encoder engine failure
func encoderError(op string, err error) error {
	if errors.Is(err, codec.ErrReleased) || errors.Is(err, codec.ErrIllegalState) {
		return newError(ErrInvalidState, op, err)
	}
	return newError(ErrEncode, op, err)
}

// writerError classifies a container engine failure
func writerError(op string, err error) error {
	if errors.Is(err, codec.ErrIllegalState) {
		return newError(ErrInvalidState, op, err)
	}
	if errors.Is(err, codec.ErrUnsupported) {
		return newError(ErrConfiguration, op, err)
	}
	return newError(ErrIO, op, err)
}
