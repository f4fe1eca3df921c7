// ABOUTME: Buffer-queue encoder engine over a synchronous frame encoder
// ABOUTME: Runs a worker goroutine that turns queued PCM slots into compressed chunks
// Package bufqueue adapts any frame encoder into a codec.EncoderEngine.
//
// The caller and the worker exchange fixed pools of input and output
// slots through channels. Output slots are the backpressure point: the
// worker blocks until the caller releases one.
package bufqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
	"github.com/Resonate-Protocol/pcmenc/pkg/audio/decode"
	"github.com/Resonate-Protocol/pcmenc/pkg/audio/encode"
	"github.com/Resonate-Protocol/pcmenc/pkg/codec"
)

const (
	DefaultInputSlots    = 4
	DefaultOutputSlots   = 8
	DefaultInputDuration = 100 * time.Millisecond
)

// FrameEncoderFunc builds the frame encoder for a configured format
type FrameEncoderFunc func(format codec.MediaFormat) (encode.FrameEncoder, error)

// Options sizes the slot pools
type Options struct {
	InputSlots    int
	OutputSlots   int
	InputDuration time.Duration // audio held by one input slot
}

func (o Options) withDefaults() Options {
	if o.InputSlots <= 0 {
		o.InputSlots = DefaultInputSlots
	}
	if o.OutputSlots <= 0 {
		o.OutputSlots = DefaultOutputSlots
	}
	if o.InputDuration <= 0 {
		o.InputDuration = DefaultInputDuration
	}
	return o
}

type engineState int

const (
	stateUninitialized engineState = iota
	stateConfigured
	stateRunning
	stateReleased
)

type inputJob struct {
	index int
	size  int
	pts   int64
	flags codec.BufferFlags
}

type outputEvent struct {
	kind  codec.OutputKind
	index int
	info  codec.BufferInfo
}

// Engine is a codec.EncoderEngine backed by a worker goroutine
type Engine struct {
	newFrame FrameEncoderFunc
	opts     Options

	mu       sync.Mutex
	state    engineState
	format   codec.MediaFormat
	outFmt   codec.MediaFormat
	encoder  encode.FrameEncoder
	pcm      *decode.PCMDecoder
	inOwned  []bool
	outOwned []bool
	err      error

	in  [][]byte
	out [][]byte

	freeIn   chan int
	queuedIn chan inputJob
	freeOut  chan int
	readyOut chan outputEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates an unconfigured engine
func New(newFrame FrameEncoderFunc, opts Options) *Engine {
	return &Engine{
		newFrame: newFrame,
		opts:     opts.withDefaults(),
	}
}

// Configure builds the frame encoder and sizes input slots
func (e *Engine) Configure(format codec.MediaFormat) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateReleased:
		return codec.ErrReleased
	case stateUninitialized:
	default:
		return fmt.Errorf("configure in state %d: %w", e.state, codec.ErrIllegalState)
	}

	if format.SampleRate <= 0 || format.ChannelCount <= 0 {
		return fmt.Errorf("invalid format %s: %w", format, codec.ErrUnsupported)
	}

	enc, err := e.newFrame(format)
	if err != nil {
		return fmt.Errorf("failed to create frame encoder for %s: %w", format, err)
	}
	pcm, err := decode.NewPCM(audio.PCM16(format.SampleRate, format.ChannelCount))
	if err != nil {
		enc.Close()
		return err
	}

	frameBytes := format.ChannelCount * audio.BytesPerSample16
	capacity := int(int64(format.SampleRate) * int64(e.opts.InputDuration) / int64(time.Second))
	if capacity < 1 {
		capacity = 1
	}
	capacity *= frameBytes

	e.in = make([][]byte, e.opts.InputSlots)
	for i := range e.in {
		e.in[i] = make([]byte, capacity)
	}
	e.out = make([][]byte, e.opts.OutputSlots)
	e.inOwned = make([]bool, e.opts.InputSlots)
	e.outOwned = make([]bool, e.opts.OutputSlots)

	e.format = format
	e.encoder = enc
	e.pcm = pcm
	e.outFmt = format
	e.outFmt.CodecConfig = enc.Header()
	e.outFmt.FrameSize = enc.FrameSize()
	e.state = stateConfigured
	return nil
}

// Start launches the worker
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateReleased:
		return codec.ErrReleased
	case stateConfigured:
	default:
		return fmt.Errorf("start in state %d: %w", e.state, codec.ErrIllegalState)
	}

	e.freeIn = make(chan int, len(e.in))
	e.queuedIn = make(chan inputJob, len(e.in))
	e.freeOut = make(chan int, len(e.out))
	// one extra for the format change event
	e.readyOut = make(chan outputEvent, len(e.out)+1)
	for i := range e.in {
		e.freeIn <- i
	}
	for i := range e.out {
		e.freeOut <- i
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	w := &worker{
		engine:    e,
		encoder:   e.encoder,
		pcm:       e.pcm,
		channels:  e.format.ChannelCount,
		rate:      int64(e.format.SampleRate),
		frameLen:  e.encoder.FrameSize() * e.format.ChannelCount,
		header:    e.outFmt.CodecConfig,
		scratch:   make([]int32, len(e.in[0])/audio.BytesPerSample16+1),
		formatDue: true,
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		w.run(e.ctx)
	}()

	e.state = stateRunning
	return nil
}

func (e *Engine) checkRunning() error {
	switch e.state {
	case stateRunning:
		return e.err
	case stateReleased:
		return codec.ErrReleased
	default:
		return fmt.Errorf("engine not started: %w", codec.ErrIllegalState)
	}
}

// DequeueInputBuffer waits up to timeout for a free input slot
func (e *Engine) DequeueInputBuffer(timeout time.Duration) (int, bool, error) {
	e.mu.Lock()
	err := e.checkRunning()
	e.mu.Unlock()
	if err != nil {
		return -1, false, err
	}

	idx, ok, err := receive(e.ctx, e.freeIn, timeout)
	if err != nil || !ok {
		return -1, false, err
	}

	e.mu.Lock()
	e.inOwned[idx] = true
	e.mu.Unlock()
	return idx, true, nil
}

// InputBuffer returns the writable region of an owned input slot
func (e *Engine) InputBuffer(index int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkRunning(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(e.in) || !e.inOwned[index] {
		return nil, fmt.Errorf("input slot %d not owned: %w", index, codec.ErrIllegalState)
	}
	return e.in[index], nil
}

// QueueInputBuffer hands the first size bytes of a slot to the worker
func (e *Engine) QueueInputBuffer(index, size int, presentationTimeUs int64, flags codec.BufferFlags) error {
	e.mu.Lock()
	if err := e.checkRunning(); err != nil {
		e.mu.Unlock()
		return err
	}
	if index < 0 || index >= len(e.in) || !e.inOwned[index] {
		e.mu.Unlock()
		return fmt.Errorf("input slot %d not owned: %w", index, codec.ErrIllegalState)
	}
	if size < 0 || size > len(e.in[index]) {
		e.mu.Unlock()
		return fmt.Errorf("input size %d exceeds slot capacity %d: %w", size, len(e.in[index]), codec.ErrIllegalState)
	}
	e.inOwned[index] = false
	e.mu.Unlock()

	// never blocks: at most len(in) slots exist
	e.queuedIn <- inputJob{index: index, size: size, pts: presentationTimeUs, flags: flags}
	return nil
}

// DequeueOutputBuffer waits up to timeout for a chunk or format change
func (e *Engine) DequeueOutputBuffer(timeout time.Duration) (codec.OutputResult, error) {
	e.mu.Lock()
	err := e.checkRunning()
	e.mu.Unlock()
	if err != nil {
		return codec.OutputResult{}, err
	}

	ev, ok, err := receive(e.ctx, e.readyOut, timeout)
	if err != nil {
		return codec.OutputResult{}, err
	}
	if !ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		// surface a worker failure instead of retrying forever
		if e.err != nil {
			return codec.OutputResult{}, e.err
		}
		return codec.OutputResult{Kind: codec.OutputRetry, Index: -1}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if ev.kind == codec.OutputFormatChanged {
		return codec.OutputResult{Kind: codec.OutputFormatChanged, Index: -1, Format: e.outFmt}, nil
	}
	e.outOwned[ev.index] = true
	return codec.OutputResult{Kind: codec.OutputReady, Index: ev.index, Info: ev.info}, nil
}

// OutputBuffer returns the bytes of an owned output slot
func (e *Engine) OutputBuffer(index int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateReleased {
		return nil, codec.ErrReleased
	}
	if index < 0 || index >= len(e.out) || !e.outOwned[index] {
		return nil, fmt.Errorf("output slot %d not owned: %w", index, codec.ErrIllegalState)
	}
	return e.out[index], nil
}

// OutputFormat returns the format announced by the format change event
func (e *Engine) OutputFormat() codec.MediaFormat {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outFmt
}

// ReleaseOutputBuffer returns an output slot to the worker
func (e *Engine) ReleaseOutputBuffer(index int) error {
	e.mu.Lock()
	if e.state == stateReleased {
		e.mu.Unlock()
		return codec.ErrReleased
	}
	if index < 0 || index >= len(e.out) || !e.outOwned[index] {
		e.mu.Unlock()
		return fmt.Errorf("output slot %d not owned: %w", index, codec.ErrIllegalState)
	}
	e.outOwned[index] = false
	e.mu.Unlock()

	e.freeOut <- index
	return nil
}

// Stop halts the worker and releases the frame encoder
func (e *Engine) Stop() error {
	var err error
	e.once.Do(func() {
		e.mu.Lock()
		cancel := e.cancel
		enc := e.encoder
		e.state = stateReleased
		e.mu.Unlock()

		if cancel != nil {
			cancel()
			e.wg.Wait()
		}
		if enc != nil {
			err = enc.Close()
		}
	})
	return err
}

// Release is Stop; both are safe to call more than once
func (e *Engine) Release() error {
	return e.Stop()
}

func (e *Engine) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err == nil {
		e.err = err
	}
}

// receive waits up to timeout for a value; timeout <= 0 polls once
func receive[T any](ctx context.Context, ch <-chan T, timeout time.Duration) (T, bool, error) {
	var zero T
	if timeout <= 0 {
		select {
		case v := <-ch:
			return v, true, nil
		case <-ctx.Done():
			return zero, false, codec.ErrReleased
		default:
			return zero, false, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v, true, nil
	case <-timer.C:
		return zero, false, nil
	case <-ctx.Done():
		return zero, false, codec.ErrReleased
	}
}
