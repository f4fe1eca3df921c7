// ABOUTME: Worker loop for the buffer-queue engine
// ABOUTME: Accumulates PCM into whole frames and emits timestamped chunks
package bufqueue

import (
	"context"
	"fmt"

	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
	"github.com/Resonate-Protocol/pcmenc/pkg/audio/decode"
	"github.com/Resonate-Protocol/pcmenc/pkg/audio/encode"
	"github.com/Resonate-Protocol/pcmenc/pkg/codec"
)

// anchor ties an interleaved sample index in pending to the PTS of the
// input slot that started there
type anchor struct {
	start int
	pts   int64
}

type worker struct {
	engine   *Engine
	encoder  encode.FrameEncoder
	pcm      *decode.PCMDecoder
	channels int
	rate     int64
	frameLen int // interleaved samples per frame
	header   []byte

	pending []int32
	anchors []anchor
	scratch []int32
	carry   []byte // odd trailing byte split across slots

	formatDue bool
}

func (w *worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.engine.queuedIn:
			if err := w.process(ctx, job); err != nil {
				if ctx.Err() == nil {
					w.engine.fail(err)
				}
				return
			}
			w.engine.freeIn <- job.index
		}
	}
}

func (w *worker) process(ctx context.Context, job inputJob) error {
	if w.formatDue {
		w.formatDue = false
		w.engine.readyOut <- outputEvent{kind: codec.OutputFormatChanged, index: -1}
		if len(w.header) > 0 {
			if err := w.emit(ctx, w.header, job.pts, codec.FlagCodecConfig); err != nil {
				return err
			}
		}
	}

	if job.size > 0 {
		data := w.engine.in[job.index][:job.size]
		if len(w.carry) > 0 {
			data = append(w.carry, data...)
		}
		n := w.pcm.DecodeInto(w.scratch, data)
		w.carry = append(w.carry[:0], data[n*audio.BytesPerSample16:]...)
		if n > 0 {
			w.anchors = append(w.anchors, anchor{start: len(w.pending), pts: job.pts})
			w.pending = append(w.pending, w.scratch[:n]...)
		}
	}

	for len(w.pending) >= w.frameLen {
		if err := w.encodeFrame(ctx, w.pending[:w.frameLen]); err != nil {
			return err
		}
	}

	if !job.flags.Has(codec.FlagEndOfStream) {
		return nil
	}

	if len(w.pending) > 0 {
		frame := make([]int32, w.frameLen)
		copy(frame, w.pending)
		if err := w.encodeFrame(ctx, frame); err != nil {
			return err
		}
	}
	w.pending = w.pending[:0]
	w.anchors = w.anchors[:0]
	w.carry = w.carry[:0]

	return w.emit(ctx, nil, job.pts, codec.FlagEndOfStream)
}

// encodeFrame encodes one frame taken from the head of pending
func (w *worker) encodeFrame(ctx context.Context, frame []int32) error {
	pts := w.headPTS()

	packet, err := w.encoder.Encode(frame)
	if err != nil {
		return fmt.Errorf("frame encode failed at %dus: %w", pts, err)
	}

	w.consume(w.frameLen)
	return w.emit(ctx, packet, pts, codec.FlagKeyFrame)
}

// headPTS is the PTS of pending[0]: its slot PTS plus its offset in that slot
func (w *worker) headPTS() int64 {
	if len(w.anchors) == 0 {
		return 0
	}
	a := w.anchors[0]
	offset := int64(-a.start / w.channels)
	return a.pts + offset*1_000_000/w.rate
}

// consume drops n samples from pending and retires passed anchors
func (w *worker) consume(n int) {
	if n >= len(w.pending) {
		w.pending = w.pending[:0]
	} else {
		w.pending = append(w.pending[:0], w.pending[n:]...)
	}

	for i := range w.anchors {
		w.anchors[i].start -= n
	}
	for len(w.anchors) > 1 && w.anchors[1].start <= 0 {
		w.anchors = w.anchors[1:]
	}
	if len(w.pending) == 0 {
		w.anchors = w.anchors[:0]
	}
}

// emit copies data into a free output slot, blocking until one exists
func (w *worker) emit(ctx context.Context, data []byte, pts int64, flags codec.BufferFlags) error {
	var idx int
	select {
	case idx = <-w.engine.freeOut:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.engine.out[idx] = append(w.engine.out[idx][:0], data...)
	w.engine.readyOut <- outputEvent{
		kind:  codec.OutputReady,
		index: idx,
		info: codec.BufferInfo{
			Size:               len(data),
			Flags:              flags,
			PresentationTimeUs: pts,
		},
	}
	return nil
}
