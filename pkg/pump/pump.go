// ABOUTME: The encode pump
// ABOUTME: Feeds PCM in bounded batches, drains chunks into the writer, tracks timestamps
package pump

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Resonate-Protocol/pcmenc/pkg/codec"
)

const (
	// BytesPerSample is fixed: sources are 16-bit PCM
	BytesPerSample = 2

	DefaultDequeueTimeout = 5 * time.Millisecond
	DefaultInputPatience  = 1
	DefaultDrainPatience  = 400

	batchSeconds = 20
)

// DefaultBatchSize is 20 reads of 2*sampleRate bytes
func DefaultBatchSize(sampleRate int) int {
	return batchSeconds * BytesPerSample * sampleRate
}

// Options tunes a Pump. Zero values take defaults.
type Options struct {
	// BatchSize is the soft byte ceiling of one feed phase
	BatchSize int

	// DequeueTimeout bounds every slot dequeue
	DequeueTimeout time.Duration

	// InputPatience is how many empty input dequeues end a feed phase
	InputPatience int

	// DrainPatience is how many consecutive retries are tolerated while
	// waiting for the end-of-stream chunk
	DrainPatience int

	// OnBatch is called after every drain phase
	OnBatch func(State)

	Logger *slog.Logger
}

// State is the pump bookkeeping. It persists across Encode calls so
// sources share one timeline.
type State struct {
	TotalBytesRead      int64
	PresentationTimeUs  int64
	CurrentBatchBytes   int
	ChunksWritten       int64
	ConfigChunksDropped int64
	Sources             int
}

// Pump moves bytes from sources through one encoder into one writer.
// It is not safe for concurrent use.
type Pump struct {
	enc    *EncoderSession
	writer *WriterSession
	opts   Options
	logger *slog.Logger

	sampleRate int64
	state      State
}

// New creates a pump over a prepared encoder and an open writer
func New(enc *EncoderSession, writer *WriterSession, opts Options) *Pump {
	rate := enc.Config().SampleRate
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize(rate)
	}
	if opts.DequeueTimeout <= 0 {
		opts.DequeueTimeout = DefaultDequeueTimeout
	}
	if opts.InputPatience <= 0 {
		opts.InputPatience = DefaultInputPatience
	}
	if opts.DrainPatience <= 0 {
		opts.DrainPatience = DefaultDrainPatience
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pump{
		enc:        enc,
		writer:     writer,
		opts:       opts,
		logger:     logger.With(slog.String("component", "pump")),
		sampleRate: int64(rate),
	}
}

// State returns a snapshot of the bookkeeping
func (p *Pump) State() State {
	return p.state
}

// Encode consumes src to its end and closes it. Call once per source;
// timestamps continue from the previous call.
func (p *Pump) Encode(src io.ReadCloser) (err error) {
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = newError(ErrSourceRead, "close source", cerr)
		}
	}()

	if p.sampleRate <= 0 {
		return newError(ErrInvalidState, "encode", errors.New("encoder session not prepared"))
	}

	p.state.Sources++
	startBytes := p.state.TotalBytesRead
	p.logger.Debug("source started",
		slog.Int("source", p.state.Sources),
		slog.Int64("pts_us", p.state.PresentationTimeUs))

	eosSubmitted := false
	for {
		p.state.CurrentBatchBytes = 0
		if !eosSubmitted {
			eosSubmitted, err = p.feed(src)
			if err != nil {
				return err
			}
		}

		done, err := p.drain(eosSubmitted)
		if err != nil {
			return err
		}
		if p.opts.OnBatch != nil {
			p.opts.OnBatch(p.state)
		}
		if done {
			break
		}
	}

	p.logger.Info("source encoded",
		slog.Int("source", p.state.Sources),
		slog.Int64("bytes", p.state.TotalBytesRead-startBytes),
		slog.Int64("pts_us", p.state.PresentationTimeUs),
		slog.Int64("chunks", p.state.ChunksWritten))
	return nil
}

// feed fills input slots until the batch ceiling, end of source or the
// input pool runs dry. It reports whether end-of-stream was submitted.
func (p *Pump) feed(src io.Reader) (bool, error) {
	misses := 0
	for p.state.CurrentBatchBytes <= p.opts.BatchSize {
		idx, ok, err := p.enc.DequeueInputSlot(p.opts.DequeueTimeout)
		if err != nil {
			return false, err
		}
		if !ok {
			misses++
			if misses >= p.opts.InputPatience {
				return false, nil
			}
			continue
		}
		misses = 0

		buf, err := p.enc.InputSlot(idx)
		if err != nil {
			return false, err
		}

		n, rerr := io.ReadAtLeast(src, buf, 1)
		switch {
		case rerr == io.EOF:
			if err := p.enc.SubmitInput(idx, 0, p.state.PresentationTimeUs, true); err != nil {
				return false, err
			}
			return true, nil
		case rerr != nil:
			// hand the slot back empty so the pool is not starved
			if err := p.enc.SubmitInput(idx, 0, p.state.PresentationTimeUs, false); err != nil {
				return false, errors.Join(newError(ErrSourceRead, "read source", rerr), err)
			}
			return false, newError(ErrSourceRead, "read source", rerr)
		}

		if err := p.enc.SubmitInput(idx, n, p.state.PresentationTimeUs, false); err != nil {
			return false, err
		}
		p.state.TotalBytesRead += int64(n)
		p.state.CurrentBatchBytes += n
		p.state.PresentationTimeUs = 1_000_000 * (p.state.TotalBytesRead / BytesPerSample) / p.sampleRate
	}
	return false, nil
}

// drain empties the output queue. Before end-of-stream it stops at the
// first retry; after, it waits for the end-of-stream chunk.
func (p *Pump) drain(eosSubmitted bool) (bool, error) {
	retries := 0
	for {
		res, err := p.enc.DequeueOutputChunk(p.opts.DequeueTimeout)
		if err != nil {
			return false, err
		}

		switch res.Kind {
		case codec.OutputRetry:
			if !eosSubmitted {
				return false, nil
			}
			retries++
			if retries >= p.opts.DrainPatience {
				return false, newError(ErrEncode, "drain",
					fmt.Errorf("no end-of-stream chunk after %d retries", retries))
			}

		case codec.OutputFormatChanged:
			retries = 0
			if err := p.bindTrack(res.Format); err != nil {
				return false, err
			}

		case codec.OutputReady:
			retries = 0
			eos, err := p.handleChunk(res)
			if err != nil {
				return false, err
			}
			if eos && eosSubmitted {
				return true, nil
			}
		}
	}
}

func (p *Pump) bindTrack(format codec.MediaFormat) error {
	if _, err := p.writer.AddTrack(format); err != nil {
		return err
	}
	if err := p.writer.Start(); err != nil {
		return err
	}
	p.logger.Debug("output format bound", slog.String("format", format.String()))
	return nil
}

// handleChunk writes or discards one output chunk and always releases
// its slot. It reports whether the chunk carried end-of-stream.
func (p *Pump) handleChunk(res codec.OutputResult) (bool, error) {
	info := res.Info
	eos := info.Flags.Has(codec.FlagEndOfStream)

	var werr error
	if info.Flags.Has(codec.FlagCodecConfig) || info.Size == 0 {
		if !eos {
			p.state.ConfigChunksDropped++
		}
	} else {
		data, err := p.enc.OutputChunk(res.Index)
		if err != nil {
			return false, err
		}
		werr = p.writer.WriteSample(p.writer.TrackID(), data, info)
		if werr == nil {
			p.state.ChunksWritten++
		}
	}

	if err := p.enc.ReleaseOutputChunk(res.Index); err != nil {
		return false, errors.Join(werr, err)
	}
	return eos, werr
}
