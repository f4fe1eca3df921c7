// ABOUTME: Job runner wiring sources through the encode pump
// ABOUTME: Owns session setup, teardown and output cleanup on failure
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Resonate-Protocol/pcmenc/internal/config"
	"github.com/Resonate-Protocol/pcmenc/internal/fetch"
	"github.com/Resonate-Protocol/pcmenc/pkg/audio"
	"github.com/Resonate-Protocol/pcmenc/pkg/codec"
	"github.com/Resonate-Protocol/pcmenc/pkg/codec/bufqueue"
	"github.com/Resonate-Protocol/pcmenc/pkg/codec/opus"
	"github.com/Resonate-Protocol/pcmenc/pkg/container/mp4mux"
	"github.com/Resonate-Protocol/pcmenc/pkg/pump"
	"github.com/Resonate-Protocol/pcmenc/pkg/source"
)

// ErrNoSources is returned for a job without sources
var ErrNoSources = errors.New("job has no sources")

// DefaultRegistry registers the opus encoder and the MP4 container
func DefaultRegistry(cfg *config.Config, logger *slog.Logger) *codec.Registry {
	r := codec.NewRegistry()
	opus.Register(r, bufqueue.Options{})
	mp4mux.Register(r, mp4mux.Options{
		FragmentDuration: cfg.Output.FragmentDuration,
		Logger:           logger,
	})
	return r
}

// Runner executes jobs one at a time
type Runner struct {
	cfg      *config.Config
	registry *codec.Registry
	fetcher  *fetch.Fetcher
	logger   *slog.Logger
}

// NewRunner creates a runner. A nil fetcher rejects remote sources.
func NewRunner(cfg *config.Config, registry *codec.Registry, fetcher *fetch.Fetcher, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:      cfg,
		registry: registry,
		fetcher:  fetcher,
		logger:   logger.With(slog.String("component", "job")),
	}
}

// Run encodes job synchronously. Cancellation is checked between
// sources; a source already in the pump runs to completion.
func (r *Runner) Run(ctx context.Context, j Job) (Result, error) {
	return r.run(ctx, j, nil)
}

func (r *Runner) run(ctx context.Context, j Job, progress func(Event)) (res Result, err error) {
	started := time.Now()
	res.JobID = j.ID
	logger := r.logger.With(slog.String("job_id", j.ID.String()))

	emit := func(ev Event) {
		if progress != nil {
			ev.JobID = j.ID
			progress(ev)
		}
	}
	defer func() {
		res.Elapsed = time.Since(started)
		res.Err = err
		emit(Event{State: res.State, Done: true, Err: err})
	}()

	passes := j.passes()
	if len(passes) == 0 {
		return res, ErrNoSources
	}

	outPath, err := r.outputPath(j)
	if err != nil {
		return res, err
	}
	res.OutputPath = outPath

	// a reserved temp file is ours to remove; an explicit path only
	// once the writer has truncated it
	reserved := j.OutputPath == ""
	discard := func() {
		if reserved {
			os.Remove(outPath)
		}
	}

	enc := pump.NewEncoderSession(r.registry, logger)
	if err := enc.Prepare(r.cfg.EncoderSettings(), outPath); err != nil {
		discard()
		return res, err
	}

	writer, err := pump.OpenWriter(r.registry, outPath, r.cfg.Output.Container, logger)
	if err != nil {
		enc.Release()
		discard()
		return res, err
	}

	defer func() {
		if err != nil {
			enc.Release()
			writer.Release()
			if rmErr := os.Remove(outPath); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Warn("failed to remove partial output", slog.String("path", outPath), slog.Any("error", rmErr))
			}
		}
	}()

	current := 0
	opts := r.cfg.PumpOptions()
	opts.Logger = logger
	opts.OnBatch = func(s pump.State) {
		emit(Event{Source: passes[current], SourceIndex: current, SourceCount: len(passes), State: s})
	}
	p := pump.New(enc, writer, opts)

	want := audio.PCM16(r.cfg.Encoder.SampleRate, r.cfg.Encoder.Channels)
	for i, spec := range passes {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		current = i
		emit(Event{Source: spec, SourceIndex: i, SourceCount: len(passes), State: p.State()})

		src, err := r.open(ctx, spec, want, logger)
		if err != nil {
			return res, err
		}
		if err := p.Encode(src); err != nil {
			res.State = p.State()
			return res, fmt.Errorf("source %d (%s): %w", i, spec, err)
		}
	}
	res.State = p.State()

	if err := enc.Stop(); err != nil {
		return res, err
	}
	if err := writer.Stop(); err != nil {
		return res, err
	}

	logger.Info("job complete",
		slog.String("output", outPath),
		slog.Int("sources", res.State.Sources),
		slog.Int64("bytes", res.State.TotalBytesRead),
		slog.Duration("audio", res.Duration()))
	return res, nil
}

// outputPath returns the explicit path or reserves a temp file
func (r *Runner) outputPath(j Job) (string, error) {
	if j.OutputPath != "" {
		return j.OutputPath, nil
	}

	if err := os.MkdirAll(r.cfg.Output.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.CreateTemp(r.cfg.Output.Dir, r.cfg.Output.Prefix+"_*.m4a")
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	f.Close()
	return filepath.Clean(f.Name()), nil
}

// open resolves and opens one source, warning on framing mismatch
func (r *Runner) open(ctx context.Context, spec string, want audio.Format, logger *slog.Logger) (io.ReadCloser, error) {
	path := spec
	if fetch.IsRemote(spec) {
		if r.fetcher == nil {
			return nil, fmt.Errorf("remote source %s: fetching is disabled", spec)
		}
		var err error
		if path, err = r.fetcher.Resolve(ctx, spec); err != nil {
			return nil, err
		}
	}

	src, err := source.Open(path, want)
	if err != nil {
		return nil, &pump.Error{Kind: pump.ErrSourceRead, Op: "open source", Err: err}
	}

	got, ok := source.FormatOf(src)
	if !ok || got.Matches(want) {
		return src, nil
	}

	attrs := []any{
		slog.String("source", spec),
		slog.String("source_format", got.String()),
		slog.String("encoder_format", want.String()),
	}
	if !r.cfg.Source.Conform {
		logger.Warn("source framing differs from encoder config; audio will play at the wrong speed", attrs...)
		return src, nil
	}

	conformed, err := source.Conform(src, got, want)
	if err != nil {
		src.Close()
		return nil, &pump.Error{Kind: pump.ErrSourceRead, Op: "conform source", Err: err}
	}
	logger.Info("converting source framing", attrs...)
	return conformed, nil
}
