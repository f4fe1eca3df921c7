// ABOUTME: encode command
// ABOUTME: Runs one job through the queue with optional progress TUI
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/pcmenc/internal/fetch"
	"github.com/Resonate-Protocol/pcmenc/internal/job"
	"github.com/Resonate-Protocol/pcmenc/internal/logging"
	"github.com/Resonate-Protocol/pcmenc/internal/ui"
	"github.com/spf13/cobra"
)

var (
	outputPath string
	repeat     int
	showTUI    bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode SOURCE...",
	Short: "Encode one or more sources into a single file",
	Long: `Encode concatenates SOURCEs in order into one output file. A source is a
file path (.wav, .mp3, .flac, anything else is raw s16le in the configured
format), an http(s) URL, or tone:<hz>:<duration> such as tone:440:2s.`,
	Example: `  pcmenc encode -o out.m4a intro.wav body.flac
  pcmenc encode --repeat 10 --sample-rate 16000 clip.wav
  pcmenc encode --tui tone:440:30s`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

func init() {
	f := encodeCmd.Flags()
	f.StringVarP(&outputPath, "output", "o", "", "output file (default: temp file in the output dir)")
	f.IntVar(&repeat, "repeat", 1, "encode the source list this many times")
	f.BoolVar(&showTUI, "tui", false, "show a progress view")

	f.String("mime", "", "encoder mime type")
	f.Int("sample-rate", 0, "PCM sample rate in Hz")
	f.Int("channels", 0, "PCM channel count")
	f.Int("bitrate", 0, "target bitrate in bits per second")
	f.String("profile", "", "encoder profile (default, opus-audio, opus-voip, opus-lowdelay)")
	f.Int("batch-size", 0, "bytes fed per batch before draining (0: 20s of audio)")
	f.Bool("conform", false, "convert sources to the configured rate and channel count")
	f.String("output-dir", "", "directory for temp output files")
	f.Duration("fragment", 0, "MP4 fragment duration")

	rootCmd.AddCommand(encodeCmd)
}

func runEncode(cmd *cobra.Command, args []string) error {
	runLogger := logger
	if showTUI {
		runLogger = logging.Discard()
	}

	fetcher, err := fetch.New(cfg.Fetch.CacheDir, cfg.Fetch.Timeout, runLogger)
	if err != nil {
		return err
	}

	runner := job.NewRunner(cfg, job.DefaultRegistry(cfg, runLogger), fetcher, runLogger)
	queue := job.NewQueue(runner, 1)
	defer queue.Close()

	j := job.New(args, repeat, outputPath)
	results := queue.Submit(j)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	finished := make(chan struct{})
	defer close(finished)

	var quit <-chan struct{}
	if showTUI {
		enc := cfg.EncoderSettings()
		t := ui.New(displayOutput(j), fmt.Sprintf("%s %dHz %dch %dbps", enc.MimeType, enc.SampleRate, enc.ChannelCount, enc.Bitrate))
		quit = t.QuitChan()
		go cancelOn(ctx, quit, finished, queue)
		if err := t.Run(queue.Progress()); err != nil {
			return fmt.Errorf("progress view: %w", err)
		}
	} else {
		go cancelOn(ctx, nil, finished, queue)
		go logProgress(queue.Progress())
	}

	res := <-results
	if res.Err != nil {
		return res.Err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d sources\t%d bytes\n",
		res.OutputPath, res.Duration(), res.State.Sources, res.State.TotalBytesRead)
	return nil
}

func displayOutput(j job.Job) string {
	if j.OutputPath != "" {
		return j.OutputPath
	}
	return cfg.Output.Dir
}

// cancelOn aborts the queue on a signal or a TUI quit
func cancelOn(ctx context.Context, quit <-chan struct{}, finished <-chan struct{}, queue *job.Queue) {
	select {
	case <-ctx.Done():
	case <-quit:
	case <-finished:
		return
	}
	logger.Warn("cancelling encode after the current source")
	queue.Cancel()
}

func logProgress(events <-chan job.Event) {
	for ev := range events {
		if ev.Done {
			continue
		}
		logger.Debug("progress",
			slog.String("source", ev.Source),
			slog.Int("index", ev.SourceIndex),
			slog.Int("count", ev.SourceCount),
			slog.Int64("bytes", ev.State.TotalBytesRead),
			slog.Int64("pts_us", ev.State.PresentationTimeUs))
	}
}
