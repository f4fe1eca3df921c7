// ABOUTME: Root command and shared setup for pcmenc
// ABOUTME: Loads configuration and logging before any subcommand runs
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/Resonate-Protocol/pcmenc/internal/config"
	"github.com/Resonate-Protocol/pcmenc/internal/logging"
	"github.com/Resonate-Protocol/pcmenc/internal/version"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:     "pcmenc",
	Short:   "Encode PCM audio into compressed audio files",
	Version: version.Version,
	Long: `pcmenc compresses 16-bit PCM sources (raw, WAV, MP3, FLAC or a generated
tone) with Opus and writes them into a fragmented MP4 file. Several sources
are concatenated onto one continuous timeline.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the command tree
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// Not bound to viper: flags override file and env values only when
	// explicitly set, see config.ApplyFlags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./pcmenc.yaml or ~/.config/pcmenc/pcmenc.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	loaded.ApplyFlags(cmd.Flags())
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	cfg = loaded
	logger = logging.New(cfg.Logging)
	slog.SetDefault(logger)
	return nil
}
