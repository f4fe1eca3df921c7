// ABOUTME: Configuration loading for pcmenc
// ABOUTME: Merges defaults, a YAML file, PCMENC_ env vars and changed CLI flags
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Resonate-Protocol/pcmenc/pkg/codec"
	"github.com/Resonate-Protocol/pcmenc/pkg/pump"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultSampleRate       = 48000
	defaultChannels         = 1
	defaultBitrate          = 64000
	defaultFragmentDuration = 2 * time.Second
	defaultFetchTimeout     = 60 * time.Second
	envPrefix               = "PCMENC"
)

// Config holds all configuration for pcmenc
type Config struct {
	Encoder EncoderConfig `mapstructure:"encoder"`
	Pump    PumpConfig    `mapstructure:"pump"`
	Source  SourceConfig  `mapstructure:"source"`
	Output  OutputConfig  `mapstructure:"output"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// EncoderConfig selects the codec and its parameters
type EncoderConfig struct {
	MimeType   string `mapstructure:"mime_type"`
	SampleRate int    `mapstructure:"sample_rate"`
	Channels   int    `mapstructure:"channels"`
	Bitrate    int    `mapstructure:"bitrate"`
	Profile    string `mapstructure:"profile"`
}

// PumpConfig tunes the feed/drain loop. Zero values use pump defaults.
type PumpConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`
	DequeueTimeout time.Duration `mapstructure:"dequeue_timeout"`
	InputPatience  int           `mapstructure:"input_patience"`
	DrainPatience  int           `mapstructure:"drain_patience"`
}

// SourceConfig controls how sources are opened
type SourceConfig struct {
	// Conform converts sources whose rate or channel count differs from
	// the encoder instead of encoding them at the wrong speed
	Conform bool `mapstructure:"conform"`
}

// OutputConfig controls where encoded files land
type OutputConfig struct {
	Dir              string        `mapstructure:"dir"`
	Prefix           string        `mapstructure:"prefix"`
	Container        string        `mapstructure:"container"`
	FragmentDuration time.Duration `mapstructure:"fragment_duration"`
}

// FetchConfig controls remote source downloads
type FetchConfig struct {
	CacheDir string        `mapstructure:"cache_dir"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds slog settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// Environment variables use the PCMENC_ prefix with underscores for
// nesting, e.g. PCMENC_ENCODER_SAMPLE_RATE=16000.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("pcmenc")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "pcmenc"))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults registers every key so env overrides resolve
func SetDefaults(v *viper.Viper) {
	v.SetDefault("encoder.mime_type", codec.MimeOpus)
	v.SetDefault("encoder.sample_rate", defaultSampleRate)
	v.SetDefault("encoder.channels", defaultChannels)
	v.SetDefault("encoder.bitrate", defaultBitrate)
	v.SetDefault("encoder.profile", "")

	v.SetDefault("pump.batch_size", 0)
	v.SetDefault("pump.dequeue_timeout", pump.DefaultDequeueTimeout)
	v.SetDefault("pump.input_patience", pump.DefaultInputPatience)
	v.SetDefault("pump.drain_patience", pump.DefaultDrainPatience)

	v.SetDefault("source.conform", false)

	v.SetDefault("output.dir", filepath.Join(os.TempDir(), "pcmenc"))
	v.SetDefault("output.prefix", "encoded")
	v.SetDefault("output.container", codec.ContainerMPEG4)
	v.SetDefault("output.fragment_duration", defaultFragmentDuration)

	v.SetDefault("fetch.cache_dir", filepath.Join(os.TempDir(), "pcmenc-sources"))
	v.SetDefault("fetch.timeout", defaultFetchTimeout)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// ApplyFlags overrides values with flags the user explicitly set.
// Unknown flag names are ignored so commands can register a subset.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) {
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if fs.Changed(name) {
			*dst, _ = fs.GetInt(name)
		}
	}
	flag := func(name string, dst *bool) {
		if fs.Changed(name) {
			*dst, _ = fs.GetBool(name)
		}
	}
	dur := func(name string, dst *time.Duration) {
		if fs.Changed(name) {
			*dst, _ = fs.GetDuration(name)
		}
	}

	str("mime", &c.Encoder.MimeType)
	num("sample-rate", &c.Encoder.SampleRate)
	num("channels", &c.Encoder.Channels)
	num("bitrate", &c.Encoder.Bitrate)
	str("profile", &c.Encoder.Profile)
	num("batch-size", &c.Pump.BatchSize)
	flag("conform", &c.Source.Conform)
	str("output-dir", &c.Output.Dir)
	dur("fragment", &c.Output.FragmentDuration)
	str("log-level", &c.Logging.Level)
	str("log-format", &c.Logging.Format)

	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []error

	if err := c.EncoderSettings().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("encoder: %w", err))
	}
	if _, err := codec.ParseProfile(c.Encoder.Profile); err != nil {
		errs = append(errs, fmt.Errorf("encoder.profile: %w", err))
	}
	if c.Pump.BatchSize < 0 {
		errs = append(errs, errors.New("pump.batch_size must not be negative"))
	}
	if c.Output.Dir == "" {
		errs = append(errs, errors.New("output.dir is required"))
	}
	if c.Output.Container == "" {
		errs = append(errs, errors.New("output.container is required"))
	}
	if c.Output.FragmentDuration <= 0 {
		errs = append(errs, errors.New("output.fragment_duration must be positive"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, errors.New("logging.level must be one of: debug, info, warn, error"))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, errors.New("logging.format must be one of: json, text"))
	}

	return errors.Join(errs...)
}

// EncoderSettings converts to the pump encoder config. An unknown
// profile falls back to the default; Validate reports it.
func (c *Config) EncoderSettings() pump.EncoderConfig {
	profile, _ := codec.ParseProfile(c.Encoder.Profile)
	return pump.EncoderConfig{
		MimeType:     c.Encoder.MimeType,
		SampleRate:   c.Encoder.SampleRate,
		ChannelCount: c.Encoder.Channels,
		Bitrate:      c.Encoder.Bitrate,
		Profile:      profile,
	}
}

// PumpOptions converts to pump options without a logger or callback
func (c *Config) PumpOptions() pump.Options {
	return pump.Options{
		BatchSize:      c.Pump.BatchSize,
		DequeueTimeout: c.Pump.DequeueTimeout,
		InputPatience:  c.Pump.InputPatience,
		DrainPatience:  c.Pump.DrainPatience,
	}
}
