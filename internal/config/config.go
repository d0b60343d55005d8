// ABOUTME: Configuration loading via viper
// ABOUTME: Defaults, optional config file and STREAMOUT_ environment overrides
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds every tunable of the player
type Config struct {
	LogLevel string `mapstructure:"loglevel"`
	LogFile  string `mapstructure:"logfile"`

	Device     string `mapstructure:"device"`
	Backend    string `mapstructure:"backend"`
	SampleRate int    `mapstructure:"samplerate"`
	Channels   int    `mapstructure:"channels"`
	BitDepth   int    `mapstructure:"bitdepth"`
	MaxVoices  int    `mapstructure:"maxvoices"`
	Assets     string `mapstructure:"assets"`

	Stream    StreamConfig    `mapstructure:"stream"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Loudness  LoudnessConfig  `mapstructure:"loudness"`
}

// StreamConfig sizes the buffer ring of each stream
type StreamConfig struct {
	Buffers  int `mapstructure:"buffers"`
	BufferMs int `mapstructure:"bufferms"`
}

// SchedulerConfig tunes the stream worker
type SchedulerConfig struct {
	PollMs int `mapstructure:"pollms"`
}

// LoudnessConfig tunes loudness analysis
type LoudnessConfig struct {
	FPS float64 `mapstructure:"fps"`
}

// SetDefaults registers the default of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("loglevel", "info")
	v.SetDefault("logfile", "")
	v.SetDefault("device", "")
	v.SetDefault("backend", "oto")
	v.SetDefault("samplerate", 48000)
	v.SetDefault("channels", 2)
	v.SetDefault("bitdepth", 16)
	v.SetDefault("maxvoices", 256)
	v.SetDefault("assets", ".")
	v.SetDefault("stream.buffers", 6)
	v.SetDefault("stream.bufferms", 125)
	v.SetDefault("scheduler.pollms", 50)
	v.SetDefault("loudness.fps", 20)
}

// New creates a viper instance with defaults and environment overrides
// (STREAMOUT_BACKEND, STREAMOUT_STREAM_BUFFERS, ...)
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("streamout")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path into v. An empty path searches for
// streamout.{yaml,toml,json} in the working directory and ~/.config/streamout.
// A missing file is not an error.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("streamout")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/streamout")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		log.Debug().Msg("No config file found, using defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges
func (c Config) Validate() error {
	switch c.Backend {
	case "oto", "malgo", "null":
	default:
		return fmt.Errorf("invalid backend %q (oto, malgo or null)", c.Backend)
	}
	switch c.Channels {
	case 1, 2, 4, 6, 8:
	default:
		return fmt.Errorf("invalid channel count %d", c.Channels)
	}
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("invalid sample rate %d", c.SampleRate)
	}
	if c.MaxVoices < 1 || c.MaxVoices > 256 {
		return fmt.Errorf("invalid maxvoices %d (1-256)", c.MaxVoices)
	}
	if c.Stream.Buffers < 2 {
		return fmt.Errorf("stream.buffers must be at least 2, got %d", c.Stream.Buffers)
	}
	if c.Stream.BufferMs <= 0 || c.Scheduler.PollMs <= 0 {
		return errors.New("stream.bufferms and scheduler.pollms must be positive")
	}
	if c.Loudness.FPS <= 0 {
		return fmt.Errorf("invalid loudness.fps %v", c.Loudness.FPS)
	}
	return nil
}
