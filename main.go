// ABOUTME: Entry point for the streamout player
// ABOUTME: Kong CLI listing devices, playing assets and analyzing loudness
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/streamout/internal/config"
	"github.com/Resonate-Protocol/streamout/internal/logging"
	"github.com/Resonate-Protocol/streamout/internal/softmix"
	"github.com/Resonate-Protocol/streamout/internal/ui"
	"github.com/Resonate-Protocol/streamout/internal/version"
	"github.com/Resonate-Protocol/streamout/pkg/audio/decode"
	"github.com/Resonate-Protocol/streamout/pkg/engine"
	"github.com/Resonate-Protocol/streamout/pkg/loudness"
	"github.com/Resonate-Protocol/streamout/pkg/stream"
)

// Globals are the flags shared by every command
type Globals struct {
	Config   string           `help:"Config file (default: streamout.yaml in . or ~/.config/streamout)" type:"path"`
	LogLevel string           `help:"Log level: none, error, warn, info, debug"`
	LogFile  string           `help:"Write JSON logs to this file instead of stderr"`
	Backend  string           `help:"Output backend: oto, malgo, null"`
	Device   string           `help:"Output device name"`
	Version  kong.VersionFlag `help:"Show version information"`
}

var CLI struct {
	Globals

	Devices  DevicesCmd  `cmd:"" help:"List output devices"`
	Play     PlayCmd     `cmd:"" help:"Play a sound or stream"`
	Loudness LoudnessCmd `cmd:"" help:"Analyze the loudness of an asset"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("streamout"),
		kong.Description("Mix one-shot sounds and buffered streams to an audio device."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)
	err := ctx.Run(&CLI.Globals)
	ctx.FatalIfErrorf(err)
}

// session is the configured runtime shared by the commands
type session struct {
	cfg      config.Config
	logs     io.Closer
	decoders *decode.Manager
	out      *engine.Output
}

func (g *Globals) setup() (*session, error) {
	v := config.New()
	if g.LogLevel != "" {
		v.Set("loglevel", g.LogLevel)
	}
	if g.LogFile != "" {
		v.Set("logfile", g.LogFile)
	}
	if g.Backend != "" {
		v.Set("backend", g.Backend)
	}
	if g.Device != "" {
		v.Set("device", g.Device)
	}

	cfg, err := config.Load(v, g.Config)
	if err != nil {
		return nil, err
	}
	logs, err := logging.Configure(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}

	drv := softmix.NewDriver(softmix.Config{
		Backend:    cfg.Backend,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		MaxVoices:  cfg.MaxVoices,
		BitDepth:   cfg.BitDepth,
	})
	decoders := decode.NewDirManager(cfg.Assets)
	out := engine.New(drv,
		engine.WithDecoders(decoders),
		engine.WithMaxVoices(cfg.MaxVoices),
		engine.WithStreamOptions(
			stream.WithBufferCount(cfg.Stream.Buffers),
			stream.WithBufferLength(time.Duration(cfg.Stream.BufferMs)*time.Millisecond),
		),
		engine.WithSchedulerOptions(
			stream.WithPollInterval(time.Duration(cfg.Scheduler.PollMs)*time.Millisecond),
			stream.WithLoudnessRate(cfg.Loudness.FPS),
		),
	)

	log.Debug().
		Str("backend", cfg.Backend).
		Int("rate", cfg.SampleRate).
		Int("channels", cfg.Channels).
		Str("assets", cfg.Assets).
		Msg("Configured")

	return &session{cfg: cfg, logs: logs, decoders: decoders, out: out}, nil
}

func (s *session) close() {
	if err := s.out.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing output")
	}
	if s.logs != nil {
		_ = s.logs.Close()
	}
}

// DevicesCmd lists the devices of the configured backend
type DevicesCmd struct{}

func (c *DevicesCmd) Run(g *Globals) error {
	s, err := g.setup()
	if err != nil {
		return err
	}
	defer s.close()

	names, err := s.out.Enumerate()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

// PlayCmd plays one asset until it ends or the user interrupts
type PlayCmd struct {
	Asset  string  `arg:"" help:"Asset path relative to the asset root, or a ws:// URL"`
	Stream bool    `help:"Stream the asset instead of loading it whole"`
	Volume float32 `help:"Volume (0-1)" default:"1"`
	Pitch  float32 `help:"Pitch multiplier" default:"1"`
	Offset float32 `help:"Start offset in seconds (one-shot only)" default:"0"`
	Type   string  `help:"Play type: sfx, voice, foot, music, movie" default:"sfx"`
	Loop   bool    `help:"Loop a one-shot sound"`
	TUI    bool    `name:"tui" help:"Show the status view"`
}

func (c *PlayCmd) Run(g *Globals) error {
	typ, ok := engine.ParsePlayType(c.Type)
	if !ok {
		return fmt.Errorf("unknown play type %q", c.Type)
	}

	s, err := g.setup()
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.out.Init(s.cfg.Device); err != nil {
		return err
	}

	streaming := c.Stream || decode.IsStream(c.Asset)
	var (
		sound   *engine.Sound
		playing func() (bool, error)
	)
	if streaming {
		dec, err := s.decoders.Open(c.Asset)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", c.Asset, err)
		}
		sound, err = s.out.StreamSound(dec, c.Volume, c.Pitch, engine.PlayNormal, typ)
		if err != nil {
			return err
		}
		playing = func() (bool, error) { return s.out.IsStreamPlaying(sound) }
	} else {
		buf, err := s.out.LoadSound(c.Asset)
		if err != nil {
			return err
		}
		flags := engine.PlayNormal
		if c.Loop {
			flags |= engine.PlayLoop
		}
		sound, err = s.out.PlaySound(buf, 1, c.Volume, c.Pitch, flags, typ, c.Offset)
		if err != nil {
			return err
		}
		playing = func() (bool, error) { return s.out.IsSoundPlaying(sound) }
	}

	log.Info().
		Str("asset", c.Asset).
		Str("id", sound.ID().String()).
		Bool("stream", streaming).
		Msg("Playing")

	if c.TUI {
		return ui.Run(s.out, s.out)
	}
	return waitForEnd(playing)
}

// waitForEnd blocks until playing reports false or a signal arrives
func waitForEnd(playing func() (bool, error)) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			log.Info().Msg("Shutdown signal received")
			return nil
		case <-ticker.C:
			ok, err := playing()
			if err != nil {
				return err
			}
			if !ok {
				log.Info().Msg("Playback finished")
				return nil
			}
		}
	}
}

// LoudnessCmd runs loudness analysis on the stream worker and prints the result
type LoudnessCmd struct {
	Asset   string        `arg:"" help:"Asset path relative to the asset root"`
	Timeout time.Duration `help:"Give up after this long" default:"30s"`
	Values  bool          `help:"Print every loudness value"`
}

func (c *LoudnessCmd) Run(g *Globals) error {
	s, err := g.setup()
	if err != nil {
		return err
	}
	defer s.close()

	dec, err := s.decoders.Open(c.Asset)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", c.Asset, err)
	}

	track := loudness.NewTrack()
	s.out.LoadLoudnessAsync(dec, track)

	select {
	case <-track.Ready():
	case <-time.After(c.Timeout):
		return errors.New("loudness analysis timed out")
	}

	fmt.Printf("%s: %.2fs, peak loudness %.3f, dominant %.1f Hz\n",
		c.Asset, track.Duration(), track.Peak(), track.PeakFrequency())
	if c.Values {
		fps := s.cfg.Loudness.FPS
		for i, v := range track.Values() {
			fmt.Printf("%8.3f %.4f\n", float64(i)/fps, v)
		}
	}
	return nil
}
