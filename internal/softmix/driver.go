// ABOUTME: Software voice driver configuration and device opening
// ABOUTME: Picks an output backend and starts the mixing loop for each opened device
package softmix

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/streamout/pkg/audio/output"
	"github.com/Resonate-Protocol/streamout/pkg/voice"
)

// Backend names
const (
	BackendOto   = "oto"
	BackendMalgo = "malgo"
	BackendNull  = "null"
)

// Config configures the software mixer
type Config struct {
	Backend    string
	SampleRate int
	Channels   int

	// MaxVoices bounds how many voices a device can generate
	MaxVoices int

	// Period is the amount of audio mixed per output write
	Period time.Duration

	// BitDepth is passed to the malgo backend
	BitDepth int

	// Manual disables the mixing goroutine; the caller drives Render
	Manual bool
}

// DefaultConfig returns a stereo 48kHz configuration on the oto backend
func DefaultConfig() Config {
	return Config{
		Backend:    BackendOto,
		SampleRate: 48000,
		Channels:   2,
		MaxVoices:  128,
		Period:     10 * time.Millisecond,
	}
}

// Driver opens software-mixed devices
type Driver struct {
	cfg Config

	// newOutput is replaced in tests
	newOutput func(device string) (output.Output, error)
}

// NewDriver creates a driver, filling zero config fields with defaults
func NewDriver(cfg Config) *Driver {
	def := DefaultConfig()
	if cfg.Backend == "" {
		cfg.Backend = def.Backend
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = def.Channels
	}
	if cfg.MaxVoices <= 0 {
		cfg.MaxVoices = def.MaxVoices
	}
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	d := &Driver{cfg: cfg}
	d.newOutput = d.backendOutput
	return d
}

// Config returns the effective configuration
func (d *Driver) Config() Config {
	return d.cfg
}

// Devices lists the devices reachable through the backend
func (d *Driver) Devices() ([]string, error) {
	switch d.cfg.Backend {
	case BackendMalgo:
		return output.MalgoDevices()
	case BackendOto:
		return []string{"default"}, nil
	case BackendNull:
		return []string{"null"}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", d.cfg.Backend)
}

// Open opens the named device and starts mixing into it
func (d *Driver) Open(name string) (voice.Device, error) {
	out, err := d.newOutput(name)
	if err != nil {
		return nil, err
	}
	if err := out.Open(d.cfg.SampleRate, d.cfg.Channels); err != nil {
		return nil, fmt.Errorf("failed to open %s output: %w", d.cfg.Backend, err)
	}
	if name == "" {
		name = "default"
	}
	dev := newDevice(name, d.cfg, out)
	if !d.cfg.Manual {
		dev.start()
	}
	return dev, nil
}

func (d *Driver) backendOutput(device string) (output.Output, error) {
	switch d.cfg.Backend {
	case BackendOto:
		return output.NewOto(), nil
	case BackendMalgo:
		if device == "default" {
			device = ""
		}
		return output.NewMalgo(output.MalgoConfig{Device: device, BitDepth: d.cfg.BitDepth}), nil
	case BackendNull:
		return output.NewNull(!d.cfg.Manual), nil
	}
	return nil, fmt.Errorf("unknown backend %q", d.cfg.Backend)
}
