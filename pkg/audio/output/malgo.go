// ABOUTME: Malgo-based audio output implementation with 24-bit support
// ABOUTME: Uses miniaudio via malgo, fed from a byte ring drained by the device callback
package output

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"
	"github.com/smallnest/ringbuffer"

	"github.com/Resonate-Protocol/streamout/pkg/audio/encode"
)

// MalgoConfig selects the playback device and sample depth
type MalgoConfig struct {
	// Device is a playback device name; empty selects the default
	Device string

	// BitDepth is 16, 24 or 32; 0 means 16
	BitDepth int

	// BufferMs is the ring capacity in milliseconds; 0 means 200
	BufferMs int
}

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	cfg MalgoConfig

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	ring       *ringbuffer.RingBuffer
	sampleRate int
	channels   int
	encoder    encode.Encoder
	volume     int
	muted      bool
	ready      bool
}

// NewMalgo creates a new Malgo output
func NewMalgo(cfg MalgoConfig) *Malgo {
	if cfg.BitDepth == 0 {
		cfg.BitDepth = 16
	}
	if cfg.BufferMs <= 0 {
		cfg.BufferMs = 200
	}
	return &Malgo{cfg: cfg, volume: 100}
}

// MalgoDevices lists the playback devices miniaudio can see
func MalgoDevices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

// Open initializes the output device with specified format
func (m *Malgo) Open(sampleRate, channels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ready {
		if m.sampleRate == sampleRate && m.channels == channels {
			return nil
		}
		log.Info().Int("rate", sampleRate).Int("channels", channels).Msg("Format change, reinitializing device")
		m.closeDevice()
	}

	var format malgo.FormatType
	switch m.cfg.BitDepth {
	case 16:
		format = malgo.FormatS16
	case 24:
		format = malgo.FormatS24
	case 32:
		format = malgo.FormatS32
	default:
		return fmt.Errorf("unsupported bit depth: %d (supported: 16, 24, 32)", m.cfg.BitDepth)
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = format
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if m.cfg.Device != "" {
		infos, err := m.malgoCtx.Devices(malgo.Playback)
		if err != nil {
			return fmt.Errorf("failed to enumerate devices: %w", err)
		}
		found := false
		for _, info := range infos {
			if info.Name() == m.cfg.Device {
				deviceConfig.Playback.DeviceID = info.ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("playback device %q not found", m.cfg.Device)
		}
	}

	encoder, err := encode.NewPCM(m.cfg.BitDepth)
	if err != nil {
		return err
	}
	m.encoder = encoder
	m.ring = ringbuffer.New(sampleRate * channels * encoder.BytesPerSample() * m.cfg.BufferMs / 1000)

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			m.dataCallback(pOutput)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.device = device
	m.sampleRate = sampleRate
	m.channels = channels
	m.ready = true

	log.Info().Int("rate", sampleRate).Int("channels", channels).Int("bits", m.cfg.BitDepth).
		Str("format", formatName(format)).Msg("Audio output initialized (malgo)")
	return nil
}

// Write queues audio samples, blocking while the ring is full
func (m *Malgo) Write(samples []int32) error {
	m.mu.Lock()
	if !m.ready {
		m.mu.Unlock()
		return ErrNotOpen
	}
	ring, ctx := m.ring, m.ctx
	data, err := m.encoder.Encode(applyVolume(samples, m.volume, m.muted))
	m.mu.Unlock()
	if err != nil {
		return err
	}

	// Only ever write what fits so the ring never rejects a write
	for len(data) > 0 {
		free := ring.Free()
		if free == 0 {
			select {
			case <-ctx.Done():
				return ErrNotOpen
			case <-time.After(2 * time.Millisecond):
			}
			continue
		}
		if free > len(data) {
			free = len(data)
		}
		n, err := ring.Write(data[:free])
		if err != nil {
			return fmt.Errorf("ring write failed: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// dataCallback fills the device buffer from the ring, padding underruns with silence
func (m *Malgo) dataCallback(pOutput []byte) {
	n, _ := m.ring.Read(pOutput)
	for i := n; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
}

// Buffered returns the bytes waiting in the ring
func (m *Malgo) Buffered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ring == nil {
		return 0
	}
	return m.ring.Length()
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Warn().Err(err).Msg("malgo context uninit error")
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Warn().Err(err).Msg("device stop error")
		}
		m.device.Uninit()
		m.device = nil
	}
	m.ready = false
}

// SetVolume sets the volume (0-100)
func (m *Malgo) SetVolume(volume int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = clampVolume(volume)
}

// SetMuted sets mute state
func (m *Malgo) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
