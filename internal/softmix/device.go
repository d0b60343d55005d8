// ABOUTME: Software implementation of the playback device contract
// ABOUTME: Keeps buffers as 24-bit samples and voices as static or queued sources
package softmix

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
	"github.com/Resonate-Protocol/streamout/pkg/audio/output"
	"github.com/Resonate-Protocol/streamout/pkg/audio/resample"
	"github.com/Resonate-Protocol/streamout/pkg/voice"
)

type buffer struct {
	format  voice.Format
	rate    int
	samples []int32
	size    int
}

func (b *buffer) channels() int {
	return b.format.Channels.Count()
}

func (b *buffer) frames() int {
	ch := b.channels()
	if ch == 0 {
		return 0
	}
	return len(b.samples) / ch
}

type source struct {
	params voice.Params
	staged *voice.Params
	state  voice.State

	bound     voice.Handle
	queue     []voice.Handle
	processed int

	// pos is the frame position inside the static buffer or the queue head
	pos  int
	seek int

	res *resample.Resampler
}

func (s *source) rewind() {
	s.pos = 0
	if s.res != nil {
		s.res.Reset()
	}
}

// Device mixes voices into an output
type Device struct {
	name string
	cfg  Config
	out  output.Output

	mu        sync.Mutex
	nextID    uint32
	sources   map[uint32]*source
	buffers   map[uint32]*buffer
	enums     map[string]int
	listener  [3]voice.Vec3
	suspended bool
	closed    bool
	mixed     int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newDevice(name string, cfg Config, out output.Output) *Device {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Device{
		name:    name,
		cfg:     cfg,
		out:     out,
		sources: make(map[uint32]*source),
		buffers: make(map[uint32]*buffer),
		enums:   make(map[string]int),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i, n := range voice.ProbedFormatNames() {
		d.enums[n] = 0x10000 + i
	}
	d.listener[1] = voice.Vec3{Z: -1}
	d.listener[2] = voice.Vec3{Y: 1}
	return d
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) VoiceLimits() (int, int) {
	return d.cfg.MaxVoices, 0
}

// HasExtension reports true for the multi-channel and float extensions
func (d *Device) HasExtension(name string) bool {
	return name == voice.ExtMultiChannel || name == voice.ExtFloat32
}

func (d *Device) EnumValue(name string) int {
	if id, ok := d.enums[name]; ok {
		return id
	}
	return 0
}

func (d *Device) GenVoice() (voice.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sources) >= d.cfg.MaxVoices {
		return voice.Handle{}, fmt.Errorf("%w: voice limit %d reached", voice.ErrHardware, d.cfg.MaxVoices)
	}
	d.nextID++
	d.sources[d.nextID] = &source{
		state:  voice.StateInitial,
		params: voice.Params{Gain: 1, Pitch: 1, ReferenceDistance: 1, MaxDistance: 1000, Rolloff: 1},
	}
	return voice.NewHandle(voice.KindVoice, d.nextID), nil
}

func (d *Device) DeleteVoice(v voice.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.source(v); err != nil {
		return err
	}
	delete(d.sources, v.ID())
	return nil
}

// SetParams applies p, or stages it while a batch is open
func (d *Device) SetParams(v voice.Handle, p voice.Params) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.source(v)
	if err != nil {
		return err
	}
	if d.suspended {
		s.staged = &p
		return nil
	}
	s.params = p
	return nil
}

func (d *Device) SetOffset(v voice.Handle, seconds float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.source(v)
	if err != nil {
		return err
	}
	b, ok := d.buffers[s.bound.ID()]
	if !s.bound.IsValid() || !ok {
		return fmt.Errorf("%w: invalid operation, no static buffer on %s", voice.ErrHardware, v)
	}
	frame := int(seconds * float32(b.rate))
	if frame < 0 || frame >= b.frames() {
		return fmt.Errorf("%w: invalid value, offset %.3fs", voice.ErrHardware, seconds)
	}
	if s.state.Active() {
		s.pos = frame
		if s.res != nil {
			s.res.Reset()
		}
		return nil
	}
	s.seek = frame
	return nil
}

func (d *Device) BindBuffer(v, buf voice.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.source(v)
	if err != nil {
		return err
	}
	if s.state.Active() {
		return fmt.Errorf("%w: invalid operation, %s is %s", voice.ErrHardware, v, s.state)
	}
	if buf.IsValid() {
		if _, err := d.buffer(buf); err != nil {
			return err
		}
	}
	s.bound = buf
	s.queue = nil
	s.processed = 0
	s.seek = 0
	s.rewind()
	return nil
}

func (d *Device) BoundBuffer(v voice.Handle) (voice.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.source(v)
	if err != nil {
		return voice.Handle{}, err
	}
	return s.bound, nil
}

func (d *Device) QueueBuffers(v voice.Handle, bufs ...voice.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.source(v)
	if err != nil {
		return err
	}
	if s.bound.IsValid() {
		return fmt.Errorf("%w: invalid operation, %s has a static buffer", voice.ErrHardware, v)
	}
	for _, b := range bufs {
		if _, err := d.buffer(b); err != nil {
			return err
		}
	}
	s.queue = append(s.queue, bufs...)
	return nil
}

func (d *Device) UnqueueBuffers(v voice.Handle, n int) ([]voice.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.source(v)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > s.processed {
		return nil, fmt.Errorf("%w: invalid value, %d buffers processed", voice.ErrHardware, s.processed)
	}
	out := append([]voice.Handle(nil), s.queue[:n]...)
	s.queue = s.queue[n:]
	s.processed -= n
	return out, nil
}

func (d *Device) BuffersQueued(v voice.Handle) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.source(v)
	if err != nil {
		return 0, err
	}
	return len(s.queue), nil
}

func (d *Device) BuffersProcessed(v voice.Handle) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.source(v)
	if err != nil {
		return 0, err
	}
	return s.processed, nil
}

// SampleOffset returns the frame position. For queued voices it counts
// from the start of the first buffer still in the queue.
func (d *Device) SampleOffset(v voice.Handle) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.source(v)
	if err != nil {
		return 0, err
	}
	if !s.state.Active() {
		return 0, nil
	}
	offset := s.pos
	for _, h := range s.queue[:s.processed] {
		offset += d.buffers[h.ID()].frames()
	}
	return offset, nil
}

func (d *Device) State(v voice.Handle) (voice.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.source(v)
	if err != nil {
		return voice.StateInitial, err
	}
	return s.state, nil
}

// Play starts voices from their beginning, or resumes paused ones
func (d *Device) Play(vs ...voice.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range vs {
		if _, err := d.source(v); err != nil {
			return err
		}
	}
	for _, v := range vs {
		s := d.sources[v.ID()]
		if s.state == voice.StatePaused {
			s.state = voice.StatePlaying
			continue
		}
		s.rewind()
		s.processed = 0
		s.pos, s.seek = s.seek, 0
		s.state = voice.StatePlaying
		if d.exhausted(s) {
			d.finish(s)
		}
	}
	return nil
}

func (d *Device) Pause(vs ...voice.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range vs {
		s, err := d.source(v)
		if err != nil {
			return err
		}
		if s.state == voice.StatePlaying {
			s.state = voice.StatePaused
		}
	}
	return nil
}

func (d *Device) Stop(v voice.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.source(v)
	if err != nil {
		return err
	}
	d.finish(s)
	return nil
}

func (d *Device) GenBuffer() (voice.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.buffers[d.nextID] = &buffer{}
	return voice.NewHandle(voice.KindBuffer, d.nextID), nil
}

func (d *Device) DeleteBuffer(buf voice.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.buffer(buf); err != nil {
		return err
	}
	if d.inUse(buf) {
		return fmt.Errorf("%w: invalid operation, %s in use", voice.ErrHardware, buf)
	}
	delete(d.buffers, buf.ID())
	return nil
}

// BufferData converts data to 24-bit samples and stores it in buf
func (d *Device) BufferData(buf voice.Handle, f voice.Format, data []byte, sampleRate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.buffer(buf)
	if err != nil {
		return err
	}
	if sampleRate <= 0 || f.FrameSize() == 0 || len(data)%f.FrameSize() != 0 {
		return fmt.Errorf("%w: invalid value, %d bytes of %dHz %s %s",
			voice.ErrHardware, len(data), sampleRate, f.Channels, f.Type)
	}
	if d.inUse(buf) {
		return fmt.Errorf("%w: invalid operation, %s in use", voice.ErrHardware, buf)
	}
	b.format = f
	b.rate = sampleRate
	b.samples = audio.ToInt32(data, f.Type)
	b.size = len(data)
	return nil
}

func (d *Device) BufferSize(buf voice.Handle) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.buffer(buf)
	if err != nil {
		return 0, err
	}
	return b.size, nil
}

func (d *Device) SetListener(pos, at, up voice.Vec3) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = [3]voice.Vec3{pos, at, up}
	return nil
}

// Suspend starts staging parameter updates
func (d *Device) Suspend() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suspended = true
}

// Process applies every staged update at once
func (d *Device) Process() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.sources {
		if s.staged != nil {
			s.params = *s.staged
			s.staged = nil
		}
	}
	d.suspended = false
}

// Close stops the mixing loop and closes the output
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	if d.done != nil {
		<-d.done
	}
	if err := d.out.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	log.Debug().Str("device", d.name).Int64("frames", d.Mixed()).Msg("Software device closed")
	return nil
}

// Mixed returns the number of frames rendered so far
func (d *Device) Mixed() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mixed
}

// finish stops s and marks its whole queue processed (must hold d.mu)
func (d *Device) finish(s *source) {
	s.state = voice.StateStopped
	s.processed = len(s.queue)
	s.rewind()
}

func (d *Device) inUse(buf voice.Handle) bool {
	for _, s := range d.sources {
		if s.bound == buf {
			return true
		}
		for _, q := range s.queue {
			if q == buf {
				return true
			}
		}
	}
	return false
}

func (d *Device) source(v voice.Handle) (*source, error) {
	if !v.Is(voice.KindVoice) {
		return nil, fmt.Errorf("%w: invalid handle %s", voice.ErrHardware, v)
	}
	s, ok := d.sources[v.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: invalid handle %s", voice.ErrHardware, v)
	}
	return s, nil
}

func (d *Device) buffer(b voice.Handle) (*buffer, error) {
	if !b.Is(voice.KindBuffer) {
		return nil, fmt.Errorf("%w: invalid handle %s", voice.ErrHardware, b)
	}
	buf, ok := d.buffers[b.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: invalid handle %s", voice.ErrHardware, b)
	}
	return buf, nil
}
