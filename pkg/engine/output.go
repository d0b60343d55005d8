// ABOUTME: Output facade owning the device, voice pool and stream scheduler
// ABOUTME: Loads and plays one-shot sounds, starts streams, pauses groups and queues loudness jobs
package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/streamout/pkg/audio/decode"
	"github.com/Resonate-Protocol/streamout/pkg/stream"
	"github.com/Resonate-Protocol/streamout/pkg/voice"
)

type options struct {
	decoders     *decode.Manager
	maxVoices    int
	streamOpts   []stream.Option
	schedulerOps []stream.SchedulerOption
}

// Option configures an Output
type Option func(*options)

// WithDecoders sets the asset manager used by LoadSound
func WithDecoders(m *decode.Manager) Option {
	return func(o *options) {
		o.decoders = m
	}
}

// WithMaxVoices caps the voice pool below the device limit
func WithMaxVoices(n int) Option {
	return func(o *options) {
		o.maxVoices = n
	}
}

// WithStreamOptions sets the buffer ring options of every stream
func WithStreamOptions(opts ...stream.Option) Option {
	return func(o *options) {
		o.streamOpts = append(o.streamOpts, opts...)
	}
}

// WithSchedulerOptions configures the stream scheduler
func WithSchedulerOptions(opts ...stream.SchedulerOption) Option {
	return func(o *options) {
		o.schedulerOps = append(o.schedulerOps, opts...)
	}
}

// Stats is a snapshot of engine state
type Stats struct {
	Device     string
	Voices     int
	FreeVoices int
	Buffers    int
	Sounds     int
	Streams    int
	Scheduler  stream.SchedulerStats
}

// Output is the playback facade. It is safe for concurrent use.
type Output struct {
	drv   voice.Driver
	opts  options
	sched *stream.Scheduler

	mu       sync.Mutex
	dev      voice.Device
	pool     *voice.Pool
	buffers  map[voice.Handle]string
	sounds   []*Sound
	streams  []*Sound
	listener voice.Vec3
	env      Environment
}

// New creates an output on drv and starts its stream scheduler. No device
// is open until Init.
func New(drv voice.Driver, opts ...Option) *Output {
	o := options{maxVoices: voice.MaxVoices}
	for _, opt := range opts {
		opt(&o)
	}
	if o.decoders == nil {
		o.decoders = decode.NewDirManager(".")
	}
	return &Output{
		drv:     drv,
		opts:    o,
		sched:   stream.NewScheduler(o.schedulerOps...),
		buffers: make(map[voice.Handle]string),
	}
}

// Enumerate lists the device names of the driver
func (o *Output) Enumerate() ([]string, error) {
	return o.drv.Devices()
}

// Init opens the named device, closing any open one first
func (o *Output) Init(name string) error {
	if err := o.Deinit(); err != nil {
		log.Warn().Err(err).Msg("Errors closing previous device")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	dev, err := o.drv.Open(name)
	if err != nil {
		if name == "" {
			return fmt.Errorf("%w: failed to open default device: %w", voice.ErrDeviceUnavailable, err)
		}
		return fmt.Errorf("%w: failed to open %q: %w", voice.ErrDeviceUnavailable, name, err)
	}

	pool, err := voice.NewDevicePool(dev, o.opts.maxVoices)
	if err != nil {
		dev.Close()
		return err
	}

	o.dev = dev
	o.pool = pool
	log.Info().Str("device", dev.Name()).Int("voices", pool.Size()).Msg("Opened audio device")
	return nil
}

// Initialized reports whether a device is open
func (o *Output) Initialized() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dev != nil
}

// Deinit stops everything and closes the device. Streams are dropped from
// the scheduler before their voices and buffers go away.
func (o *Output) Deinit() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.dev == nil {
		return nil
	}
	o.sched.RemoveAll()

	var errs []error
	for _, s := range o.streams {
		b := s.binding.(streaming)
		s.binding = nil
		if err := b.st.Close(); err != nil {
			errs = append(errs, err)
		}
		o.pool.Release(b.st.Voice())
	}
	for _, s := range o.sounds {
		b := s.binding.(oneShot)
		s.binding = nil
		if err := o.detach(b.v); err != nil {
			errs = append(errs, err)
		}
		o.pool.Release(b.v)
	}
	o.streams, o.sounds = nil, nil

	for buf := range o.buffers {
		if err := o.dev.DeleteBuffer(buf); err != nil {
			errs = append(errs, err)
		}
	}
	clear(o.buffers)

	for _, v := range o.pool.Drain() {
		if err := o.dev.DeleteVoice(v); err != nil {
			errs = append(errs, err)
		}
	}
	if err := o.dev.Close(); err != nil {
		errs = append(errs, err)
	}
	log.Info().Str("device", o.dev.Name()).Msg("Closed audio device")
	o.dev, o.pool = nil, nil
	return errors.Join(errs...)
}

// Close closes the device, then stops the scheduler worker
func (o *Output) Close() error {
	err := o.Deinit()
	o.sched.Close()
	return err
}

// LoadSound decodes an asset fully into a device buffer. A missing asset
// falls back to the mp3 with the same stem.
func (o *Output) LoadSound(name string) (voice.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dev == nil {
		return voice.Handle{}, voice.ErrNotInitialized
	}

	dec, err := o.opts.decoders.Open(name)
	if err != nil {
		return voice.Handle{}, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer dec.Close()

	info, err := dec.Info()
	if err != nil {
		return voice.Handle{}, fmt.Errorf("%w: %s: %w", voice.ErrDecodeFailure, name, err)
	}
	format, err := voice.NegotiateFormat(o.dev, info.Channels, info.Type)
	if err != nil {
		return voice.Handle{}, fmt.Errorf("%s: %w", name, err)
	}
	data, err := dec.ReadAll()
	if err != nil {
		return voice.Handle{}, fmt.Errorf("%w: %s: %w", voice.ErrDecodeFailure, name, err)
	}

	buf, err := o.dev.GenBuffer()
	if err != nil {
		return voice.Handle{}, fmt.Errorf("failed to create buffer for %s: %w", name, err)
	}
	if err := o.dev.BufferData(buf, format, data, info.SampleRate); err != nil {
		if derr := o.dev.DeleteBuffer(buf); derr != nil {
			log.Warn().Err(derr).Str("buffer", buf.String()).Msg("Failed to delete partial buffer")
		}
		return voice.Handle{}, fmt.Errorf("failed to upload %s: %w", name, err)
	}

	o.buffers[buf] = dec.Name()
	log.Debug().Str("sound", dec.Name()).Str("format", info.String()).Int("bytes", len(data)).Msg("Loaded sound")
	return buf, nil
}

// UnloadSound stops every sound playing buf and deletes it
func (o *Output) UnloadSound(buf voice.Handle) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dev == nil {
		return voice.ErrNotInitialized
	}

	var errs []error
	o.sounds = slices.DeleteFunc(o.sounds, func(s *Sound) bool {
		b := s.binding.(oneShot)
		if b.buf != buf {
			return false
		}
		s.binding = nil
		if err := o.detach(b.v); err != nil {
			errs = append(errs, err)
		}
		o.pool.Release(b.v)
		return true
	})

	if err := o.dev.DeleteBuffer(buf); err != nil {
		errs = append(errs, err)
	}
	delete(o.buffers, buf)
	return errors.Join(errs...)
}

// SoundDataSize returns the size in bytes of a loaded buffer
func (o *Output) SoundDataSize(buf voice.Handle) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dev == nil {
		return 0, voice.ErrNotInitialized
	}
	return o.dev.BufferSize(buf)
}

// PlaySound plays buf without positioning. offset is in seconds.
func (o *Output) PlaySound(buf voice.Handle, vol, baseVol, pitch float32, flags Flags, typ PlayType, offset float32) (*Sound, error) {
	s := newSound("", voice.Vec3{}, vol, baseVol, pitch, 1, 1000, flags&^Play3D, typ)
	if err := o.playOneShot(buf, s, offset); err != nil {
		return nil, err
	}
	return s, nil
}

// PlaySound3D plays buf at pos, silent beyond maxDist from the listener
func (o *Output) PlaySound3D(buf voice.Handle, pos voice.Vec3, vol, baseVol, pitch, minDist, maxDist float32, flags Flags, typ PlayType, offset float32) (*Sound, error) {
	s := newSound("", pos, vol, baseVol, pitch, minDist, maxDist, flags|Play3D, typ)
	if err := o.playOneShot(buf, s, offset); err != nil {
		return nil, err
	}
	return s, nil
}

func (o *Output) playOneShot(buf voice.Handle, s *Sound, offset float32) (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dev == nil {
		return voice.ErrNotInitialized
	}
	s.name = o.buffers[buf]

	v, err := o.pool.Acquire()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if derr := o.detach(v); derr != nil {
				log.Warn().Err(derr).Str("voice", v.String()).Msg("Failed to reset voice")
			}
			o.pool.Release(v)
		}
	}()

	p := s.params(o.listener, o.env)
	if err := o.dev.SetParams(v, p); err != nil {
		return err
	}
	if err := o.dev.BindBuffer(v, buf); err != nil {
		return err
	}
	if offset > 0 && p.Pitch > 0 {
		if err := o.dev.SetOffset(v, offset/p.Pitch); err != nil {
			return err
		}
	}
	if err := o.dev.Play(v); err != nil {
		return err
	}

	s.binding = oneShot{v: v, buf: buf}
	o.sounds = append(o.sounds, s)
	log.Debug().Str("sound", s.name).Str("id", s.id.String()).Str("voice", v.String()).Msg("Playing sound")
	return nil
}

// StopSound stops s and returns its voice to the pool
func (o *Output) StopSound(s *Sound) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := s.binding.(oneShot)
	if !ok {
		return nil
	}
	s.binding = nil
	o.sounds = slices.DeleteFunc(o.sounds, func(x *Sound) bool { return x == s })
	err := o.detach(b.v)
	o.pool.Release(b.v)
	return err
}

// IsSoundPlaying reports whether the voice of s is playing or paused
func (o *Output) IsSoundPlaying(s *Sound) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := s.binding.(oneShot)
	if !ok {
		return false, nil
	}
	state, err := o.dev.State(b.v)
	if err != nil {
		return false, err
	}
	return state.Active(), nil
}

// UpdateSound pushes the volume, pitch and position of s to its voice
func (o *Output) UpdateSound(s *Sound) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := s.binding.(oneShot)
	if !ok {
		return nil
	}
	return o.dev.SetParams(b.v, s.params(o.listener, o.env))
}

// StreamSound streams dec without positioning. The output owns dec from
// here on, also when an error is returned.
func (o *Output) StreamSound(dec decode.Decoder, baseVol, pitch float32, flags Flags, typ PlayType) (*Sound, error) {
	s := newSound(dec.Name(), voice.Vec3{}, 1, baseVol, pitch, 1, 1000, flags&^Play3D, typ)
	if err := o.playStream(dec, s); err != nil {
		return nil, err
	}
	return s, nil
}

// StreamSound3D streams dec at pos
func (o *Output) StreamSound3D(dec decode.Decoder, pos voice.Vec3, vol, baseVol, pitch, minDist, maxDist float32, flags Flags, typ PlayType) (*Sound, error) {
	s := newSound(dec.Name(), pos, vol, baseVol, pitch, minDist, maxDist, flags|Play3D, typ)
	if err := o.playStream(dec, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (o *Output) playStream(dec decode.Decoder, s *Sound) (err error) {
	s.isStream = true

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dev == nil {
		dec.Close()
		return voice.ErrNotInitialized
	}

	v, err := o.pool.Acquire()
	if err != nil {
		dec.Close()
		return err
	}
	if s.flags&PlayLoop != 0 {
		log.Warn().Str("stream", dec.Name()).Msg("Cannot loop stream")
	}

	var st *stream.Stream
	defer func() {
		if err == nil {
			return
		}
		if st != nil {
			o.sched.Remove(st)
			if cerr := st.Close(); cerr != nil {
				log.Warn().Err(cerr).Str("stream", dec.Name()).Msg("Failed to close stream")
			}
		}
		o.pool.Release(v)
	}()

	if err := o.dev.SetParams(v, s.params(o.listener, o.env)); err != nil {
		dec.Close()
		return err
	}

	// New closes dec itself on failure
	st, err = stream.New(o.dev, v, dec, o.opts.streamOpts...)
	if err != nil {
		return err
	}
	o.sched.Add(st)

	s.binding = streaming{st: st}
	o.streams = append(o.streams, s)
	log.Debug().Str("stream", dec.Name()).Str("id", s.id.String()).Str("voice", v.String()).
		Str("format", st.Format().String()).Msg("Streaming")
	return nil
}

// StopStream unschedules and closes the stream of s and frees its voice
func (o *Output) StopStream(s *Sound) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := s.binding.(streaming)
	if !ok {
		return nil
	}
	s.binding = nil
	o.streams = slices.DeleteFunc(o.streams, func(x *Sound) bool { return x == s })

	// The worker must be done with the stream before it is closed
	o.sched.Remove(b.st)
	err := b.st.Close()
	o.pool.Release(b.st.Voice())
	return err
}

// StreamDelay returns the seconds of audio queued but not yet heard
func (o *Output) StreamDelay(s *Sound) (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := s.binding.(streaming)
	if !ok {
		return 0, nil
	}
	return b.st.Delay()
}

// StreamOffset returns the playback position of s in seconds
func (o *Output) StreamOffset(s *Sound) (offset float64, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := s.binding.(streaming)
	if !ok {
		return 0, nil
	}
	o.sched.WithLock(func() {
		offset, err = b.st.Offset()
	})
	return offset, err
}

// IsStreamPlaying reports whether s is playing or still has audio to play
func (o *Output) IsStreamPlaying(s *Sound) (playing bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := s.binding.(streaming)
	if !ok {
		return false, nil
	}
	o.sched.WithLock(func() {
		playing, err = b.st.IsPlaying()
	})
	return playing, err
}

// UpdateStream pushes the volume, pitch and position of s to its voice
func (o *Output) UpdateStream(s *Sound) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := s.binding.(streaming)
	if !ok {
		return nil
	}
	return o.dev.SetParams(b.st.Voice(), s.params(o.listener, o.env))
}

// StartUpdate begins a batch of parameter updates
func (o *Output) StartUpdate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dev != nil {
		o.dev.Suspend()
	}
}

// FinishUpdate applies the batch started by StartUpdate
func (o *Output) FinishUpdate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dev != nil {
		o.dev.Process()
	}
}

// UpdateListener moves the listener. Sounds pick up the new position and
// environment on their next update.
func (o *Output) UpdateListener(pos, at, up voice.Vec3, env Environment) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.dev != nil {
		if err := o.dev.SetListener(pos, at, up); err != nil {
			return err
		}
	}
	o.listener = pos
	o.env = env
	return nil
}

// PauseSounds pauses every sound and stream whose type is in types
func (o *Output) PauseSounds(types PlayType) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	vs := o.voicesOf(types, false)
	if len(vs) == 0 {
		return nil
	}
	return o.dev.Pause(vs...)
}

// ResumeSounds resumes paused sounds and streams whose type is in types
func (o *Output) ResumeSounds(types PlayType) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	vs := o.voicesOf(types, true)
	if len(vs) == 0 {
		return nil
	}
	return o.dev.Play(vs...)
}

// voicesOf collects the voices of live sounds matching types (must hold o.mu)
func (o *Output) voicesOf(types PlayType, pausedOnly bool) []voice.Handle {
	var vs []voice.Handle
	for _, list := range [][]*Sound{o.sounds, o.streams} {
		for _, s := range list {
			if s.typ&types == 0 {
				continue
			}
			v := s.binding.voice()
			if pausedOnly {
				if state, err := o.dev.State(v); err != nil || state != voice.StatePaused {
					continue
				}
			}
			vs = append(vs, v)
		}
	}
	return vs
}

// LoadLoudnessAsync queues dec for loudness analysis into sink. The
// scheduler owns dec and closes it when done.
func (o *Output) LoadLoudnessAsync(dec decode.Decoder, sink stream.LoudnessSink) {
	o.sched.AddLoudnessJob(dec, sink)
}

// ActiveSounds returns a snapshot of live one-shot sounds
func (o *Output) ActiveSounds() []SoundInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot(o.sounds)
}

// ActiveStreams returns a snapshot of live streams
func (o *Output) ActiveStreams() []SoundInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot(o.streams)
}

func (o *Output) snapshot(list []*Sound) []SoundInfo {
	infos := make([]SoundInfo, 0, len(list))
	for _, s := range list {
		v := s.binding.voice()
		state, _ := o.dev.State(v)
		infos = append(infos, SoundInfo{
			ID:        s.id,
			Name:      s.name,
			Type:      s.typ,
			Streaming: s.isStream,
			Is3D:      s.Is3D(),
			Volume:    s.RealVolume(),
			State:     state,
			Voice:     v,
		})
	}
	return infos
}

// Stats returns a snapshot of engine state
func (o *Output) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Stats{
		Buffers:   len(o.buffers),
		Sounds:    len(o.sounds),
		Streams:   len(o.streams),
		Scheduler: o.sched.Stats(),
	}
	if o.dev != nil {
		st.Device = o.dev.Name()
		st.Voices = o.pool.Size()
		st.FreeVoices = o.pool.Free()
	}
	return st
}

// detach stops v and unbinds its buffers (must hold o.mu)
func (o *Output) detach(v voice.Handle) error {
	return errors.Join(o.dev.Stop(v), o.dev.BindBuffer(v, voice.Handle{}))
}
