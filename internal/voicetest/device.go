// ABOUTME: Scripted in-memory playback device for tests
// ABOUTME: Records uploads and lets tests drive voice state and buffer consumption
package voicetest

import (
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/streamout/pkg/voice"
)

// Voice is a snapshot of one fake voice
type Voice struct {
	Params    voice.Params
	State     voice.State
	Bound     voice.Handle
	Queue     []voice.Handle
	Processed int
	Offset    float32
	Sample    int
	Plays     int
}

// Buffer is a snapshot of one fake buffer
type Buffer struct {
	Format voice.Format
	Data   []byte
	Rate   int
}

// Driver hands out one shared Device
type Driver struct {
	Names  []string
	Device *Device
	Err    error
}

// Devices returns the configured device names
func (d *Driver) Devices() ([]string, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Names, nil
}

// Open returns the configured device
func (d *Driver) Open(name string) (voice.Device, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	d.Device.mu.Lock()
	d.Device.name = name
	d.Device.closed = false
	d.Device.mu.Unlock()
	return d.Device, nil
}

// Device implements voice.Device in memory
type Device struct {
	mu sync.Mutex

	name       string
	mono       int
	stereo     int
	maxVoices  int
	extensions map[string]bool
	enums      map[string]int

	nextID  uint32
	voices  map[uint32]*Voice
	buffers map[uint32]*Buffer

	listener [3]voice.Vec3
	uploads  int
	batches  int
	closed   bool

	// Fail* make the matching call return an ErrHardware-wrapped error
	FailBufferData bool
	FailPlay       bool
	FailGenBuffer  bool
}

// NewDevice creates a device that can generate up to voices voices
func NewDevice(voices int) *Device {
	return &Device{
		mono:       voices,
		maxVoices:  voices,
		extensions: make(map[string]bool),
		enums:      make(map[string]int),
		voices:     make(map[uint32]*Voice),
		buffers:    make(map[uint32]*Buffer),
	}
}

// SetLimits overrides the advertised voice limits
func (d *Device) SetLimits(mono, stereo int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mono, d.stereo = mono, stereo
}

// AddExtension advertises an extension and the format names it brings
func (d *Device) AddExtension(name string, formats ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.extensions[name] = true
	for _, f := range formats {
		d.enums[f] = 0x10000 + len(d.enums)
	}
}

func (d *Device) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

func (d *Device) VoiceLimits() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mono, d.stereo
}

func (d *Device) HasExtension(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.extensions[name]
}

func (d *Device) EnumValue(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enums[name]
}

func (d *Device) GenVoice() (voice.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.voices) >= d.maxVoices {
		return voice.Handle{}, fmt.Errorf("%w: out of voices", voice.ErrHardware)
	}
	d.nextID++
	d.voices[d.nextID] = &Voice{State: voice.StateInitial}
	return voice.NewHandle(voice.KindVoice, d.nextID), nil
}

func (d *Device) DeleteVoice(v voice.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.voice(v); err != nil {
		return err
	}
	delete(d.voices, v.ID())
	return nil
}

func (d *Device) SetParams(v voice.Handle, p voice.Params) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	vc, err := d.voice(v)
	if err != nil {
		return err
	}
	vc.Params = p
	return nil
}

func (d *Device) SetOffset(v voice.Handle, seconds float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	vc, err := d.voice(v)
	if err != nil {
		return err
	}
	vc.Offset = seconds
	return nil
}

func (d *Device) BindBuffer(v, buf voice.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	vc, err := d.voice(v)
	if err != nil {
		return err
	}
	if buf.IsValid() {
		if _, err := d.buffer(buf); err != nil {
			return err
		}
	}
	vc.Bound = buf
	vc.Queue = nil
	vc.Processed = 0
	return nil
}

func (d *Device) BoundBuffer(v voice.Handle) (voice.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	vc, err := d.voice(v)
	if err != nil {
		return voice.Handle{}, err
	}
	return vc.Bound, nil
}

func (d *Device) QueueBuffers(v voice.Handle, bufs ...voice.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	vc, err := d.voice(v)
	if err != nil {
		return err
	}
	for _, b := range bufs {
		if _, err := d.buffer(b); err != nil {
			return err
		}
	}
	vc.Queue = append(vc.Queue, bufs...)
	return nil
}

func (d *Device) UnqueueBuffers(v voice.Handle, n int) ([]voice.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	vc, err := d.voice(v)
	if err != nil {
		return nil, err
	}
	if n > vc.Processed {
		return nil, fmt.Errorf("%w: invalid value", voice.ErrHardware)
	}
	out := append([]voice.Handle(nil), vc.Queue[:n]...)
	vc.Queue = vc.Queue[n:]
	vc.Processed -= n
	return out, nil
}

func (d *Device) BuffersQueued(v voice.Handle) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	vc, err := d.voice(v)
	if err != nil {
		return 0, err
	}
	return len(vc.Queue), nil
}

func (d *Device) BuffersProcessed(v voice.Handle) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	vc, err := d.voice(v)
	if err != nil {
		return 0, err
	}
	return vc.Processed, nil
}

func (d *Device) SampleOffset(v voice.Handle) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	vc, err := d.voice(v)
	if err != nil {
		return 0, err
	}
	return vc.Sample, nil
}

func (d *Device) State(v voice.Handle) (voice.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	vc, err := d.voice(v)
	if err != nil {
		return voice.StateInitial, err
	}
	return vc.State, nil
}

func (d *Device) Play(vs ...voice.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailPlay {
		return fmt.Errorf("%w: play rejected", voice.ErrHardware)
	}
	for _, v := range vs {
		vc, err := d.voice(v)
		if err != nil {
			return err
		}
		vc.State = voice.StatePlaying
		vc.Plays++
	}
	return nil
}

func (d *Device) Pause(vs ...voice.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range vs {
		vc, err := d.voice(v)
		if err != nil {
			return err
		}
		if vc.State == voice.StatePlaying {
			vc.State = voice.StatePaused
		}
	}
	return nil
}

func (d *Device) Stop(v voice.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	vc, err := d.voice(v)
	if err != nil {
		return err
	}
	vc.State = voice.StateStopped
	vc.Processed = len(vc.Queue)
	return nil
}

func (d *Device) GenBuffer() (voice.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailGenBuffer {
		return voice.Handle{}, fmt.Errorf("%w: out of memory", voice.ErrHardware)
	}
	d.nextID++
	d.buffers[d.nextID] = &Buffer{}
	return voice.NewHandle(voice.KindBuffer, d.nextID), nil
}

func (d *Device) DeleteBuffer(buf voice.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.buffer(buf); err != nil {
		return err
	}
	delete(d.buffers, buf.ID())
	return nil
}

func (d *Device) BufferData(buf voice.Handle, f voice.Format, data []byte, sampleRate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailBufferData {
		return fmt.Errorf("%w: upload rejected", voice.ErrHardware)
	}
	b, err := d.buffer(buf)
	if err != nil {
		return err
	}
	b.Format = f
	b.Data = append([]byte(nil), data...)
	b.Rate = sampleRate
	d.uploads++
	return nil
}

func (d *Device) BufferSize(buf voice.Handle) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.buffer(buf)
	if err != nil {
		return 0, err
	}
	return len(b.Data), nil
}

func (d *Device) SetListener(pos, at, up voice.Vec3) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = [3]voice.Vec3{pos, at, up}
	return nil
}

func (d *Device) Suspend() {}

func (d *Device) Process() {
	d.mu.Lock()
	d.batches++
	d.mu.Unlock()
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Consume marks up to n queued buffers on v as played. When every queued
// buffer has been played the voice stops, like a real device running dry.
func (d *Device) Consume(v voice.Handle, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	vc, ok := d.voices[v.ID()]
	if !ok {
		return
	}
	vc.Processed += n
	if vc.Processed >= len(vc.Queue) {
		vc.Processed = len(vc.Queue)
		vc.State = voice.StateStopped
	}
}

// SetState forces the state of v
func (d *Device) SetState(v voice.Handle, s voice.State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if vc, ok := d.voices[v.ID()]; ok {
		vc.State = s
	}
}

// SetSampleOffset sets the frame position inside the head buffer of v
func (d *Device) SetSampleOffset(v voice.Handle, frames int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if vc, ok := d.voices[v.ID()]; ok {
		vc.Sample = frames
	}
}

// Voice returns a snapshot of v
func (d *Device) Voice(v voice.Handle) (Voice, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	vc, ok := d.voices[v.ID()]
	if !ok {
		return Voice{}, false
	}
	out := *vc
	out.Queue = append([]voice.Handle(nil), vc.Queue...)
	return out, true
}

// Buffer returns a snapshot of buf
func (d *Device) Buffer(buf voice.Handle) (Buffer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[buf.ID()]
	if !ok {
		return Buffer{}, false
	}
	return *b, true
}

// Uploads returns how many BufferData calls succeeded
func (d *Device) Uploads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uploads
}

// Batches returns how many Process calls were made
func (d *Device) Batches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.batches
}

// Listener returns the last listener pose
func (d *Device) Listener() (pos, at, up voice.Vec3) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listener[0], d.listener[1], d.listener[2]
}

// LiveVoices returns how many voices exist
func (d *Device) LiveVoices() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.voices)
}

// LiveBuffers returns how many buffers exist
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

// Closed reports whether Close was called since the last Open
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Device) voice(v voice.Handle) (*Voice, error) {
	if !v.Is(voice.KindVoice) {
		return nil, fmt.Errorf("%w: invalid handle %s", voice.ErrHardware, v)
	}
	vc, ok := d.voices[v.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: invalid handle %s", voice.ErrHardware, v)
	}
	return vc, nil
}

func (d *Device) buffer(b voice.Handle) (*Buffer, error) {
	if !b.Is(voice.KindBuffer) {
		return nil, fmt.Errorf("%w: invalid handle %s", voice.ErrHardware, b)
	}
	buf, ok := d.buffers[b.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: invalid handle %s", voice.ErrHardware, b)
	}
	return buf, nil
}
