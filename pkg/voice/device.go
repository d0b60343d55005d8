// ABOUTME: Native playback device contract
// ABOUTME: Voices, buffers, buffer queues and listener state exposed by a driver
package voice

// State is the playback state of a voice
type State int

const (
	StateInitial State = iota
	StatePlaying
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Active reports whether the voice is playing or paused
func (s State) Active() bool {
	return s == StatePlaying || s == StatePaused
}

// Vec3 is a position or direction in listener space
type Vec3 struct {
	X, Y, Z float32
}

// Sub returns v - o
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Length2 returns the squared length
func (v Vec3) Length2() float32 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Params are the per-voice playback parameters
type Params struct {
	Gain              float32
	Pitch             float32
	Position          Vec3
	ReferenceDistance float32
	MaxDistance       float32
	Rolloff           float32
	Relative          bool
	Looping           bool
}

// Driver enumerates and opens devices
type Driver interface {
	// Devices lists the names of the available output devices
	Devices() ([]string, error)

	// Open opens the named device; an empty name selects the default
	Open(name string) (Device, error)
}

// Device is an open playback device. Voices play either one static buffer
// or a queue of streaming buffers. Methods are safe for concurrent use.
type Device interface {
	// Name returns the resolved device name
	Name() string

	// VoiceLimits returns the advertised mono and stereo voice counts
	VoiceLimits() (mono, stereo int)

	// HasExtension reports whether an optional capability is present
	HasExtension(name string) bool

	// EnumValue resolves a named format; 0 or -1 means unavailable
	EnumValue(name string) int

	GenVoice() (Handle, error)
	DeleteVoice(v Handle) error
	SetParams(v Handle, p Params) error

	// SetOffset seeks the bound buffer to the given second offset
	SetOffset(v Handle, seconds float32) error

	// BindBuffer attaches a static buffer; the zero Handle detaches
	BindBuffer(v, buf Handle) error
	BoundBuffer(v Handle) (Handle, error)

	QueueBuffers(v Handle, bufs ...Handle) error
	UnqueueBuffers(v Handle, n int) ([]Handle, error)
	BuffersQueued(v Handle) (int, error)
	BuffersProcessed(v Handle) (int, error)

	// SampleOffset returns the playback position in frames inside the current buffer
	SampleOffset(v Handle) (int, error)
	State(v Handle) (State, error)

	Play(vs ...Handle) error
	Pause(vs ...Handle) error
	Stop(v Handle) error

	GenBuffer() (Handle, error)
	DeleteBuffer(buf Handle) error
	BufferData(buf Handle, f Format, data []byte, sampleRate int) error
	BufferSize(buf Handle) (int, error)

	SetListener(pos, at, up Vec3) error

	// Suspend and Process bracket a batch of parameter updates
	Suspend()
	Process()

	Close() error
}
