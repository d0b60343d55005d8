// ABOUTME: Caller-facing sound handle
// ABOUTME: Holds volume, pitch and position plus the voice or stream it is bound to
package engine

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Resonate-Protocol/streamout/pkg/stream"
	"github.com/Resonate-Protocol/streamout/pkg/voice"
)

// Flags modify how a sound plays
type Flags int

const (
	PlayLoop Flags = 1 << iota
	PlayNoEnv
	PlayRemoveAtDistance
	Play3D

	PlayNormal Flags = 0
)

// PlayType groups sounds for pausing and resuming together
type PlayType int

const (
	TypeSfx PlayType = 1 << iota
	TypeVoice
	TypeFoot
	TypeMusic
	TypeMovie

	TypeMask = TypeSfx | TypeVoice | TypeFoot | TypeMusic | TypeMovie
)

func (t PlayType) String() string {
	var parts []string
	for _, n := range []struct {
		t    PlayType
		name string
	}{
		{TypeSfx, "sfx"},
		{TypeVoice, "voice"},
		{TypeFoot, "foot"},
		{TypeMusic, "music"},
		{TypeMovie, "movie"},
	} {
		if t&n.t != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParsePlayType maps a type name to its PlayType
func ParsePlayType(name string) (PlayType, bool) {
	switch strings.ToLower(name) {
	case "sfx":
		return TypeSfx, true
	case "voice":
		return TypeVoice, true
	case "foot":
		return TypeFoot, true
	case "music":
		return TypeMusic, true
	case "movie":
		return TypeMovie, true
	case "all":
		return TypeMask, true
	}
	return 0, false
}

// Environment is the acoustic environment of the listener
type Environment int

const (
	EnvNormal Environment = iota
	EnvUnderwater
)

// binding is what a live sound plays through: a oneShot or a streaming
type binding interface {
	voice() voice.Handle
}

type oneShot struct {
	v   voice.Handle
	buf voice.Handle
}

func (b oneShot) voice() voice.Handle { return b.v }

type streaming struct {
	st *stream.Stream
}

func (b streaming) voice() voice.Handle { return b.st.Voice() }

// Sound is a playing one-shot sound or stream. Its setters may be called
// from any goroutine; changes reach the voice on the next Update call.
type Sound struct {
	id       uuid.UUID
	name     string
	flags    Flags
	typ      PlayType
	isStream bool

	mu         sync.Mutex
	volume     float32
	baseVolume float32
	pitch      float32
	pos        voice.Vec3
	minDist    float32
	maxDist    float32

	// guarded by Output.mu
	binding binding
}

func newSound(name string, pos voice.Vec3, vol, baseVol, pitch, minDist, maxDist float32, flags Flags, typ PlayType) *Sound {
	return &Sound{
		id:         uuid.New(),
		name:       name,
		flags:      flags,
		typ:        typ,
		volume:     vol,
		baseVolume: baseVol,
		pitch:      pitch,
		pos:        pos,
		minDist:    minDist,
		maxDist:    maxDist,
	}
}

// ID returns the unique id used in logs
func (s *Sound) ID() uuid.UUID { return s.id }

// Name returns the asset or decoder name
func (s *Sound) Name() string { return s.name }

// Flags returns the play flags
func (s *Sound) Flags() Flags { return s.flags }

// Type returns the play type
func (s *Sound) Type() PlayType { return s.typ }

// Is3D reports whether the sound is positioned in the world
func (s *Sound) Is3D() bool { return s.flags&Play3D != 0 }

// IsStream reports whether the sound is streamed
func (s *Sound) IsStream() bool { return s.isStream }

// UseEnv reports whether the listener environment affects the sound
func (s *Sound) UseEnv() bool { return s.flags&PlayNoEnv == 0 }

// SetVolume sets the per-play volume. Call UpdateSound or UpdateStream to apply it.
func (s *Sound) SetVolume(v float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

// SetPitch sets the pitch multiplier
func (s *Sound) SetPitch(p float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pitch = p
}

// SetPosition moves a 3D sound
func (s *Sound) SetPosition(pos voice.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = pos
}

// RealVolume returns volume times base volume
func (s *Sound) RealVolume() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume * s.baseVolume
}

// Pitch returns the pitch multiplier
func (s *Sound) Pitch() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pitch
}

// Position returns the sound position
func (s *Sound) Position() voice.Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// params computes the voice parameters for the current listener state
func (s *Sound) params(listener voice.Vec3, env Environment) voice.Params {
	s.mu.Lock()
	defer s.mu.Unlock()

	gain := s.volume * s.baseVolume
	p := voice.Params{
		Pitch:   s.pitch,
		Looping: s.flags&PlayLoop != 0 && !s.isStream,
	}
	if s.flags&Play3D != 0 {
		p.Position = s.pos
		p.ReferenceDistance = s.minDist
		p.MaxDistance = s.maxDist
		p.Rolloff = 1
		if s.pos.Sub(listener).Length2() > s.maxDist*s.maxDist {
			gain = 0
		}
	} else {
		p.Relative = true
		p.ReferenceDistance = 1
		p.MaxDistance = 1000
	}
	if s.flags&PlayNoEnv == 0 && env == EnvUnderwater {
		gain *= 0.9
		p.Pitch *= 0.7
	}
	p.Gain = gain
	return p
}

// SoundInfo is a snapshot of a live sound
type SoundInfo struct {
	ID        uuid.UUID
	Name      string
	Type      PlayType
	Streaming bool
	Is3D      bool
	Volume    float32
	State     voice.State
	Voice     voice.Handle
}
