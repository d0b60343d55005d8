// ABOUTME: Scripted decoder for tests
// ABOUTME: Serves a fixed PCM payload and can inject failures or block reads
package voicetest

import (
	"errors"
	"io"
	"sync"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
)

// ErrScripted is returned by injected failures
var ErrScripted = errors.New("scripted decoder failure")

// Decoder implements decode.Decoder over an in-memory payload
type Decoder struct {
	mu sync.Mutex

	ID     string
	Format audio.Format
	Data   []byte

	// InfoErr and ReadErr are returned by Info and Read when set
	InfoErr error
	ReadErr error

	// Gate, when set, blocks ReadAll until it is closed
	Gate chan struct{}

	pos    int
	reads  int
	opened bool
	closed bool
}

// NewDecoder creates an opened decoder over data
func NewDecoder(name string, format audio.Format, data []byte) *Decoder {
	return &Decoder{ID: name, Format: format, Data: data, opened: true}
}

func (d *Decoder) Open(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ID = name
	d.opened = true
	d.closed = false
	d.pos = 0
	return nil
}

func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Decoder) Info() (audio.Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.InfoErr != nil {
		return audio.Format{}, d.InfoErr
	}
	return d.Format, nil
}

func (d *Decoder) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.ReadErr != nil {
		return 0, d.ReadErr
	}
	n := copy(p, d.Data[d.pos:])
	d.pos += n
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (d *Decoder) ReadAll() ([]byte, error) {
	if d.Gate != nil {
		<-d.Gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ReadErr != nil {
		return nil, d.ReadErr
	}
	out := append([]byte(nil), d.Data[d.pos:]...)
	d.pos = len(d.Data)
	return out, nil
}

func (d *Decoder) SampleOffset() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	size := d.Format.FrameSize()
	if size == 0 {
		return 0
	}
	return int64(d.pos / size)
}

func (d *Decoder) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ID
}

// Reads returns how many times Read was called
func (d *Decoder) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Closed reports whether Close was called
func (d *Decoder) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Sink records loudness analyses
type Sink struct {
	mu       sync.Mutex
	Calls    int
	Bytes    []int
	Formats  []audio.Format
	Active   int
	Overlaps int

	// Hook runs inside Analyze while the call is counted active
	Hook func()
}

// Analyze records one analysis
func (s *Sink) Analyze(pcm []byte, format audio.Format, valuesPerSecond float64) {
	s.mu.Lock()
	s.Active++
	if s.Active > 1 {
		s.Overlaps++
	}
	hook := s.Hook
	s.mu.Unlock()

	if hook != nil {
		hook()
	}

	s.mu.Lock()
	s.Active--
	s.Calls++
	s.Bytes = append(s.Bytes, len(pcm))
	s.Formats = append(s.Formats, format)
	s.mu.Unlock()
}

// Count returns how many analyses completed
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}
