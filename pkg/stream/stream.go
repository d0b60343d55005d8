// ABOUTME: Buffered stream over a decoder and a device voice
// ABOUTME: Refills a ring of device buffers and pads the final chunk with silence
package stream

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
	"github.com/Resonate-Protocol/streamout/pkg/audio/decode"
	"github.com/Resonate-Protocol/streamout/pkg/voice"
)

const (
	// DefaultBufferCount is the number of buffers in a stream's ring
	DefaultBufferCount = 6

	// DefaultBufferLength is the audio duration held by one buffer
	DefaultBufferLength = 125 * time.Millisecond
)

type options struct {
	buffers int
	length  time.Duration
}

// Option configures a Stream
type Option func(*options)

// WithBufferCount sets the ring size
func WithBufferCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffers = n
		}
	}
}

// WithBufferLength sets the duration of each buffer
func WithBufferLength(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.length = d
		}
	}
}

// Stream plays a decoder through a voice using a ring of device buffers
type Stream struct {
	dev   voice.Device
	voice voice.Handle
	dec   decode.Decoder

	ring []voice.Handle
	next int

	info         audio.Format
	format       voice.Format
	frameSize    int
	bufferFrames int
	silence      byte
	chunk        []byte

	finished bool
	closed   bool
}

// New creates a stream playing dec on voice v. The stream owns dec from
// here on, even when New fails.
func New(dev voice.Device, v voice.Handle, dec decode.Decoder, opts ...Option) (*Stream, error) {
	o := options{buffers: DefaultBufferCount, length: DefaultBufferLength}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Stream{dev: dev, voice: v, dec: dec}
	if err := s.init(o); err != nil {
		s.deleteRing()
		dec.Close()
		return nil, err
	}
	return s, nil
}

func (s *Stream) init(o options) error {
	s.ring = make([]voice.Handle, 0, o.buffers)
	for i := 0; i < o.buffers; i++ {
		buf, err := s.dev.GenBuffer()
		if err != nil {
			return fmt.Errorf("failed to create stream buffers: %w", err)
		}
		s.ring = append(s.ring, buf)
	}

	info, err := s.dec.Info()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", voice.ErrDecodeFailure, s.dec.Name(), err)
	}

	format, err := voice.NegotiateFormat(s.dev, info.Channels, info.Type)
	if err != nil {
		return err
	}

	s.info = info
	s.format = format
	s.frameSize = info.FrameSize()
	s.bufferFrames = int(float64(info.SampleRate) * o.length.Seconds())
	if s.frameSize == 0 || s.bufferFrames <= 0 {
		return fmt.Errorf("%w: %s", voice.ErrUnsupportedFormat, info)
	}
	s.silence = info.Type.Silence()
	s.chunk = make([]byte, s.bufferFrames*s.frameSize)
	return nil
}

// Refill reclaims played buffers and queues freshly decoded ones. It
// returns how many buffers are queued on the voice afterwards.
func (s *Stream) Refill() (int, error) {
	processed, err := s.dev.BuffersProcessed(s.voice)
	if err != nil {
		return 0, err
	}
	if processed > 0 {
		if _, err := s.dev.UnqueueBuffers(s.voice, processed); err != nil {
			return 0, err
		}
	}

	queued, err := s.dev.BuffersQueued(s.voice)
	if err != nil {
		return 0, err
	}

	for !s.finished && queued < len(s.ring) {
		n, err := s.dec.Read(s.chunk)
		if err != nil && !errors.Is(err, io.EOF) {
			return queued, fmt.Errorf("read failed: %w", err)
		}
		if n < len(s.chunk) {
			s.finished = true
			if n == 0 {
				break
			}
			for i := n; i < len(s.chunk); i++ {
				s.chunk[i] = s.silence
			}
		}

		buf := s.ring[s.next]
		s.next = (s.next + 1) % len(s.ring)
		if err := s.dev.BufferData(buf, s.format, s.chunk, s.info.SampleRate); err != nil {
			return queued, err
		}
		if err := s.dev.QueueBuffers(s.voice, buf); err != nil {
			return queued, err
		}
		queued++
	}

	return queued, nil
}

// Process refills the stream and starts the voice when it has audio but
// is idle. Errors end the stream. It returns false once the stream needs
// no more refills.
func (s *Stream) Process() bool {
	if s.closed {
		return false
	}

	err := s.process()
	if err != nil {
		log.Error().Err(err).Str("stream", s.dec.Name()).Msg("Stream failed, no more refills")
		s.finished = true
		return false
	}
	return !s.finished
}

func (s *Stream) process() error {
	queued, err := s.Refill()
	if err != nil || queued == 0 {
		return err
	}

	state, err := s.dev.State(s.voice)
	if err != nil {
		return err
	}
	if state.Active() {
		return nil
	}

	// Top up whatever played out during the stall before restarting
	if _, err := s.Refill(); err != nil {
		return err
	}
	return s.dev.Play(s.voice)
}

// IsPlaying reports whether the voice is playing or paused, or the
// stream has not run out of data yet
func (s *Stream) IsPlaying() (bool, error) {
	state, err := s.dev.State(s.voice)
	if err != nil {
		return false, err
	}
	return state.Active() || !s.finished, nil
}

// Delay returns the seconds of audio queued on the voice that have not
// been heard yet. A voice that is neither playing nor paused has nothing
// left to drain.
func (s *Stream) Delay() (float64, error) {
	state, err := s.dev.State(s.voice)
	if err != nil {
		return 0, err
	}
	if !state.Active() {
		return 0, nil
	}

	queued, err := s.dev.BuffersQueued(s.voice)
	if err != nil {
		return 0, err
	}
	offset, err := s.dev.SampleOffset(s.voice)
	if err != nil {
		return 0, err
	}

	frames := queued*s.bufferFrames - offset
	if frames < 0 {
		frames = 0
	}
	return float64(frames) / float64(s.info.SampleRate), nil
}

// Offset returns the playback position in seconds. While the voice is
// stopped this is the decoder position, where playback would resume.
func (s *Stream) Offset() (float64, error) {
	pos := float64(s.dec.SampleOffset()) / float64(s.info.SampleRate)

	state, err := s.dev.State(s.voice)
	if err != nil {
		return 0, err
	}
	if !state.Active() {
		return pos, nil
	}

	delay, err := s.Delay()
	if err != nil {
		return 0, err
	}
	if pos < delay {
		return 0, nil
	}
	return pos - delay, nil
}

// Name returns the decoder name
func (s *Stream) Name() string {
	return s.dec.Name()
}

// Voice returns the voice the stream plays on
func (s *Stream) Voice() voice.Handle {
	return s.voice
}

// Format returns the decoded PCM format
func (s *Stream) Format() audio.Format {
	return s.info
}

// BufferSize returns the size in bytes of one ring buffer
func (s *Stream) BufferSize() int {
	return len(s.chunk)
}

// Finished reports whether the decoder ran out or the stream failed
func (s *Stream) Finished() bool {
	return s.finished
}

// Close stops the voice, detaches and deletes the ring and closes the
// decoder. The voice itself stays with the caller. Remove the stream from
// its Scheduler first.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.finished = true

	var errs []error
	if err := s.dev.Stop(s.voice); err != nil {
		errs = append(errs, err)
	}
	if err := s.dev.BindBuffer(s.voice, voice.Handle{}); err != nil {
		errs = append(errs, err)
	}
	if err := s.deleteRing(); err != nil {
		errs = append(errs, err)
	}
	if err := s.dec.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Stream) deleteRing() error {
	var errs []error
	for _, buf := range s.ring {
		if err := s.dev.DeleteBuffer(buf); err != nil {
			errs = append(errs, err)
		}
	}
	s.ring = nil
	return errors.Join(errs...)
}
