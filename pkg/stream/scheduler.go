// ABOUTME: Background worker refilling streams and running loudness jobs
// ABOUTME: One mutex guards the stream set and the job queue; wakes on signal or poll timeout
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
	"github.com/Resonate-Protocol/streamout/pkg/audio/decode"
)

const (
	// DefaultPollInterval bounds how long the worker sleeps without a wake
	DefaultPollInterval = 50 * time.Millisecond

	// DefaultLoudnessRate is the number of loudness values per second of audio
	DefaultLoudnessRate = 20.0
)

// Used for loudness jobs whose decoder cannot report a format
var defaultLoudnessFormat = audio.Format{
	SampleRate: 48000,
	Channels:   audio.ChannelMono,
	Type:       audio.SampleInt16,
}

// LoudnessSink receives the decoded audio of a loudness job
type LoudnessSink interface {
	Analyze(pcm []byte, format audio.Format, valuesPerSecond float64)
}

type loudnessJob struct {
	dec  decode.Decoder
	sink LoudnessSink
}

// SchedulerStats tracks worker activity
type SchedulerStats struct {
	Ticks   int64
	Refills int64
	Dropped int64
	Jobs    int64
	Active  int
	Pending int
}

type schedulerOptions struct {
	poll         time.Duration
	loudnessRate float64
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*schedulerOptions)

// WithPollInterval sets the longest sleep between refills
func WithPollInterval(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.poll = d
		}
	}
}

// WithLoudnessRate sets the loudness values per second passed to sinks
func WithLoudnessRate(fps float64) SchedulerOption {
	return func(o *schedulerOptions) {
		if fps > 0 {
			o.loudnessRate = fps
		}
	}
}

// Scheduler owns the worker goroutine that keeps streams fed
type Scheduler struct {
	mu      sync.Mutex
	streams []*Stream
	jobs    []loudnessJob
	stats   SchedulerStats

	poll         time.Duration
	loudnessRate float64

	wake   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewScheduler creates a scheduler and starts its worker
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	o := schedulerOptions{poll: DefaultPollInterval, loudnessRate: DefaultLoudnessRate}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		poll:         o.poll,
		loudnessRate: o.loudnessRate,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}

	go s.run()
	return s
}

func (s *Scheduler) run() {
	defer close(s.done)

	timer := time.NewTimer(s.poll)
	defer timer.Stop()

	for s.ctx.Err() == nil {
		s.mu.Lock()
		s.tick()
		job, ok := s.popJob()
		s.mu.Unlock()

		if ok {
			s.runJob(job)
			s.mu.Lock()
			s.stats.Jobs++
			s.mu.Unlock()
			continue
		}

		timer.Reset(s.poll)
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// tick visits every stream once. Must hold s.mu.
func (s *Scheduler) tick() {
	s.stats.Ticks++

	alive := s.streams[:0]
	for _, st := range s.streams {
		s.stats.Refills++
		if st.Process() {
			alive = append(alive, st)
			continue
		}
		s.stats.Dropped++
		log.Debug().Str("stream", st.Name()).Msg("Stream no longer needs refills")
	}
	for i := len(alive); i < len(s.streams); i++ {
		s.streams[i] = nil
	}
	s.streams = alive
}

// popJob takes the oldest loudness job. Must hold s.mu.
func (s *Scheduler) popJob() (loudnessJob, bool) {
	if len(s.jobs) == 0 {
		return loudnessJob{}, false
	}
	job := s.jobs[0]
	s.jobs[0] = loudnessJob{}
	s.jobs = s.jobs[1:]
	return job, true
}

// runJob decodes and analyzes one clip outside the lock
func (s *Scheduler) runJob(job loudnessJob) {
	name := job.dec.Name()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("clip", name).Msg("Loudness analysis panicked")
		}
		if err := job.dec.Close(); err != nil {
			log.Warn().Err(err).Str("clip", name).Msg("Failed to close loudness decoder")
		}
	}()

	format, err := job.dec.Info()
	if err != nil {
		log.Warn().Err(err).Str("clip", name).Msg("Loudness decoder has no format, using defaults")
		format = defaultLoudnessFormat
	}

	pcm, err := job.dec.ReadAll()
	if err != nil {
		log.Warn().Err(err).Str("clip", name).Int("bytes", len(pcm)).Msg("Loudness decode failed")
	}

	job.sink.Analyze(pcm, format, s.loudnessRate)
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Add registers a stream for refills and wakes the worker. Adding a
// registered stream again does nothing.
func (s *Scheduler) Add(st *Stream) {
	s.mu.Lock()
	for _, existing := range s.streams {
		if existing == st {
			s.mu.Unlock()
			return
		}
	}
	s.streams = append(s.streams, st)
	s.mu.Unlock()

	s.signal()
}

// Remove unregisters a stream. Once Remove returns the worker will not
// touch st again.
func (s *Scheduler) Remove(st *Stream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.streams {
		if existing == st {
			copy(s.streams[i:], s.streams[i+1:])
			s.streams[len(s.streams)-1] = nil
			s.streams = s.streams[:len(s.streams)-1]
			return true
		}
	}
	return false
}

// RemoveAll unregisters every stream and drops pending loudness jobs,
// closing their decoders
func (s *Scheduler) RemoveAll() {
	s.mu.Lock()
	s.streams = nil
	jobs := s.jobs
	s.jobs = nil
	s.mu.Unlock()

	dropJobs(jobs)
}

func dropJobs(jobs []loudnessJob) {
	for _, job := range jobs {
		if err := job.dec.Close(); err != nil {
			log.Warn().Err(err).Str("clip", job.dec.Name()).Msg("Failed to close dropped loudness decoder")
		}
	}
}

// AddLoudnessJob queues dec for analysis by sink and wakes the worker.
// The scheduler closes dec when the job is done or dropped. After Close
// the job is dropped at once.
func (s *Scheduler) AddLoudnessJob(dec decode.Decoder, sink LoudnessSink) {
	job := loudnessJob{dec: dec, sink: sink}
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		dropJobs([]loudnessJob{job})
		return
	}
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()

	s.signal()
}

// WithLock runs fn while the worker is kept out of the streams
func (s *Scheduler) WithLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Contains reports whether st is registered
func (s *Scheduler) Contains(st *Stream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.streams {
		if existing == st {
			return true
		}
	}
	return false
}

// Stats returns a snapshot of worker activity
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.Active = len(s.streams)
	stats.Pending = len(s.jobs)
	return stats
}

// Close stops the worker and waits for it to exit, closing the decoders
// of loudness jobs that never ran. Call RemoveAll first so no stream
// outlives its device.
func (s *Scheduler) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.cancel()
		s.mu.Unlock()
		<-s.done

		s.mu.Lock()
		jobs := s.jobs
		s.jobs = nil
		s.mu.Unlock()
		dropJobs(jobs)
	})
}
