// ABOUTME: Loudness results for one clip
// ABOUTME: Receives analysis from the stream worker and answers time lookups
package loudness

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
)

// Track holds the loudness analysis of one clip. It is filled once by the
// stream worker and read from any goroutine.
type Track struct {
	mu       sync.RWMutex
	values   []float32
	fps      float64
	peak     float64
	duration float64
	done     bool
	ready    chan struct{}
}

// NewTrack creates an empty track
func NewTrack() *Track {
	return &Track{ready: make(chan struct{})}
}

// Analyze computes loudness values and the spectral peak of pcm
func (t *Track) Analyze(pcm []byte, format audio.Format, valuesPerSecond float64) {
	mono := Mixdown(pcm, format)
	values := RMS(mono, format.SampleRate, valuesPerSecond)

	peak, err := PeakFrequency(mono, format.SampleRate, FFTSize)
	if err != nil {
		log.Warn().Err(err).Msg("Spectral analysis failed")
	}

	var duration float64
	if format.SampleRate > 0 {
		duration = float64(len(mono)) / float64(format.SampleRate)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.values = values
	t.fps = valuesPerSecond
	t.peak = peak
	t.duration = duration
	if !t.done {
		t.done = true
		close(t.ready)
	}
}

// Ready is closed once the analysis has completed
func (t *Track) Ready() <-chan struct{} {
	return t.ready
}

// Done reports whether the analysis has completed
func (t *Track) Done() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.done
}

// Values returns a copy of the loudness series
func (t *Track) Values() []float32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]float32(nil), t.values...)
}

// At returns the loudness at the given second, 0 outside the clip or
// before the analysis is done
func (t *Track) At(seconds float64) float32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if seconds < 0 || len(t.values) == 0 {
		return 0
	}
	i := int(seconds * t.fps)
	if i >= len(t.values) {
		return 0
	}
	return t.values[i]
}

// Peak returns the loudest value of the series
func (t *Track) Peak() float32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var max float32
	for _, v := range t.values {
		if v > max {
			max = v
		}
	}
	return max
}

// PeakFrequency returns the dominant frequency in Hz
func (t *Track) PeakFrequency() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.peak
}

// Duration returns the clip length in seconds
func (t *Track) Duration() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.duration
}
