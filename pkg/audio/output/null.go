// ABOUTME: Output that discards audio
// ABOUTME: Optionally paces writes in real time so a mixer behaves as with hardware
package output

import (
	"sync"
	"time"
)

// Null discards samples
type Null struct {
	pace bool

	mu         sync.Mutex
	sampleRate int
	channels   int
	start      time.Time
	frames     int64
	peak       int32
	ready      bool
}

// NewNull creates a discarding output. With pace set, Write sleeps so
// frames leave at the sample rate.
func NewNull(pace bool) *Null {
	return &Null{pace: pace}
}

// Open records the format
func (n *Null) Open(sampleRate, channels int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sampleRate = sampleRate
	n.channels = channels
	n.start = time.Now()
	n.frames = 0
	n.ready = true
	return nil
}

// Write counts frames and tracks the peak sample
func (n *Null) Write(samples []int32) error {
	n.mu.Lock()
	if !n.ready {
		n.mu.Unlock()
		return ErrNotOpen
	}
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > n.peak {
			n.peak = s
		}
	}
	n.frames += int64(len(samples) / n.channels)
	due := n.start.Add(time.Duration(n.frames) * time.Second / time.Duration(n.sampleRate))
	n.mu.Unlock()

	if n.pace {
		if wait := time.Until(due); wait > 0 {
			time.Sleep(wait)
		}
	}
	return nil
}

// Close marks the output closed
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ready = false
	return nil
}

// Frames returns the number of frames written since Open
func (n *Null) Frames() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frames
}

// Peak returns the largest absolute sample written
func (n *Null) Peak() int32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.peak
}
