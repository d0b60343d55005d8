// ABOUTME: Fixed-size pool of device voices
// ABOUTME: Hands out one voice per active sound and reclaims it on stop
package voice

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// MaxVoices caps the pool regardless of what the device advertises
const MaxVoices = 256

// Pool holds the free voices of a device
type Pool struct {
	mu   sync.Mutex
	free []Handle
	size int
}

// NewPool creates a pool over already generated voices
func NewPool(voices []Handle) *Pool {
	free := make([]Handle, len(voices))
	copy(free, voices)
	return &Pool{free: free, size: len(voices)}
}

// PoolSize returns how many voices to generate for the advertised limits.
// A limit of zero from a broken driver falls back to the cap.
func PoolSize(mono, stereo, limit int) int {
	max := MaxVoices
	if limit > 0 && limit < max {
		max = limit
	}
	total := mono + stereo
	if total <= 0 || total > max {
		total = max
	}
	return total
}

// NewDevicePool generates voices on dev and pools them. Generation stops at
// the first failure; any voices created so far are kept.
func NewDevicePool(dev Device, limit int) (*Pool, error) {
	mono, stereo := dev.VoiceLimits()
	total := PoolSize(mono, stereo, limit)

	voices := make([]Handle, 0, total)
	for i := 0; i < total; i++ {
		v, err := dev.GenVoice()
		if err != nil {
			log.Warn().Err(err).Int("created", len(voices)).Msg("Voice generation failed, trying to continue")
			break
		}
		voices = append(voices, v)
	}

	if len(voices) == 0 {
		return nil, fmt.Errorf("%w: could not allocate any voices", ErrDeviceUnavailable)
	}

	log.Debug().Int("voices", len(voices)).Int("mono", mono).Int("stereo", stereo).Msg("Voice pool ready")
	return NewPool(voices), nil
}

// Acquire takes the oldest free voice
func (p *Pool) Acquire() (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return Handle{}, ErrExhausted
	}
	v := p.free[0]
	p.free = p.free[1:]
	return v, nil
}

// Release returns a voice to the back of the free list. Releasing the same
// voice twice is the caller's bug and is not detected.
func (p *Pool) Release(v Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, v)
}

// Free returns the number of voices available
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Size returns the number of voices the pool was created with
func (p *Pool) Size() int {
	return p.size
}

// Drain empties the pool and returns every free voice
func (p *Pool) Drain() []Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	free := p.free
	p.free = nil
	return free
}
