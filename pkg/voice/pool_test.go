// ABOUTME: Tests for the voice pool
// ABOUTME: Covers exhaustion, FIFO reuse, sizing and partial voice generation
package voice_test

import (
	"errors"
	"testing"

	"github.com/Resonate-Protocol/streamout/internal/voicetest"
	"github.com/Resonate-Protocol/streamout/pkg/voice"
)

func voices(n int) []voice.Handle {
	out := make([]voice.Handle, n)
	for i := range out {
		out[i] = voice.NewHandle(voice.KindVoice, uint32(i+1))
	}
	return out
}

func TestPoolExhaustion(t *testing.T) {
	for _, n := range []int{1, 2, 4, 17, 256} {
		p := voice.NewPool(voices(n))

		var got []voice.Handle
		for i := 0; i < n; i++ {
			v, err := p.Acquire()
			if err != nil {
				t.Fatalf("n=%d: acquire %d failed: %v", n, i, err)
			}
			got = append(got, v)
		}

		if _, err := p.Acquire(); !errors.Is(err, voice.ErrExhausted) {
			t.Fatalf("n=%d: expected ErrExhausted, got %v", n, err)
		}

		p.Release(got[0])
		v, err := p.Acquire()
		if err != nil {
			t.Fatalf("n=%d: acquire after release failed: %v", n, err)
		}
		if v != got[0] {
			t.Errorf("n=%d: expected released voice %s, got %s", n, got[0], v)
		}
		if _, err := p.Acquire(); !errors.Is(err, voice.ErrExhausted) {
			t.Errorf("n=%d: expected exactly one acquire after release, got %v", n, err)
		}
	}
}

func TestPoolFIFO(t *testing.T) {
	vs := voices(3)
	p := voice.NewPool(vs)

	a, _ := p.Acquire()
	p.Release(a)

	// a went to the back, so the next two are the untouched voices
	b, _ := p.Acquire()
	c, _ := p.Acquire()
	if b != vs[1] || c != vs[2] {
		t.Errorf("expected %s and %s, got %s and %s", vs[1], vs[2], b, c)
	}
	if p.Free() != 1 {
		t.Errorf("expected 1 free voice, got %d", p.Free())
	}
}

func TestPoolDrain(t *testing.T) {
	p := voice.NewPool(voices(4))
	p.Acquire()

	drained := p.Drain()
	if len(drained) != 3 {
		t.Errorf("expected 3 drained voices, got %d", len(drained))
	}
	if p.Free() != 0 {
		t.Errorf("expected empty pool after drain, got %d", p.Free())
	}
	if p.Size() != 4 {
		t.Errorf("size should not change, got %d", p.Size())
	}
}

func TestPoolSize(t *testing.T) {
	tests := []struct {
		name         string
		mono, stereo int
		limit        int
		expected     int
	}{
		{"advertised", 24, 8, 0, 32},
		{"capped", 255, 4, 0, voice.MaxVoices},
		{"zero falls back to cap", 0, 0, 0, voice.MaxVoices},
		{"configured limit", 24, 8, 16, 16},
		{"limit above cap", 0, 0, 1000, voice.MaxVoices},
		{"limit caps zero fallback", 0, 0, 8, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := voice.PoolSize(tt.mono, tt.stereo, tt.limit); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestNewDevicePoolPartialFailure(t *testing.T) {
	// Advertises 8 but can only create 5
	dev := voicetest.NewDevice(5)
	dev.SetLimits(6, 2)

	p, err := voice.NewDevicePool(dev, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Size() != 5 || p.Free() != 5 {
		t.Errorf("expected 5 voices, got size %d free %d", p.Size(), p.Free())
	}
}

func TestNewDevicePoolNoVoices(t *testing.T) {
	dev := voicetest.NewDevice(0)
	dev.SetLimits(4, 0)

	if _, err := voice.NewDevicePool(dev, 0); !errors.Is(err, voice.ErrDeviceUnavailable) {
		t.Errorf("expected ErrDeviceUnavailable, got %v", err)
	}
}
