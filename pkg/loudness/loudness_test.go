// ABOUTME: Tests for loudness analysis
// ABOUTME: Checks RMS windows, spectral peaks and track lookups on synthetic signals
package loudness

import (
	"math"
	"testing"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
)

func sine(freq float64, rate int, seconds float64, amp float64) []float64 {
	n := int(float64(rate) * seconds)
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func toInt16PCM(samples []float64) []byte {
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		pcm[i] = int16(s * 32767)
	}
	return audio.AppendInt16(nil, pcm)
}

func TestRMSConstant(t *testing.T) {
	mono := make([]float64, 1000)
	for i := range mono {
		mono[i] = 0.5
		if i%2 == 1 {
			mono[i] = -0.5
		}
	}

	values := RMS(mono, 1000, 20)
	if len(values) != 20 {
		t.Fatalf("expected 20 values, got %d", len(values))
	}
	for i, v := range values {
		if math.Abs(float64(v)-0.5) > 1e-6 {
			t.Errorf("value %d: expected 0.5, got %v", i, v)
		}
	}
}

func TestRMSPartialWindow(t *testing.T) {
	mono := make([]float64, 125)
	values := RMS(mono, 1000, 20) // 50 sample windows
	if len(values) != 3 {
		t.Errorf("expected 3 values, got %d", len(values))
	}
	if RMS(nil, 1000, 20) != nil {
		t.Error("expected nil for empty input")
	}
}

func TestPeakFrequencySine(t *testing.T) {
	const rate = 44100
	peak, err := PeakFrequency(sine(440, rate, 1, 0.8), rate, FFTSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	binWidth := float64(rate) / FFTSize
	if math.Abs(peak-440) > binWidth {
		t.Errorf("expected peak near 440Hz, got %.1f", peak)
	}
}

func TestPeakFrequencySilence(t *testing.T) {
	peak, err := PeakFrequency(make([]float64, 4096), 48000, FFTSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak != 0 {
		t.Errorf("expected 0 for silence, got %v", peak)
	}
}

func TestPeakFrequencyBadSize(t *testing.T) {
	if _, err := PeakFrequency(make([]float64, 10), 48000, 1000); err == nil {
		t.Error("expected error for non power of two size")
	}
}

func TestMixdownStereo(t *testing.T) {
	pcm := audio.AppendInt16(nil, []int16{1000, -1000, 2000, 2000})
	mono := Mixdown(pcm, audio.Format{SampleRate: 8000, Channels: audio.ChannelStereo, Type: audio.SampleInt16})
	if len(mono) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(mono))
	}
	if mono[0] != 0 {
		t.Errorf("expected cancelled frame, got %v", mono[0])
	}
	if mono[1] <= 0 {
		t.Errorf("expected positive frame, got %v", mono[1])
	}
}

func TestTrackAnalyze(t *testing.T) {
	const rate = 16000
	// Half a second of tone then half a second of silence
	signal := append(sine(1000, rate, 0.5, 0.5), make([]float64, rate/2)...)
	format := audio.Format{SampleRate: rate, Channels: audio.ChannelMono, Type: audio.SampleInt16}

	track := NewTrack()
	if track.Done() {
		t.Fatal("new track should not be done")
	}

	track.Analyze(toInt16PCM(signal), format, 20)

	select {
	case <-track.Ready():
	default:
		t.Fatal("ready should be closed after analysis")
	}
	if len(track.Values()) != 20 {
		t.Errorf("expected 20 values, got %d", len(track.Values()))
	}
	if track.At(0.1) < 0.3 {
		t.Errorf("expected loud tone at 0.1s, got %v", track.At(0.1))
	}
	if track.At(0.9) != 0 {
		t.Errorf("expected silence at 0.9s, got %v", track.At(0.9))
	}
	if track.At(5) != 0 || track.At(-1) != 0 {
		t.Error("expected 0 outside the clip")
	}
	if math.Abs(track.Duration()-1) > 1e-9 {
		t.Errorf("expected 1s duration, got %v", track.Duration())
	}
	if math.Abs(track.PeakFrequency()-1000) > float64(rate)/FFTSize {
		t.Errorf("expected peak near 1000Hz, got %v", track.PeakFrequency())
	}
	if track.Peak() < 0.3 {
		t.Errorf("expected peak loudness above 0.3, got %v", track.Peak())
	}

	// A second analysis replaces the values without closing ready again
	track.Analyze(nil, format, 20)
	if len(track.Values()) != 0 {
		t.Error("expected empty values after empty analysis")
	}
}
