// ABOUTME: Loudness analysis of decoded clips
// ABOUTME: Produces a per-window RMS time series and the dominant frequency of a clip
package loudness

import (
	"errors"
	"math"
	"math/bits"

	"github.com/argusdusty/gofft"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
)

// FFTSize is the window length used for the spectral peak
const FFTSize = 2048

// Spectral analysis looks at no more than this many windows
const maxFFTWindows = 64

// Mixdown averages interleaved PCM into normalized mono samples
func Mixdown(pcm []byte, format audio.Format) []float64 {
	chans := format.Channels.Count()
	if chans == 0 {
		return nil
	}
	samples := audio.ToFloat64(pcm, format.Type)
	mono := make([]float64, len(samples)/chans)
	for i := range mono {
		var sum float64
		for ch := 0; ch < chans; ch++ {
			sum += samples[i*chans+ch]
		}
		mono[i] = sum / float64(chans)
	}
	return mono
}

// RMS returns the root mean square of each window of sampleRate/valuesPerSecond
// samples. A trailing partial window gets its own value.
func RMS(mono []float64, sampleRate int, valuesPerSecond float64) []float32 {
	if len(mono) == 0 || sampleRate <= 0 || valuesPerSecond <= 0 {
		return nil
	}
	window := int(math.Round(float64(sampleRate) / valuesPerSecond))
	if window < 1 {
		window = 1
	}

	values := make([]float32, 0, (len(mono)+window-1)/window)
	for start := 0; start < len(mono); start += window {
		end := start + window
		if end > len(mono) {
			end = len(mono)
		}
		var sum float64
		for _, s := range mono[start:end] {
			sum += s * s
		}
		values = append(values, float32(math.Sqrt(sum/float64(end-start))))
	}
	return values
}

// ApplyHanning returns a Hanning-windowed copy of data
func ApplyHanning(data []float64) []float64 {
	windowed := make([]float64, len(data))
	n := len(data)
	for i := range data {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		windowed[i] = data[i] * w
	}
	return windowed
}

// PeakFrequency returns the frequency in Hz with the most energy, averaged
// over consecutive FFT windows. Clips shorter than one window are zero padded.
func PeakFrequency(mono []float64, sampleRate int, size int) (float64, error) {
	if size < 2 || bits.OnesCount(uint(size)) != 1 {
		return 0, errors.New("fft size must be a power of two")
	}
	if len(mono) == 0 || sampleRate <= 0 {
		return 0, nil
	}

	magnitudes := make([]float64, size/2)
	windows := 0
	for start := 0; start < len(mono) && windows < maxFFTWindows; start += size {
		chunk := make([]float64, size)
		copy(chunk, mono[start:])

		coeffs := gofft.Float64ToComplex128Array(ApplyHanning(chunk))
		if err := gofft.FFT(coeffs); err != nil {
			return 0, err
		}
		for i := range magnitudes {
			re, im := real(coeffs[i]), imag(coeffs[i])
			magnitudes[i] += math.Sqrt(re*re + im*im)
		}
		windows++
	}

	if len(magnitudes) < 2 {
		return 0, nil
	}
	// Skip the DC bin
	peak := 1
	for i := 2; i < len(magnitudes); i++ {
		if magnitudes[i] > magnitudes[peak] {
			peak = i
		}
	}
	if magnitudes[peak] < 1e-9 {
		return 0, nil
	}
	return float64(peak) * float64(sampleRate) / float64(size), nil
}
