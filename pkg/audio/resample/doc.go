// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between different sample rates and pitches
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation for converting between sample rates.
// Handles both upsampling and downsampling, and the ratio can change
// between calls so the software mixer can apply pitch.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	consumed, produced := r.Resample(inputSamples, outputSamples)
package resample
