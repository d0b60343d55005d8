// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Output interface with oto, malgo and null backends
// Package output provides audio playback sinks.
//
// Outputs take interleaved samples in the 24-bit range and block until the
// backend has accepted them, which paces whoever is mixing.
//
// Example:
//
//	out := output.NewMalgo(output.MalgoConfig{BitDepth: 24})
//	err := out.Open(48000, 2)
//	err = out.Write(samples)
package output
