// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines channel layouts, sample types and PCM conversion functions
// Package audio provides the PCM vocabulary shared by decoders, voices and the mixer.
//
// This package defines:
//   - ChannelConfig: speaker layout (mono, stereo, quad, 5.1, 7.1)
//   - SampleType: sample encoding (unsigned 8-bit, signed 16-bit, 32-bit float)
//   - Format: sample rate, layout and type of a decoded clip
//
// Mixing happens in a 24-bit range held in int32, so the conversion helpers
// map every sample type into that range:
//
//	format := audio.Format{
//	    SampleRate: 44100,
//	    Channels:   audio.ChannelStereo,
//	    Type:       audio.SampleInt16,
//	}
//
//	frameBytes := format.FrameSize()           // 4
//	samples := audio.ToInt32(pcm, format.Type) // 24-bit range
package audio
