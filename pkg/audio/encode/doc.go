// ABOUTME: Audio encoder package for device sample formats
// ABOUTME: Provides the Encoder interface and the little-endian PCM encoder
// Package encode converts mixed samples to the byte layout an output
// device expects.
//
// Supports: PCM (16-bit, 24-bit packed and 32-bit)
//
// All encoders accept int32 samples in 24-bit range.
//
// Example:
//
//	encoder, err := encode.NewPCM(24)
//	data, err := encoder.Encode(samples)
package encode
