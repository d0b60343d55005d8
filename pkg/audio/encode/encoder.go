// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for encoders feeding output devices
package encode

// Encoder encodes mixed int32 samples for an output device
type Encoder interface {
	// Encode converts 24-bit range samples to device bytes
	Encode(samples []int32) ([]byte, error)

	// BytesPerSample returns the encoded size of one sample
	BytesPerSample() int
}
