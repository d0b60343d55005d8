// ABOUTME: PCM audio encoder
// ABOUTME: Encodes int32 samples to 16-bit, 24-bit or 32-bit little-endian PCM
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	bitDepth int
}

// NewPCM creates a new PCM encoder
func NewPCM(bitDepth int) (*PCMEncoder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24, 32)", bitDepth)
	}
	return &PCMEncoder{bitDepth: bitDepth}, nil
}

// BytesPerSample returns the encoded size of one sample
func (e *PCMEncoder) BytesPerSample() int {
	return e.bitDepth / 8
}

// Encode converts int32 samples to PCM bytes
func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	output := make([]byte, len(samples)*e.BytesPerSample())
	switch e.bitDepth {
	case 16:
		for i, sample := range samples {
			binary.LittleEndian.PutUint16(output[i*2:], uint16(audio.SampleToInt16(sample)))
		}
	case 24:
		for i, sample := range samples {
			output[i*3] = byte(sample)
			output[i*3+1] = byte(sample >> 8)
			output[i*3+2] = byte(sample >> 16)
		}
	case 32:
		// 24-bit value in the upper bits of the 32-bit container
		for i, sample := range samples {
			binary.LittleEndian.PutUint32(output[i*4:], uint32(sample<<8))
		}
	}
	return output, nil
}
