// ABOUTME: Raw PCM byte conversion
// ABOUTME: Converts interleaved PCM bytes of any sample type into 24-bit int32 samples
package audio

import (
	"encoding/binary"
	"math"
)

// ToInt32 converts interleaved little-endian PCM bytes into 24-bit range samples.
// Trailing bytes that do not form a whole sample are ignored.
func ToInt32(data []byte, typ SampleType) []int32 {
	size := typ.Size()
	if size == 0 {
		return nil
	}
	samples := make([]int32, len(data)/size)
	for i := range samples {
		switch typ {
		case SampleUInt8:
			samples[i] = SampleFromUInt8(data[i])
		case SampleInt16:
			samples[i] = SampleFromInt16(int16(binary.LittleEndian.Uint16(data[i*2:])))
		case SampleFloat32:
			samples[i] = SampleFromFloat32(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	}
	return samples
}

// ToFloat64 converts interleaved PCM bytes into normalized [-1,1] samples
func ToFloat64(data []byte, typ SampleType) []float64 {
	samples := ToInt32(data, typ)
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / (Max24Bit + 1)
	}
	return out
}

// AppendInt16 appends samples as little-endian signed 16-bit PCM
func AppendInt16(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// AppendFloat32 appends samples as little-endian 32-bit float PCM
func AppendFloat32(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(s))
	}
	return dst
}
