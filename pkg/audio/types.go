// ABOUTME: Audio type definitions
// ABOUTME: Defines channel layouts, sample types and PCM format helpers
package audio

import "fmt"

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// ChannelConfig describes the speaker layout of interleaved PCM
type ChannelConfig int

const (
	ChannelMono ChannelConfig = iota
	ChannelStereo
	ChannelQuad
	Channel5Point1
	Channel7Point1
)

// SampleType describes the encoding of a single sample
type SampleType int

const (
	SampleUInt8 SampleType = iota
	SampleInt16
	SampleFloat32
)

// Count returns the number of interleaved channels
func (c ChannelConfig) Count() int {
	switch c {
	case ChannelMono:
		return 1
	case ChannelStereo:
		return 2
	case ChannelQuad:
		return 4
	case Channel5Point1:
		return 6
	case Channel7Point1:
		return 8
	}
	return 0
}

func (c ChannelConfig) String() string {
	switch c {
	case ChannelMono:
		return "Mono"
	case ChannelStereo:
		return "Stereo"
	case ChannelQuad:
		return "Quad"
	case Channel5Point1:
		return "5.1 Surround"
	case Channel7Point1:
		return "7.1 Surround"
	}
	return fmt.Sprintf("ChannelConfig(%d)", int(c))
}

// ChannelConfigFromCount maps an interleaved channel count back to a layout
func ChannelConfigFromCount(n int) (ChannelConfig, error) {
	switch n {
	case 1:
		return ChannelMono, nil
	case 2:
		return ChannelStereo, nil
	case 4:
		return ChannelQuad, nil
	case 6:
		return Channel5Point1, nil
	case 8:
		return Channel7Point1, nil
	}
	return 0, fmt.Errorf("unsupported channel count: %d", n)
}

// Size returns the number of bytes per sample
func (t SampleType) Size() int {
	switch t {
	case SampleUInt8:
		return 1
	case SampleInt16:
		return 2
	case SampleFloat32:
		return 4
	}
	return 0
}

func (t SampleType) String() string {
	switch t {
	case SampleUInt8:
		return "U8"
	case SampleInt16:
		return "S16"
	case SampleFloat32:
		return "Float32"
	}
	return fmt.Sprintf("SampleType(%d)", int(t))
}

// Silence returns the byte value that encodes silence for the sample type.
// Unsigned 8-bit PCM is centered on 0x80; every other type is centered on zero.
func (t SampleType) Silence() byte {
	if t == SampleUInt8 {
		return 0x80
	}
	return 0x00
}

// Format describes decoded PCM
type Format struct {
	SampleRate int
	Channels   ChannelConfig
	Type       SampleType
}

// FrameSize returns the number of bytes in one interleaved frame
func (f Format) FrameSize() int {
	return FramesToBytes(1, f.Channels, f.Type)
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz %s %s", f.SampleRate, f.Channels, f.Type)
}

// FramesToBytes converts a frame count to a byte count
func FramesToBytes(frames int, chans ChannelConfig, typ SampleType) int {
	return frames * chans.Count() * typ.Size()
}

// BytesToFrames converts a byte count to a whole frame count
func BytesToFrames(bytes int, chans ChannelConfig, typ SampleType) int {
	size := chans.Count() * typ.Size()
	if size == 0 {
		return 0
	}
	return bytes / size
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	// Left-shift to position 16-bit value in upper bits
	return int32(sample) << 8
}

// SampleFromUInt8 converts an unsigned 8-bit sample to the 24-bit range
func SampleFromUInt8(sample uint8) int32 {
	return (int32(sample) - 0x80) << 16
}

// SampleFromFloat32 converts a [-1,1] float sample to the 24-bit range with clipping
func SampleFromFloat32(sample float32) int32 {
	if sample > 1 {
		sample = 1
	} else if sample < -1 {
		sample = -1
	}
	return int32(float64(sample) * Max24Bit)
}

// Clamp24 clips a mixed value into the 24-bit range
func Clamp24(v int64) int32 {
	if v > Max24Bit {
		return Max24Bit
	}
	if v < Min24Bit {
		return Min24Bit
	}
	return int32(v)
}
